// Package spi is a register-level SPI transport built on periph.io.
package spi

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// readFlag is set in the address byte of a register read.
const readFlag = 0x80

// Dev is a register-addressed device on an SPI port (mode 3, 8 bits).
type Dev struct {
	port spi.PortCloser
	conn txer
}

type txer interface {
	Tx(w, r []byte) error
}

// Open initializes the host drivers and connects to the named port, for
// example "/dev/spidev0.0" or "SPI0.0".
func Open(name string, speedHz int64) (*Dev, error) {
	if speedHz <= 0 {
		return nil, fmt.Errorf("spi: speed must be > 0, got %d", speedHz)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("spi: host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("spi: open %q: %w", name, err)
	}
	c, err := p.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode3, 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("spi: connect %q: %w", name, err)
	}
	return &Dev{port: p, conn: c}, nil
}

func (d *Dev) Close() error {
	if d == nil || d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// ReadReg reads len(dst) consecutive registers starting at reg.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("spi: device is nil")
	}
	w := make([]byte, len(dst)+1)
	r := make([]byte, len(w))
	w[0] = reg | readFlag
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("spi: read reg 0x%02X: %w", reg, err)
	}
	copy(dst, r[1:])
	return nil
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("spi: device is nil")
	}
	w := []byte{reg &^ readFlag, value}
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("spi: write reg 0x%02X: %w", reg, err)
	}
	return nil
}
