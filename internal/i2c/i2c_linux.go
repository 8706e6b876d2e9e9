//go:build linux

package i2c

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl numbers from <linux/i2c-dev.h>.
const (
	ioctlRdwr = 0x0707
	flagRead  = 0x0001

	// maxXfer is the largest segment one i2c_msg can describe.
	maxXfer = 0xFFFF
)

// segment mirrors struct i2c_msg.
type segment struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// transfer mirrors struct i2c_rdwr_ioctl_data.
type transfer struct {
	segs  uintptr
	nsegs uint32
}

// Bus is an open /dev/i2c-N character device. Transfers are not
// serialized; one goroutine owns a bus.
type Bus struct {
	f    *os.File
	path string
}

// OpenBus opens /dev/i2c-<n>.
func OpenBus(n int) (*Bus, error) {
	return Open(BusPath(n))
}

func Open(path string) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string { return b.path }

func (b *Bus) Close() error {
	if b == nil || b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Dev returns the register device at 7-bit address addr.
func (b *Bus) Dev(addr uint16) *Dev {
	return &Dev{bus: b, addr: addr}
}

// Dev addresses auto-incrementing registers on one bus address.
type Dev struct {
	bus  *Bus
	addr uint16
}

// ReadReg reads len(dst) consecutive registers starting at reg with a
// repeated start between the address write and the read.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if len(dst) == 0 || len(dst) > maxXfer {
		return fmt.Errorf("i2c: read reg 0x%02X: bad length %d", reg, len(dst))
	}
	addr := []byte{reg}
	err := d.rdwr(
		segment{flags: 0, len: 1, buf: uintptr(unsafe.Pointer(&addr[0]))},
		segment{flags: flagRead, len: uint16(len(dst)), buf: uintptr(unsafe.Pointer(&dst[0]))},
	)
	runtime.KeepAlive(addr)
	runtime.KeepAlive(dst)
	if err != nil {
		return fmt.Errorf("i2c: read reg 0x%02X: %w", reg, err)
	}
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
	p := []byte{reg, value}
	err := d.rdwr(segment{len: 2, buf: uintptr(unsafe.Pointer(&p[0]))})
	runtime.KeepAlive(p)
	if err != nil {
		return fmt.Errorf("i2c: write reg 0x%02X: %w", reg, err)
	}
	return nil
}

// rdwr issues segs as one I2C_RDWR transaction addressed to d.
func (d *Dev) rdwr(segs ...segment) error {
	if d == nil || d.bus == nil || d.bus.f == nil {
		return fmt.Errorf("device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("invalid addr 0x%X", d.addr)
	}
	for i := range segs {
		segs[i].addr = d.addr
	}
	data := transfer{segs: uintptr(unsafe.Pointer(&segs[0])), nsegs: uint32(len(segs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return errno
	}
	return nil
}
