package icm20602

import (
	"fmt"
	"time"

	"imufusion/internal/imu"
)

var sleep = time.Sleep

// ICM-20602 driver: probe, reset, full-scale setup and per-axis reads.
//
// - WHO_AM_I at 0x75 should return 0x12.
// - Output registers are big-endian, high byte first.

const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXoutH  = 0x3B
	regAccelYoutH  = 0x3D
	regAccelZoutH  = 0x3F
	regGyroXoutH   = 0x43
	regGyroYoutH   = 0x45
	regGyroZoutH   = 0x47
	regPwrMgmt1    = 0x6B
	regPwrMgmt2    = 0x6C
	regI2CIf       = 0x70
	regWhoAmI      = 0x75

	whoAmIVal = 0x12

	bitReset   = 0x80
	clkAutoPLL = 0x01
	bitI2CDis  = 0x40

	// DLPF_CFG=1: gyro 176 Hz bandwidth, 1 kHz internal rate.
	dlpf176Hz = 0x01

	fsSelShift = 3
	fsSelMask  = 0x18

	fsAccel2g = 0x00
)

// RegisterIO is the bus-level access the driver needs. Both the I2C and the
// SPI transports provide it.
type RegisterIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

type Options struct {
	// GyroFSRDps is one of 250, 500, 1000, 2000.
	GyroFSRDps float64
	// SPI disables the I2C interface so it cannot glitch the shared pins.
	SPI bool
	// SampleRateHz sets SMPLRT_DIV against the 1 kHz internal rate. 0 keeps
	// the full rate.
	SampleRateHz int
}

type Device struct {
	dev    RegisterIO
	fsrDPS float64
}

func New(dev RegisterIO, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20602: dev is nil")
	}
	fsSel, err := gyroFSSel(opts.GyroFSRDps)
	if err != nil {
		return nil, err
	}
	d := &Device{dev: dev, fsrDPS: opts.GyroFSRDps}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20602: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20602: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(fsSel, opts); err != nil {
		return nil, err
	}
	return d, nil
}

func gyroFSSel(fsrDPS float64) (byte, error) {
	switch fsrDPS {
	case 250:
		return 0, nil
	case 500:
		return 1, nil
	case 1000:
		return 2, nil
	case 2000:
		return 3, nil
	default:
		return 0, fmt.Errorf("icm20602: unsupported gyro full scale %v dps", fsrDPS)
	}
}

func (d *Device) init(fsSel byte, opts Options) error {
	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20602: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)

	if err := d.dev.WriteReg(regPwrMgmt1, clkAutoPLL); err != nil {
		return fmt.Errorf("icm20602: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if opts.SPI {
		if err := d.dev.WriteReg(regI2CIf, bitI2CDis); err != nil {
			return fmt.Errorf("icm20602: disable i2c failed: %w", err)
		}
	}

	// Accel and gyro on.
	if err := d.dev.WriteReg(regPwrMgmt2, 0x00); err != nil {
		return fmt.Errorf("icm20602: enable sensors failed: %w", err)
	}
	_ = d.dev.WriteReg(regConfig, dlpf176Hz)
	if opts.SampleRateHz > 0 && opts.SampleRateHz <= 1000 {
		_ = d.dev.WriteReg(regSmplrtDiv, byte(1000/opts.SampleRateHz-1))
	}

	// Preserve the self-test bits, replace FS_SEL.
	cur, err := d.dev.ReadRegU8(regGyroConfig)
	if err != nil {
		return fmt.Errorf("icm20602: gyro config read failed: %w", err)
	}
	gc := cur&^fsSelMask | fsSel<<fsSelShift
	if err := d.dev.WriteReg(regGyroConfig, gc); err != nil {
		return fmt.Errorf("icm20602: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, fsAccel2g); err != nil {
		return fmt.Errorf("icm20602: accel config failed: %w", err)
	}
	return nil
}

// GyroFSRDps is the configured gyro full-scale range.
func (d *Device) GyroFSRDps() float64 { return d.fsrDPS }

var axisRegs = [...]byte{
	imu.AccelX: regAccelXoutH,
	imu.AccelY: regAccelYoutH,
	imu.AccelZ: regAccelZoutH,
	imu.GyroX:  regGyroXoutH,
	imu.GyroY:  regGyroYoutH,
	imu.GyroZ:  regGyroZoutH,
}

// ReadAxis returns the signed raw count of one output register pair.
func (d *Device) ReadAxis(axis imu.Axis) (int16, error) {
	if d == nil {
		return 0, fmt.Errorf("icm20602: device is nil")
	}
	if axis < imu.AccelX || int(axis) >= len(axisRegs) {
		return 0, fmt.Errorf("icm20602: unknown axis %v", axis)
	}
	var buf [2]byte
	if err := d.dev.ReadReg(axisRegs[axis], buf[:]); err != nil {
		return 0, fmt.Errorf("icm20602: read %s failed: %w", axis, err)
	}
	return int16(uint16(buf[0])<<8 | uint16(buf[1])), nil
}

// frameLen spans ACCEL_XOUT_H through GYRO_ZOUT_L; the two temperature
// bytes in the middle are skipped.
const frameLen = regGyroZoutH + 2 - regAccelXoutH

// ReadFrame reads all six axes with one burst from ACCEL_XOUT_H, so accel
// and gyro come from the same sample.
func (d *Device) ReadFrame() ([6]int16, error) {
	var out [6]int16
	if d == nil {
		return out, fmt.Errorf("icm20602: device is nil")
	}
	var buf [frameLen]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return out, fmt.Errorf("icm20602: burst read failed: %w", err)
	}
	for axis, reg := range axisRegs {
		off := reg - regAccelXoutH
		out[axis] = int16(uint16(buf[off])<<8 | uint16(buf[off+1]))
	}
	return out, nil
}
