// Package imu defines the raw inertial sample model and the sources that
// produce one sample per tick.
package imu

import (
	"errors"
	"fmt"
)

// ErrNoSample is returned by a Source that has nothing left to deliver.
var ErrNoSample = errors.New("imu: no sample available")

// Axis identifies one of the six measurement channels of the IMU.
type Axis int

const (
	AccelX Axis = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
)

func (a Axis) String() string {
	switch a {
	case AccelX:
		return "accel_x"
	case AccelY:
		return "accel_y"
	case AccelZ:
		return "accel_z"
	case GyroX:
		return "gyro_x"
	case GyroY:
		return "gyro_y"
	case GyroZ:
		return "gyro_z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// RawSample is one tick of sensor data. Accelerometer values are raw counts,
// gyro values are already scaled to deg/s.
type RawSample struct {
	Ax, Ay, Az int16
	Gx, Gy, Gz float64
}

// Source is anything that can provide samples over time: a device, a replay
// log, a test fixture.
type Source interface {
	Next() (RawSample, error)
}

// AxisReader is the register-level collaborator: it returns the signed
// 16-bit reading of a single axis.
type AxisReader interface {
	ReadAxis(axis Axis) (int16, error)
}

// FrameReader is implemented by readers that can fetch all six axes in one
// bus transfer. The result is indexed by Axis.
type FrameReader interface {
	ReadFrame() ([6]int16, error)
}

// countsFullScale is the divisor used to map raw gyro counts onto the
// configured full-scale range.
const countsFullScale = 32767.0

// ScaleGyro converts raw gyro counts to deg/s for the given full-scale range.
func ScaleGyro(raw int16, fsrDPS float64) float64 {
	return float64(raw) * fsrDPS / countsFullScale
}

// ValidGyroFSR reports whether fsr is one of the ranges the ICM-20602 family
// supports.
func ValidGyroFSR(fsrDPS float64) bool {
	switch fsrDPS {
	case 250, 500, 1000, 2000:
		return true
	}
	return false
}

type deviceSource struct {
	r   AxisReader
	fsr float64
}

// NewDeviceSource reads the six axes from r on every Next call and scales the
// gyro channels with fsrDPS. A FrameReader is read in one transfer.
func NewDeviceSource(r AxisReader, fsrDPS float64) (Source, error) {
	if r == nil {
		return nil, fmt.Errorf("imu: axis reader is nil")
	}
	if !ValidGyroFSR(fsrDPS) {
		return nil, fmt.Errorf("imu: unsupported gyro full-scale range %v dps", fsrDPS)
	}
	return &deviceSource{r: r, fsr: fsrDPS}, nil
}

func (s *deviceSource) Next() (RawSample, error) {
	raw, err := s.read()
	if err != nil {
		return RawSample{}, err
	}
	return RawSample{
		Ax: raw[AccelX],
		Ay: raw[AccelY],
		Az: raw[AccelZ],
		Gx: ScaleGyro(raw[GyroX], s.fsr),
		Gy: ScaleGyro(raw[GyroY], s.fsr),
		Gz: ScaleGyro(raw[GyroZ], s.fsr),
	}, nil
}

func (s *deviceSource) read() ([6]int16, error) {
	if fr, ok := s.r.(FrameReader); ok {
		raw, err := fr.ReadFrame()
		if err != nil {
			return raw, fmt.Errorf("imu: read frame: %w", err)
		}
		return raw, nil
	}
	var raw [6]int16
	for i := range raw {
		axis := Axis(i)
		v, err := s.r.ReadAxis(axis)
		if err != nil {
			return raw, fmt.Errorf("imu: read %s: %w", axis, err)
		}
		raw[i] = v
	}
	return raw, nil
}
