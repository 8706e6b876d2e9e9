package fusion

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

const (
	DefaultGyroWeight  = 0.98
	DefaultAccelWeight = 0.02
)

// Complementary blends a drift-prone gyro angle with a noisy but drift-free
// accelerometer angle using fixed weights.
type Complementary struct {
	GyroWeight  float64
	AccelWeight float64
}

func NewComplementary(gyroWeight, accelWeight float64) (Complementary, error) {
	if gyroWeight < 0 || gyroWeight > 1 || accelWeight < 0 || accelWeight > 1 {
		return Complementary{}, fmt.Errorf("fusion: complementary weights must be in [0,1], got %v/%v", gyroWeight, accelWeight)
	}
	if math.Abs(gyroWeight+accelWeight-1) > 1e-9 {
		return Complementary{}, fmt.Errorf("fusion: complementary weights must sum to 1, got %v", gyroWeight+accelWeight)
	}
	return Complementary{GyroWeight: gyroWeight, AccelWeight: accelWeight}, nil
}

func (c Complementary) Fuse(gyroAngle, tiltAngle float64) float64 {
	return c.GyroWeight*gyroAngle + c.AccelWeight*tiltAngle
}

func (c Complementary) FuseVector(gyro, tilt r3.Vector) r3.Vector {
	return r3.Vector{
		X: c.Fuse(gyro.X, tilt.X),
		Y: c.Fuse(gyro.Y, tilt.Y),
		Z: c.Fuse(gyro.Z, tilt.Z),
	}
}
