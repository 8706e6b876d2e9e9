// Package fusion turns denoised accelerometer and gyro samples into a fused
// orientation, one tick at a time.
package fusion

import (
	"math"

	"github.com/golang/geo/r3"
)

const (
	radToDeg = 180 / math.Pi
	degToRad = math.Pi / 180
)

// Tilt converts an accelerometer vector (any unit) into per-axis tilt angles
// in degrees. X and Y are referenced to Z; Z is referenced to Y.
// atan2(0, 0) is 0, so an all-zero vector yields zero angles.
func Tilt(a r3.Vector) r3.Vector {
	return r3.Vector{
		X: math.Atan2(a.X, a.Z) * radToDeg,
		Y: math.Atan2(a.Y, a.Z) * radToDeg,
		Z: math.Atan2(a.Z, a.Y) * radToDeg,
	}
}
