package ahrs

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Quaternion is an orientation in (w, x, y, z) order. The filter keeps it at
// unit norm.
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

func (q Quaternion) Norm() float64 { return quat.Abs(q.number()) }

// Normalized returns q scaled to unit length, or Identity when q is too close
// to zero to normalize.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n < normEpsilon {
		return Identity
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

// FromEuler builds a quaternion from ZYX Euler angles in degrees.
func FromEuler(rollDeg, pitchDeg, yawDeg float64) Quaternion {
	hr := 0.5 * rollDeg * degToRad
	hp := 0.5 * pitchDeg * degToRad
	hy := 0.5 * yawDeg * degToRad

	cphi, sphi := math.Cos(hr), math.Sin(hr)
	cth, sth := math.Cos(hp), math.Sin(hp)
	cpsi, spsi := math.Cos(hy), math.Sin(hy)

	return Quaternion{
		W: cpsi*cth*cphi + spsi*sth*sphi,
		X: cpsi*cth*sphi - spsi*sth*cphi,
		Y: cpsi*sth*cphi + spsi*cth*sphi,
		Z: spsi*cth*cphi - cpsi*sth*sphi,
	}
}

// Euler returns the ZYX Euler angles of q in degrees. Pitch is in
// [-90, 90], roll and yaw in (-180, 180].
func (q Quaternion) Euler() (rollDeg, pitchDeg, yawDeg float64) {
	sp := 2 * (q.W*q.Y - q.Z*q.X)
	if sp >= 1 {
		sp = 1
	} else if sp <= -1 {
		sp = -1
	}
	pitch := math.Asin(sp)

	ysq := q.Y * q.Y
	yaw := math.Atan2(q.W*q.Z+q.X*q.Y, 0.5-(ysq+q.Z*q.Z))
	roll := math.Atan2(q.W*q.X+q.Y*q.Z, 0.5-(ysq+q.X*q.X))

	return roll * radToDeg, pitch * radToDeg, yaw * radToDeg
}
