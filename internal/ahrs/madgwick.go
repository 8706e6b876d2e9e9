// Package ahrs implements a Madgwick-style quaternion attitude filter for a
// 6-axis IMU (accelerometer + gyroscope).
package ahrs

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	// Accelerometer magnitudes below this are treated as missing and the
	// correction step is skipped.
	accelEpsilon = 1e-9
	// Gradients below this have no usable direction.
	gradientEpsilon = 1e-12
	// Quaternions with a norm below this are not renormalized.
	normEpsilon = 1e-12
)

const (
	DefaultAlgorithmGain = 0.1
	DefaultDriftBiasGain = 0.0
)

// State is the lifecycle of a Filter.
type State int

const (
	Uninitialized State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

type Config struct {
	// AlgorithmGain (beta) scales the accelerometer correction.
	AlgorithmGain float64
	// DriftBiasGain (zeta) scales gyro bias learning; 0 disables it.
	DriftBiasGain float64
	// Frame defaults to ENU.
	Frame WorldFrame
}

// Filter holds the orientation estimate. It is not safe for concurrent use.
type Filter struct {
	gain  float64
	zeta  float64
	frame WorldFrame

	q     quat.Number
	bias  r3.Vector // rad/s
	state State
}

func New(cfg Config) *Filter {
	if cfg.Frame == nil {
		cfg.Frame = ENU
	}
	return &Filter{
		gain:  cfg.AlgorithmGain,
		zeta:  cfg.DriftBiasGain,
		frame: cfg.Frame,
		q:     Identity.number(),
	}
}

func (f *Filter) WorldFrame() WorldFrame { return f.frame }

// SetOrientation seeds the estimate and moves the filter to Tracking. A
// degenerate quaternion seeds the identity.
func (f *Filter) SetOrientation(q Quaternion) {
	f.q = q.Normalized().number()
	f.state = Tracking
}

func (f *Filter) Orientation() Quaternion { return fromNumber(f.q) }

func (f *Filter) State() State { return f.state }

// GyroBias is the learned gyro bias in rad/s.
func (f *Filter) GyroBias() r3.Vector { return f.bias }

// Update advances the estimate by dt seconds. gyro is in rad/s; accel may be
// in any unit since only its direction is used. A zero accelerometer vector
// falls back to pure gyro integration for this step.
func (f *Filter) Update(gyro, accel r3.Vector, dt float64) {
	if f.state == Uninitialized {
		f.q = Identity.number()
		f.state = Tracking
	}
	q := f.q

	var step quat.Number
	correct := false
	if n := accel.Norm(); n > accelEpsilon {
		step = gradient(q, f.frame.AccelReference(), accel.Mul(1/n))
		if sn := quat.Abs(step); sn > gradientEpsilon {
			step = quat.Scale(1/sn, step)
			correct = true
		}
	}

	if correct && f.zeta > 0 {
		werr := quat.Scale(2, quat.Mul(quat.Conj(q), step))
		f.bias = f.bias.Add(r3.Vector{X: werr.Imag, Y: werr.Jmag, Z: werr.Kmag}.Mul(dt * f.zeta))
		gyro = gyro.Sub(f.bias)
	}

	qDot := quat.Scale(0.5, quat.Mul(q, quat.Number{Imag: gyro.X, Jmag: gyro.Y, Kmag: gyro.Z}))
	if correct {
		qDot = quat.Sub(qDot, quat.Scale(f.gain, step))
	}

	q = quat.Add(q, quat.Scale(dt, qDot))
	if n := quat.Abs(q); n > normEpsilon {
		q = quat.Scale(1/n, q)
	}
	f.q = q
}

// gradient returns J^T f for the objective f = R(q)^T d - a, where d is the
// world-frame reference and a the measured, normalized accelerometer vector.
func gradient(q quat.Number, d, a r3.Vector) quat.Number {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	// Reference rotated into the sensor frame, minus the measurement.
	f0 := d.X*(1-2*(y*y+z*z)) + d.Y*2*(x*y+w*z) + d.Z*2*(x*z-w*y) - a.X
	f1 := d.X*2*(x*y-w*z) + d.Y*(1-2*(x*x+z*z)) + d.Z*2*(y*z+w*x) - a.Y
	f2 := d.X*2*(x*z+w*y) + d.Y*2*(y*z-w*x) + d.Z*(1-2*(x*x+y*y)) - a.Z

	return quat.Number{
		Real: (2*d.Y*z-2*d.Z*y)*f0 +
			(-2*d.X*z+2*d.Z*x)*f1 +
			(2*d.X*y-2*d.Y*x)*f2,
		Imag: (2*d.Y*y+2*d.Z*z)*f0 +
			(2*d.X*y-4*d.Y*x+2*d.Z*w)*f1 +
			(2*d.X*z-2*d.Y*w-4*d.Z*x)*f2,
		Jmag: (-4*d.X*y+2*d.Y*x-2*d.Z*w)*f0 +
			(2*d.X*x+2*d.Z*z)*f1 +
			(2*d.X*w+2*d.Y*z-4*d.Z*y)*f2,
		Kmag: (-4*d.X*z+2*d.Y*w+2*d.Z*x)*f0 +
			(-2*d.X*w-4*d.Y*z+2*d.Z*y)*f1 +
			(2*d.X*x+2*d.Y*y)*f2,
	}
}
