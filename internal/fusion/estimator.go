package fusion

import (
	"fmt"

	"github.com/golang/geo/r3"

	"imufusion/internal/ahrs"
)

// Output is the per-tick estimate.
type Output struct {
	Tilt          r3.Vector
	TiltOK        bool
	Integrated    r3.Vector
	Fused         r3.Vector
	Quaternion    ahrs.Quaternion
	HasQuaternion bool
}

// Estimator threads the fused angle of one tick into the gyro integration of
// the next. It starts from a zero prior.
type Estimator struct {
	strategy Strategy
	mode     IntegrationMode
	dt       float64

	prior r3.Vector
	ticks int
}

func NewEstimator(s Strategy, mode IntegrationMode, dt float64) (*Estimator, error) {
	if s == nil {
		return nil, fmt.Errorf("fusion: strategy is nil")
	}
	if dt <= 0 {
		return nil, fmt.Errorf("fusion: sample period must be > 0, got %v", dt)
	}
	return &Estimator{strategy: s, mode: mode, dt: dt}, nil
}

// Prior is the fused angle that seeds the next integration.
func (e *Estimator) Prior() r3.Vector { return e.prior }

func (e *Estimator) Ticks() int { return e.ticks }

// Step runs tilt, integration and fusion for one tick. rate is the gyro in
// deg/s; accel is the denoised accelerometer, ignored unless accelOK.
func (e *Estimator) Step(rate, accel r3.Vector, accelOK bool) Output {
	var out Output
	if accelOK {
		out.Tilt = Tilt(accel)
		out.TiltOK = true
	}
	out.Integrated = e.mode.Integrate(rate, e.dt, e.prior)

	res := e.strategy.Fuse(Input{
		Rate:       rate,
		Accel:      accel,
		AccelOK:    accelOK,
		Tilt:       out.Tilt,
		Integrated: out.Integrated,
		DT:         e.dt,
	})
	out.Fused = res.Angles
	out.Quaternion = res.Quaternion
	out.HasQuaternion = res.HasQuaternion

	e.prior = res.Angles
	e.ticks++
	return out
}
