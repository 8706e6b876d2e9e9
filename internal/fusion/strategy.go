package fusion

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"

	"imufusion/internal/ahrs"
)

// Input is everything a fusion strategy sees for one tick.
type Input struct {
	Rate       r3.Vector // gyro, deg/s
	Accel      r3.Vector // denoised accelerometer, raw counts
	AccelOK    bool      // false while the median windows are filling
	Tilt       r3.Vector // degrees, valid when AccelOK
	Integrated r3.Vector // gyro integrator output, degrees
	DT         float64   // seconds
}

// Result is the fused orientation for one tick.
type Result struct {
	Angles        r3.Vector // degrees
	Quaternion    ahrs.Quaternion
	HasQuaternion bool
}

// Strategy is one of the interchangeable fusion filters.
type Strategy interface {
	Name() string
	Fuse(in Input) Result
}

const (
	StrategyComplementary = "complementary"
	StrategyMadgwick      = "madgwick"
)

type complementaryStrategy struct {
	c Complementary
}

func NewComplementaryStrategy(c Complementary) Strategy {
	return complementaryStrategy{c: c}
}

func (complementaryStrategy) Name() string { return StrategyComplementary }

// Fuse blends integrated gyro and tilt. Without a tilt estimate the gyro
// angle passes through.
func (s complementaryStrategy) Fuse(in Input) Result {
	if !in.AccelOK {
		return Result{Angles: in.Integrated}
	}
	return Result{Angles: s.c.FuseVector(in.Integrated, in.Tilt)}
}

type madgwickStrategy struct {
	f *ahrs.Filter
}

// NewMadgwickStrategy wraps an already seeded filter.
func NewMadgwickStrategy(f *ahrs.Filter) Strategy {
	return madgwickStrategy{f: f}
}

func (madgwickStrategy) Name() string { return StrategyMadgwick }

// Fuse updates the quaternion from the raw gyro rate and the denoised
// accelerometer. Ticks without a denoised sample integrate the gyro only.
func (s madgwickStrategy) Fuse(in Input) Result {
	var accel r3.Vector
	if in.AccelOK {
		accel = in.Accel
	}
	s.f.Update(in.Rate.Mul(degToRad), accel, in.DT)
	q := s.f.Orientation()
	roll, pitch, yaw := q.Euler()
	return Result{
		Angles:        r3.Vector{X: roll, Y: pitch, Z: yaw},
		Quaternion:    q,
		HasQuaternion: true,
	}
}

// StrategyOptions carries the tunables of both strategies.
type StrategyOptions struct {
	Name string

	GyroWeight  float64
	AccelWeight float64

	AlgorithmGain float64
	DriftBiasGain float64
	Frame         ahrs.WorldFrame
	Seed          ahrs.Quaternion
}

// NewStrategy builds the strategy named in opts.
func NewStrategy(opts StrategyOptions) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "", StrategyComplementary:
		c, err := NewComplementary(opts.GyroWeight, opts.AccelWeight)
		if err != nil {
			return nil, err
		}
		return NewComplementaryStrategy(c), nil
	case StrategyMadgwick:
		f := ahrs.New(ahrs.Config{
			AlgorithmGain: opts.AlgorithmGain,
			DriftBiasGain: opts.DriftBiasGain,
			Frame:         opts.Frame,
		})
		seed := opts.Seed
		if seed == (ahrs.Quaternion{}) {
			seed = ahrs.Identity
		}
		f.SetOrientation(seed)
		return NewMadgwickStrategy(f), nil
	default:
		return nil, fmt.Errorf("fusion: unknown strategy %q", opts.Name)
	}
}
