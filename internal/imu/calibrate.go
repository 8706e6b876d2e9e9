package imu

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

// Stationary holds the averages of a stationary pre-roll.
type Stationary struct {
	GyroBias  r3.Vector // deg/s
	MeanAccel r3.Vector // raw counts
	Samples   int
	Failed    int
}

// MeasureStationary averages n samples from src while the device is at rest.
// Failed reads are counted and skipped; it only errors when none succeed.
func MeasureStationary(src Source, n int) (Stationary, error) {
	if n <= 0 {
		return Stationary{}, fmt.Errorf("imu: stationary sample count must be > 0")
	}
	var st Stationary
	var gyro, acc r3.Vector
	for i := 0; i < n; i++ {
		s, err := src.Next()
		if err != nil {
			if errors.Is(err, ErrNoSample) {
				break
			}
			st.Failed++
			continue
		}
		gyro = gyro.Add(r3.Vector{X: s.Gx, Y: s.Gy, Z: s.Gz})
		acc = acc.Add(r3.Vector{X: float64(s.Ax), Y: float64(s.Ay), Z: float64(s.Az)})
		st.Samples++
	}
	if st.Samples == 0 {
		return st, fmt.Errorf("imu: zero drift failed (no samples)")
	}
	inv := 1.0 / float64(st.Samples)
	st.GyroBias = gyro.Mul(inv)
	st.MeanAccel = acc.Mul(inv)
	return st, nil
}

type biasSource struct {
	src  Source
	bias r3.Vector
}

// WithGyroBias subtracts a constant gyro bias (deg/s) from every sample.
func WithGyroBias(src Source, bias r3.Vector) Source {
	if bias == (r3.Vector{}) {
		return src
	}
	return &biasSource{src: src, bias: bias}
}

func (b *biasSource) Next() (RawSample, error) {
	s, err := b.src.Next()
	if err != nil {
		return RawSample{}, err
	}
	s.Gx -= b.bias.X
	s.Gy -= b.bias.Y
	s.Gz -= b.bias.Z
	return s, nil
}
