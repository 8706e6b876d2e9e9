package imu

import (
	"fmt"
	"math"
)

// AxisMap maps body axes onto sensor axes. Each entry is +/-1..+/-3 naming
// the sensor axis (1=x, 2=y, 3=z) and its sign that becomes the body X, Y
// and Z axis respectively.
type AxisMap [3]int

// IdentityMap leaves the sensor frame untouched.
var IdentityMap = AxisMap{1, 2, 3}

func (m AxisMap) IsIdentity() bool { return m == IdentityMap }

// Validate requires every sensor axis to be used exactly once.
func (m AxisMap) Validate() error {
	var seen [3]bool
	for i, v := range m {
		idx := v
		if idx < 0 {
			idx = -idx
		}
		if idx < 1 || idx > 3 {
			return fmt.Errorf("axis map entry %d is %d, want +/-1..+/-3", i, v)
		}
		if seen[idx-1] {
			return fmt.Errorf("axis map uses sensor axis %d twice", idx)
		}
		seen[idx-1] = true
	}
	return nil
}

// Apply remaps both sensors of s into the body frame.
func (m AxisMap) Apply(s RawSample) RawSample {
	acc := [3]int16{s.Ax, s.Ay, s.Az}
	gyr := [3]float64{s.Gx, s.Gy, s.Gz}
	var out RawSample
	outAcc := [3]*int16{&out.Ax, &out.Ay, &out.Az}
	outGyr := [3]*float64{&out.Gx, &out.Gy, &out.Gz}
	for i, v := range m {
		idx, neg := v, false
		if idx < 0 {
			idx, neg = -idx, true
		}
		a, g := acc[idx-1], gyr[idx-1]
		if neg {
			a, g = negCounts(a), -g
		}
		*outAcc[i] = a
		*outGyr[i] = g
	}
	return out
}

// negCounts negates a raw reading, saturating -32768 to 32767.
func negCounts(v int16) int16 {
	if v == math.MinInt16 {
		return math.MaxInt16
	}
	return -v
}

type remapSource struct {
	src Source
	m   AxisMap
}

// Remap wraps src so every sample is expressed in the body frame described by m.
func Remap(src Source, m AxisMap) Source {
	if m.IsIdentity() {
		return src
	}
	return &remapSource{src: src, m: m}
}

func (r *remapSource) Next() (RawSample, error) {
	s, err := r.src.Next()
	if err != nil {
		return RawSample{}, err
	}
	return r.m.Apply(s), nil
}

// DominantAxis returns +/-1..+/-3 for the component with the largest magnitude.
// Ties prefer X, then Y.
func DominantAxis(x, y, z float64) int {
	a1 := math.Abs(x)
	a2 := math.Abs(y)
	a3 := math.Abs(z)
	if a1 >= a2 && a1 >= a3 {
		if x >= 0 {
			return 1
		}
		return -1
	}
	if a2 >= a1 && a2 >= a3 {
		if y >= 0 {
			return 2
		}
		return -2
	}
	if z >= 0 {
		return 3
	}
	return -3
}
