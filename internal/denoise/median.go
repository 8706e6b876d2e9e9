// Package denoise implements the sliding-window median filter applied to the
// raw accelerometer channels.
package denoise

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"

	"imufusion/internal/imu"
)

// DefaultWindow is the number of samples the median is taken over.
const DefaultWindow = 5

// Window is a bounded FIFO of the most recent values of one axis.
// Values keep their insertion order; sorting happens on a scratch copy.
type Window struct {
	vals    []float64
	scratch []float64
	size    int
}

func NewWindow(size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("denoise: window size must be > 0, got %d", size)
	}
	return &Window{
		vals:    make([]float64, 0, size),
		scratch: make([]float64, size),
		size:    size,
	}, nil
}

// Push appends v, evicting the oldest value once the window is full. It
// returns the current median and true when the window is full, or false
// while it is still filling.
func (w *Window) Push(v float64) (float64, bool) {
	if len(w.vals) < w.size {
		w.vals = append(w.vals, v)
	} else {
		copy(w.vals, w.vals[1:])
		w.vals[w.size-1] = v
	}
	if !w.Ready() {
		return 0, false
	}
	copy(w.scratch, w.vals)
	sort.Float64s(w.scratch)
	return sortedMedian(w.scratch), true
}

func (w *Window) Ready() bool { return len(w.vals) == w.size }

func (w *Window) Len() int { return len(w.vals) }

func (w *Window) Size() int { return w.size }

// Values returns a copy of the window in insertion order, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.vals))
	copy(out, w.vals)
	return out
}

// Median returns the median of values without modifying them. An empty slice
// yields 0, false.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return sortedMedian(s), true
}

// sortedMedian takes the middle element for odd lengths and the mean of the
// two central elements for even lengths.
func sortedMedian(s []float64) float64 {
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Denoiser keeps one window per accelerometer axis.
type Denoiser struct {
	windows [3]*Window
}

func NewDenoiser(size int) (*Denoiser, error) {
	d := &Denoiser{}
	for i := range d.windows {
		w, err := NewWindow(size)
		if err != nil {
			return nil, err
		}
		d.windows[i] = w
	}
	return d, nil
}

// Push feeds one raw accelerometer reading into the window of axis.
// Readiness is reported per window.
func (d *Denoiser) Push(axis imu.Axis, raw int16) (float64, bool) {
	if axis < imu.AccelX || axis > imu.AccelZ {
		return 0, false
	}
	return d.windows[axis-imu.AccelX].Push(float64(raw))
}

// PushSample feeds the three accelerometer axes of s and returns the
// denoised vector once every axis window is ready.
func (d *Denoiser) PushSample(s imu.RawSample) (r3.Vector, bool) {
	x, okX := d.Push(imu.AccelX, s.Ax)
	y, okY := d.Push(imu.AccelY, s.Ay)
	z, okZ := d.Push(imu.AccelZ, s.Az)
	if !okX || !okY || !okZ {
		return r3.Vector{}, false
	}
	return r3.Vector{X: x, Y: y, Z: z}, true
}
