package denoise

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imufusion/internal/imu"
)

func TestNewWindow_RejectsNonPositive(t *testing.T) {
	_, err := NewWindow(0)
	require.Error(t, err)
}

func TestWindow_NotReadyUntilFull(t *testing.T) {
	w, err := NewWindow(5)
	require.NoError(t, err)

	for i, v := range []float64{3, 1, 4, 1} {
		_, ok := w.Push(v)
		assert.False(t, ok, "push %d", i)
		assert.Equal(t, i+1, w.Len())
	}
	m, ok := w.Push(5)
	require.True(t, ok)
	assert.Equal(t, 3.0, m)
}

func TestWindow_FIFOEvictionKeepsInsertionOrder(t *testing.T) {
	w, err := NewWindow(5)
	require.NoError(t, err)
	for _, v := range []float64{9, 8, 7, 6, 5} {
		w.Push(v)
	}
	m, ok := w.Push(100)
	require.True(t, ok)
	assert.Equal(t, []float64{8, 7, 6, 5, 100}, w.Values())
	assert.Equal(t, 7.0, m)
	assert.Equal(t, 5, w.Len())
}

func TestWindow_EvenSizeAveragesDistinctCentralValues(t *testing.T) {
	w, err := NewWindow(4)
	require.NoError(t, err)
	var m float64
	var ok bool
	for _, v := range []float64{10, 40, 20, 30} {
		m, ok = w.Push(v)
	}
	require.True(t, ok)
	assert.Equal(t, 25.0, m)
}

func TestMedian_OrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		vals := make([]float64, 5)
		for i := range vals {
			vals[i] = float64(rng.Intn(65536) - 32768)
		}
		want, ok := Median(vals)
		require.True(t, ok)

		shuffled := append([]float64(nil), vals...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, _ := Median(shuffled)
		assert.Equal(t, want, got)

		// The median of five is the third smallest.
		below := 0
		for _, v := range vals {
			if v < want {
				below++
			}
		}
		assert.LessOrEqual(t, below, 2)
	}
}

func TestMedian_DoesNotModifyInput(t *testing.T) {
	in := []float64{5, 1, 3}
	m, ok := Median(in)
	require.True(t, ok)
	assert.Equal(t, 3.0, m)
	assert.Equal(t, []float64{5, 1, 3}, in)

	_, ok = Median(nil)
	assert.False(t, ok)
}

func TestDenoiser_PerAxisReadiness(t *testing.T) {
	d, err := NewDenoiser(3)
	require.NoError(t, err)

	// Filling X alone must not make Y ready.
	for i := 0; i < 3; i++ {
		d.Push(imu.AccelX, int16(i))
	}
	_, ok := d.Push(imu.AccelY, 1)
	assert.False(t, ok)
	_, ok = d.Push(imu.AccelX, 10)
	assert.True(t, ok)

	_, ok = d.Push(imu.GyroX, 1)
	assert.False(t, ok)
}

func TestDenoiser_PushSample(t *testing.T) {
	d, err := NewDenoiser(DefaultWindow)
	require.NoError(t, err)

	samples := []imu.RawSample{
		{Ax: 1, Ay: 10, Az: 100},
		{Ax: 5, Ay: 50, Az: 500},
		{Ax: 2, Ay: 20, Az: 200},
		{Ax: 4, Ay: 40, Az: 400},
	}
	for _, s := range samples {
		_, ok := d.PushSample(s)
		assert.False(t, ok)
	}
	v, ok := d.PushSample(imu.RawSample{Ax: 3, Ay: 30, Az: 300})
	require.True(t, ok)
	assert.Equal(t, r3.Vector{X: 3, Y: 30, Z: 300}, v)
}
