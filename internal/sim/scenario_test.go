package sim

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imufusion/internal/imu"
)

func TestScenario_ParseAndInterpolateYawWrap(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
keyframes:
  - t: 0s
    roll_deg: 0
    pitch_deg: 10
    yaw_deg: 350
  - t: 10s
    roll_deg: 20
    pitch_deg: -10
    yaw_deg: 10
`)

	script, err := ParseScriptYAML(yaml)
	require.NoError(t, err)
	scn, err := NewScenario(script)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, scn.Duration())

	st := scn.StateAt(5*time.Second, false)
	assert.InDelta(t, 10, st.RollDeg, 1e-9)
	assert.InDelta(t, 0, st.PitchDeg, 1e-9)
	assert.InDelta(t, 0, st.YawDeg, 1e-9)
	assert.InDelta(t, 2, st.RollRate, 1e-9)
	assert.InDelta(t, -2, st.PitchRate, 1e-9)
	assert.InDelta(t, 2, st.YawRate, 1e-9)

	// Past the end the attitude holds and the rates stop.
	end := scn.StateAt(time.Minute, false)
	assert.InDelta(t, 20, end.RollDeg, 1e-9)
	assert.Equal(t, 0.0, end.RollRate)

	// Looping wraps elapsed time.
	assert.Equal(t, scn.StateAt(2*time.Second, false), scn.StateAt(12*time.Second, true))
}

func TestNewScenario_Validation(t *testing.T) {
	cases := []struct {
		name   string
		script Script
		want   string
	}{
		{"NoKeyframes", Script{}, "keyframes is required"},
		{"BadVersion", Script{Version: 2, Keyframes: []Keyframe{{T: time.Second}}}, "unsupported motion script version 2"},
		{"Unsorted", Script{Keyframes: []Keyframe{{T: 2 * time.Second}, {T: time.Second}}}, "keyframes must be sorted by t (index 1)"},
		{"Pitch", Script{Keyframes: []Keyframe{{T: time.Second, PitchDeg: 95}}}, "keyframes[0].pitch_deg must be within [-90, 90]"},
		{"Bias", Script{GyroBiasDps: []float64{1}, Keyframes: []Keyframe{{T: time.Second}}}, "gyro_bias_dps must have 3 values"},
		{"NoDuration", Script{Keyframes: []Keyframe{{T: 0}}}, "duration is required (or deriveable from keyframes)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScenario(tc.script)
			require.EqualError(t, err, tc.want)
		})
	}
}

func TestGravityAndBodyRates(t *testing.T) {
	assert.Equal(t, r3.Vector{Z: 1}, Gravity(State{}))

	g := Gravity(State{PitchDeg: 90})
	assert.InDelta(t, -1, g.X, 1e-12)
	assert.InDelta(t, 0, g.Z, 1e-12)

	g = Gravity(State{RollDeg: 90})
	assert.InDelta(t, 1, g.Y, 1e-12)

	// Level yaw turn: all rate on body Z.
	w := BodyRates(State{YawRate: 15})
	assert.InDelta(t, 15, w.Z, 1e-12)
	assert.InDelta(t, 0, w.X, 1e-12)

	// Pure roll rate maps straight to body X.
	w = BodyRates(State{RollDeg: 40, RollRate: 5})
	assert.Equal(t, r3.Vector{X: 5}, w)
}

func steadyScenario(t *testing.T, script Script) *Scenario {
	t.Helper()
	scn, err := NewScenario(script)
	require.NoError(t, err)
	return scn
}

func TestSource_LevelAndBiased(t *testing.T) {
	scn := steadyScenario(t, Script{
		GyroBiasDps: []float64{1, 0, -2},
		Keyframes:   []Keyframe{{T: 0}, {T: 30 * time.Millisecond}},
	})
	src, err := NewSource(scn, 10*time.Millisecond, 1000, false)
	require.NoError(t, err)

	var n int
	for {
		s, err := src.Next()
		if err == imu.ErrNoSample {
			break
		}
		require.NoError(t, err)
		n++
		assert.Equal(t, int16(AccelCountsPerG), s.Az)
		assert.Equal(t, int16(0), s.Ax)
		assert.InDelta(t, 1, s.Gx, 0.05)
		assert.InDelta(t, -2, s.Gz, 0.05)
	}
	// t = 0, 10, 20, 30 ms.
	assert.Equal(t, 4, n)
}

func TestSource_QuantizesToFullScale(t *testing.T) {
	scn := steadyScenario(t, Script{Keyframes: []Keyframe{{T: 0}, {T: time.Second, YawDeg: 90}}})
	src, err := NewSource(scn, 10*time.Millisecond, 2000, false)
	require.NoError(t, err)

	s, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.ScaleGyro(1475, 2000), s.Gz) // round(90*32767/2000)
}

func TestSource_SpikesSaturate(t *testing.T) {
	scn := steadyScenario(t, Script{
		Spike:     SpikeConfig{Every: 3, Counts: 40000},
		Keyframes: []Keyframe{{T: 0}, {T: time.Second}},
	})
	src, err := NewSource(scn, 10*time.Millisecond, 1000, true)
	require.NoError(t, err)

	var ax []int16
	for i := 0; i < 6; i++ {
		s, err := src.Next()
		require.NoError(t, err)
		ax = append(ax, s.Ax)
	}
	assert.Equal(t, []int16{0, 0, 32767, 0, 0, 32767}, ax)
}

func TestNewSource_Validation(t *testing.T) {
	scn := steadyScenario(t, Script{Keyframes: []Keyframe{{T: time.Second}}})
	_, err := NewSource(nil, time.Millisecond, 1000, false)
	assert.Error(t, err)
	_, err = NewSource(scn, 0, 1000, false)
	assert.Error(t, err)
	_, err = NewSource(scn, time.Millisecond, 300, false)
	assert.Error(t, err)
}
