package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is a deterministic, keyframed attitude profile.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
// Attitude is linearly interpolated between keyframes (yaw along the
// shortest arc), so Euler rates are constant within a segment.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 10s
//	gyro_bias_dps: [0.5, -0.2, 0]
//	spike:
//	  every: 7
//	  counts: 8000
//	keyframes:
//	  - t: 0s
//	    roll_deg: 0
//	    pitch_deg: 0
//	    yaw_deg: 0
//	  - t: 3s
//	    roll_deg: 30
//
// Keyframes must be sorted by time with non-decreasing t values.
type Script struct {
	Version     int           `yaml:"version"`
	Duration    time.Duration `yaml:"duration"`
	GyroBiasDps []float64     `yaml:"gyro_bias_dps"`
	Spike       SpikeConfig   `yaml:"spike"`
	Keyframes   []Keyframe    `yaml:"keyframes"`
}

// SpikeConfig adds an impulse to the X accelerometer on every Nth sample.
type SpikeConfig struct {
	Every  int `yaml:"every"`
	Counts int `yaml:"counts"`
}

type Keyframe struct {
	T        time.Duration `yaml:"t"`
	RollDeg  float64       `yaml:"roll_deg"`
	PitchDeg float64       `yaml:"pitch_deg"`
	YawDeg   float64       `yaml:"yaw_deg"`
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   Script
	duration time.Duration
}

// LoadScript reads and unmarshals a YAML motion script from path.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return ParseScriptYAML(b)
}

func ParseScriptYAML(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script Script) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported motion script version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.PitchDeg < -90 || kf.PitchDeg > 90 {
			return nil, fmt.Errorf("keyframes[%d].pitch_deg must be within [-90, 90]", i)
		}
	}
	if n := len(script.GyroBiasDps); n != 0 && n != 3 {
		return nil, fmt.Errorf("gyro_bias_dps must have 3 values")
	}
	if script.Spike.Every < 0 {
		return nil, fmt.Errorf("spike.every must be >= 0")
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Scenario{script: script, duration: dur}, nil
}

func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// State is the attitude and Euler rates at a time, in degrees and deg/s.
type State struct {
	RollDeg, PitchDeg, YawDeg    float64
	RollRate, PitchRate, YawRate float64
}

// StateAt computes the attitude at elapsed.
//
// If loop is true, elapsed wraps around Duration(). Otherwise elapsed is clamped
// to [0, Duration()].
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) State {
	if s == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if loop {
		elapsed = elapsed % s.duration
	} else if elapsed > s.duration {
		elapsed = s.duration
	}

	kf0, kf1, alpha := selectSegment(s.script.Keyframes, elapsed)
	st := State{
		RollDeg:  lerp(kf0.RollDeg, kf1.RollDeg, alpha),
		PitchDeg: lerp(kf0.PitchDeg, kf1.PitchDeg, alpha),
		YawDeg:   lerpAngleDeg(kf0.YawDeg, kf1.YawDeg, alpha),
	}
	if dt := (kf1.T - kf0.T).Seconds(); dt > 0 {
		st.RollRate = (kf1.RollDeg - kf0.RollDeg) / dt
		st.PitchRate = (kf1.PitchDeg - kf0.PitchDeg) / dt
		st.YawRate = shortestDeltaDeg(kf0.YawDeg, kf1.YawDeg) / dt
	}
	return st
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func normDeg(x float64) float64 {
	for x < 0 {
		x += 360
	}
	for x >= 360 {
		x -= 360
	}
	return x
}

func shortestDeltaDeg(a0, a1 float64) float64 {
	delta := normDeg(a1) - normDeg(a0)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return delta
}

// lerpAngleDeg interpolates along the shortest arc and returns [0, 360).
func lerpAngleDeg(a0, a1, t float64) float64 {
	return normDeg(normDeg(a0) + shortestDeltaDeg(a0, a1)*t)
}
