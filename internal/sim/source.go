// Package sim generates deterministic IMU samples from a keyframed attitude
// profile, for bench runs and regression tests without hardware.
package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"imufusion/internal/imu"
)

// AccelCountsPerG matches the driver's +/-2 g accelerometer range.
const AccelCountsPerG = 16384

const degToRad = math.Pi / 180

// BodyRates converts Euler rates (ZYX) into body angular rates, all in
// deg/s.
func BodyRates(st State) r3.Vector {
	sr, cr := math.Sincos(st.RollDeg * degToRad)
	sp, cp := math.Sincos(st.PitchDeg * degToRad)
	return r3.Vector{
		X: st.RollRate - st.YawRate*sp,
		Y: st.PitchRate*cr + st.YawRate*sr*cp,
		Z: -st.PitchRate*sr + st.YawRate*cr*cp,
	}
}

// Gravity returns the specific force of a resting sensor in g, expressed in
// the body frame (+Z up when level).
func Gravity(st State) r3.Vector {
	sr, cr := math.Sincos(st.RollDeg * degToRad)
	sp, cp := math.Sincos(st.PitchDeg * degToRad)
	return r3.Vector{X: -sp, Y: sr * cp, Z: cr * cp}
}

// Source plays a scenario as an imu.Source, one sample per period.
type Source struct {
	scn    *Scenario
	period time.Duration
	fsrDPS float64
	loop   bool
	bias   r3.Vector
	tick   int
}

func NewSource(scn *Scenario, period time.Duration, fsrDPS float64, loop bool) (*Source, error) {
	if scn == nil {
		return nil, fmt.Errorf("sim: scenario is nil")
	}
	if period <= 0 {
		return nil, fmt.Errorf("sim: period must be > 0")
	}
	if !imu.ValidGyroFSR(fsrDPS) {
		return nil, fmt.Errorf("sim: unsupported gyro full scale %v dps", fsrDPS)
	}
	s := &Source{scn: scn, period: period, fsrDPS: fsrDPS, loop: loop}
	if b := scn.script.GyroBiasDps; len(b) == 3 {
		s.bias = r3.Vector{X: b[0], Y: b[1], Z: b[2]}
	}
	return s, nil
}

// Elapsed is the scenario time of the next sample.
func (s *Source) Elapsed() time.Duration {
	return time.Duration(s.tick) * s.period
}

func (s *Source) Next() (imu.RawSample, error) {
	at := s.Elapsed()
	if !s.loop && at > s.scn.Duration() {
		return imu.RawSample{}, imu.ErrNoSample
	}
	s.tick++

	st := s.scn.StateAt(at, s.loop)
	g := Gravity(st).Mul(AccelCountsPerG)
	w := BodyRates(st).Add(s.bias)

	out := imu.RawSample{
		Ax: toCounts(g.X),
		Ay: toCounts(g.Y),
		Az: toCounts(g.Z),
		Gx: s.quantizeRate(w.X),
		Gy: s.quantizeRate(w.Y),
		Gz: s.quantizeRate(w.Z),
	}
	if sp := s.scn.script.Spike; sp.Every > 0 && s.tick%sp.Every == 0 {
		out.Ax = toCounts(float64(out.Ax) + float64(sp.Counts))
	}
	return out, nil
}

// quantizeRate rounds a rate to what the gyro would report at the
// configured full scale.
func (s *Source) quantizeRate(dps float64) float64 {
	return imu.ScaleGyro(toCounts(dps*32767/s.fsrDPS), s.fsrDPS)
}

func toCounts(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
