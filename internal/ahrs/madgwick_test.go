package ahrs

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

const stationaryIterations = 10000

// sensorReference rotates a world-frame vector into the sensor frame.
func sensorReference(q Quaternion, d r3.Vector) r3.Vector {
	n := q.number()
	v := quat.Mul(quat.Mul(quat.Conj(n), quat.Number{Imag: d.X, Jmag: d.Y, Kmag: d.Z}), n)
	return r3.Vector{X: v.Imag, Y: v.Jmag, Z: v.Kmag}
}

func filterStationary(frame WorldFrame, seed Quaternion, accel r3.Vector) *Filter {
	f := New(Config{AlgorithmGain: 0.1, DriftBiasGain: 0, Frame: frame})
	f.SetOrientation(seed)
	for i := 0; i < stationaryIterations; i++ {
		f.Update(r3.Vector{}, accel, 0.1)
	}
	return f
}

func assertQuatNear(t *testing.T, want, got Quaternion, tol float64) {
	t.Helper()
	assert.InDelta(t, want.W, got.W, tol, "w")
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
	assert.InDelta(t, want.Z, got.Z, tol, "z")
}

func TestFilter_StartsUninitialized(t *testing.T) {
	f := New(Config{AlgorithmGain: DefaultAlgorithmGain})
	assert.Equal(t, Uninitialized, f.State())
	assert.Equal(t, "enu", f.WorldFrame().Name())

	f.Update(r3.Vector{}, r3.Vector{Z: 1}, 0.01)
	assert.Equal(t, Tracking, f.State())
	assertQuatNear(t, Identity, f.Orientation(), 1e-12)
}

func TestFilter_SetOrientationNormalizesAndRejectsZero(t *testing.T) {
	f := New(Config{})
	f.SetOrientation(Quaternion{W: 2})
	assert.Equal(t, Tracking, f.State())
	assertQuatNear(t, Identity, f.Orientation(), 1e-15)

	f.SetOrientation(Quaternion{})
	assertQuatNear(t, Identity, f.Orientation(), 0)
}

func TestFilter_StationaryIdentityIsFixedPoint(t *testing.T) {
	f := filterStationary(ENU, Identity, r3.Vector{Z: 1})
	assertQuatNear(t, Identity, f.Orientation(), 1e-12)
}

func TestFilter_StationaryYawSeedIsFixedPoint(t *testing.T) {
	seed := FromEuler(0, 0, 45)
	f := filterStationary(ENU, seed, r3.Vector{Z: 9.81})

	before := f.Orientation()
	f.Update(r3.Vector{}, r3.Vector{Z: 9.81}, 0.1)
	assertQuatNear(t, before, f.Orientation(), 1e-12)
	assertQuatNear(t, seed, f.Orientation(), 1e-9)
}

func TestFilter_StationaryTiltedSeedConvergesToLevel(t *testing.T) {
	f := filterStationary(ENU, FromEuler(30, -20, 45), r3.Vector{Z: 1})

	roll, pitch, _ := f.Orientation().Euler()
	assert.InDelta(t, 0, roll, 2.5)
	assert.InDelta(t, 0, pitch, 2.5)

	est := sensorReference(f.Orientation(), ENU.AccelReference())
	assert.Greater(t, est.Dot(r3.Vector{Z: 1}), math.Cos(2.5*degToRad))
}

func TestFilter_NEDConvergesUpsideDown(t *testing.T) {
	f := filterStationary(NED, FromEuler(10, 0, 0), r3.Vector{Z: 1})

	est := sensorReference(f.Orientation(), NED.AccelReference())
	assert.Greater(t, est.Dot(r3.Vector{Z: 1}), math.Cos(2.5*degToRad))

	roll, _, _ := f.Orientation().Euler()
	assert.InDelta(t, 180, math.Abs(roll), 2.5)
}

func TestFilter_CustomFrameMatchesBuiltin(t *testing.T) {
	custom, err := NewFrame("up", r3.Vector{Z: 3})
	require.NoError(t, err)

	a := New(Config{AlgorithmGain: 0.1, Frame: ENU})
	b := New(Config{AlgorithmGain: 0.1, Frame: custom})
	seed := FromEuler(5, 5, 5)
	a.SetOrientation(seed)
	b.SetOrientation(seed)
	for i := 0; i < 50; i++ {
		g := r3.Vector{X: 0.01, Y: -0.02, Z: 0.03}
		acc := r3.Vector{X: 0.1, Y: 0.05, Z: 0.99}
		a.Update(g, acc, 0.01)
		b.Update(g, acc, 0.01)
	}
	assertQuatNear(t, a.Orientation(), b.Orientation(), 1e-12)
}

func TestFilter_UnitNormHoldsForWholeRun(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := New(Config{AlgorithmGain: 0.3, DriftBiasGain: 0.01})
	f.SetOrientation(FromEuler(12, -7, 100))
	for i := 0; i < 5000; i++ {
		g := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		a := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: 1 + rng.NormFloat64()}
		if i%97 == 0 {
			a = r3.Vector{}
		}
		f.Update(g, a, 0.01)
		require.InDelta(t, 1.0, f.Orientation().Norm(), 1e-9, "tick %d", i)
	}
}

func TestFilter_ZeroAccelFallsBackToGyroIntegration(t *testing.T) {
	f := New(Config{AlgorithmGain: 0.1})
	f.SetOrientation(Identity)
	f.Update(r3.Vector{Z: 1}, r3.Vector{}, 0.1)

	n := math.Sqrt(1 + 0.05*0.05)
	assertQuatNear(t, Quaternion{W: 1 / n, Z: 0.05 / n}, f.Orientation(), 1e-12)
}

func TestFilter_ZeroNormQuaternionIsNotRenormalized(t *testing.T) {
	f := New(Config{AlgorithmGain: 0.1})
	f.q = quat.Number{}
	f.state = Tracking

	f.Update(r3.Vector{}, r3.Vector{}, 0.1)
	q := f.Orientation()
	assert.Equal(t, Quaternion{}, q)
	assert.False(t, math.IsNaN(q.W))
}

func TestFilter_DriftBiasLearnsOnlyWhenEnabled(t *testing.T) {
	off := New(Config{AlgorithmGain: 0.1, DriftBiasGain: 0})
	off.SetOrientation(FromEuler(10, 0, 0))
	off.Update(r3.Vector{}, r3.Vector{Z: 1}, 0.1)
	assert.Equal(t, r3.Vector{}, off.GyroBias())

	on := New(Config{AlgorithmGain: 0.1, DriftBiasGain: 0.1})
	on.SetOrientation(FromEuler(10, 0, 0))
	on.Update(r3.Vector{}, r3.Vector{Z: 1}, 0.1)
	bias := on.GyroBias()
	assert.Greater(t, bias.X, 0.0)
	assert.InDelta(t, 0, bias.Y, 1e-12)
	assert.InDelta(t, 0, bias.Z, 1e-12)
}
