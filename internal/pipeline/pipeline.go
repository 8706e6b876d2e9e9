// Package pipeline runs the per-tick estimation loop: read a sample, denoise
// the accelerometer, integrate and fuse, write a record, wait for the next
// tick.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"imufusion/internal/denoise"
	"imufusion/internal/fusion"
	"imufusion/internal/imu"
	"imufusion/internal/logging"
	"imufusion/internal/output"
)

type Config struct {
	Samples          int
	Period           time.Duration
	MedianWindow     int
	Integration      fusion.IntegrationMode
	Strategy         fusion.Strategy
	ZeroDriftSamples int
}

// Stats summarizes a run.
type Stats struct {
	Ticks        int
	Records      int
	SkippedReads int
	NotReady     int
	GyroBias     r3.Vector // deg/s, zero unless a pre-roll ran
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

type Runner struct {
	cfg     Config
	src     imu.Source
	sink    output.Sink
	sleeper Sleeper
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Runner)

func WithSleeper(s Sleeper) Option {
	return func(r *Runner) {
		if s != nil {
			r.sleeper = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = logging.OrNop(l) }
}

func New(cfg Config, src imu.Source, sink output.Sink, opts ...Option) (*Runner, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("pipeline: samples must be > 0")
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("pipeline: period must be > 0")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("pipeline: strategy is nil")
	}
	if src == nil {
		return nil, fmt.Errorf("pipeline: source is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("pipeline: sink is nil")
	}
	r := &Runner{
		cfg:     cfg,
		src:     src,
		sink:    sink,
		sleeper: realSleeper{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run executes up to cfg.Samples ticks. It stops early when the source is
// exhausted or ctx is cancelled; in every case the sink is flushed and
// closed. A cancelled run returns ctx.Err() along with the stats so far.
func (r *Runner) Run(ctx context.Context) (st Stats, err error) {
	defer func() {
		if cerr := r.closeSink(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	den, err := denoise.NewDenoiser(r.cfg.MedianWindow)
	if err != nil {
		return st, err
	}
	est, err := fusion.NewEstimator(r.cfg.Strategy, r.cfg.Integration, r.cfg.Period.Seconds())
	if err != nil {
		return st, err
	}

	src := r.src
	preRolled := false
	if r.cfg.ZeroDriftSamples > 0 {
		bias, err := r.zeroDrift(ctx)
		if err != nil {
			return st, err
		}
		st.GyroBias = bias
		src = imu.WithGyroBias(src, bias)
		preRolled = true
	}

	r.log.Info("run starting",
		zap.String("strategy", r.cfg.Strategy.Name()),
		zap.Int("samples", r.cfg.Samples),
		zap.Duration("period", r.cfg.Period),
		zap.Int("median_window", r.cfg.MedianWindow),
		zap.Stringer("integration", r.cfg.Integration),
	)

	// After a pre-roll the last calibration read was just taken, so tick 0
	// waits a full period too.
	start := r.now()
	if preRolled {
		start = start.Add(r.cfg.Period)
	}
	for tick := 0; tick < r.cfg.Samples; tick++ {
		if err := ctx.Err(); err != nil {
			r.log.Info("run cancelled", zap.Int("tick", tick))
			return st, err
		}
		if tick > 0 || preRolled {
			r.sleepUntil(start.Add(time.Duration(tick) * r.cfg.Period))
		}
		st.Ticks++

		s, err := src.Next()
		if errors.Is(err, imu.ErrNoSample) {
			st.Ticks--
			r.log.Info("source exhausted", zap.Int("tick", tick))
			break
		}
		if err != nil {
			st.SkippedReads++
			r.log.Warn("sensor read failed, skipping tick", zap.Int("tick", tick), zap.Error(err))
			continue
		}

		accel, ok := den.PushSample(s)
		if !ok {
			st.NotReady++
		}
		rate := r3.Vector{X: s.Gx, Y: s.Gy, Z: s.Gz}
		out := est.Step(rate, accel, ok)

		rec := output.Record{
			MedianAccel:   accel,
			Gyro:          rate,
			Integrated:    out.Integrated,
			Fused:         out.Fused,
			Quaternion:    out.Quaternion,
			HasQuaternion: out.HasQuaternion,
		}
		if err := r.sink.Write(rec); err != nil {
			return st, fmt.Errorf("pipeline: write record %d: %w", tick, err)
		}
		st.Records++
	}

	r.log.Info("run complete",
		zap.Int("ticks", st.Ticks),
		zap.Int("records", st.Records),
		zap.Int("skipped_reads", st.SkippedReads),
		zap.Int("not_ready", st.NotReady),
	)
	return st, nil
}

func (r *Runner) closeSink() error {
	if err := r.sink.Flush(); err != nil {
		_ = r.sink.Close()
		return fmt.Errorf("pipeline: flush: %w", err)
	}
	if err := r.sink.Close(); err != nil {
		return fmt.Errorf("pipeline: close: %w", err)
	}
	return nil
}

func (r *Runner) sleepUntil(deadline time.Time) {
	if d := deadline.Sub(r.now()); d > 0 {
		r.sleeper.Sleep(d)
	}
}

// zeroDrift averages the gyro over a stationary pre-roll paced at the run
// period and reports which sensor axis gravity falls on.
func (r *Runner) zeroDrift(ctx context.Context) (r3.Vector, error) {
	n := r.cfg.ZeroDriftSamples
	r.log.Info("zero drift: keep the sensor still", zap.Int("samples", n))

	p := &pacedSource{ctx: ctx, src: r.src, sleeper: r.sleeper, period: r.cfg.Period}
	st, err := imu.MeasureStationary(p, n)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return r3.Vector{}, cerr
		}
		return r3.Vector{}, err
	}
	if err := ctx.Err(); err != nil {
		return r3.Vector{}, err
	}
	r.log.Info("zero drift complete",
		zap.Int("samples", st.Samples),
		zap.Int("failed", st.Failed),
		zap.Float64("bias_x", st.GyroBias.X),
		zap.Float64("bias_y", st.GyroBias.Y),
		zap.Float64("bias_z", st.GyroBias.Z),
		zap.Int("gravity_axis", imu.DominantAxis(st.MeanAccel.X, st.MeanAccel.Y, st.MeanAccel.Z)),
	)
	return st.GyroBias, nil
}

// pacedSource waits one period before every read after the first and stops
// once ctx is done.
type pacedSource struct {
	ctx     context.Context
	src     imu.Source
	sleeper Sleeper
	period  time.Duration
	started bool
}

func (p *pacedSource) Next() (imu.RawSample, error) {
	if p.ctx.Err() != nil {
		return imu.RawSample{}, imu.ErrNoSample
	}
	if p.started {
		p.sleeper.Sleep(p.period)
	}
	p.started = true
	return p.src.Next()
}
