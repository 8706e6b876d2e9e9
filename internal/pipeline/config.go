package pipeline

import (
	"imufusion/internal/ahrs"
	"imufusion/internal/config"
	"imufusion/internal/fusion"
)

// FromConfig builds the loop settings and the fusion strategy described by
// cfg. The strategy carries filter state and must not be shared between runs.
func FromConfig(cfg config.Config) (Config, error) {
	mode, err := fusion.ParseIntegrationMode(cfg.Filter.Integration)
	if err != nil {
		return Config{}, err
	}

	opts := fusion.StrategyOptions{
		Name:          cfg.Filter.Strategy,
		GyroWeight:    cfg.Filter.Complementary.GyroWeight,
		AccelWeight:   cfg.Filter.Complementary.AccelWeight,
		AlgorithmGain: ahrs.DefaultAlgorithmGain,
		DriftBiasGain: cfg.Filter.Madgwick.DriftBiasGain,
	}
	if g := cfg.Filter.Madgwick.Gain; g != nil {
		opts.AlgorithmGain = *g
	}
	if opts.Name == fusion.StrategyMadgwick {
		frame, err := ahrs.LookupFrame(cfg.Filter.Madgwick.WorldFrame)
		if err != nil {
			return Config{}, err
		}
		opts.Frame = frame
		opts.Seed = seedOrientation(cfg.Filter.Madgwick.Seed)
	}

	s, err := fusion.NewStrategy(opts)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Samples:          cfg.Run.Samples,
		Period:           cfg.Run.Period,
		MedianWindow:     cfg.Filter.MedianWindow,
		Integration:      mode,
		Strategy:         s,
		ZeroDriftSamples: cfg.Calibration.ZeroDriftSamples,
	}, nil
}

func seedOrientation(s config.SeedConfig) ahrs.Quaternion {
	switch {
	case len(s.Quaternion) == 4:
		return ahrs.Quaternion{W: s.Quaternion[0], X: s.Quaternion[1], Y: s.Quaternion[2], Z: s.Quaternion[3]}
	case len(s.EulerDeg) == 3:
		return ahrs.FromEuler(s.EulerDeg[0], s.EulerDeg[1], s.EulerDeg[2])
	default:
		return ahrs.Identity
	}
}
