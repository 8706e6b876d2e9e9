package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"imufusion/internal/config"
	"imufusion/internal/fusion"
	"imufusion/internal/logging"
	"imufusion/internal/output"
	"imufusion/internal/pipeline"
)

type overrides struct {
	samples  int
	output   string
	strategy string
}

func main() {
	var configPath, summaryPath string
	var ov overrides
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when empty)")
	flag.IntVar(&ov.samples, "samples", 0, "Override run.samples")
	flag.StringVar(&ov.output, "output", "", "Override run.output")
	flag.StringVar(&ov.strategy, "strategy", "", "Override filter.strategy (complementary|madgwick)")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a recorded sample log and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		return
	}

	cfg, err := loadConfig(configPath, ov)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string, ov overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if ov.samples != 0 {
		cfg.Run.Samples = ov.samples
	}
	if ov.output != "" {
		cfg.Run.Output = ov.output
	}
	if ov.strategy != "" {
		cfg.Filter.Strategy = strings.ToLower(strings.TrimSpace(ov.strategy))
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run wires source, estimator and CSV sink together and executes one run.
// A run stopped by a signal is not an error.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Stats, error) {
	logger = logging.OrNop(logger)

	pc, err := pipeline.FromConfig(cfg)
	if err != nil {
		return pipeline.Stats{}, err
	}

	src, closeSrc, err := openSource(cfg, logger)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer func() {
		if err := closeSrc(); err != nil {
			logger.Warn("source close failed", zap.Error(err))
		}
	}()

	sink, err := output.CreateCSV(cfg.Run.Output, cfg.Run.WriteHeader(), pc.Strategy.Name() == fusion.StrategyMadgwick)
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("output: %w", err)
	}
	logger.Info("writing records", zap.String("path", cfg.Run.Output))

	r, err := pipeline.New(pc, src, sink, pipeline.WithLogger(logger))
	if err != nil {
		_ = sink.Close()
		return pipeline.Stats{}, err
	}
	st, err := r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("stopped by signal", zap.Int("records", st.Records))
		return st, nil
	}
	return st, err
}
