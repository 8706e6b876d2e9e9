package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imufusion/internal/config"
	"imufusion/internal/i2c"
	"imufusion/internal/imu"
	"imufusion/internal/replay"
	"imufusion/internal/sensors/icm20602"
	"imufusion/internal/sim"
	"imufusion/internal/spi"
)

// openSource builds the configured sample source with the mount remap
// applied. The returned func releases the device, recorder or nothing.
func openSource(cfg config.Config, logger *zap.Logger) (imu.Source, func() error, error) {
	var m imu.AxisMap
	copy(m[:], cfg.Source.AxisMap)
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var src imu.Source
	switch cfg.Source.Kind {
	case config.SourceReplay:
		recs, err := replay.ReadFile(cfg.Source.Replay.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("replay: %w", err)
		}
		rs, err := replay.NewSource(recs, cfg.Source.Replay.Loop)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("replaying sample log",
			zap.String("path", cfg.Source.Replay.Path),
			zap.Bool("loop", cfg.Source.Replay.Loop))
		src = rs

	case config.SourceSim:
		script, err := sim.LoadScript(cfg.Source.Sim.Script)
		if err != nil {
			return nil, nil, fmt.Errorf("sim: %w", err)
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			return nil, nil, fmt.Errorf("sim: %w", err)
		}
		ss, err := sim.NewSource(scn, cfg.Run.Period, cfg.Source.GyroFSRDps, cfg.Source.Sim.Loop)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("simulating motion",
			zap.String("path", cfg.Source.Sim.Script),
			zap.Duration("duration", scn.Duration()),
			zap.Bool("loop", cfg.Source.Sim.Loop))
		src = ss

	case config.SourceDevice:
		dev, closeDev, err := openDevice(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeDev)
		ds, err := imu.NewDeviceSource(dev, dev.GyroFSRDps())
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		src = ds

		if cfg.Source.RecordPath != "" {
			w, err := replay.CreateWriter(cfg.Source.RecordPath)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("record: %w", err)
			}
			closers = append(closers, w.Close)
			src = replay.NewRecorder(src, w)
			logger.Info("recording samples", zap.String("path", cfg.Source.RecordPath))
		}

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}

	if !m.IsIdentity() {
		logger.Info("axis remap", zap.Ints("axis_map", m[:]))
	}
	return imu.Remap(src, m), closeAll, nil
}

func openDevice(cfg config.Config, logger *zap.Logger) (*icm20602.Device, func() error, error) {
	dc := cfg.Source.Device
	opts := icm20602.Options{
		GyroFSRDps:   cfg.Source.GyroFSRDps,
		SPI:          dc.Transport == config.TransportSPI,
		SampleRateHz: int(time.Second / cfg.Run.Period),
	}

	var regs icm20602.RegisterIO
	var closeFn func() error
	switch dc.Transport {
	case config.TransportI2C:
		bus, err := i2c.OpenBus(dc.I2CBus)
		if err != nil {
			return nil, nil, err
		}
		regs, closeFn = bus.Dev(dc.I2CAddr), bus.Close
		logger.Info("imu on i2c", zap.String("path", bus.Path()), zap.Uint16("addr", dc.I2CAddr))
	case config.TransportSPI:
		d, err := spi.Open(dc.SPIDevice, dc.SPISpeedHz)
		if err != nil {
			return nil, nil, err
		}
		regs, closeFn = d, d.Close
		logger.Info("imu on spi", zap.String("path", dc.SPIDevice), zap.Int64("speed_hz", dc.SPISpeedHz))
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", dc.Transport)
	}

	dev, err := icm20602.New(regs, opts)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return dev, closeFn, nil
}
