package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Run         RunConfig         `yaml:"run"`
	Source      SourceConfig      `yaml:"source"`
	Filter      FilterConfig      `yaml:"filter"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Log         LogConfig         `yaml:"log"`
}

type RunConfig struct {
	Samples int           `yaml:"samples"`
	Period  time.Duration `yaml:"period"`
	Output  string        `yaml:"output"`
	// Header writes the column-name line first. Defaults to true.
	Header *bool `yaml:"header"`
}

func (r RunConfig) WriteHeader() bool {
	return r.Header == nil || *r.Header
}

type SourceConfig struct {
	Kind       string       `yaml:"kind"`
	GyroFSRDps float64      `yaml:"gyro_fsr_dps"`
	AxisMap    []int        `yaml:"axis_map"`
	RecordPath string       `yaml:"record_path"`
	Replay     ReplayConfig `yaml:"replay"`
	Device     DeviceConfig `yaml:"device"`
	Sim        SimConfig    `yaml:"sim"`
}

type ReplayConfig struct {
	Path string `yaml:"path"`
	Loop bool   `yaml:"loop"`
}

// SimConfig plays a YAML motion script instead of reading hardware.
type SimConfig struct {
	Script string `yaml:"script"`
	Loop   bool   `yaml:"loop"`
}

type DeviceConfig struct {
	Transport  string `yaml:"transport"`
	I2CBus     int    `yaml:"i2c_bus"`
	I2CAddr    uint16 `yaml:"i2c_addr"`
	SPIDevice  string `yaml:"spi_device"`
	SPISpeedHz int64  `yaml:"spi_speed_hz"`
}

type FilterConfig struct {
	Strategy      string              `yaml:"strategy"`
	MedianWindow  int                 `yaml:"median_window"`
	Integration   string              `yaml:"integration"`
	Complementary ComplementaryConfig `yaml:"complementary"`
	Madgwick      MadgwickConfig      `yaml:"madgwick"`
}

type ComplementaryConfig struct {
	GyroWeight  float64 `yaml:"gyro_weight"`
	AccelWeight float64 `yaml:"accel_weight"`
}

type MadgwickConfig struct {
	// Gain is the algorithm gain (beta). Nil means the default; 0 disables
	// the accelerometer correction.
	Gain          *float64   `yaml:"gain"`
	DriftBiasGain float64    `yaml:"drift_bias_gain"`
	WorldFrame    string     `yaml:"world_frame"`
	Seed          SeedConfig `yaml:"seed"`
}

// SeedConfig is the initial orientation: Euler angles (roll, pitch, yaw in
// degrees) or a quaternion (w, x, y, z). At most one may be set.
type SeedConfig struct {
	EulerDeg   []float64 `yaml:"euler_deg"`
	Quaternion []float64 `yaml:"quaternion"`
}

type CalibrationConfig struct {
	ZeroDriftSamples int `yaml:"zero_drift_samples"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	SourceDevice = "device"
	SourceReplay = "replay"
	SourceSim    = "sim"

	TransportI2C = "i2c"
	TransportSPI = "spi"
)

const (
	DefaultSamples      = 100
	DefaultPeriod       = 10 * time.Millisecond
	DefaultOutput       = "imu_data.csv"
	DefaultGyroFSRDps   = 1000
	DefaultMedianWindow = 5
	DefaultI2CBus       = 1
	DefaultI2CAddr      = 0x68
	DefaultSPIDevice    = "/dev/spidev0.0"
	DefaultSPISpeedHz   = 1_000_000
	DefaultMadgwickGain = 0.1
)

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Run.Samples == 0 {
		cfg.Run.Samples = DefaultSamples
	}
	if cfg.Run.Period == 0 {
		cfg.Run.Period = DefaultPeriod
	}
	if cfg.Run.Output == "" {
		cfg.Run.Output = DefaultOutput
	}

	cfg.Source.Kind = strings.ToLower(strings.TrimSpace(cfg.Source.Kind))
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceDevice
	}
	if cfg.Source.GyroFSRDps == 0 {
		cfg.Source.GyroFSRDps = DefaultGyroFSRDps
	}
	if len(cfg.Source.AxisMap) == 0 {
		cfg.Source.AxisMap = []int{1, 2, 3}
	}
	cfg.Source.Device.Transport = strings.ToLower(strings.TrimSpace(cfg.Source.Device.Transport))
	if cfg.Source.Device.Transport == "" {
		cfg.Source.Device.Transport = TransportI2C
	}
	if cfg.Source.Device.I2CBus == 0 {
		cfg.Source.Device.I2CBus = DefaultI2CBus
	}
	if cfg.Source.Device.I2CAddr == 0 {
		cfg.Source.Device.I2CAddr = DefaultI2CAddr
	}
	if cfg.Source.Device.SPIDevice == "" {
		cfg.Source.Device.SPIDevice = DefaultSPIDevice
	}
	if cfg.Source.Device.SPISpeedHz == 0 {
		cfg.Source.Device.SPISpeedHz = DefaultSPISpeedHz
	}

	cfg.Filter.Strategy = strings.ToLower(strings.TrimSpace(cfg.Filter.Strategy))
	if cfg.Filter.Strategy == "" {
		cfg.Filter.Strategy = "complementary"
	}
	if cfg.Filter.MedianWindow == 0 {
		cfg.Filter.MedianWindow = DefaultMedianWindow
	}
	if cfg.Filter.Integration == "" {
		cfg.Filter.Integration = "seeded"
	}
	if cfg.Filter.Complementary.GyroWeight == 0 && cfg.Filter.Complementary.AccelWeight == 0 {
		cfg.Filter.Complementary.GyroWeight = 0.98
		cfg.Filter.Complementary.AccelWeight = 0.02
	}
	if cfg.Filter.Madgwick.Gain == nil {
		g := DefaultMadgwickGain
		cfg.Filter.Madgwick.Gain = &g
	}
	if cfg.Filter.Madgwick.WorldFrame == "" {
		cfg.Filter.Madgwick.WorldFrame = "enu"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks a fully defaulted configuration. It is run by Load and
// again after command-line overrides.
func (cfg Config) Validate() error {
	if cfg.Run.Samples <= 0 {
		return fmt.Errorf("run.samples must be > 0")
	}
	if cfg.Run.Period <= 0 {
		return fmt.Errorf("run.period must be > 0")
	}

	switch cfg.Source.Kind {
	case SourceDevice:
		switch cfg.Source.Device.Transport {
		case TransportI2C:
			if cfg.Source.Device.I2CBus < 0 {
				return fmt.Errorf("source.device.i2c_bus must be >= 0")
			}
			if cfg.Source.Device.I2CAddr > 0x7f {
				return fmt.Errorf("source.device.i2c_addr must be a 7-bit address")
			}
		case TransportSPI:
			if cfg.Source.Device.SPISpeedHz <= 0 {
				return fmt.Errorf("source.device.spi_speed_hz must be > 0")
			}
		default:
			return fmt.Errorf("source.device.transport must be 'i2c' or 'spi'")
		}
	case SourceReplay:
		if cfg.Source.Replay.Path == "" {
			return fmt.Errorf("source.replay.path is required when source.kind is 'replay'")
		}
		if cfg.Source.RecordPath != "" {
			return fmt.Errorf("source.record_path cannot be used with source.kind=replay")
		}
	case SourceSim:
		if cfg.Source.Sim.Script == "" {
			return fmt.Errorf("source.sim.script is required when source.kind is 'sim'")
		}
		if cfg.Source.RecordPath != "" {
			return fmt.Errorf("source.record_path cannot be used with source.kind=sim")
		}
	default:
		return fmt.Errorf("source.kind must be 'device', 'replay' or 'sim'")
	}

	switch cfg.Source.GyroFSRDps {
	case 250, 500, 1000, 2000:
	default:
		return fmt.Errorf("source.gyro_fsr_dps must be one of 250, 500, 1000, 2000")
	}
	if err := validateAxisMap(cfg.Source.AxisMap); err != nil {
		return err
	}

	switch cfg.Filter.Strategy {
	case "complementary", "madgwick":
	default:
		return fmt.Errorf("filter.strategy must be 'complementary' or 'madgwick'")
	}
	if cfg.Filter.MedianWindow < 1 {
		return fmt.Errorf("filter.median_window must be >= 1")
	}
	switch strings.ToLower(cfg.Filter.Integration) {
	case "seeded", "incremental":
	default:
		return fmt.Errorf("filter.integration must be 'seeded' or 'incremental'")
	}

	c := cfg.Filter.Complementary
	if c.GyroWeight < 0 || c.GyroWeight > 1 || c.AccelWeight < 0 || c.AccelWeight > 1 {
		return fmt.Errorf("filter.complementary weights must be in [0, 1]")
	}
	if math.Abs(c.GyroWeight+c.AccelWeight-1) > 1e-9 {
		return fmt.Errorf("filter.complementary.gyro_weight + accel_weight must equal 1")
	}

	m := cfg.Filter.Madgwick
	if m.Gain != nil && *m.Gain < 0 {
		return fmt.Errorf("filter.madgwick.gain must be >= 0")
	}
	if m.DriftBiasGain < 0 {
		return fmt.Errorf("filter.madgwick.drift_bias_gain must be >= 0")
	}
	if len(m.Seed.EulerDeg) > 0 && len(m.Seed.Quaternion) > 0 {
		return fmt.Errorf("filter.madgwick.seed: set euler_deg or quaternion, not both")
	}
	if n := len(m.Seed.EulerDeg); n != 0 && n != 3 {
		return fmt.Errorf("filter.madgwick.seed.euler_deg must have 3 values (roll, pitch, yaw)")
	}
	if n := len(m.Seed.Quaternion); n != 0 && n != 4 {
		return fmt.Errorf("filter.madgwick.seed.quaternion must have 4 values (w, x, y, z)")
	}
	if len(m.Seed.Quaternion) == 4 {
		var sum float64
		for _, v := range m.Seed.Quaternion {
			sum += v * v
		}
		if sum == 0 {
			return fmt.Errorf("filter.madgwick.seed.quaternion must be non-zero")
		}
	}

	if cfg.Calibration.ZeroDriftSamples < 0 {
		return fmt.Errorf("calibration.zero_drift_samples must be >= 0")
	}
	return nil
}

func validateAxisMap(m []int) error {
	if len(m) != 3 {
		return fmt.Errorf("source.axis_map must have 3 entries")
	}
	var seen [4]bool
	for _, v := range m {
		a := v
		if a < 0 {
			a = -a
		}
		if a < 1 || a > 3 {
			return fmt.Errorf("source.axis_map entries must be +/-1, +/-2 or +/-3")
		}
		if seen[a] {
			return fmt.Errorf("source.axis_map must use each axis once")
		}
		seen[a] = true
	}
	return nil
}
