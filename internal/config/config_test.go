package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "run: {}\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSamples, cfg.Run.Samples)
	assert.Equal(t, 10*time.Millisecond, cfg.Run.Period)
	assert.Equal(t, "imu_data.csv", cfg.Run.Output)
	assert.True(t, cfg.Run.WriteHeader())

	assert.Equal(t, SourceDevice, cfg.Source.Kind)
	assert.Equal(t, 1000.0, cfg.Source.GyroFSRDps)
	assert.Equal(t, []int{1, 2, 3}, cfg.Source.AxisMap)
	assert.Equal(t, TransportI2C, cfg.Source.Device.Transport)
	assert.EqualValues(t, 0x68, cfg.Source.Device.I2CAddr)

	assert.Equal(t, "complementary", cfg.Filter.Strategy)
	assert.Equal(t, 5, cfg.Filter.MedianWindow)
	assert.Equal(t, "seeded", cfg.Filter.Integration)
	assert.Equal(t, 0.98, cfg.Filter.Complementary.GyroWeight)
	assert.Equal(t, 0.02, cfg.Filter.Complementary.AccelWeight)
	require.NotNil(t, cfg.Filter.Madgwick.Gain)
	assert.Equal(t, 0.1, *cfg.Filter.Madgwick.Gain)
	assert.Equal(t, 0.0, cfg.Filter.Madgwick.DriftBiasGain)
	assert.Equal(t, "enu", cfg.Filter.Madgwick.WorldFrame)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSamples, cfg.Run.Samples)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeTempConfig(t, `
run:
  samples: 2500
  period: 5ms
  output: out.csv
  header: false
source:
  kind: replay
  gyro_fsr_dps: 2000
  axis_map: [2, -1, 3]
  replay:
    path: flight.log
    loop: true
filter:
  strategy: Madgwick
  median_window: 7
  integration: incremental
  complementary:
    gyro_weight: 0.9
    accel_weight: 0.1
  madgwick:
    gain: 0
    drift_bias_gain: 0.01
    world_frame: ned
    seed:
      euler_deg: [0, 0, 90]
calibration:
  zero_drift_samples: 200
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2500, cfg.Run.Samples)
	assert.Equal(t, 5*time.Millisecond, cfg.Run.Period)
	assert.False(t, cfg.Run.WriteHeader())
	assert.Equal(t, SourceReplay, cfg.Source.Kind)
	assert.Equal(t, []int{2, -1, 3}, cfg.Source.AxisMap)
	assert.True(t, cfg.Source.Replay.Loop)
	assert.Equal(t, "madgwick", cfg.Filter.Strategy)
	assert.Equal(t, 7, cfg.Filter.MedianWindow)
	require.NotNil(t, cfg.Filter.Madgwick.Gain)
	assert.Equal(t, 0.0, *cfg.Filter.Madgwick.Gain)
	assert.Equal(t, []float64{0, 0, 90}, cfg.Filter.Madgwick.Seed.EulerDeg)
	assert.Equal(t, 200, cfg.Calibration.ZeroDriftSamples)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "NegativeSamples",
			yaml: "run:\n  samples: -1\n",
			want: "run.samples must be > 0",
		},
		{
			name: "NegativePeriod",
			yaml: "run:\n  period: -10ms\n",
			want: "run.period must be > 0",
		},
		{
			name: "UnknownSource",
			yaml: "source:\n  kind: bluetooth\n",
			want: "source.kind must be 'device', 'replay' or 'sim'",
		},
		{
			name: "SimRequiresScript",
			yaml: "source:\n  kind: sim\n",
			want: "source.sim.script is required when source.kind is 'sim'",
		},
		{
			name: "SimRejectsRecord",
			yaml: "source:\n  kind: sim\n  record_path: out.log\n  sim:\n    script: roll.yaml\n",
			want: "source.record_path cannot be used with source.kind=sim",
		},
		{
			name: "ReplayRequiresPath",
			yaml: "source:\n  kind: replay\n",
			want: "source.replay.path is required when source.kind is 'replay'",
		},
		{
			name: "ReplayRejectsRecord",
			yaml: "source:\n  kind: replay\n  record_path: out.log\n  replay:\n    path: in.log\n",
			want: "source.record_path cannot be used with source.kind=replay",
		},
		{
			name: "UnknownTransport",
			yaml: "source:\n  device:\n    transport: uart\n",
			want: "source.device.transport must be 'i2c' or 'spi'",
		},
		{
			name: "WideI2CAddr",
			yaml: "source:\n  device:\n    i2c_addr: 0x1ff\n",
			want: "source.device.i2c_addr must be a 7-bit address",
		},
		{
			name: "BadFSR",
			yaml: "source:\n  gyro_fsr_dps: 300\n",
			want: "source.gyro_fsr_dps must be one of 250, 500, 1000, 2000",
		},
		{
			name: "AxisMapLength",
			yaml: "source:\n  axis_map: [1, 2]\n",
			want: "source.axis_map must have 3 entries",
		},
		{
			name: "AxisMapRange",
			yaml: "source:\n  axis_map: [1, 2, 4]\n",
			want: "source.axis_map entries must be +/-1, +/-2 or +/-3",
		},
		{
			name: "AxisMapDuplicate",
			yaml: "source:\n  axis_map: [1, -1, 3]\n",
			want: "source.axis_map must use each axis once",
		},
		{
			name: "UnknownStrategy",
			yaml: "filter:\n  strategy: kalman\n",
			want: "filter.strategy must be 'complementary' or 'madgwick'",
		},
		{
			name: "NegativeWindow",
			yaml: "filter:\n  median_window: -3\n",
			want: "filter.median_window must be >= 1",
		},
		{
			name: "UnknownIntegration",
			yaml: "filter:\n  integration: rk4\n",
			want: "filter.integration must be 'seeded' or 'incremental'",
		},
		{
			name: "WeightsOutOfRange",
			yaml: "filter:\n  complementary:\n    gyro_weight: 1.5\n    accel_weight: -0.5\n",
			want: "filter.complementary weights must be in [0, 1]",
		},
		{
			name: "WeightsSum",
			yaml: "filter:\n  complementary:\n    gyro_weight: 0.9\n    accel_weight: 0.2\n",
			want: "filter.complementary.gyro_weight + accel_weight must equal 1",
		},
		{
			name: "NegativeGain",
			yaml: "filter:\n  madgwick:\n    gain: -0.1\n",
			want: "filter.madgwick.gain must be >= 0",
		},
		{
			name: "NegativeDriftGain",
			yaml: "filter:\n  madgwick:\n    drift_bias_gain: -1\n",
			want: "filter.madgwick.drift_bias_gain must be >= 0",
		},
		{
			name: "BothSeeds",
			yaml: "filter:\n  madgwick:\n    seed:\n      euler_deg: [0, 0, 0]\n      quaternion: [1, 0, 0, 0]\n",
			want: "filter.madgwick.seed: set euler_deg or quaternion, not both",
		},
		{
			name: "ShortEuler",
			yaml: "filter:\n  madgwick:\n    seed:\n      euler_deg: [10]\n",
			want: "filter.madgwick.seed.euler_deg must have 3 values (roll, pitch, yaw)",
		},
		{
			name: "ZeroQuaternion",
			yaml: "filter:\n  madgwick:\n    seed:\n      quaternion: [0, 0, 0, 0]\n",
			want: "filter.madgwick.seed.quaternion must be non-zero",
		},
		{
			name: "NegativeZeroDrift",
			yaml: "calibration:\n  zero_drift_samples: -5\n",
			want: "calibration.zero_drift_samples must be >= 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	cfg := Default()
	cfg.Run.Samples = 0
	requireErrEq(t, cfg.Validate(), "run.samples must be > 0")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
