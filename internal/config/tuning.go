// Package config loads estimator tuning parameters from JSON. Fields are
// pointer-typed so a partial file only overrides what it names; the Get*
// accessors carry the canonical defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Lookup failure policies for measurements referencing unknown calibration
// identifiers.
const (
	LookupPolicySkip  = "skip"  // drop the sample, continue the tick
	LookupPolicyAbort = "abort" // fail the whole tick
)

// TuningConfig is the root estimator configuration. The same JSON schema
// is used for startup configuration and for recording the configuration
// of a replay run.
type TuningConfig struct {
	// Loop cadence
	PredictRateHz *int `json:"predict_rate_hz,omitempty"`

	// Measurement noise (standard deviations)
	TdoaStdDev     *float64 `json:"tdoa_std_dev,omitempty"`
	SweepStdDev    *float64 `json:"sweep_std_dev,omitempty"`
	YawErrorStdDev *float64 `json:"yaw_error_std_dev,omitempty"`

	// Filter initial state
	InitialX              *float64 `json:"initial_x,omitempty"`
	InitialY              *float64 `json:"initial_y,omitempty"`
	InitialZ              *float64 `json:"initial_z,omitempty"`
	StdDevInitialPosition *float64 `json:"std_dev_initial_position,omitempty"`
	StdDevInitialVelocity *float64 `json:"std_dev_initial_velocity,omitempty"`
	StdDevInitialAttitude *float64 `json:"std_dev_initial_attitude,omitempty"`

	// Process noise (per-second standard deviations)
	ProcessNoisePos *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel *float64 `json:"process_noise_vel,omitempty"`
	ProcessNoiseAtt *float64 `json:"process_noise_att,omitempty"`

	// Physical constants
	GravityMagnitude *float64 `json:"gravity_magnitude,omitempty"`

	// Policy
	LookupFailurePolicy *string `json:"lookup_failure_policy,omitempty"`
	AssumeFlying        *bool   `json:"assume_flying,omitempty"`

	// Persistence
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "5s"
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics
// if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.PredictRateHz != nil {
		rate := *c.PredictRateHz
		if rate <= 0 || rate > 1000 {
			return fmt.Errorf("predict_rate_hz must be in (0, 1000], got %d", rate)
		}
		if 1000%rate != 0 {
			return fmt.Errorf("predict_rate_hz must divide the 1 kHz tick rate, got %d", rate)
		}
	}

	for name, v := range map[string]*float64{
		"tdoa_std_dev":      c.TdoaStdDev,
		"sweep_std_dev":     c.SweepStdDev,
		"yaw_error_std_dev": c.YawErrorStdDev,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.LookupFailurePolicy != nil {
		switch *c.LookupFailurePolicy {
		case LookupPolicySkip, LookupPolicyAbort:
		default:
			return fmt.Errorf("lookup_failure_policy must be %q or %q, got %q",
				LookupPolicySkip, LookupPolicyAbort, *c.LookupFailurePolicy)
		}
	}

	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	return nil
}

// GetPredictRateHz returns the prediction rate or the default.
func (c *TuningConfig) GetPredictRateHz() int {
	if c.PredictRateHz == nil {
		return 100 // 10 ms prediction period
	}
	return *c.PredictRateHz
}

// GetTdoaStdDev returns the TDOA measurement noise or the default.
func (c *TuningConfig) GetTdoaStdDev() float64 {
	if c.TdoaStdDev == nil {
		return 0.30
	}
	return *c.TdoaStdDev
}

// GetSweepStdDev returns the sweep-angle measurement noise or the default.
func (c *TuningConfig) GetSweepStdDev() float64 {
	if c.SweepStdDev == nil {
		return 0.001
	}
	return *c.SweepStdDev
}

// GetYawErrorStdDev returns the yaw-error measurement noise or the default.
func (c *TuningConfig) GetYawErrorStdDev() float64 {
	if c.YawErrorStdDev == nil {
		return 0.01
	}
	return *c.YawErrorStdDev
}

// GetInitialX returns the initial X position or the default.
func (c *TuningConfig) GetInitialX() float64 {
	if c.InitialX == nil {
		return 0
	}
	return *c.InitialX
}

// GetInitialY returns the initial Y position or the default.
func (c *TuningConfig) GetInitialY() float64 {
	if c.InitialY == nil {
		return 0
	}
	return *c.InitialY
}

// GetInitialZ returns the initial Z position or the default.
func (c *TuningConfig) GetInitialZ() float64 {
	if c.InitialZ == nil {
		return 0
	}
	return *c.InitialZ
}

// GetStdDevInitialPosition returns the initial position uncertainty or the default.
func (c *TuningConfig) GetStdDevInitialPosition() float64 {
	if c.StdDevInitialPosition == nil {
		return 1.0
	}
	return *c.StdDevInitialPosition
}

// GetStdDevInitialVelocity returns the initial velocity uncertainty or the default.
func (c *TuningConfig) GetStdDevInitialVelocity() float64 {
	if c.StdDevInitialVelocity == nil {
		return 0.01
	}
	return *c.StdDevInitialVelocity
}

// GetStdDevInitialAttitude returns the initial attitude uncertainty or the default.
func (c *TuningConfig) GetStdDevInitialAttitude() float64 {
	if c.StdDevInitialAttitude == nil {
		return 0.01
	}
	return *c.StdDevInitialAttitude
}

// GetProcessNoisePos returns the position process noise or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 0
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the velocity process noise or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.5
	}
	return *c.ProcessNoiseVel
}

// GetProcessNoiseAtt returns the attitude process noise or the default.
func (c *TuningConfig) GetProcessNoiseAtt() float64 {
	if c.ProcessNoiseAtt == nil {
		return 0.1
	}
	return *c.ProcessNoiseAtt
}

// GetGravityMagnitude returns the gravity magnitude or the default.
func (c *TuningConfig) GetGravityMagnitude() float64 {
	if c.GravityMagnitude == nil {
		return 9.81
	}
	return *c.GravityMagnitude
}

// GetLookupFailurePolicy returns the lookup failure policy or the default.
func (c *TuningConfig) GetLookupFailurePolicy() string {
	if c.LookupFailurePolicy == nil {
		return LookupPolicySkip
	}
	return *c.LookupFailurePolicy
}

// GetAssumeFlying returns whether the vehicle is assumed airborne.
// The firmware gates some prediction terms on flight state; the replay
// harness assumes always-flying, matching the recorded logs.
func (c *TuningConfig) GetAssumeFlying() bool {
	if c.AssumeFlying == nil {
		return true
	}
	return *c.AssumeFlying
}

// GetFlushInterval parses and returns the estimate flush interval.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
