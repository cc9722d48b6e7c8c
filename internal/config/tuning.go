package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/trajlab/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/perturb.defaults.json"

// TuningConfig represents the root configuration for perturbation tuning.
// The schema matches the /api/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates.
type TuningConfig struct {
	// Perturbation params
	PerturbProbability *float64 `json:"perturb_probability,omitempty"`
	LateralSigmaM      *float64 `json:"lateral_sigma_m,omitempty"`
	LongitudinalSigmaM *float64 `json:"longitudinal_sigma_m,omitempty"`
	YawSigmaDeg        *float64 `json:"yaw_sigma_deg,omitempty"`
	AnchorWeight       *float64 `json:"anchor_weight,omitempty"`
	Seed               *int64   `json:"seed,omitempty"`

	// Fit params
	SteerWeight      *float64 `json:"steer_weight,omitempty"`
	AccelWeight      *float64 `json:"accel_weight,omitempty"`
	FitMaxIterations *int     `json:"fit_max_iterations,omitempty"`
	FitTolerance     *float64 `json:"fit_tolerance,omitempty"`

	// Scene intake params
	MaxSceneFrames *int `json:"max_scene_frames,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from deeper internal packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge overlays o onto c: fields set in o replace c's values, fields left
// nil keep their current values. Used for partial runtime updates.
func (c *TuningConfig) Merge(o *TuningConfig) {
	if o == nil {
		return
	}
	if o.PerturbProbability != nil {
		c.PerturbProbability = o.PerturbProbability
	}
	if o.LateralSigmaM != nil {
		c.LateralSigmaM = o.LateralSigmaM
	}
	if o.LongitudinalSigmaM != nil {
		c.LongitudinalSigmaM = o.LongitudinalSigmaM
	}
	if o.YawSigmaDeg != nil {
		c.YawSigmaDeg = o.YawSigmaDeg
	}
	if o.AnchorWeight != nil {
		c.AnchorWeight = o.AnchorWeight
	}
	if o.Seed != nil {
		c.Seed = o.Seed
	}
	if o.SteerWeight != nil {
		c.SteerWeight = o.SteerWeight
	}
	if o.AccelWeight != nil {
		c.AccelWeight = o.AccelWeight
	}
	if o.FitMaxIterations != nil {
		c.FitMaxIterations = o.FitMaxIterations
	}
	if o.FitTolerance != nil {
		c.FitTolerance = o.FitTolerance
	}
	if o.MaxSceneFrames != nil {
		c.MaxSceneFrames = o.MaxSceneFrames
	}
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PerturbProbability != nil {
		if *c.PerturbProbability < 0 || *c.PerturbProbability > 1 {
			return fmt.Errorf("perturb_probability must be between 0 and 1, got %f", *c.PerturbProbability)
		}
	}

	if c.LateralSigmaM != nil && *c.LateralSigmaM < 0 {
		return fmt.Errorf("lateral_sigma_m must be non-negative, got %f", *c.LateralSigmaM)
	}
	if c.LongitudinalSigmaM != nil && *c.LongitudinalSigmaM < 0 {
		return fmt.Errorf("longitudinal_sigma_m must be non-negative, got %f", *c.LongitudinalSigmaM)
	}
	if c.YawSigmaDeg != nil && *c.YawSigmaDeg < 0 {
		return fmt.Errorf("yaw_sigma_deg must be non-negative, got %f", *c.YawSigmaDeg)
	}

	if c.AnchorWeight != nil && *c.AnchorWeight <= 0 {
		return fmt.Errorf("anchor_weight must be positive, got %f", *c.AnchorWeight)
	}
	if c.SteerWeight != nil && *c.SteerWeight < 0 {
		return fmt.Errorf("steer_weight must be non-negative, got %f", *c.SteerWeight)
	}
	if c.AccelWeight != nil && *c.AccelWeight < 0 {
		return fmt.Errorf("accel_weight must be non-negative, got %f", *c.AccelWeight)
	}

	if c.FitMaxIterations != nil && *c.FitMaxIterations <= 0 {
		return fmt.Errorf("fit_max_iterations must be positive, got %d", *c.FitMaxIterations)
	}
	if c.FitTolerance != nil && *c.FitTolerance <= 0 {
		return fmt.Errorf("fit_tolerance must be positive, got %f", *c.FitTolerance)
	}

	if c.MaxSceneFrames != nil && *c.MaxSceneFrames <= 0 {
		return fmt.Errorf("max_scene_frames must be positive, got %d", *c.MaxSceneFrames)
	}

	return nil
}

// GetPerturbProbability returns the perturb_probability value or the default.
func (c *TuningConfig) GetPerturbProbability() float64 {
	if c.PerturbProbability == nil {
		return 0.5 // default
	}
	return *c.PerturbProbability
}

// GetLateralSigmaM returns the lateral_sigma_m value or the default.
func (c *TuningConfig) GetLateralSigmaM() float64 {
	if c.LateralSigmaM == nil {
		return 0.8
	}
	return *c.LateralSigmaM
}

// GetLongitudinalSigmaM returns the longitudinal_sigma_m value or the default.
func (c *TuningConfig) GetLongitudinalSigmaM() float64 {
	if c.LongitudinalSigmaM == nil {
		return 2.0
	}
	return *c.LongitudinalSigmaM
}

// GetYawSigmaDeg returns the yaw_sigma_deg value or the default.
func (c *TuningConfig) GetYawSigmaDeg() float64 {
	if c.YawSigmaDeg == nil {
		return 4.0
	}
	return *c.YawSigmaDeg
}

// GetYawSigmaRad returns the yaw spread converted to radians.
func (c *TuningConfig) GetYawSigmaRad() float64 {
	return units.DegToRad(c.GetYawSigmaDeg())
}

// GetAnchorWeight returns the anchor_weight value or the default.
func (c *TuningConfig) GetAnchorWeight() float64 {
	if c.AnchorWeight == nil {
		return 5.0
	}
	return *c.AnchorWeight
}

// GetSeed returns the seed value or the default. Zero means seed from the
// clock at startup.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetSteerWeight returns the steer_weight value or the default.
func (c *TuningConfig) GetSteerWeight() float64 {
	if c.SteerWeight == nil {
		return 5.0
	}
	return *c.SteerWeight
}

// GetAccelWeight returns the accel_weight value or the default.
func (c *TuningConfig) GetAccelWeight() float64 {
	if c.AccelWeight == nil {
		return 5.0
	}
	return *c.AccelWeight
}

// GetFitMaxIterations returns the fit_max_iterations value or the default.
func (c *TuningConfig) GetFitMaxIterations() int {
	if c.FitMaxIterations == nil {
		return 50
	}
	return *c.FitMaxIterations
}

// GetFitTolerance returns the fit_tolerance value or the default.
func (c *TuningConfig) GetFitTolerance() float64 {
	if c.FitTolerance == nil {
		return 1e-9
	}
	return *c.FitTolerance
}

// GetMaxSceneFrames returns the max_scene_frames value or the default.
func (c *TuningConfig) GetMaxSceneFrames() int {
	if c.MaxSceneFrames == nil {
		return 1000
	}
	return *c.MaxSceneFrames
}
