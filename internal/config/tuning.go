package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods fall back to hardcoded defaults for nil
// fields.
type TuningConfig struct {
	// Association params
	MaxCosineDistance *float64 `json:"max_cosine_distance,omitempty"`
	MaxIoUDistance    *float64 `json:"max_iou_distance,omitempty"`
	NNBudget          *int     `json:"nn_budget,omitempty"`
	GateOnlyPosition  *bool    `json:"gate_only_position,omitempty"`

	// Track lifecycle params
	MaxAge        *int `json:"max_age,omitempty"`
	HitsToConfirm *int `json:"hits_to_confirm,omitempty"`
	CascadeDepth  *int `json:"cascade_depth,omitempty"` // defaults to max_age

	// Simulator params
	SimFrames           *int     `json:"sim_frames,omitempty"`
	SimObjects          *int     `json:"sim_objects,omitempty"`
	SimClutterRate      *float64 `json:"sim_clutter_rate,omitempty"`
	SimMissRate         *float64 `json:"sim_miss_rate,omitempty"`
	SimMeasurementNoise *float64 `json:"sim_measurement_noise,omitempty"`
	SimFeatureNoise     *float64 `json:"sim_feature_noise,omitempty"`
	SimFeatureDim       *int     `json:"sim_feature_dim,omitempty"`
	SimArenaWidth       *float64 `json:"sim_arena_width,omitempty"`
	SimArenaHeight      *float64 `json:"sim_arena_height,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

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
		"../" + DefaultConfigPath,    // from cmd/<binary>/
		"../../" + DefaultConfigPath, // from internal/<package>/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxCosineDistance != nil {
		if *c.MaxCosineDistance <= 0 || *c.MaxCosineDistance > 2 {
			return fmt.Errorf("max_cosine_distance must be in (0, 2], got %f", *c.MaxCosineDistance)
		}
	}
	if c.MaxIoUDistance != nil {
		if *c.MaxIoUDistance <= 0 || *c.MaxIoUDistance > 1 {
			return fmt.Errorf("max_iou_distance must be in (0, 1], got %f", *c.MaxIoUDistance)
		}
	}
	if c.NNBudget != nil && *c.NNBudget < 1 {
		return fmt.Errorf("nn_budget must be positive, got %d", *c.NNBudget)
	}
	if c.MaxAge != nil && *c.MaxAge < 1 {
		return fmt.Errorf("max_age must be at least 1, got %d", *c.MaxAge)
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be at least 1, got %d", *c.HitsToConfirm)
	}
	if c.CascadeDepth != nil && *c.CascadeDepth < 1 {
		return fmt.Errorf("cascade_depth must be at least 1, got %d", *c.CascadeDepth)
	}
	if c.SimFrames != nil && *c.SimFrames < 1 {
		return fmt.Errorf("sim_frames must be positive, got %d", *c.SimFrames)
	}
	if c.SimObjects != nil && *c.SimObjects < 0 {
		return fmt.Errorf("sim_objects must be non-negative, got %d", *c.SimObjects)
	}
	if c.SimClutterRate != nil && *c.SimClutterRate < 0 {
		return fmt.Errorf("sim_clutter_rate must be non-negative, got %f", *c.SimClutterRate)
	}
	if c.SimMissRate != nil {
		if *c.SimMissRate < 0 || *c.SimMissRate > 1 {
			return fmt.Errorf("sim_miss_rate must be between 0 and 1, got %f", *c.SimMissRate)
		}
	}
	if c.SimMeasurementNoise != nil && *c.SimMeasurementNoise < 0 {
		return fmt.Errorf("sim_measurement_noise must be non-negative, got %f", *c.SimMeasurementNoise)
	}
	if c.SimFeatureNoise != nil && *c.SimFeatureNoise < 0 {
		return fmt.Errorf("sim_feature_noise must be non-negative, got %f", *c.SimFeatureNoise)
	}
	if c.SimFeatureDim != nil && *c.SimFeatureDim < 1 {
		return fmt.Errorf("sim_feature_dim must be positive, got %d", *c.SimFeatureDim)
	}
	if c.SimArenaWidth != nil && *c.SimArenaWidth <= 0 {
		return fmt.Errorf("sim_arena_width must be positive, got %f", *c.SimArenaWidth)
	}
	if c.SimArenaHeight != nil && *c.SimArenaHeight <= 0 {
		return fmt.Errorf("sim_arena_height must be positive, got %f", *c.SimArenaHeight)
	}
	return nil
}

// GetMaxCosineDistance returns the max_cosine_distance value or the default.
func (c *TuningConfig) GetMaxCosineDistance() float64 {
	if c.MaxCosineDistance == nil {
		return 0.2
	}
	return *c.MaxCosineDistance
}

// GetMaxIoUDistance returns the max_iou_distance value or the default.
func (c *TuningConfig) GetMaxIoUDistance() float64 {
	if c.MaxIoUDistance == nil {
		return 0.7
	}
	return *c.MaxIoUDistance
}

// GetNNBudget returns the nn_budget value or the default.
func (c *TuningConfig) GetNNBudget() int {
	if c.NNBudget == nil {
		return 100
	}
	return *c.NNBudget
}

// GetGateOnlyPosition returns the gate_only_position value or the default.
func (c *TuningConfig) GetGateOnlyPosition() bool {
	if c.GateOnlyPosition == nil {
		return false
	}
	return *c.GateOnlyPosition
}

// GetMaxAge returns the max_age value or the default.
func (c *TuningConfig) GetMaxAge() int {
	if c.MaxAge == nil {
		return 30
	}
	return *c.MaxAge
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetCascadeDepth returns the cascade_depth value, falling back to
// max_age so every staleness level a live track can reach gets a
// matching round.
func (c *TuningConfig) GetCascadeDepth() int {
	if c.CascadeDepth == nil {
		return c.GetMaxAge()
	}
	return *c.CascadeDepth
}

// GetSimFrames returns the sim_frames value or the default.
func (c *TuningConfig) GetSimFrames() int {
	if c.SimFrames == nil {
		return 200
	}
	return *c.SimFrames
}

// GetSimObjects returns the sim_objects value or the default.
func (c *TuningConfig) GetSimObjects() int {
	if c.SimObjects == nil {
		return 6
	}
	return *c.SimObjects
}

// GetSimClutterRate returns the sim_clutter_rate value or the default.
func (c *TuningConfig) GetSimClutterRate() float64 {
	if c.SimClutterRate == nil {
		return 1.0
	}
	return *c.SimClutterRate
}

// GetSimMissRate returns the sim_miss_rate value or the default.
func (c *TuningConfig) GetSimMissRate() float64 {
	if c.SimMissRate == nil {
		return 0.1
	}
	return *c.SimMissRate
}

// GetSimMeasurementNoise returns the sim_measurement_noise value or the default.
func (c *TuningConfig) GetSimMeasurementNoise() float64 {
	if c.SimMeasurementNoise == nil {
		return 2.0
	}
	return *c.SimMeasurementNoise
}

// GetSimFeatureNoise returns the sim_feature_noise value or the default.
func (c *TuningConfig) GetSimFeatureNoise() float64 {
	if c.SimFeatureNoise == nil {
		return 0.05
	}
	return *c.SimFeatureNoise
}

// GetSimFeatureDim returns the sim_feature_dim value or the default.
func (c *TuningConfig) GetSimFeatureDim() int {
	if c.SimFeatureDim == nil {
		return 16
	}
	return *c.SimFeatureDim
}

// GetSimArenaWidth returns the sim_arena_width value or the default.
func (c *TuningConfig) GetSimArenaWidth() float64 {
	if c.SimArenaWidth == nil {
		return 1920
	}
	return *c.SimArenaWidth
}

// GetSimArenaHeight returns the sim_arena_height value or the default.
func (c *TuningConfig) GetSimArenaHeight() float64 {
	if c.SimArenaHeight == nil {
		return 1080
	}
	return *c.SimArenaHeight
}
