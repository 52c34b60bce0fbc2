package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "max_cosine_distance": 0.35,
  "max_iou_distance": 0.5,
  "nn_budget": 40,
  "max_age": 12,
  "hits_to_confirm": 2,
  "sim_miss_rate": 0.25
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	if cfg.GetMaxCosineDistance() != 0.35 {
		t.Errorf("GetMaxCosineDistance() = %f, want 0.35", cfg.GetMaxCosineDistance())
	}
	if cfg.GetMaxIoUDistance() != 0.5 {
		t.Errorf("GetMaxIoUDistance() = %f, want 0.5", cfg.GetMaxIoUDistance())
	}
	if cfg.GetNNBudget() != 40 {
		t.Errorf("GetNNBudget() = %d, want 40", cfg.GetNNBudget())
	}
	if cfg.GetMaxAge() != 12 {
		t.Errorf("GetMaxAge() = %d, want 12", cfg.GetMaxAge())
	}
	if cfg.GetHitsToConfirm() != 2 {
		t.Errorf("GetHitsToConfirm() = %d, want 2", cfg.GetHitsToConfirm())
	}
	if cfg.GetSimMissRate() != 0.25 {
		t.Errorf("GetSimMissRate() = %f, want 0.25", cfg.GetSimMissRate())
	}

	// Fields omitted from the JSON fall back to defaults.
	if cfg.GateOnlyPosition != nil {
		t.Errorf("GateOnlyPosition should be nil for partial config, got %v", *cfg.GateOnlyPosition)
	}
	if cfg.GetGateOnlyPosition() != false {
		t.Errorf("GetGateOnlyPosition() = %v, want false", cfg.GetGateOnlyPosition())
	}
	if cfg.GetSimFrames() != 200 {
		t.Errorf("GetSimFrames() = %d, want default 200", cfg.GetSimFrames())
	}
}

func TestGetCascadeDepth_FallsBackToMaxAge(t *testing.T) {
	cfg := &TuningConfig{MaxAge: ptrInt(9)}
	if cfg.GetCascadeDepth() != 9 {
		t.Errorf("GetCascadeDepth() = %d, want max_age fallback 9", cfg.GetCascadeDepth())
	}

	cfg.CascadeDepth = ptrInt(4)
	if cfg.GetCascadeDepth() != 4 {
		t.Errorf("GetCascadeDepth() = %d, want explicit 4", cfg.GetCascadeDepth())
	}
}

func TestLoadTuningConfig_RejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("tuning.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json extension") {
		t.Errorf("expected extension error, got %v", err)
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadTuningConfig_BadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "parse config JSON") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr string
	}{
		{
			name: "valid",
			cfg: TuningConfig{
				MaxCosineDistance: ptrFloat64(0.2),
				MaxIoUDistance:    ptrFloat64(0.7),
				NNBudget:          ptrInt(100),
				MaxAge:            ptrInt(30),
			},
		},
		{
			name:    "cosine distance too large",
			cfg:     TuningConfig{MaxCosineDistance: ptrFloat64(2.5)},
			wantErr: "max_cosine_distance",
		},
		{
			name:    "iou distance zero",
			cfg:     TuningConfig{MaxIoUDistance: ptrFloat64(0)},
			wantErr: "max_iou_distance",
		},
		{
			name:    "negative budget",
			cfg:     TuningConfig{NNBudget: ptrInt(-1)},
			wantErr: "nn_budget",
		},
		{
			name:    "zero max age",
			cfg:     TuningConfig{MaxAge: ptrInt(0)},
			wantErr: "max_age",
		},
		{
			name:    "zero cascade depth",
			cfg:     TuningConfig{CascadeDepth: ptrInt(0)},
			wantErr: "cascade_depth",
		},
		{
			name:    "miss rate above one",
			cfg:     TuningConfig{SimMissRate: ptrFloat64(1.5)},
			wantErr: "sim_miss_rate",
		},
		{
			name:    "negative measurement noise",
			cfg:     TuningConfig{SimMeasurementNoise: ptrFloat64(-0.1)},
			wantErr: "sim_measurement_noise",
		},
		{
			name:    "zero arena width",
			cfg:     TuningConfig{SimArenaWidth: ptrFloat64(0)},
			wantErr: "sim_arena_width",
		},
		{
			name: "gate only position is unconstrained",
			cfg:  TuningConfig{GateOnlyPosition: ptrBool(true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	// Runs against the repo's canonical defaults file.
	cfg := MustLoadDefaultConfig()

	if cfg.GetMaxCosineDistance() != 0.2 {
		t.Errorf("GetMaxCosineDistance() = %f, want 0.2", cfg.GetMaxCosineDistance())
	}
	if cfg.GetMaxAge() != 30 {
		t.Errorf("GetMaxAge() = %d, want 30", cfg.GetMaxAge())
	}
	if cfg.GetCascadeDepth() != 30 {
		t.Errorf("GetCascadeDepth() = %d, want 30", cfg.GetCascadeDepth())
	}
	if cfg.GetHitsToConfirm() != 3 {
		t.Errorf("GetHitsToConfirm() = %d, want 3", cfg.GetHitsToConfirm())
	}
}
