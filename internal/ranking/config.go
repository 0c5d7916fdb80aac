package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/provenhq/expertrank/internal/scoring"
)

// DefaultMaxAttributesPerType bounds how many attribute identifiers the
// extractor keeps per configured type.
const DefaultMaxAttributesPerType = 3

// Tuning holds the deploy-time tunable constants of the ranking pipeline.
type Tuning struct {
	Scoring              scoring.Params `json:"scoring"`
	MaxAttributesPerType int            `json:"max_attributes_per_type"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string `json:"version"` // Config version for future compatibility
	Tuning  Tuning `json:"tuning"`
}

// DefaultTuning returns the default tuning constants: exponent base 1.1,
// recency decay 0.25 over a 365-day window with no floor, and at most 3
// extracted attributes per type.
func DefaultTuning() *Tuning {
	return &Tuning{
		Scoring:              scoring.DefaultParams(),
		MaxAttributesPerType: DefaultMaxAttributesPerType,
	}
}

// LoadCalibration loads tuning constants from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation;
// on any error the defaults are returned alongside the error.
func LoadCalibration(filePath string) (*Tuning, error) {
	if filePath == "" {
		return DefaultTuning(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTuning(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTuning(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultTuning()
	merged := MergeCalibration(defaults, &config.Tuning)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override tuning with defaults. Only non-zero
// values from the override are applied, allowing partial calibration files.
// FloorRecency is boolean and applies as given.
func MergeCalibration(base *Tuning, override *Tuning) *Tuning {
	if base == nil {
		return DefaultTuning()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.Scoring.Base != 0 {
		result.Scoring.Base = override.Scoring.Base
	}
	if override.Scoring.RecencyDecay != 0 {
		result.Scoring.RecencyDecay = override.Scoring.RecencyDecay
	}
	if override.Scoring.RecencyWindowDays != 0 {
		result.Scoring.RecencyWindowDays = override.Scoring.RecencyWindowDays
	}
	result.Scoring.FloorRecency = override.Scoring.FloorRecency
	if override.MaxAttributesPerType != 0 {
		result.MaxAttributesPerType = override.MaxAttributesPerType
	}

	return &result
}

// logCalibrationOverrides logs which constants were overridden from defaults.
func logCalibrationOverrides(defaults *Tuning, loaded *Tuning) {
	var overrides []string

	if loaded.Scoring.Base != defaults.Scoring.Base {
		overrides = append(overrides, fmt.Sprintf("scoring.base: %.2f -> %.2f",
			defaults.Scoring.Base, loaded.Scoring.Base))
	}
	if loaded.Scoring.RecencyDecay != defaults.Scoring.RecencyDecay {
		overrides = append(overrides, fmt.Sprintf("scoring.recency_decay: %.2f -> %.2f",
			defaults.Scoring.RecencyDecay, loaded.Scoring.RecencyDecay))
	}
	if loaded.Scoring.RecencyWindowDays != defaults.Scoring.RecencyWindowDays {
		overrides = append(overrides, fmt.Sprintf("scoring.recency_window_days: %.0f -> %.0f",
			defaults.Scoring.RecencyWindowDays, loaded.Scoring.RecencyWindowDays))
	}
	if loaded.Scoring.FloorRecency != defaults.Scoring.FloorRecency {
		overrides = append(overrides, fmt.Sprintf("scoring.floor_recency: %t -> %t",
			defaults.Scoring.FloorRecency, loaded.Scoring.FloorRecency))
	}
	if loaded.MaxAttributesPerType != defaults.MaxAttributesPerType {
		overrides = append(overrides, fmt.Sprintf("max_attributes_per_type: %d -> %d",
			defaults.MaxAttributesPerType, loaded.MaxAttributesPerType))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
