// Package config holds the tuning parameters of the analysis pipeline.
//
// Every threshold in the velocity, phase, and classification code is an
// empirically chosen constant. They are pinned here as named parameters with
// documented defaults rather than re-derived; tests assert the defaults as
// documented behavior.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Tuning is the root configuration for analysis parameters. Fields are
// pointers so a partial JSON file only overrides what it names; the Get*
// methods supply defaults for everything else.
type Tuning struct {
	// Velocity profiling
	SmoothingWindow    *int     `json:"smoothing_window,omitempty"`
	VelocityNoiseFloor *float64 `json:"velocity_noise_floor,omitempty"` // m/s, CV computation
	PeakThreshold      *float64 `json:"peak_threshold,omitempty"`       // m/s, propulsion pulse detection

	// Phase segmentation
	BottomDepthRatio   *float64 `json:"bottom_depth_ratio,omitempty"` // fraction of max depth
	PhaseVelocityFloor *float64 `json:"phase_velocity_floor,omitempty"`

	// Discipline classification
	FIMCVThreshold    *float64 `json:"fim_cv_threshold,omitempty"`
	CNFCVThreshold    *float64 `json:"cnf_cv_threshold,omitempty"`
	CWTSpeedThreshold *float64 `json:"cwt_speed_threshold,omitempty"` // m/s
	CNFSpeedThreshold *float64 `json:"cnf_speed_threshold,omitempty"` // m/s
	ExplosiveRate     *float64 `json:"explosive_rate,omitempty"`      // m/s, fin-kick spikes
	RhythmMinInterval *float64 `json:"rhythm_min_interval,omitempty"` // seconds between pulls
	RhythmMaxInterval *float64 `json:"rhythm_max_interval,omitempty"`
	RhythmMaxStdev    *float64 `json:"rhythm_max_stdev,omitempty"`

	// Lung-volume classification
	FRCHRDiff           *float64 `json:"frc_hr_diff,omitempty"`    // bpm below session average
	ExhaleHRDiff        *float64 `json:"exhale_hr_diff,omitempty"` // bpm below session average
	FullHRDiff          *float64 `json:"full_hr_diff,omitempty"`   // bpm above session average
	StableHRRange       *float64 `json:"stable_hr_range,omitempty"`
	VariableHRRange     *float64 `json:"variable_hr_range,omitempty"`
	BuoyancyAccel       *float64 `json:"buoyancy_accel,omitempty"` // m/s between depth bands
	NeutralAccel        *float64 `json:"neutral_accel,omitempty"`
	FastInitialVelocity *float64 `json:"fast_initial_velocity,omitempty"` // m/s in the 0-2m band
	BottomHRRatio       *float64 `json:"bottom_hr_ratio,omitempty"`       // fraction of session average
	ReflexHRRatio       *float64 `json:"reflex_hr_ratio,omitempty"`

	// Shared classifier behavior
	MinScore           *float64 `json:"min_score,omitempty"` // floor below which label is unknown
	BaselineRateMargin *float64 `json:"baseline_rate_margin,omitempty"`
	BaselineHRMargin   *float64 `json:"baseline_hr_margin,omitempty"`
	CalibrationTarget  *int     `json:"calibration_target,omitempty"`
}

// Default returns a Tuning with every field unset, so all getters fall back
// to the documented defaults.
func Default() *Tuning {
	return &Tuning{}
}

// Load reads a Tuning from a JSON file. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func Load(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Tuning) Validate() error {
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be >= 1, got %d", *c.SmoothingWindow)
	}
	if c.BottomDepthRatio != nil {
		if *c.BottomDepthRatio <= 0 || *c.BottomDepthRatio > 1 {
			return fmt.Errorf("bottom_depth_ratio must be in (0, 1], got %f", *c.BottomDepthRatio)
		}
	}
	if c.VelocityNoiseFloor != nil && *c.VelocityNoiseFloor < 0 {
		return fmt.Errorf("velocity_noise_floor must be non-negative, got %f", *c.VelocityNoiseFloor)
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 100) {
		return fmt.Errorf("min_score must be in [0, 100], got %f", *c.MinScore)
	}
	if c.CalibrationTarget != nil && *c.CalibrationTarget < 1 {
		return fmt.Errorf("calibration_target must be >= 1, got %d", *c.CalibrationTarget)
	}
	return nil
}

// GetSmoothingWindow returns the moving-average window size.
func (c *Tuning) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 3
	}
	return *c.SmoothingWindow
}

// GetVelocityNoiseFloor returns the |v| floor for CV computation.
func (c *Tuning) GetVelocityNoiseFloor() float64 {
	if c.VelocityNoiseFloor == nil {
		return 0.05
	}
	return *c.VelocityNoiseFloor
}

// GetPeakThreshold returns the |v| floor for propulsion peak detection.
func (c *Tuning) GetPeakThreshold() float64 {
	if c.PeakThreshold == nil {
		return 0.1
	}
	return *c.PeakThreshold
}

// GetBottomDepthRatio returns the bottom-phase depth threshold as a fraction
// of max depth.
func (c *Tuning) GetBottomDepthRatio() float64 {
	if c.BottomDepthRatio == nil {
		return 0.8
	}
	return *c.BottomDepthRatio
}

// GetPhaseVelocityFloor returns the |v| floor for per-phase velocity stats.
func (c *Tuning) GetPhaseVelocityFloor() float64 {
	if c.PhaseVelocityFloor == nil {
		return 0.01
	}
	return *c.PhaseVelocityFloor
}

// GetFIMCVThreshold returns the velocity CV above which variation reads as
// rope pulls.
func (c *Tuning) GetFIMCVThreshold() float64 {
	if c.FIMCVThreshold == nil {
		return 0.25
	}
	return *c.FIMCVThreshold
}

// GetCNFCVThreshold returns the velocity CV below which a descent reads as
// smooth no-fins technique.
func (c *Tuning) GetCNFCVThreshold() float64 {
	if c.CNFCVThreshold == nil {
		return 0.20
	}
	return *c.CNFCVThreshold
}

// GetCWTSpeedThreshold returns the descent rate above which speed reads as
// fin propulsion.
func (c *Tuning) GetCWTSpeedThreshold() float64 {
	if c.CWTSpeedThreshold == nil {
		return 0.6
	}
	return *c.CWTSpeedThreshold
}

// GetCNFSpeedThreshold returns the descent rate below which speed reads as
// no-fins.
func (c *Tuning) GetCNFSpeedThreshold() float64 {
	if c.CNFSpeedThreshold == nil {
		return 0.4
	}
	return *c.CNFSpeedThreshold
}

// GetExplosiveRate returns the max descent rate above which spikes read as
// fin kicks.
func (c *Tuning) GetExplosiveRate() float64 {
	if c.ExplosiveRate == nil {
		return 1.0
	}
	return *c.ExplosiveRate
}

// GetRhythmMinInterval returns the minimum mean pull interval in seconds.
func (c *Tuning) GetRhythmMinInterval() float64 {
	if c.RhythmMinInterval == nil {
		return 2.0
	}
	return *c.RhythmMinInterval
}

// GetRhythmMaxInterval returns the maximum mean pull interval in seconds.
func (c *Tuning) GetRhythmMaxInterval() float64 {
	if c.RhythmMaxInterval == nil {
		return 4.5
	}
	return *c.RhythmMaxInterval
}

// GetRhythmMaxStdev returns the maximum pull-interval stdev in seconds.
func (c *Tuning) GetRhythmMaxStdev() float64 {
	if c.RhythmMaxStdev == nil {
		return 2.0
	}
	return *c.RhythmMaxStdev
}

// GetFRCHRDiff returns the HR offset from session average below which a dive
// reads as FRC.
func (c *Tuning) GetFRCHRDiff() float64 {
	if c.FRCHRDiff == nil {
		return -8
	}
	return *c.FRCHRDiff
}

// GetExhaleHRDiff returns the HR offset below which a dive reads as exhale.
func (c *Tuning) GetExhaleHRDiff() float64 {
	if c.ExhaleHRDiff == nil {
		return -18
	}
	return *c.ExhaleHRDiff
}

// GetFullHRDiff returns the HR offset above which a dive reads as full lung.
func (c *Tuning) GetFullHRDiff() float64 {
	if c.FullHRDiff == nil {
		return 5
	}
	return *c.FullHRDiff
}

// GetStableHRRange returns the HR span below which a dive reads as flat HR.
func (c *Tuning) GetStableHRRange() float64 {
	if c.StableHRRange == nil {
		return 10
	}
	return *c.StableHRRange
}

// GetVariableHRRange returns the HR span above which a dive reads as
// variable HR.
func (c *Tuning) GetVariableHRRange() float64 {
	if c.VariableHRRange == nil {
		return 20
	}
	return *c.VariableHRRange
}

// GetBuoyancyAccel returns the band-to-band speed gain above which the dive
// shows a buoyancy struggle.
func (c *Tuning) GetBuoyancyAccel() float64 {
	if c.BuoyancyAccel == nil {
		return 0.1
	}
	return *c.BuoyancyAccel
}

// GetNeutralAccel returns the speed gain below which the start reads as
// neutral buoyancy.
func (c *Tuning) GetNeutralAccel() float64 {
	if c.NeutralAccel == nil {
		return 0.05
	}
	return *c.NeutralAccel
}

// GetFastInitialVelocity returns the 0-2m descent speed above which the
// start reads as negatively buoyant.
func (c *Tuning) GetFastInitialVelocity() float64 {
	if c.FastInitialVelocity == nil {
		return 0.3
	}
	return *c.FastInitialVelocity
}

// GetBottomHRRatio returns the bottom-phase HR fraction of session average
// below which the dive reflex reads as engaged.
func (c *Tuning) GetBottomHRRatio() float64 {
	if c.BottomHRRatio == nil {
		return 0.85
	}
	return *c.BottomHRRatio
}

// GetReflexHRRatio returns the bottom min-HR fraction of session average
// below which bradycardia reads as strong.
func (c *Tuning) GetReflexHRRatio() float64 {
	if c.ReflexHRRatio == nil {
		return 0.75
	}
	return *c.ReflexHRRatio
}

// GetMinScore returns the score floor below which a classification is
// reported as unknown.
func (c *Tuning) GetMinScore() float64 {
	if c.MinScore == nil {
		return 40
	}
	return *c.MinScore
}

// GetBaselineRateMargin returns the relative margin for matching a dive's
// descent rate against a user's historical per-discipline mean.
func (c *Tuning) GetBaselineRateMargin() float64 {
	if c.BaselineRateMargin == nil {
		return 0.2
	}
	return *c.BaselineRateMargin
}

// GetBaselineHRMargin returns the relative margin for matching a dive's HR
// against a user's historical per-lung-volume mean.
func (c *Tuning) GetBaselineHRMargin() float64 {
	if c.BaselineHRMargin == nil {
		return 0.1
	}
	return *c.BaselineHRMargin
}

// GetCalibrationTarget returns the labeled-dive count at which calibration
// is considered complete.
func (c *Tuning) GetCalibrationTarget() int {
	if c.CalibrationTarget == nil {
		return 20
	}
	return *c.CalibrationTarget
}
