package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/freedive-data/apnea.report/internal/testutil"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()

	// Spot-check the documented defaults the classifiers depend on.
	if got := c.GetSmoothingWindow(); got != 3 {
		t.Errorf("smoothing window = %d, want 3", got)
	}
	testutil.AssertInDelta(t, "fim cv threshold", c.GetFIMCVThreshold(), 0.25, 1e-12)
	testutil.AssertInDelta(t, "cnf cv threshold", c.GetCNFCVThreshold(), 0.20, 1e-12)
	testutil.AssertInDelta(t, "cwt speed threshold", c.GetCWTSpeedThreshold(), 0.6, 1e-12)
	testutil.AssertInDelta(t, "min score", c.GetMinScore(), 40, 1e-12)
	testutil.AssertInDelta(t, "bottom depth ratio", c.GetBottomDepthRatio(), 0.8, 1e-12)
	if got := c.GetCalibrationTarget(); got != 20 {
		t.Errorf("calibration target = %d, want 20", got)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{"smoothing_window": 5, "cwt_speed_threshold": 0.8}`)

	c, err := Load(path)
	testutil.AssertNoError(t, err)

	if got := c.GetSmoothingWindow(); got != 5 {
		t.Errorf("smoothing window = %d, want 5", got)
	}
	testutil.AssertInDelta(t, "cwt speed threshold", c.GetCWTSpeedThreshold(), 0.8, 1e-12)
	// everything else stays at defaults
	testutil.AssertInDelta(t, "fim cv threshold", c.GetFIMCVThreshold(), 0.25, 1e-12)
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		contents string
	}{
		{"not json extension", "tuning.yaml", `{}`},
		{"malformed json", "tuning.json", `{"smoothing_window": `},
		{"invalid smoothing window", "tuning.json", `{"smoothing_window": 0}`},
		{"bottom ratio above one", "tuning.json", `{"bottom_depth_ratio": 1.5}`},
		{"negative noise floor", "tuning.json", `{"velocity_noise_floor": -0.1}`},
		{"min score out of range", "tuning.json", `{"min_score": 150}`},
		{"zero calibration target", "tuning.json", `{"calibration_target": 0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.filename, tc.contents)
			_, err := Load(path)
			testutil.AssertError(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	testutil.AssertError(t, err)
}
