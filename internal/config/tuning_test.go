package config

import (
	"testing"
	"time"

	"github.com/sojez1/flightstate/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	return testutil.WriteTempFile(t, "tuning.json", content)
}

func TestDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	if got := cfg.GetPredictRateHz(); got != 100 {
		t.Errorf("GetPredictRateHz() = %d, want 100", got)
	}
	if got := cfg.GetTdoaStdDev(); got != 0.30 {
		t.Errorf("GetTdoaStdDev() = %v, want 0.30", got)
	}
	if got := cfg.GetSweepStdDev(); got != 0.001 {
		t.Errorf("GetSweepStdDev() = %v, want 0.001", got)
	}
	if got := cfg.GetYawErrorStdDev(); got != 0.01 {
		t.Errorf("GetYawErrorStdDev() = %v, want 0.01", got)
	}
	if got := cfg.GetGravityMagnitude(); got != 9.81 {
		t.Errorf("GetGravityMagnitude() = %v, want 9.81", got)
	}
	if got := cfg.GetLookupFailurePolicy(); got != LookupPolicySkip {
		t.Errorf("GetLookupFailurePolicy() = %q, want %q", got, LookupPolicySkip)
	}
	if !cfg.GetAssumeFlying() {
		t.Error("GetAssumeFlying() = false, want true")
	}
	if got := cfg.GetFlushInterval(); got != 5*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 5s", got)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"predict_rate_hz": 50, "lookup_failure_policy": "abort"}`)
	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}
	if got := cfg.GetPredictRateHz(); got != 50 {
		t.Errorf("GetPredictRateHz() = %d, want 50", got)
	}
	if got := cfg.GetLookupFailurePolicy(); got != LookupPolicyAbort {
		t.Errorf("GetLookupFailurePolicy() = %q, want abort", got)
	}
	// Untouched fields keep defaults.
	if got := cfg.GetTdoaStdDev(); got != 0.30 {
		t.Errorf("GetTdoaStdDev() = %v, want default 0.30", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		json string
	}{
		{"zero predict rate", `{"predict_rate_hz": 0}`},
		{"non-divisor predict rate", `{"predict_rate_hz": 300}`},
		{"negative tdoa noise", `{"tdoa_std_dev": -0.3}`},
		{"unknown policy", `{"lookup_failure_policy": "requeue"}`},
		{"bad flush interval", `{"flush_interval": "fast"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tc.json)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Fatalf("LoadTuningConfig accepted %s", tc.json)
			}
		})
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := testutil.WriteTempFile(t, "tuning.yaml", "{}")
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("LoadTuningConfig accepted a .yaml path")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if got := cfg.GetPredictRateHz(); got != 100 {
		t.Errorf("defaults file predict_rate_hz = %d, want 100", got)
	}
}
