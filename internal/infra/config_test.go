package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("LETZAI_WATERMARK", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.LetzAIWidth != 1024 || cfg.LetzAIHeight != 1024 || cfg.LetzAISystemVersion != 3 {
		t.Fatalf("generation defaults mismatch: %+v", cfg)
	}
	if !cfg.LetzAIWatermark {
		t.Fatalf("watermark should default to true")
	}
	if cfg.AnalysisTimeout != time.Minute {
		t.Fatalf("AnalysisTimeout mismatch: got %s", cfg.AnalysisTimeout)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Fatalf("CORSOrigins should be empty: %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "8")
	t.Setenv("LETZAI_WATERMARK", "false")
	t.Setenv("CORS_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("SESSION_IDLE_MINUTES", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 8*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.LetzAIWatermark {
		t.Fatalf("watermark override ignored")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
	if cfg.SessionIdleTTL != 5*time.Minute {
		t.Fatalf("SessionIdleTTL mismatch: got %s", cfg.SessionIdleTTL)
	}
}

func TestLoadConfigRejectsPollIntervalOutOfRange(t *testing.T) {
	for _, v := range []string{"1", "11"} {
		t.Setenv("POLL_INTERVAL_SECONDS", v)
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("expected error for POLL_INTERVAL_SECONDS=%s", v)
		}
	}
}

func TestLoadConfigRejectsSilenceAboveCeiling(t *testing.T) {
	t.Setenv("ANALYSIS_TIMEOUT_SECONDS", "10")
	t.Setenv("ANALYSIS_SILENCE_SECONDS", "30")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when silence window exceeds ceiling")
	}
}
