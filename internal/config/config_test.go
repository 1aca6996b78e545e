package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ANALYSIS_TIMEOUT", "")
	t.Setenv("EXTRACTION_EVENTS_SUBJECT", "")
	t.Setenv("MAX_REQUEST_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnalysisTimeout != 2*time.Minute {
		t.Fatalf("expected default analysis timeout 2m, got %s", cfg.AnalysisTimeout)
	}
	if cfg.CopyIndicator != 2*time.Second {
		t.Fatalf("expected default copy indicator 2s, got %s", cfg.CopyIndicator)
	}
	if cfg.NATSSubject != "extractions.finished" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
	if cfg.MaxRequestBytes != 12*1024*1024 {
		t.Fatalf("expected 12MiB request limit, got %d", cfg.MaxRequestBytes)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ANALYSIS_TIMEOUT", "45s")
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "3")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("MAX_REQUEST_SIZE", "20MB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnalysisTimeout != 45*time.Second {
		t.Fatalf("expected analysis timeout override, got %s", cfg.AnalysisTimeout)
	}
	if cfg.MaxConcurrentExtractions != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.MaxConcurrentExtractions)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.EventsEnabled {
		t.Fatalf("expected events disabled")
	}
	if cfg.MaxRequestBytes != 20*1024*1024 {
		t.Fatalf("expected 20MiB request limit, got %d", cfg.MaxRequestBytes)
	}
}

func TestLoadIgnoresUnparseableEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected fallback ttl, got %s", cfg.SessionTTL)
	}
	if cfg.MaxConcurrentExtractions != 8 {
		t.Fatalf("expected fallback concurrency, got %d", cfg.MaxConcurrentExtractions)
	}
}

func TestLoadAppliesFileBeforeEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docverify.yaml")
	content := "agent_base_url: https://agents.internal\nagent_id: intake\ncopy_indicator: 3s\napi_port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "9100")
	t.Setenv("AGENT_BASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AgentBaseURL != "https://agents.internal" || cfg.AgentID != "intake" {
		t.Fatalf("expected file values, got %q / %q", cfg.AgentBaseURL, cfg.AgentID)
	}
	if cfg.CopyIndicator != 3*time.Second {
		t.Fatalf("expected copy indicator from file, got %s", cfg.CopyIndicator)
	}
	if cfg.APIPort != "9100" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIPort)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("agent_id: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config file")
	}
}

func TestValidateAgent(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AGENT_BASE_URL", "")
	t.Setenv("AGENT_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ValidateAgent(); err == nil {
		t.Fatalf("expected defaults without AGENT_ID to be rejected")
	}

	t.Setenv("AGENT_ID", "passport-checker")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ValidateAgent(); err != nil {
		t.Fatalf("expected agent config to pass, got %v", err)
	}

	cfg.AgentBaseURL = " "
	if err := cfg.ValidateAgent(); err == nil {
		t.Fatalf("expected blank base url to be rejected")
	}
}
