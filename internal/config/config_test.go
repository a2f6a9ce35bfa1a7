package config

import (
	"os"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			"missing port",
			func(c *Config) { c.HTTP.Port = 0 },
			"http.port",
		},
		{
			"port out of range",
			func(c *Config) { c.HTTP.Port = 70000 },
			"http.port",
		},
		{
			"missing addrs",
			func(c *Config) { c.Database.Addrs = nil },
			"database.addrs",
		},
		{
			"threshold out of range",
			func(c *Config) { c.Retrieval.BaseThreshold = 1.5 },
			"base_threshold",
		},
		{
			"floor above base",
			func(c *Config) { c.Retrieval.ThresholdFloor = 0.9 },
			"threshold_floor",
		},
		{
			"guard out of range",
			func(c *Config) { c.Retrieval.OverFilterGuard = 1.5 },
			"over_filter_guard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	r := cfg.Retrieval
	if r.MaxChunks != 5 || r.CandidateMultiple != 4 || r.ContextTokenBudget != 3000 {
		t.Errorf("sizing defaults wrong: %+v", r)
	}
	if r.SemanticWeight != 0.4 || r.KeywordWeight != 0.5 || r.FulltextWeight != 0.6 {
		t.Errorf("fusion weight defaults wrong: %+v", r)
	}
	if r.BaseThreshold != 0.5 || r.ThresholdFloor != 0.2 || r.RelaxationStep != 0.05 {
		t.Errorf("threshold defaults wrong: %+v", r)
	}
	if r.MaxSemanticAttempts != 3 || r.MinKeepMultiple != 2 {
		t.Errorf("retry defaults wrong: %+v", r)
	}
	if r.CutlineFloor != 0.35 || r.ScopedCutlineFloor != 0.2 || r.OverFilterGuard != 0.7 {
		t.Errorf("cutline defaults wrong: %+v", r)
	}
	if len(r.Languages) != 2 {
		t.Errorf("language defaults wrong: %v", r.Languages)
	}
	if cfg.Storage.VectorDim != 1024 || cfg.Storage.HNSWM != 32 {
		t.Errorf("storage defaults wrong: %+v", cfg.Storage)
	}
	// An explicit value survives a second ApplyDefaults pass.
	cfg.Retrieval.MaxChunks = 9
	cfg.ApplyDefaults()
	if cfg.Retrieval.MaxChunks != 9 {
		t.Error("explicit value overridden by defaults")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("CONTEXTA_TEST_ADDR", "redis-test:6379")
	defer os.Unsetenv("CONTEXTA_TEST_ADDR")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "addr: ${CONTEXTA_TEST_ADDR}", "addr: redis-test:6379"},
		{"unset variable", "addr: ${CONTEXTA_TEST_UNSET}", "addr: "},
		{"default used", "addr: ${CONTEXTA_TEST_UNSET:-localhost:6379}", "addr: localhost:6379"},
		{"default ignored when set", "addr: ${CONTEXTA_TEST_ADDR:-other}", "addr: redis-test:6379"},
		{"no variables", "addr: plain", "addr: plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does-not-exist")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
