package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "covdocs.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	path := writeConfig(t, `
coverity:
  hostname: cov.example.com
  username: reporter
  password: secret
  stream: firmware-main
traceability:
  relink:
    REQ-OLD_1: REQ-NEW_1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.Coverity.Transport != "https" {
		t.Errorf("transport = %q, want https default", cfg.Coverity.Transport)
	}
	if cfg.Coverity.Snapshot != "" {
		t.Errorf("snapshot = %q, want empty (latest)", cfg.Coverity.Snapshot)
	}
	if cfg.Traceability.ItemIDPattern != DefaultItemIDPattern {
		t.Errorf("pattern = %q, want default", cfg.Traceability.ItemIDPattern)
	}
	if cfg.Traceability.Relink["REQ-OLD_1"] != "REQ-NEW_1" {
		t.Errorf("relink table not loaded: %v", cfg.Traceability.Relink)
	}
	if cfg.Docs.SourceDir != "docs" || cfg.Docs.OutputDir != "build" {
		t.Errorf("docs defaults = %+v", cfg.Docs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// defaults only; credentials missing, so validation must fail
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure without credentials")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COVERITY_PASSWORD", "from-env")
	t.Setenv("COVERITY_PORT", "8443")

	cfg := validConfig(t)
	if cfg.Coverity.Password != "from-env" {
		t.Errorf("password = %q, want env override", cfg.Coverity.Password)
	}
	if cfg.Coverity.Port != 8443 {
		t.Errorf("port = %d, want 8443", cfg.Coverity.Port)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing hostname", mutate: func(c *Config) { c.Coverity.Hostname = "" }},
		{name: "missing username", mutate: func(c *Config) { c.Coverity.Username = "" }},
		{name: "missing password", mutate: func(c *Config) { c.Coverity.Password = "" }},
		{name: "missing stream", mutate: func(c *Config) { c.Coverity.Stream = "" }},
		{name: "bad transport", mutate: func(c *Config) { c.Coverity.Transport = "ftp" }},
		{name: "bad pattern", mutate: func(c *Config) { c.Traceability.ItemIDPattern = "(" }},
		{name: "missing source dir", mutate: func(c *Config) { c.Docs.SourceDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestItemPattern(t *testing.T) {
	cfg := validConfig(t)
	re := cfg.ItemPattern()
	if re == nil {
		t.Fatal("expected compiled pattern")
	}
	if !re.MatchString("REQ-ABC_12") {
		t.Error("default pattern must match REQ-ABC_12")
	}

	cfg.Traceability.ItemIDPattern = ""
	if cfg.ItemPattern() != nil {
		t.Error("empty pattern must disable cross-referencing")
	}
}
