package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/daimoniac/covdocs/internal/errors"
)

// DefaultItemIDPattern matches traceability item identifiers in defect text
const DefaultItemIDPattern = `([A-Z_]+-[A-Z0-9_]+)`

// Config represents the complete application configuration. It is
// constructed once at build start and passed by reference; there is no
// ambient global configuration state.
type Config struct {
	Coverity      CoverityConfig      `yaml:"coverity"`
	Traceability  TraceabilityConfig  `yaml:"traceability"`
	Docs          DocsConfig          `yaml:"docs"`
	Gate          GateConfig          `yaml:"gate"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CoverityConfig holds the defect server credentials consumed once per build
type CoverityConfig struct {
	Hostname  string `yaml:"hostname"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Stream    string `yaml:"stream"`
	// Snapshot is optional; empty means the most recent snapshot
	Snapshot string `yaml:"snapshot"`
}

// TraceabilityConfig configures cross-reference injection in free-text
// columns: the identifier pattern and the relink table mapping identifiers
// as they appear in defect text to corrected identifiers.
type TraceabilityConfig struct {
	ItemIDPattern string            `yaml:"item_id_pattern"`
	Relink        map[string]string `yaml:"relink"`
}

// DocsConfig configures the document build directories
type DocsConfig struct {
	SourceDir string `yaml:"source_dir"`
	OutputDir string `yaml:"output_dir"`
	ImageDir  string `yaml:"image_dir"`
}

// GateConfig configures the optional CEL defect gate evaluated once per
// build over the aggregate defect counts
type GateConfig struct {
	Expression     string `yaml:"expression"`
	FailureMessage string `yaml:"failure_message"`
}

// ExportConfig configures the sqlite defect export
type ExportConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Load loads configuration from the YAML file at path (default covdocs.yml,
// overridable via COVDOCS_CONFIG) with environment variable overrides for
// credentials and observability.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("COVDOCS_CONFIG", "covdocs.yml")
	}

	cfg := &Config{
		Coverity: CoverityConfig{
			Transport: "https",
		},
		Traceability: TraceabilityConfig{
			ItemIDPattern: DefaultItemIDPattern,
		},
		Docs: DocsConfig{
			SourceDir: "docs",
			OutputDir: "build",
			ImageDir:  "_images",
		},
		Export: ExportConfig{
			SQLitePath: "covdocs.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigf("parsing %s: %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.NewConfigf("reading %s: %v", path, err)
	}

	// Environment overrides, credentials in particular, so passwords can
	// stay out of the checked-in configuration file.
	cfg.Coverity.Hostname = getEnv("COVERITY_HOSTNAME", cfg.Coverity.Hostname)
	cfg.Coverity.Username = getEnv("COVERITY_USERNAME", cfg.Coverity.Username)
	cfg.Coverity.Password = getEnv("COVERITY_PASSWORD", cfg.Coverity.Password)
	cfg.Coverity.Stream = getEnv("COVERITY_STREAM", cfg.Coverity.Stream)
	cfg.Coverity.Snapshot = getEnv("COVERITY_SNAPSHOT", cfg.Coverity.Snapshot)
	cfg.Coverity.Transport = getEnv("COVERITY_TRANSPORT", cfg.Coverity.Transport)
	cfg.Coverity.Port = getEnvInt("COVERITY_PORT", cfg.Coverity.Port)
	cfg.Observability.LogLevel = getEnv("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = getEnv("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.MetricsPort = getEnvInt("METRICS_PORT", cfg.Observability.MetricsPort)

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"hostname": c.Coverity.Hostname,
		"username": c.Coverity.Username,
		"password": c.Coverity.Password,
		"stream":   c.Coverity.Stream,
	} {
		if value == "" {
			return errors.NewConfigf("coverity %s is required", name)
		}
	}

	if c.Coverity.Transport != "http" && c.Coverity.Transport != "https" {
		return errors.NewConfigf("invalid transport %q (must be http or https)", c.Coverity.Transport)
	}

	if c.Traceability.ItemIDPattern != "" {
		if _, err := regexp.Compile(c.Traceability.ItemIDPattern); err != nil {
			return errors.NewConfigf("invalid item_id_pattern: %v", err)
		}
	}

	if c.Docs.SourceDir == "" {
		return errors.NewConfigf("docs source_dir is required")
	}
	if c.Docs.OutputDir == "" {
		return errors.NewConfigf("docs output_dir is required")
	}

	return nil
}

// ItemPattern compiles the traceability identifier pattern. An empty
// pattern disables cross-reference injection and yields nil.
func (c *Config) ItemPattern() *regexp.Regexp {
	if c.Traceability.ItemIDPattern == "" {
		return nil
	}
	re, err := regexp.Compile(c.Traceability.ItemIDPattern)
	if err != nil {
		return nil
	}
	return re
}
