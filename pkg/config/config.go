// Package config loads service configuration from defaults, an optional
// config file and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the api, ml-worker and pricectl binaries.
type Config struct {
	Port        string `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`

	ArtifactDir string `mapstructure:"artifact_dir"`
	SchemaFile  string `mapstructure:"schema_file"`
	ScalerFile  string `mapstructure:"scaler_file"`
	ModelFile   string `mapstructure:"model_file"`

	MLWorkerURL     string        `mapstructure:"ml_worker_url"`
	MLWorkerTimeout time.Duration `mapstructure:"ml_worker_timeout"`
	WorkerPort      string        `mapstructure:"worker_port"`

	NATSURL           string `mapstructure:"nats_url"`
	PredictionSubject string `mapstructure:"prediction_subject"`

	CORSOrigin     string  `mapstructure:"cors_origin"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	DisplayLocale string `mapstructure:"display_locale"`
}

var defaults = map[string]any{
	"port":               "8080",
	"service_name":       "homeprice",
	"artifact_dir":       "./artifacts",
	"schema_file":        "",
	"scaler_file":        "",
	"model_file":         "",
	"ml_worker_url":      "",
	"ml_worker_timeout":  2 * time.Second,
	"worker_port":        "50051",
	"nats_url":           "",
	"prediction_subject": "homeprice.predictions",
	"cors_origin":        "",
	"rate_limit_rps":     0.0,
	"rate_limit_burst":   20,
	"log_level":          "info",
	"log_format":         "json",
	"display_locale":     "en-IN",
}

// Load reads configuration. path may be empty, in which case CONFIG_FILE is
// consulted; a missing path means defaults and environment only.
// Environment variables use the upper-cased key (PORT, ML_WORKER_URL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every binary relies on.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ArtifactDir == "" && (c.SchemaFile == "" || c.ScalerFile == "" || c.ModelFile == "") {
		return fmt.Errorf("artifact_dir or all of schema_file, scaler_file, model_file are required")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must be >= 0")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if c.MLWorkerURL != "" && c.MLWorkerTimeout <= 0 {
		return fmt.Errorf("ml_worker_timeout must be > 0")
	}
	switch c.LogFormat {
	case "json", "text", "auto":
	default:
		return fmt.Errorf("log_format must be json, text or auto, got %q", c.LogFormat)
	}
	return nil
}

// ArtifactFiles resolves the schema, scaler and model paths. Explicit file
// settings win over the artifact directory.
func (c *Config) ArtifactFiles() (schema, scaler, model string) {
	pick := func(explicit, name string) string {
		if explicit != "" {
			return explicit
		}
		return filepath.Join(c.ArtifactDir, name)
	}
	return pick(c.SchemaFile, "feature_names.json"),
		pick(c.ScalerFile, "scaler.json"),
		pick(c.ModelFile, "model.json")
}

// RemoteInference reports whether scaling and prediction go to the ml-worker.
func (c *Config) RemoteInference() bool { return c.MLWorkerURL != "" }
