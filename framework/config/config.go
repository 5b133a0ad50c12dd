package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the central typed configuration struct.
//
// Values are layered: Defaults(), then an optional YAML file, then the
// process environment (after .env files are loaded into it).
type Config struct {
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Admin     AdminConfig     `yaml:"admin"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"` // local | production | testing
	Debug bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	Output string `yaml:"output"` // stdout | stderr | file path
}

// LifecycleConfig bounds each component call. Zero means no limit,
// except for Rollback which always has one.
type LifecycleConfig struct {
	StartTimeout    time.Duration `yaml:"start_timeout"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
	RollbackTimeout time.Duration `yaml:"rollback_timeout"`
}

type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:  "GoComponent",
			Env:   "local",
			Debug: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Lifecycle: LifecycleConfig{
			StartTimeout:    30 * time.Second,
			StopTimeout:     30 * time.Second,
			RollbackTimeout: 5 * time.Second,
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "component",
		},
	}
}

// Load reads .env (if present) and an optional YAML file, then applies
// environment variables on top.
//
//	cfg, err := config.Load("config.yaml")      // YAML + .env + env
//	cfg, err := config.Load("", "local.env")    // no YAML, custom env file
func Load(yamlPath string, envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	cfg := Defaults()
	if yamlPath != "" {
		if err := loadFile(yamlPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.App.Name = env("APP_NAME", cfg.App.Name)
	cfg.App.Env = env("APP_ENV", cfg.App.Env)
	cfg.App.Debug = envBool("APP_DEBUG", cfg.App.Debug)

	cfg.Log.Level = env("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = env("LOG_OUTPUT", cfg.Log.Output)

	var err error
	if cfg.Lifecycle.StartTimeout, err = envDuration("LIFECYCLE_START_TIMEOUT", cfg.Lifecycle.StartTimeout); err != nil {
		return err
	}
	if cfg.Lifecycle.StopTimeout, err = envDuration("LIFECYCLE_STOP_TIMEOUT", cfg.Lifecycle.StopTimeout); err != nil {
		return err
	}
	if cfg.Lifecycle.RollbackTimeout, err = envDuration("LIFECYCLE_ROLLBACK_TIMEOUT", cfg.Lifecycle.RollbackTimeout); err != nil {
		return err
	}

	cfg.Admin.Enabled = envBool("ADMIN_ENABLED", cfg.Admin.Enabled)
	cfg.Admin.Addr = env("ADMIN_ADDR", cfg.Admin.Addr)

	cfg.Metrics.Enabled = envBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Namespace = env("METRICS_NAMESPACE", cfg.Metrics.Namespace)
	return nil
}

// ── Validation ───────────────────────────────────────────────────────────────

// ConfigError reports a single invalid field.
type ConfigError struct {
	Field string
	Value any
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Msg)
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "log.level", Value: c.Log.Level, Msg: "must be debug, info, warn or error"}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ConfigError{Field: "log.format", Value: c.Log.Format, Msg: "must be text or json"}
	}
	if c.Lifecycle.StartTimeout < 0 {
		return &ConfigError{Field: "lifecycle.start_timeout", Value: c.Lifecycle.StartTimeout, Msg: "must not be negative"}
	}
	if c.Lifecycle.StopTimeout < 0 {
		return &ConfigError{Field: "lifecycle.stop_timeout", Value: c.Lifecycle.StopTimeout, Msg: "must not be negative"}
	}
	if c.Lifecycle.RollbackTimeout <= 0 {
		return &ConfigError{Field: "lifecycle.rollback_timeout", Value: c.Lifecycle.RollbackTimeout, Msg: "must be positive"}
	}
	if c.Admin.Enabled && c.Admin.Addr == "" {
		return &ConfigError{Field: "admin.addr", Value: c.Admin.Addr, Msg: "required when admin is enabled"}
	}
	return nil
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDuration accepts Go durations ("1m30s") or bare seconds ("15").
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ConfigError{Field: key, Value: v, Msg: "not a duration"}
	}
	return d, nil
}
