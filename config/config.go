// Package config provides configuration loading for the simulator.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// validate is a singleton validator instance
var validate = validator.New()

// Config holds all simulator configuration.
type Config struct {
	Sim       SimConfig       `yaml:"sim"`
	Picture   PictureConfig   `yaml:"picture"`
	Energy    EnergyConfig    `yaml:"energy"`
	Wireless  WirelessConfig  `yaml:"wireless"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Manual    ManualConfig    `yaml:"manual"`
}

// SimConfig controls the tick loop.
type SimConfig struct {
	Tick        time.Duration `yaml:"tick" validate:"gt=0"`
	Ticks       int           `yaml:"ticks" validate:"gte=0"` // 0 = run until interrupted
	Accelerated bool          `yaml:"accelerated"`
	Start       string        `yaml:"start" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// StartTime returns the configured simulation start, or now when unset.
func (s SimConfig) StartTime() time.Time {
	if s.Start == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// PictureConfig holds picture system parameters.
type PictureConfig struct {
	Seed int64 `yaml:"seed"` // 0 = seed from the clock
}

// EnergyConfig bounds energy redistribution.
type EnergyConfig struct {
	MaxHops     int `yaml:"max_hops" validate:"gt=0"`
	VisitBudget int `yaml:"visit_budget" validate:"gt=0"`
}

// WirelessConfig holds wireless authority parameters.
type WirelessConfig struct {
	EarthOcclusion bool `yaml:"earth_occlusion"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	Exporter    string  `yaml:"exporter" validate:"oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// TelemetryConfig holds the per-tick CSV output path. Empty disables it.
type TelemetryConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// ManualConfig holds the manual connection manifest settings.
type ManualConfig struct {
	Manifest string        `yaml:"manifest"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// Load reads configuration from a YAML file, using embedded defaults for
// any values not specified. If path is empty, only defaults are used.
// Environment overrides are applied last and the result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// applyEnv lets the usual LOG_* and SIM_TRACING_* variables override the
// file.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := getenv("SIM_TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = strings.EqualFold(v, "true")
	}
	if v := getenv("SIM_TRACING_EXPORTER"); v != "" {
		c.Tracing.Exporter = strings.ToLower(v)
	}
	if v := getenv("SIM_TRACING_SERVICE_NAME"); v != "" {
		c.Tracing.ServiceName = v
	}
	if v := getenv("SIM_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
	if v := getenv("SIM_TRACING_SAMPLE_RATIO"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed <= 1 {
			c.Tracing.SampleRatio = parsed
		}
	}
}

// WriteYAML saves the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly
// format.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gt", "gte", "min":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "lte", "max":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
