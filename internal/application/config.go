package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-normdev/infrastructure/logging"
	"github.com/ahrav/go-normdev/infrastructure/rejection"
	"github.com/ahrav/go-normdev/internal/domain"
)

// EnvPrefix is the prefix of environment variables that override file
// configuration, for example NORMDEV_REJECTION_ZMAX.
const EnvPrefix = "NORMDEV"

// Config is the complete runtime configuration of the command-line tools.
// Values come from defaults, then an optional YAML file, then environment
// variables, in increasing order of precedence.
type Config struct {
	// Rejection selects the method and its parameters.
	Rejection RejectionConfig `yaml:"rejection" envconfig:"REJECTION"`
	// Logging controls the structured logger.
	Logging logging.Config `yaml:"logging" envconfig:"LOGGING"`
	// Metrics controls Prometheus metric registration.
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
	// Batch controls concurrent processing of several datasets.
	Batch BatchConfig `yaml:"batch" envconfig:"BATCH"`
}

// RejectionConfig holds the parameters passed to the driver.
type RejectionConfig struct {
	// Method is standard, simple or target. Case is ignored.
	Method string `yaml:"method" envconfig:"METHOD" validate:"required"`
	// ZMax is the rejection threshold.
	ZMax float64 `yaml:"zmax" envconfig:"ZMAX" validate:"gt=0"`
	// TieBreaker applies to the standard method.
	TieBreaker string `yaml:"tie_breaker" envconfig:"TIE_BREAKER" validate:"omitempty,oneof=all first"`
	// MaxRounds caps the standard method. Zero means no cap.
	MaxRounds int `yaml:"max_rounds" envconfig:"MAX_ROUNDS" validate:"min=0"`
}

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	// Enabled turns Prometheus metrics on.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	// Namespace prefixes metric names.
	Namespace string `yaml:"namespace" envconfig:"NAMESPACE" validate:"omitempty,alphanum"`
}

// BatchConfig controls batch execution.
type BatchConfig struct {
	// Concurrency bounds the number of datasets processed at once.
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=256"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Rejection: RejectionConfig{
			Method:     domain.MethodStandard.String(),
			ZMax:       rejection.DefaultZMax,
			TieBreaker: string(rejection.TieAll),
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{Namespace: "normdev"},
		Batch:   BatchConfig{Concurrency: 4},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig, applies
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return LoadConfigFromReader(nil)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return LoadConfigFromReader(f)
}

// LoadConfigFromReader is LoadConfig for an arbitrary source. A nil reader
// skips the file stage.
func LoadConfigFromReader(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	if r != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true) // Strict mode - fail on unknown fields.
			if err := decoder.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("YAML decode failed: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment override failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var configValidator = validator.New()

// Validate checks struct constraints and that the method name resolves.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		verr := domain.NewValidationError("config")
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.AddError(fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			verr.AddError(err.Error())
		}
		return verr
	}

	if _, err := ParseMethod(c.Rejection.Method); err != nil {
		return err
	}
	return nil
}

// Request converts the rejection section to a driver request. The target,
// if any, is attached by the caller.
func (c Config) Request() (Request, error) {
	method, err := ParseMethod(c.Rejection.Method)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Method:     method,
		ZMax:       c.Rejection.ZMax,
		TieBreaker: rejection.TieBreaker(c.Rejection.TieBreaker),
		MaxRounds:  c.Rejection.MaxRounds,
	}, nil
}
