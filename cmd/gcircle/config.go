package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"gopkg.in/yaml.v3"
)

// ServeConfig configures the serve command.
// It is loaded from YAML and then overridden by explicitly set flags.
type ServeConfig struct {
	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// DataDir holds the ledger database; required unless InMemory.
	DataDir  string `yaml:"data_dir" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`

	// Predicate is the ledger's acceptance rule set.
	Predicate string `yaml:"predicate" validate:"oneof=full minimal"`

	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=100"`

	Metrics bool `yaml:"metrics"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultServeConfig returns the configuration used when no file is given.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{
		Listen:     "127.0.0.1:8547",
		DataDir:    "gcircle-data",
		Predicate:  "full",
		MaxRetries: 3,
		Metrics:    true,
	}
}

// LoadServeConfig reads path over the defaults. An empty path returns the defaults.
func LoadServeConfig(path string) (ServeConfig, error) {
	cfg := DefaultServeConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ServeConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServeConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field of c.
func (c ServeConfig) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, len(verrs))
	for i, fe := range verrs {
		errs[i] = fmt.Errorf("invalid config field %s: failed %q check", fe.Field(), fe.Tag())
	}
	return errors.Join(errs...)
}

// LedgerPredicate returns the acceptance predicate named by c.Predicate.
func (c ServeConfig) LedgerPredicate() rcaccept.Predicate {
	if c.Predicate == "minimal" {
		return rcaccept.Minimal{}
	}
	return rcaccept.Full{}
}
