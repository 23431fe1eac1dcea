package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfigFile = errors.New("invalid configuration file")

var validate = validator.New(validator.WithRequiredStructEnabled())

// FileConfig is the on-disk description of one switch operation.
type FileConfig struct {
	ID string `validate:"required" yaml:"id"`
	// Seed makes case inherent data reproducible. A random seed is used when unset.
	Seed   *uint64        `yaml:"seed,omitempty"`
	Config map[string]any `validate:"required" yaml:"config"`
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return parseConfig(data)
}

func parseConfig(data []byte) (*FileConfig, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var cfg FileConfig
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	return &cfg, nil
}

func (c *FileConfig) seed() uint64 {
	if c.Seed != nil {
		return *c.Seed
	}

	return rand.Uint64() //nolint:gosec
}
