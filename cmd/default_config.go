package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hrt-sim/hrt-sim/sim"
)

// defaultWeightKG applies when neither the schedule, the flag nor defaults.yaml give a weight.
const defaultWeightKG = 70.0

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version         string           `yaml:"version"`
	Engine          sim.EngineConfig `yaml:"engine"`
	DefaultWeightKG float64          `yaml:"default_weight_kg"`
}

// builtinConfig is used when no defaults file is present.
func builtinConfig() Config {
	return Config{Engine: sim.DefaultEngineConfig(), DefaultWeightKG: defaultWeightKG}
}

// loadDefaultsConfig parses defaults.yaml with strict field checking. Omitted
// fields keep their built-in values. A missing file is only an error when
// required is set, i.e. when the user named the file explicitly.
func loadDefaultsConfig(path string, required bool) (Config, error) {
	cfg := builtinConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("no defaults file at %s; using built-in engine config", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading defaults file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing defaults YAML %s: %w", path, err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return cfg, fmt.Errorf("defaults file %s: %w", path, err)
	}
	if !(cfg.DefaultWeightKG > 0) || math.IsInf(cfg.DefaultWeightKG, 0) {
		return cfg, fmt.Errorf("defaults file %s: default_weight_kg must be a finite positive number, got %v", path, cfg.DefaultWeightKG)
	}
	return cfg, nil
}
