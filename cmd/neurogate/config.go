package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cortexa/neurogate/internal/pipeline"
)

// Config is the optional YAML run configuration. Flags override file values.
type Config struct {
	Pipeline pipeline.Options `yaml:"pipeline"`
	Bypass   bool             `yaml:"bypass_validation"`
	Output   string           `yaml:"output"`
}

func defaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultOptions(),
		Output:   "analysis_output",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Output == "" {
		cfg.Output = "analysis_output"
	}
	return cfg, nil
}

func saveConfig(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
