package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yml
var presetFS embed.FS

// Preset returns the embedded contract settings for a network.
func Preset(network string) (Config, error) {
	var preset Config
	if network == "" || network == "custom" {
		return preset, nil
	}
	data, err := presetFS.ReadFile("presets/" + network + ".yml")
	if err != nil {
		return preset, fmt.Errorf("config: unknown network preset %q", network)
	}
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return preset, fmt.Errorf("config: decoding %s preset: %w", network, err)
	}
	return preset, nil
}

type LoadOptions struct {
	// Path to a YAML config file. Optional.
	Path string

	// EnvFiles are dotenv files loaded before reading the environment.
	// Missing files are skipped.
	EnvFiles []string

	// Network overrides the preset named by the file or environment.
	Network string
}

var DefaultEnvFiles = []string{".env.local", ".env"}

// Load layers defaults, the network preset, the config file and the
// environment, later sources winning. The result is not validated so callers
// can apply flag overrides first.
func Load(opts LoadOptions) (*Config, error) {
	var overrides Config
	if opts.Path != "" {
		if err := readConfigFile(&overrides, opts.Path); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &overrides); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	cfg := Default()
	network := cfg.Network
	if overrides.Network != "" {
		network = overrides.Network
	}
	if opts.Network != "" {
		network = opts.Network
	}

	preset, err := Preset(network)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, preset, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merging %s preset: %w", network, err)
	}
	if err := mergo.Merge(&cfg, overrides, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merging overrides: %w", err)
	}
	cfg.Network = network
	return &cfg, nil
}

func readConfigFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("error decoding config file %v: %w", path, err)
	}
	return nil
}

func loadEnvFiles(files []string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("config: loading %s: %w", file, err)
		}
	}
	return nil
}
