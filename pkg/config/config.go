// Package config provides configuration loading and management for dicomvol.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dicomvol/pkg/transfer"
	"dicomvol/pkg/visualization"
)

// Output formats understood by the CLI.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config represents the application configuration
type Config struct {
	// Transfer function selection
	Preset struct {
		// Name is the preset used when no --preset flag is given
		Name string `yaml:"name" toml:"name"`

		// BoneOnly forces the bone-only preset
		BoneOnly bool `yaml:"boneOnly" toml:"boneOnly"`

		// BoneOnlyVariant is "standard" or "dense"
		BoneOnlyVariant string `yaml:"boneOnlyVariant" toml:"boneOnlyVariant"`

		// MapHUToScalar converts HU landmarks through the rescale calibration.
		// When false the stored scalars are assumed to already be HU.
		MapHUToScalar bool `yaml:"mapHUToScalar" toml:"mapHUToScalar"`

		// Windows adds or overrides named CT windows
		Windows map[string]transfer.WindowLevel `yaml:"windows,omitempty" toml:"windows,omitempty"`
	} `yaml:"preset" toml:"preset"`

	// DICOM loading parameters
	Loading struct {
		// NumCores specifies how many files are parsed concurrently
		NumCores int `yaml:"numCores" toml:"numCores"`

		// Recursive descends into subdirectories of the input directory
		Recursive bool `yaml:"recursive" toml:"recursive"`

		// SeriesUID selects a series; empty picks the largest
		SeriesUID string `yaml:"seriesUID" toml:"seriesUID"`
	} `yaml:"loading" toml:"loading"`

	// Output parameters
	Output struct {
		// Format is table, json or yaml
		Format string `yaml:"format" toml:"format"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`
	} `yaml:"output" toml:"output"`

	// Slice preview parameters
	Preview struct {
		// Axis is x, y or z
		Axis string `yaml:"axis" toml:"axis"`

		// Dir is where preview images are written
		Dir string `yaml:"dir" toml:"dir"`

		// Background is the RGB colour transparent voxels composite over
		Background [3]float64 `yaml:"background,flow" toml:"background"`
	} `yaml:"preview" toml:"preview"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Preset.Name = transfer.DefaultPreset
	cfg.Preset.BoneOnly = false
	cfg.Preset.BoneOnlyVariant = transfer.BoneOnlyStandard.String()
	cfg.Preset.MapHUToScalar = true

	cfg.Loading.NumCores = runtime.NumCPU()
	cfg.Loading.Recursive = false

	cfg.Output.Format = FormatTable
	cfg.Output.Verbose = false

	cfg.Preview.Axis = "z"
	cfg.Preview.Dir = "previews"
	cfg.Preview.Background = visualization.DefaultBackground

	return cfg
}

// Validate checks values that cannot be corrected at use
func (c *Config) Validate() error {
	if _, err := transfer.ParseBoneOnlyVariant(c.Preset.BoneOnlyVariant); err != nil {
		return err
	}
	for name := range c.Preset.Windows {
		if transfer.IsReserved(name) {
			return errors.Errorf("window name %q is reserved", name)
		}
	}
	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return errors.Errorf("unknown output format %q", c.Output.Format)
	}
	switch strings.ToLower(c.Preview.Axis) {
	case "x", "y", "z":
	default:
		return errors.Errorf("invalid preview axis %q (must be x, y, or z)", c.Preview.Axis)
	}
	return nil
}

// BoneOnlyVariant returns the parsed bone-only variant
func (c *Config) BoneOnlyVariant() transfer.BoneOnlyVariant {
	v, _ := transfer.ParseBoneOnlyVariant(c.Preset.BoneOnlyVariant)
	return v
}

// Catalog returns the configured windows
func (c *Config) Catalog() transfer.Catalog {
	return transfer.Catalog(c.Preset.Windows)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", configPath)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return errors.Wrap(err, "error marshaling config")
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "error marshaling config")
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
