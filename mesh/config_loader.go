package mesh

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPublishPrefix is the MQTT topic prefix used when none is configured.
const DefaultPublishPrefix = "beaconmesh"

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks field ranges. Zero values are allowed and mean "default".
func (c *Config) Validate() error {
	if c.Assembly.MinOverlap < 0 {
		return fmt.Errorf("assembly.minOverlap must not be negative, got %d", c.Assembly.MinOverlap)
	}
	if c.Assembly.MinOverlap > 0 && c.Assembly.MinOverlap < minSolvePoints {
		return fmt.Errorf("assembly.minOverlap must be at least %d, got %d", minSolvePoints, c.Assembly.MinOverlap)
	}
	if c.Assembly.Workers < 0 {
		return fmt.Errorf("assembly.workers must not be negative, got %d", c.Assembly.Workers)
	}
	if c.Render.Scale < 0 || c.Render.Padding < 0 || c.Render.GridSpacing < 0 || c.Render.Resolution < 0 {
		return fmt.Errorf("render settings must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Assembly.MinOverlap == 0 {
		c.Assembly.MinOverlap = DefaultMinOverlap
	}
	if c.Assembly.Workers == 0 {
		c.Assembly.Workers = 1
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = DefaultPublishPrefix
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultPublishPrefix
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = 0.25
	}
	if c.Render.Padding == 0 {
		c.Render.Padding = 200
	}
	if c.Render.Resolution == 0 {
		c.Render.Resolution = 150
	}
}

// FindReference returns the scanner named by the configured reference, or
// the first scanner when no reference is set.
func (c *Config) FindReference(scanners []*Scanner) (*Scanner, error) {
	if len(scanners) == 0 {
		return nil, fmt.Errorf("no scanners to assemble")
	}
	if c == nil || c.Reference == "" {
		return scanners[0], nil
	}
	for _, s := range scanners {
		if s.Name == c.Reference {
			return s, nil
		}
	}
	return nil, fmt.Errorf("reference scanner %q not found", c.Reference)
}
