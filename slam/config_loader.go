package slam

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the unified configuration from a YAML file
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

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if len(config.Sensors) == 0 {
		return nil, fmt.Errorf("at least one sensor must be defined")
	}
	if config.Grid.Resolution <= 0 {
		return nil, fmt.Errorf("grid.resolution must be positive")
	}
	if len(config.Grid.Dimensions) == 0 {
		return nil, fmt.Errorf("grid.dimensions is required")
	}
	for i, d := range config.Grid.Dimensions {
		if d <= 0 {
			return nil, fmt.Errorf("grid.dimensions[%d] must be positive", i)
		}
	}

	// Validate sensor configs
	for i, sc := range config.Sensors {
		if sc.ID == "" {
			return nil, fmt.Errorf("sensor[%d].id is required", i)
		}
		if sc.Topic == "" {
			return nil, fmt.Errorf("sensor[%d].topic is required for %s", i, sc.ID)
		}
		if sc.VoxelSize < 0 {
			return nil, fmt.Errorf("sensor[%d].voxelSize must not be negative", i)
		}
	}

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
