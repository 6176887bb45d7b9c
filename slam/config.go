package slam

// SensorConfig defines a scan source from the config file
type SensorConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
	Color string `yaml:"color" json:"color"`
	// VoxelSize downsamples incoming clouds before mapping; 0 disables
	VoxelSize float64 `yaml:"voxelSize,omitempty" json:"voxelSize,omitempty"`
}

// GridConfig holds the occupancy grid and mapper settings
type GridConfig struct {
	Resolution     float64 `yaml:"resolution" json:"resolution"`
	Dimensions     []int   `yaml:"dimensions" json:"dimensions"`
	WithOdometry   bool    `yaml:"withOdometry" json:"withOdometry"`
	OccupiedFactor float64 `yaml:"occupiedFactor,omitempty" json:"occupiedFactor,omitempty"`
	FreeFactor     float64 `yaml:"freeFactor,omitempty" json:"freeFactor,omitempty"`
	MaxConfidence  float64 `yaml:"maxConfidence,omitempty" json:"maxConfidence,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	MQTT    MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	Grid    GridConfig     `yaml:"grid" json:"grid"`
	Sensors []SensorConfig `yaml:"sensors" json:"sensors"`
	// RenderThreshold is the occupancy probability above which a cell is
	// drawn as occupied (default 0.5)
	RenderThreshold float64 `yaml:"renderThreshold,omitempty" json:"renderThreshold,omitempty"`
}

// GetSensorByID returns the sensor config for the given ID
func (c *Config) GetSensorByID(id string) *SensorConfig {
	for i := range c.Sensors {
		if c.Sensors[i].ID == id {
			return &c.Sensors[i]
		}
	}
	return nil
}

// MapperConfig converts the YAML grid settings into a mapper configuration.
func (g GridConfig) MapperConfig() MapperConfig {
	return MapperConfig{
		Resolution:     g.Resolution,
		Dimensions:     g.Dimensions,
		WithOdometry:   g.WithOdometry,
		OccupiedFactor: g.OccupiedFactor,
		FreeFactor:     g.FreeFactor,
		MaxConfidence:  g.MaxConfidence,
	}
}
