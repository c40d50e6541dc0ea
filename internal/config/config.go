// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk actuator configuration. It is re-read once per
// major poll cycle; a load or validation failure keeps the previous
// registry in effect.
type File struct {
	Actuators []Actuator `yaml:"actuators"`
}

// Actuator describes one controller board. The safety/tuning parameters
// are pointers: a key absent from the file is silently skipped during
// reconciliation, not an error.
type Actuator struct {
	Name    string `yaml:"name"`
	Address uint8  `yaml:"address"`
	Port    string `yaml:"port"` // "Left" or "Right"
	Enabled bool   `yaml:"enabled"`

	InwardCurrentLimit     *uint16 `yaml:"inwardCurrentLimit"`
	OutwardCurrentLimit    *uint16 `yaml:"outwardCurrentLimit"`
	OutwardExtensionLimit  *uint16 `yaml:"outwardExtensionLimit"`
	PositionEncoderScaling *uint16 `yaml:"positionEncoderScaling"`
	Acceleration           *uint16 `yaml:"acceleration"`
}

// Load reads and parses the configuration file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
