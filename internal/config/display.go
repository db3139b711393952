// Package config loads the process configuration for the display server and
// tools. Files may be JSON or YAML; omitted fields fall back to the defaults
// returned by the Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/serialmux"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// DisplayConfig is the root configuration.
type DisplayConfig struct {
	// Ports lists the controller device paths. Empty means discover them.
	Ports []string `json:"ports,omitempty" yaml:"ports,omitempty"`
	// Serial applies to every controller port.
	Serial serialmux.PortOptions `json:"serial" yaml:"serial"`
	// ReadTimeout bounds every controller reply, as a duration string.
	ReadTimeout *string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`

	Identities       []string `json:"identities,omitempty" yaml:"identities,omitempty"`
	SensorIdentity   *string  `json:"sensor_identity,omitempty" yaml:"sensor_identity,omitempty"`
	ConcurrentWrites *bool    `json:"concurrent_writes,omitempty" yaml:"concurrent_writes,omitempty"`

	GeometryPath    *string `json:"geometry_path,omitempty" yaml:"geometry_path,omitempty"`
	MaskPath        *string `json:"mask_path,omitempty" yaml:"mask_path,omitempty"`
	CalibrationPath *string `json:"calibration_path,omitempty" yaml:"calibration_path,omitempty"`
	DBPath          *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	ImagesDir       *string `json:"images_dir,omitempty" yaml:"images_dir,omitempty"`
	Listen          *string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Load reads a DisplayConfig from a .json, .yaml or .yml file.
func Load(path string) (*DisplayConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DisplayConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *DisplayConfig) Validate() error {
	if len(c.Ports) > led.Controllers {
		return fmt.Errorf("at most %d ports may be configured, got %d", led.Controllers, len(c.Ports))
	}
	if len(c.Ports) == led.Controllers && c.Ports[0] == c.Ports[1] {
		return fmt.Errorf("ports must differ, both are %q", c.Ports[0])
	}
	if _, err := c.Serial.Normalise(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %s", d)
		}
	}
	if c.Identities != nil {
		if len(c.Identities) != led.Controllers {
			return fmt.Errorf("identities must list %d names, got %d", led.Controllers, len(c.Identities))
		}
		if c.Identities[0] == c.Identities[1] || c.Identities[0] == "" {
			return fmt.Errorf("identities must be two distinct names, got %q", c.Identities)
		}
	}
	return nil
}

// GetReadTimeout returns read_timeout or the default.
func (c *DisplayConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return serialmux.DefaultReadTimeout
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return serialmux.DefaultReadTimeout
	}
	return d
}

// GetIdentities returns the expected controller identities in controller
// order.
func (c *DisplayConfig) GetIdentities() [led.Controllers]string {
	if len(c.Identities) != led.Controllers {
		return [led.Controllers]string{"Teensy1", "Teensy2"}
	}
	return [led.Controllers]string{c.Identities[0], c.Identities[1]}
}

// GetSensorIdentity returns sensor_identity or the default.
func (c *DisplayConfig) GetSensorIdentity() string {
	if c.SensorIdentity == nil || *c.SensorIdentity == "" {
		return "Teensy1"
	}
	return *c.SensorIdentity
}

// GetConcurrentWrites returns concurrent_writes or the default.
func (c *DisplayConfig) GetConcurrentWrites() bool {
	if c.ConcurrentWrites == nil {
		return false
	}
	return *c.ConcurrentWrites
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetGeometryPath returns geometry_path or "" when the synthetic layout
// should be used.
func (c *DisplayConfig) GetGeometryPath() string { return stringOr(c.GeometryPath, "") }

// GetMaskPath returns mask_path or "" when the mask should be built from the
// geometry at startup.
func (c *DisplayConfig) GetMaskPath() string { return stringOr(c.MaskPath, "") }

// GetCalibrationPath returns calibration_path or "".
func (c *DisplayConfig) GetCalibrationPath() string { return stringOr(c.CalibrationPath, "") }

// GetDBPath returns db_path or the default.
func (c *DisplayConfig) GetDBPath() string { return stringOr(c.DBPath, "display.db") }

// GetImagesDir returns images_dir or "" when stored images are disabled.
func (c *DisplayConfig) GetImagesDir() string { return stringOr(c.ImagesDir, "") }

// GetListen returns listen or the default.
func (c *DisplayConfig) GetListen() string { return stringOr(c.Listen, "localhost:8080") }
