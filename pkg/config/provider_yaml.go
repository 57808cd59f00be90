package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files.
// Keys missing from the file keep their default values.
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document on top of DefaultConfig
func ParseYAML(data []byte) (*ConfigData, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// MarshalYAML renders a configuration as YAML
func MarshalYAML(config *ConfigData) ([]byte, error) {
	return yaml.Marshal(config)
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}
	return y.LoadConfig()
}

// GetCalibration returns the calibration thresholds
func (y *YAMLProvider) GetCalibration() (*CalibrationData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Calibration, nil
}

// GetStorageConfig returns the history store configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetControllers returns the controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true since YAML files are treated as read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
