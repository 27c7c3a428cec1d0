package config

import (
	"github.com/dockwatch-io/dockwatch/internal/models"
)

// LoadSettings loads the global settings from ~/.dockwatch/settings.yaml.
// If the file doesn't exist, returns default settings.
func LoadSettings() (*models.Settings, error) {
	path, err := GlobalSettingsFile()
	if err != nil {
		return nil, err
	}
	return LoadYAMLOrDefault(path, models.NewSettings)
}

// SaveSettings saves the global settings to ~/.dockwatch/settings.yaml.
// Written 0600: the file holds the controller token.
func SaveSettings(settings *models.Settings) error {
	path, err := GlobalSettingsFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, settings, 0600)
}
