package models

import "time"

// ControllerConfig holds the connection to the fleet controller API.
type ControllerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token,omitempty"` // empty = unauthenticated controller
}

// NodeConfig identifies one managed machine to watch.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"` // display name; defaults to the ID
}

// PollingConfig holds the daemon's poll cadence and window sizes.
type PollingConfig struct {
	CommandInterval time.Duration `yaml:"command_interval"`
	EventInterval   time.Duration `yaml:"event_interval"`
	CommandLimit    int           `yaml:"command_limit"` // records per poll, newest first
	EventLimit      int           `yaml:"event_limit"`
}

// UpdatesConfig holds settings for update checking.
type UpdatesConfig struct {
	CheckOnStartup bool       `yaml:"check_on_startup"`
	CheckFrequency string     `yaml:"check_frequency"` // "every_launch" | "daily" | "weekly"
	AutoDownload   bool       `yaml:"auto_download"`
	LastChecked    *time.Time `yaml:"last_checked,omitempty"`
}

// AnalyticsConfig holds anonymous usage reporting settings.
type AnalyticsConfig struct {
	Disabled bool `yaml:"disabled"`
}

// Settings represents global application settings.
// This corresponds to ~/.dockwatch/settings.yaml.
type Settings struct {
	Version    int              `yaml:"version"`
	Controller ControllerConfig `yaml:"controller"`
	Nodes      []NodeConfig     `yaml:"nodes"`
	Polling    PollingConfig    `yaml:"polling"`
	Updates    UpdatesConfig    `yaml:"updates"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Controller: ControllerConfig{
			URL: "http://localhost:8400",
		},
		Nodes: nil,
		Polling: PollingConfig{
			CommandInterval: 5 * time.Second,
			EventInterval:   30 * time.Second,
			CommandLimit:    200,
			EventLimit:      200,
		},
		Updates: UpdatesConfig{
			CheckOnStartup: true,
			CheckFrequency: "every_launch",
			AutoDownload:   false,
			LastChecked:    nil,
		},
		Analytics: AnalyticsConfig{
			Disabled: false,
		},
	}
}

// NodeName returns the display name configured for a node ID, falling
// back to the ID itself for unknown or unnamed nodes.
func (s *Settings) NodeName(id string) string {
	for _, n := range s.Nodes {
		if n.ID == id && n.Name != "" {
			return n.Name
		}
	}
	return id
}
