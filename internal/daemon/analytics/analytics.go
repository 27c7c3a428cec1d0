// Package analytics reports coarse, anonymous usage events (daemon
// started, command submitted, update check). Reporting is opt-out:
// settings or the DOCKWATCH_NO_ANALYTICS environment variable disable
// it entirely, in which case every call is a no-op.
package analytics

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"github.com/dockwatch-io/dockwatch/internal/config"
)

const (
	apiKey   = "phc_V8mFjwLXqP24tR0dYc6nKbA9zUeW3sHgQi51oT7xJmD"
	endpoint = "https://eu.i.posthog.com"
)

// Client sends usage events. A nil Client is valid and silently drops
// everything, so callers never need to branch on the opt-out.
type Client struct {
	ph       posthog.Client
	distinct string
	log      *slog.Logger
}

// New creates a client, or nil when reporting is disabled or the
// backend cannot be constructed.
func New(disabled bool, log *slog.Logger) *Client {
	if disabled || os.Getenv("DOCKWATCH_NO_ANALYTICS") != "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	ph, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		log.Debug("analytics disabled", "error", err)
		return nil
	}
	return &Client{
		ph:       ph,
		distinct: distinctID(),
		log:      log.With("component", "analytics"),
	}
}

// Track enqueues one event. Failures are logged at debug and dropped;
// usage reporting never interferes with the daemon.
func (c *Client) Track(event string, props map[string]any) {
	if c == nil {
		return
	}
	properties := posthog.NewProperties()
	for k, v := range props {
		properties = properties.Set(k, v)
	}
	err := c.ph.Enqueue(posthog.Capture{
		DistinctId: c.distinct,
		Event:      event,
		Properties: properties,
	})
	if err != nil {
		c.log.Debug("event dropped", "event", event, "error", err)
	}
}

// Close flushes pending events.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if err := c.ph.Close(); err != nil {
		c.log.Debug("flush failed", "error", err)
	}
}

// distinctID returns a stable anonymous installation ID, minted on
// first use and kept in the config directory.
func distinctID() string {
	dir, err := config.GlobalDir()
	if err != nil {
		return uuid.NewString()
	}
	path := filepath.Join(dir, "analytics_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	id := uuid.NewString()
	_ = os.WriteFile(path, []byte(id+"\n"), 0o600)
	return id
}
