// Package updater checks for new releases via GitHub and replaces binaries.
package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/buildinfo"
	"github.com/dockwatch-io/dockwatch/internal/config"
)

const releasesURL = "https://api.github.com/repos/dockwatch-io/dockwatch/releases/latest"

var httpClient = &http.Client{Timeout: 20 * time.Second}

// ReleaseInfo contains information about a GitHub release.
type ReleaseInfo struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset represents a downloadable file in a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// UpdateResult contains the result of an update check.
type UpdateResult struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
	Release        *ReleaseInfo
}

// Status is a point-in-time summary of the most recent release check.
type Status struct {
	Latest          string
	ReleaseURL      string
	UpdateAvailable bool
	CheckedAt       time.Time
}

// Manager runs release checks for the daemon according to the updates
// settings and caches the newest result for the version endpoint.
type Manager struct {
	log *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewManager creates a Manager that logs through log.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log.With("component", "updater")}
}

// Status returns the cached result of the last successful check. The zero
// Status means no check has completed yet.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start launches a background check if the updates settings call for one.
// Frequency gating uses the last_checked timestamp persisted in settings.
func (m *Manager) Start() {
	go func() {
		settings, err := config.LoadSettings()
		if err != nil {
			m.log.Warn("load settings", "error", err)
			return
		}

		if !settings.Updates.CheckOnStartup {
			return
		}
		if !due(settings.Updates.CheckFrequency, settings.Updates.LastChecked) {
			return
		}

		result, err := CheckForUpdate()
		if err != nil {
			m.log.Warn("release check failed", "error", err)
			return
		}

		now := time.Now()
		settings.Updates.LastChecked = &now
		if err := config.SaveSettings(settings); err != nil {
			m.log.Warn("persist last_checked", "error", err)
		}

		m.mu.Lock()
		m.status = Status{
			Latest:          result.LatestVersion,
			ReleaseURL:      result.ReleaseURL,
			UpdateAvailable: result.Available,
			CheckedAt:       now,
		}
		m.mu.Unlock()

		if result.Available {
			m.log.Info("update available",
				"current", result.CurrentVersion,
				"latest", result.LatestVersion)
		} else {
			m.log.Debug("up to date", "version", result.CurrentVersion)
		}
	}()
}

// due reports whether enough time has passed since lastChecked for the
// configured frequency. An unset timestamp always allows a check.
func due(frequency string, lastChecked *time.Time) bool {
	if lastChecked == nil {
		return true
	}
	since := time.Since(*lastChecked)
	switch frequency {
	case "daily":
		return since >= 24*time.Hour
	case "weekly":
		return since >= 7*24*time.Hour
	default: // "every_launch"
		return true
	}
}

// CheckForUpdate queries the GitHub Releases API for a newer version.
func CheckForUpdate() (*UpdateResult, error) {
	req, err := http.NewRequest("GET", releasesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "dockwatch/"+buildinfo.Version)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No releases yet
		return &UpdateResult{
			Available:      false,
			CurrentVersion: buildinfo.Version,
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	latestVersion := strings.TrimPrefix(release.TagName, "v")
	current, err := ParseSemver(buildinfo.Version)
	if err != nil {
		// Dev builds report an unparseable version; treat them as older.
		return &UpdateResult{
			Available:      true,
			CurrentVersion: buildinfo.Version,
			LatestVersion:  latestVersion,
			ReleaseURL:     release.HTMLURL,
			Release:        &release,
		}, nil
	}

	latest, err := ParseSemver(latestVersion)
	if err != nil {
		return nil, fmt.Errorf("parse latest version %q: %w", latestVersion, err)
	}

	return &UpdateResult{
		Available:      current.LessThan(latest),
		CurrentVersion: buildinfo.Version,
		LatestVersion:  latestVersion,
		ReleaseURL:     release.HTMLURL,
		Release:        &release,
	}, nil
}

// CLIAssetName returns the expected asset name for the CLI binary.
func CLIAssetName() string {
	return fmt.Sprintf("dockwatch-%s-%s", runtime.GOOS, runtime.GOARCH)
}

// DaemonAssetName returns the expected asset name for the daemon binary.
func DaemonAssetName() string {
	return fmt.Sprintf("dockwatchd-%s-%s", runtime.GOOS, runtime.GOARCH)
}

// FindAsset finds an asset by name in a release.
func FindAsset(release *ReleaseInfo, name string) *Asset {
	for _, a := range release.Assets {
		if a.Name == name {
			return &a
		}
	}
	return nil
}

// DownloadAsset downloads a release asset to a temp file and returns the path.
// Downloads use the default client: a binary can take longer than the API
// check timeout allows.
func DownloadAsset(asset *Asset) (string, error) {
	resp, err := http.Get(asset.BrowserDownloadURL)
	if err != nil {
		return "", fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "dockwatch-update-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}

	tmpFile.Close()

	if err := os.Chmod(tmpFile.Name(), 0755); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("chmod temp file: %w", err)
	}

	return tmpFile.Name(), nil
}

// ReplaceBinary atomically replaces a binary at destPath with a new binary at newPath.
func ReplaceBinary(destPath, newPath string) error {
	destPath, err := filepath.EvalSymlinks(destPath)
	if err != nil {
		return fmt.Errorf("resolve symlink: %w", err)
	}

	bakPath := destPath + ".bak"

	// Remove any stale backup
	os.Remove(bakPath)

	// Rename current → backup
	if err := os.Rename(destPath, bakPath); err != nil {
		return fmt.Errorf("backup old binary: %w", err)
	}

	// Move new → target
	if err := os.Rename(newPath, destPath); err != nil {
		// Try to restore backup
		_ = os.Rename(bakPath, destPath)
		return fmt.Errorf("install new binary: %w", err)
	}

	// Clean up backup
	os.Remove(bakPath)

	return nil
}
