package config

import (
	"os"
	"path/filepath"
)

// maxDaemonLogSize is the size at which the previous daemon log is
// rotated aside on startup.
const maxDaemonLogSize = 10 << 20

// DaemonLogFile returns the path of the daemon's log file.
func DaemonLogFile() (string, error) {
	dir, err := GlobalLogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dockwatchd.log"), nil
}

// OpenDaemonLog opens the daemon log for appending, creating the logs
// directory as needed. An oversized previous log is renamed to .old
// rather than truncated, so one generation of history survives.
func OpenDaemonLog() (*os.File, error) {
	if err := EnsureGlobalLogsDir(); err != nil {
		return nil, err
	}
	path, err := DaemonLogFile()
	if err != nil {
		return nil, err
	}

	if fi, err := os.Stat(path); err == nil && fi.Size() > maxDaemonLogSize {
		_ = os.Rename(path, path+".old")
	}

	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
