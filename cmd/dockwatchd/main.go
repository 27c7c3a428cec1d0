// Package main is the entry point for the dockwatchd daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dockwatch-io/dockwatch/internal/buildinfo"
	"github.com/dockwatch-io/dockwatch/internal/config"
	"github.com/dockwatch-io/dockwatch/internal/daemon/analytics"
	"github.com/dockwatch-io/dockwatch/internal/daemon/notify"
	"github.com/dockwatch-io/dockwatch/internal/daemon/poller"
	"github.com/dockwatch-io/dockwatch/internal/daemon/server"
	"github.com/dockwatch-io/dockwatch/internal/daemon/watcher"
	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/remote"
	"github.com/dockwatch-io/dockwatch/internal/updater"
)

func main() {
	foreground := flag.Bool("foreground", false, "log to stderr instead of the log file")
	port := flag.Int("port", 0, "port to listen on (0 for dynamic allocation)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*foreground, *port, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "dockwatchd:", err)
		os.Exit(1)
	}
}

func run(foreground bool, port int, debug bool) error {
	if err := config.EnsureGlobalDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	log, closeLog, err := newLogger(foreground, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	// Refuse to start twice
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running on port %d (PID %d)", info.Port, info.PID)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	registry := prometheus.NewRegistry()
	client := remote.New(settings.Controller.URL, settings.Controller.Token)

	fleet := poller.New(poller.Options{
		Client:  client,
		Nodes:   settings.Nodes,
		Polling: settings.Polling,
		Logger:  log,
		Metrics: poller.NewMetrics(registry),
	})

	// The push feed is an accelerator; polling alone keeps everything
	// correct when it cannot connect.
	listener := notify.New(notify.Options{
		BaseURL: settings.Controller.URL,
		Token:   settings.Controller.Token,
		Nodes:   nodeIDs(settings.Nodes),
		Poller:  fleet,
		Logger:  log,
	})

	tracker := analytics.New(settings.Analytics.Disabled, log)
	defer tracker.Close()

	updates := updater.NewManager(log)
	updates.Start()

	srv, err := server.New(server.Options{
		Port:      port,
		Poller:    fleet,
		Client:    client,
		Updater:   updates,
		Analytics: tracker,
		Registry:  registry,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	if err := config.SaveDaemonInfo(models.NewDaemonInfo("localhost", srv.Port(), os.Getpid())); err != nil {
		return fmt.Errorf("write daemon info: %w", err)
	}
	defer func() {
		if err := config.RemoveDaemonInfo(); err != nil {
			log.Warn("remove daemon info", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go fleet.Run(ctx)
	go listener.Run(ctx)

	// Settings changes apply without a restart; only the controller
	// endpoint itself needs one.
	if w, err := watcher.New(log); err != nil {
		log.Warn("settings watcher unavailable", "error", err)
	} else if err := w.Start(); err != nil {
		log.Warn("settings watcher failed to start", "error", err)
	} else {
		defer w.Stop()
		go reloadLoop(ctx, w, fleet, listener, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	log.Info("daemon started",
		"version", buildinfo.Version,
		"port", srv.Port(),
		"pid", os.Getpid(),
		"nodes", len(settings.Nodes))
	tracker.Track("daemon_started", map[string]any{
		"version": buildinfo.Version,
		"nodes":   len(settings.Nodes),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	srv.Stop()
	cancel()
	log.Info("daemon stopped")
	return nil
}

// reloadLoop applies settings file changes to the running collaborators.
func reloadLoop(ctx context.Context, w *watcher.Watcher, fleet *poller.Poller, listener *notify.Listener, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.Events():
			if !ok {
				return
			}
			settings, err := config.LoadSettings()
			if err != nil {
				log.Warn("settings reload failed", "error", err)
				continue
			}
			log.Info("settings reloaded", "nodes", len(settings.Nodes))
			fleet.Apply(settings.Nodes, settings.Polling)
			listener.Apply(nodeIDs(settings.Nodes))
		}
	}
}

func nodeIDs(nodes []models.NodeConfig) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// newLogger builds the daemon logger: JSON to the log file in normal
// operation, text to stderr with -foreground.
func newLogger(foreground, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if foreground {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}

	f, err := config.OpenDaemonLog()
	if err != nil {
		return nil, nil, fmt.Errorf("open daemon log: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}
