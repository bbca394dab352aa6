package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/preflight"
	"arcam/internal/session"
)

// Deps are the services a daemon coordinates.
type Deps struct {
	Config      *config.Config
	Preferences capture.Preferences
	Sessions    *session.Manager
	// Catalog lists host cameras for /api/devices.
	Catalog devices.Catalog
	Hotplug *devices.HotplugMonitor
	Hub     *logging.StreamHub
	Logger  *slog.Logger
	// Local is set when sessions negotiate against host cameras.
	Local bool
}

// Daemon enforces single-instance execution and serves the API.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	prefs    capture.Preferences
	sessions *session.Manager
	catalog  devices.Catalog
	hotplug  *devices.HotplugMonitor
	hub      *logging.StreamHub
	local    bool
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	StartedAt       time.Time
	Local           bool
	LockFilePath    string
	PreferencePath  string
	PreferredCamera string
	Sessions        []session.Snapshot
	Checks          []preflight.Result
	Cameras         preflight.CameraProbe
	DroppedEvents   uint64
}

// New constructs a daemon with initialized dependencies.
func New(deps Deps) (*Daemon, error) {
	if deps.Config == nil || deps.Preferences == nil || deps.Sessions == nil {
		return nil, errors.New("daemon requires config, preference store, and session manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := deps.Config.LockPath()
	d := &Daemon{
		cfg:      deps.Config,
		logger:   logger,
		prefs:    deps.Preferences,
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		hotplug:  deps.Hotplug,
		hub:      deps.Hub,
		local:    deps.Local,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(deps.Config, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then starts the hotplug monitor and the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another arcam daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.hotplug.Start(runCtx); err != nil {
		d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("arcam daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Bool("local", d.local),
	)
	return nil
}

// Stop closes every session, stops the API, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.sessions.CloseAll()
	d.hotplug.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("arcam daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Handler exposes the API router.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Address is the bound API address; empty before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		Local:          d.local,
		LockFilePath:   d.lockPath,
		PreferencePath: d.cfg.PreferencePath(),
		Sessions:       d.sessions.List(),
		Checks:         preflight.RunAll(ctx, d.cfg),
		Cameras:        preflight.ProbeCameras(ctx, d.catalog),
		DroppedEvents:  d.sessions.Bus().Dropped(),
	}
	if id, ok, err := d.prefs.Get(ctx); err == nil && ok {
		status.PreferredCamera = id
	}
	return status
}
