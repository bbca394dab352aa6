package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"arcam/internal/config"
	"arcam/internal/daemon"
	"arcam/internal/devices"
	"arcam/internal/events"
	"arcam/internal/logging"
	"arcam/internal/preflight"
	"arcam/internal/prefstore"
	"arcam/internal/session"
	"arcam/internal/v4l2"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Local negotiates against host V4L2 cameras instead of the page bridge.
	Local bool
}

// Run starts the arcam daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("arcam-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Hub:              logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update arcam.log link: %v\n", err)
	}

	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := prefstore.Open(cfg.PreferencePath(), logger)
	if err != nil {
		logger.Error("open preference store", logging.Error(err))
		return err
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	catalog := devices.NewSysfsCatalog(logger)
	var mgrOpts []session.Option
	if opts.Local {
		mgrOpts = append(mgrOpts, session.WithLocalPlatform(v4l2.NewPlatform(catalog, logger)))
	}
	sessions := session.NewManager(cfg, store, bus, logger, mgrOpts...)

	d, err := daemon.New(daemon.Deps{
		Config:      cfg,
		Preferences: store,
		Sessions:    sessions,
		Catalog:     catalog,
		Hotplug:     devices.NewHotplugMonitor(logger, bus),
		Hub:         logHub,
		Logger:      logger,
		Local:       opts.Local,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and the state directory lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("arcam daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "camera negotiation may fail"),
		)
	}
	logger.Info("preflight complete",
		logging.String(logging.FieldEventType, "preflight_complete"),
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "arcam.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
