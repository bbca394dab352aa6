package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"arcam/internal/api"
	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/preflight"
	"arcam/internal/prefstore"
)

// StatusClient is the part of the API client the control helpers need.
type StatusClient interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Local      bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// Launch starts a detached arcam daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.Local {
		args = append(args, "--local")
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the status endpoint until the daemon answers.
func WaitForAPI(ctx context.Context, client StatusClient, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		lastErr = err
		if err := sleep(ctx, pollInterval); err != nil {
			return api.DaemonStatus{}, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, client StatusClient, executablePath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForAPI(ctx, client, timeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: status.PID}, nil
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop sends SIGTERM to the daemon and escalates to SIGKILL when it is still
// answering after gracePeriod.
func Stop(ctx context.Context, client StatusClient, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if api.IsUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid, err := resolvePID(cfg.PIDPath(), status.PID)
	if err != nil {
		return StopResult{}, err
	}
	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if WaitForShutdown(ctx, client, gracePeriod) == nil {
		return result, nil
	}
	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(cfg.PIDPath())
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown waits for the daemon API to stop answering.
func WaitForShutdown(ctx context.Context, client StatusClient, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Status(ctx); err != nil && api.IsUnavailable(err) {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("daemon did not stop: timeout waiting for shutdown")
}

// BuildStatusSnapshot asks the daemon for status and, when it is down,
// fills checks and the stored preference from local state.
func BuildStatusSnapshot(ctx context.Context, client StatusClient, cfg *config.Config) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}
	status, err := client.Status(ctx)
	if err == nil {
		return status, nil
	}
	if !api.IsUnavailable(err) {
		return api.DaemonStatus{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	offline := api.DaemonStatus{
		LockFilePath:   cfg.LockPath(),
		PreferencePath: cfg.PreferencePath(),
		Sessions:       []api.Session{},
		Checks:         api.FromChecks(preflight.RunAll(queryCtx, cfg)),
	}
	probe := preflight.ProbeCameras(queryCtx, devices.NewSysfsCatalog(nil))
	offline.Cameras = probe.Detail()
	offline.CamerasDetected = probe.Detected
	if _, statErr := os.Stat(cfg.PreferencePath()); statErr == nil {
		if store, openErr := prefstore.Open(cfg.PreferencePath(), nil); openErr == nil {
			if id, ok, getErr := store.Get(queryCtx); getErr == nil && ok {
				offline.PreferredCamera = id
			}
			_ = store.Close()
		}
	}
	return offline, nil
}

func resolvePID(pidPath string, fallback int) (int, error) {
	pid := fallback
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	return pid, nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
