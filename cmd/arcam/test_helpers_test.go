package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arcam/internal/config"
	"arcam/internal/daemon"
	"arcam/internal/logging"
	"arcam/internal/prefstore"
	"arcam/internal/session"
	"arcam/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	prefs      *prefstore.Store
	sessions   *session.Manager
	hub        *logging.StreamHub
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts a daemon on a loopback port and writes a config
// file pointing the CLI at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	prefs := testsupport.MustOpenPreferences(t, cfg)
	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "arcam.log")},
		Hub:         hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	sessions := session.NewManager(cfg, prefs, nil, logger)

	d, err := daemon.New(daemon.Deps{
		Config:      cfg,
		Preferences: prefs,
		Sessions:    sessions,
		Hub:         hub,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	env := &cliTestEnv{
		cfg:      cfg,
		prefs:    prefs,
		sessions: sessions,
		hub:      hub,
		daemon:   d,
	}
	env.configPath = writeTestConfig(t, cfg, d.Address())
	return env
}

// offlineConfig writes a config whose API bind has no listener.
func offlineConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return cfg, writeTestConfig(t, cfg, "127.0.0.1:1")
}

func writeTestConfig(t *testing.T, cfg *config.Config, bind string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	content := fmt.Sprintf("[paths]\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		bind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
