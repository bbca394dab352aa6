package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"arcam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWatchdogInterval shortens the watchdog tick.
func WithWatchdogInterval(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watchdog.IntervalMS = int(d / time.Millisecond)
	}
}

// WithBridgeTimeout shortens how long calls wait for the page.
func WithBridgeTimeout(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.BridgeTimeoutMS = int(d / time.Millisecond)
	}
}

// WithNegotiateTimeout bounds one negotiation through the page.
func WithNegotiateTimeout(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.NegotiateTimeoutMS = int(d / time.Millisecond)
	}
}

// WithARReadyGrace overrides the forced reselection window.
func WithARReadyGrace(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.ARReadyGraceMS = int(d / time.Millisecond)
	}
}

// WithAPIToken requires a bearer token on API calls.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
