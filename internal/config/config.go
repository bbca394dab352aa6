package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	// APIToken, when set, must be sent as a bearer token on every API call.
	APIToken string `toml:"api_token"`
}

// Camera describes the capture envelope requested from the platform.
type Camera struct {
	WidthIdeal  int     `toml:"width_ideal"`
	WidthMin    int     `toml:"width_min"`
	WidthMax    int     `toml:"width_max"`
	HeightIdeal int     `toml:"height_ideal"`
	HeightMin   int     `toml:"height_min"`
	HeightMax   int     `toml:"height_max"`
	FrameRate   int     `toml:"frame_rate"`
	AspectRatio float64 `toml:"aspect_ratio"`
	FacingHint  string  `toml:"facing_hint"`
	FocusMode   string  `toml:"focus_mode"`
	// PinZoom requests zoom 1.0 (ideal/min/max) in the first constraint set.
	PinZoom bool `toml:"pin_zoom"`
}

// Scoring is the label rule table consulted by the camera scoring engine.
type Scoring struct {
	Base              int      `toml:"base"`
	TelephotoPenalty  int      `toml:"telephoto_penalty"`
	UltraWidePenalty  int      `toml:"ultrawide_penalty"`
	PrimaryBonus      int      `toml:"primary_bonus"`
	GenericFirstBonus int      `toml:"generic_first_bonus"`
	FirstBonus        int      `toml:"first_bonus"`
	LastPenalty       int      `toml:"last_penalty"`
	Exclude           []string `toml:"exclude"`
	Telephoto         []string `toml:"telephoto"`
	UltraWide         []string `toml:"ultrawide"`
	Primary           []string `toml:"primary"`
	Generic           []string `toml:"generic"`
}

// Zoom contains timing for the zoom normalizer.
type Zoom struct {
	Attempts   int `toml:"attempts"`
	IntervalMS int `toml:"interval_ms"`
	HintTTLMS  int `toml:"hint_ttl_ms"`
}

// Watchdog contains thresholds for the layout watchdog.
type Watchdog struct {
	IntervalMS  int     `toml:"interval_ms"`
	MinCoverage float64 `toml:"min_coverage"`
	MaxOffsetPx float64 `toml:"max_offset_px"`
}

// Session contains per-AR-session settings.
type Session struct {
	// ARReadyGraceMS is how long after session start a telephoto grant may
	// still trigger a forced reselection. Past it, AR is assumed to work.
	ARReadyGraceMS  int `toml:"ar_ready_grace_ms"`
	EventBufferSize int `toml:"event_buffer_size"`
	// BridgeTimeoutMS bounds one command round trip to the browser page.
	BridgeTimeoutMS int `toml:"bridge_timeout_ms"`
	// NegotiateTimeoutMS bounds a whole negotiation through the page,
	// permission prompt included.
	NegotiateTimeoutMS int `toml:"negotiate_timeout_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for arcam.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and API bind address
//   - Camera: capture resolution envelope and hints
//   - Scoring: label indicators and weights
//   - Zoom: normalizer attempts and hint lifetime
//   - Watchdog: layout tick and drift thresholds
//   - Session: AR-ready grace period and event buffering
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Camera   Camera   `toml:"camera"`
	Scoring  Scoring  `toml:"scoring"`
	Zoom     Zoom     `toml:"zoom"`
	Watchdog Watchdog `toml:"watchdog"`
	Session  Session  `toml:"session"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/arcam/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("arcam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PreferencePath returns the sqlite database that stores the preferred camera.
func (c *Config) PreferencePath() string {
	return filepath.Join(c.Paths.StateDir, "preferences.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "arcam.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "arcam.pid")
}

// ZoomInterval returns the delay between zoom normalizer attempts.
func (c *Config) ZoomInterval() time.Duration {
	return time.Duration(c.Zoom.IntervalMS) * time.Millisecond
}

// HintTTL returns how long a transient hint stays visible.
func (c *Config) HintTTL() time.Duration {
	return time.Duration(c.Zoom.HintTTLMS) * time.Millisecond
}

// WatchdogInterval returns the layout watchdog tick.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Watchdog.IntervalMS) * time.Millisecond
}

// BridgeTimeout returns the per-command browser bridge timeout.
func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.Session.BridgeTimeoutMS) * time.Millisecond
}

// NegotiateTimeout returns the budget for one page negotiation.
func (c *Config) NegotiateTimeout() time.Duration {
	return time.Duration(c.Session.NegotiateTimeoutMS) * time.Millisecond
}

// ARReadyGrace returns the forced reselection window.
func (c *Config) ARReadyGrace() time.Duration {
	return time.Duration(c.Session.ARReadyGraceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
