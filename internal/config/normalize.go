package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeScoring()
	c.normalizeTimings()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.FacingHint = strings.ToLower(strings.TrimSpace(c.Camera.FacingHint))
	if c.Camera.FacingHint == "" {
		c.Camera.FacingHint = defaultFacingHint
	}
	c.Camera.FocusMode = strings.ToLower(strings.TrimSpace(c.Camera.FocusMode))
	if c.Camera.FrameRate <= 0 {
		c.Camera.FrameRate = defaultFrameRate
	}
	if c.Camera.AspectRatio < 0 {
		c.Camera.AspectRatio = 0
	}
}

func (c *Config) normalizeScoring() {
	s := &c.Scoring
	s.Exclude = normalizeIndicators(s.Exclude)
	s.Telephoto = normalizeIndicators(s.Telephoto)
	s.UltraWide = normalizeIndicators(s.UltraWide)
	s.Primary = normalizeIndicators(s.Primary)
	s.Generic = normalizeIndicators(s.Generic)
}

// normalizeIndicators lowercases, trims, and de-duplicates label indicators
// while keeping their declared order.
func normalizeIndicators(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (c *Config) normalizeTimings() {
	if c.Zoom.Attempts <= 0 {
		c.Zoom.Attempts = defaultZoomAttempts
	}
	if c.Zoom.IntervalMS <= 0 {
		c.Zoom.IntervalMS = defaultZoomIntervalMS
	}
	if c.Zoom.HintTTLMS <= 0 {
		c.Zoom.HintTTLMS = defaultHintTTLMS
	}
	if c.Watchdog.IntervalMS <= 0 {
		c.Watchdog.IntervalMS = defaultWatchdogTickMS
	}
	if c.Session.ARReadyGraceMS < 0 {
		c.Session.ARReadyGraceMS = 0
	}
	if c.Session.BridgeTimeoutMS <= 0 {
		c.Session.BridgeTimeoutMS = defaultBridgeTimeoutMS
	}
	if c.Session.NegotiateTimeoutMS <= 0 {
		c.Session.NegotiateTimeoutMS = defaultNegotiateTimeoutMS
	}
	if c.Session.EventBufferSize <= 0 {
		c.Session.EventBufferSize = defaultEventBufferSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
