package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateCamera() error {
	cam := c.Camera
	if err := validateEnvelope("camera.width", cam.WidthMin, cam.WidthIdeal, cam.WidthMax); err != nil {
		return err
	}
	if err := validateEnvelope("camera.height", cam.HeightMin, cam.HeightIdeal, cam.HeightMax); err != nil {
		return err
	}
	switch cam.FacingHint {
	case "environment", "user", "left", "right":
	default:
		return fmt.Errorf("camera.facing_hint: unsupported value %q", cam.FacingHint)
	}
	switch cam.FocusMode {
	case "", "continuous", "manual", "single-shot", "none":
	default:
		return fmt.Errorf("camera.focus_mode: unsupported value %q", cam.FocusMode)
	}
	return nil
}

func validateEnvelope(name string, minimum, ideal, maximum int) error {
	if ideal <= 0 {
		return fmt.Errorf("%s_ideal must be positive", name)
	}
	if minimum < 0 || maximum < 0 {
		return fmt.Errorf("%s bounds must not be negative", name)
	}
	if minimum > 0 && ideal < minimum {
		return fmt.Errorf("%s_ideal %d below %s_min %d", name, ideal, name, minimum)
	}
	if maximum > 0 && ideal > maximum {
		return fmt.Errorf("%s_ideal %d above %s_max %d", name, ideal, name, maximum)
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.Base <= 0 {
		return errors.New("scoring.base must be positive")
	}
	if len(c.Scoring.Exclude) == 0 {
		return errors.New("scoring.exclude must list at least one front-camera indicator")
	}
	if len(c.Scoring.Telephoto) == 0 {
		return errors.New("scoring.telephoto must list at least one indicator")
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	if c.Watchdog.MinCoverage <= 0 || c.Watchdog.MinCoverage > 1 {
		return fmt.Errorf("watchdog.min_coverage must be in (0, 1], got %v", c.Watchdog.MinCoverage)
	}
	if c.Watchdog.MaxOffsetPx < 0 {
		return errors.New("watchdog.max_offset_px must not be negative")
	}
	return nil
}
