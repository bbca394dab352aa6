// Package config loads, normalizes, and validates arcam configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: the capture resolution envelope, the scoring rule
// weights, zoom and watchdog timings, and the AR-ready grace period that
// guards forced camera reselection.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
