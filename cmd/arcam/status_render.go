package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"arcam/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusKinds[kind]
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if colorize && style.color != "" {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLines renders the daemon summary block.
func statusLines(status api.DaemonStatus, colorize bool) []string {
	var lines []string
	if status.Running {
		msg := fmt.Sprintf("Running (pid %d)", status.PID)
		if status.Local {
			msg += ", local cameras"
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	if status.StartedAt != "" {
		lines = append(lines, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
	}
	if status.PreferredCamera != "" {
		lines = append(lines, renderStatusLine("Preferred camera", statusInfo, status.PreferredCamera, colorize))
	} else {
		lines = append(lines, renderStatusLine("Preferred camera", statusInfo, "none stored", colorize))
	}
	if status.Cameras != "" {
		kind := statusOK
		if !status.CamerasDetected {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Cameras", kind, status.Cameras, colorize))
	}
	if status.DroppedEvents > 0 {
		lines = append(lines, renderStatusLine("Dropped events", statusWarn, fmt.Sprint(status.DroppedEvents), colorize))
	}
	return lines
}

func checkLines(checks []api.CheckResult, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func sessionRows(sessions []api.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		device := s.Device
		if device == "" {
			device = "-"
		}
		retry := "-"
		if s.RetryRequired {
			retry = valueOrDash(s.RetryReason)
		}
		rows = append(rows, []string{
			shortSessionID(s.ID),
			device,
			valueOrDash(s.Strategy),
			yesNo(s.Connected),
			fmt.Sprint(s.Corrections),
			retry,
		})
	}
	return rows
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
