package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arcam/internal/api"
)

var ErrFiltersRequireAPI = errors.New("log filters require API access")

// LogClient fetches structured events from the daemon.
type LogClient interface {
	Logs(ctx context.Context, q api.LogQuery) (api.LogStreamResponse, error)
}

// Filters narrow the API stream.
type Filters struct {
	Component string
	SessionID string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" && strings.TrimSpace(f.SessionID) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
	// LogPath is read directly when the daemon API is down.
	LogPath string
}

// Stream emits daemon log events, falling back to the log file when the API
// is unreachable. It reports whether anything was emitted.
func Stream(ctx context.Context, client LogClient, opts Options, onEvent func(api.LogEvent), onLine func(string)) (bool, error) {
	printed, err := streamAPI(ctx, client, opts, onEvent)
	if err == nil || !api.IsUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, api.ErrUnavailable)
	}
	if strings.TrimSpace(opts.LogPath) == "" {
		return false, api.ErrUnavailable
	}
	return streamFile(ctx, opts, onLine)
}

func streamAPI(ctx context.Context, client LogClient, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	if client == nil {
		return false, api.ErrUnavailable
	}
	query := api.LogQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		SessionID: opts.Filters.SessionID,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if printed && ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, opts Options, onLine func(string)) (bool, error) {
	lines, offset, err := lastLines(opts.LogPath, max(opts.Lines, 0))
	if err != nil {
		return false, err
	}
	printed := emit(lines, onLine)
	if !opts.Follow {
		return printed, nil
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return printed, nil
		case <-ticker.C:
		}
		lines, offset, err = readFrom(opts.LogPath, offset)
		if err != nil {
			return printed, err
		}
		if emit(lines, onLine) {
			printed = true
		}
	}
}

func emit(lines []string, onLine func(string)) bool {
	if onLine != nil {
		for _, line := range lines {
			onLine(line)
		}
	}
	return len(lines) > 0
}
