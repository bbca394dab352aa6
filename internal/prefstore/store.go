package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"arcam/internal/logging"
)

// KeyPreferredCamera is the only key arcam persists.
const KeyPreferredCamera = "preferredCameraId"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is the SQLite-backed preference store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or connects to the preference database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "prefstore")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored camera id.
func (s *Store) Get(ctx context.Context) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", KeyPreferredCamera).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference: %w", err)
	}
	return value, true, nil
}

// Set stores id as the preferred camera.
func (s *Store) Set(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("preferred camera id must not be empty")
	}
	err := s.exec(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		KeyPreferredCamera, id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write preference: %w", err)
	}
	s.logger.Debug("preference stored", logging.String(logging.FieldDeviceID, id))
	return nil
}

// Delete removes the stored preference. Deleting a missing key is not an
// error.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.exec(ctx, "DELETE FROM preferences WHERE key = ?", KeyPreferredCamera); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	s.logger.Debug("preference cleared")
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
