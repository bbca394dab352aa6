package testsupport

import (
	"testing"

	"arcam/internal/config"
	"arcam/internal/logging"
	"arcam/internal/prefstore"
)

// MustOpenPreferences opens the preference store for tests and registers
// cleanup.
func MustOpenPreferences(t testing.TB, cfg *config.Config) *prefstore.Store {
	t.Helper()

	store, err := prefstore.Open(cfg.PreferencePath(), logging.NewNop())
	if err != nil {
		t.Fatalf("open preference store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
