package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteVideoNodes creates placeholder files standing in for /dev/video*
// nodes under dir and returns their paths.
func WriteVideoNodes(t testing.TB, dir string, names ...string) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
