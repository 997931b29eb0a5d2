package xsmvm

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// newSessionDir creates a UUID-named working directory under base so
// the `mem` side-channel file does not collide across concurrent
// sessions sharing a machine. If base is empty, the directory is
// created under os.TempDir().
func newSessionDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "xsmdbg-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
