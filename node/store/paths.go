package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// VaultDir returns the on-disk directory for the vault store under
// datadir: datadir/vaults/
func VaultDir(datadir string) string {
	return filepath.Join(datadir, "vaults")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
