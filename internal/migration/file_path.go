package migration

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

const (
	modulePath       = "github.com/elskow/rubric-eval"
	migrationsDirEnv = "RUBRIC_MIGRATIONS_DIR"
)

// getMigrationsDir returns the absolute path to the migrations directory.
// RUBRIC_MIGRATIONS_DIR wins when set, so deployed binaries need no source tree.
func getMigrationsDir() (string, error) {
	if dir := os.Getenv(migrationsDirEnv); dir != "" {
		return filepath.Abs(dir)
	}

	// First, try to find go.mod
	dir, err := findModuleRoot()
	if err != nil {
		return "", fmt.Errorf("failed to find project root: %w", err)
	}

	return filepath.Join(dir, "migrations"), nil
}

// findModuleRoot returns the root directory of the module
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		gomod := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(gomod); err == nil {
			// Verify this is our module
			content, err := os.ReadFile(gomod)
			if err != nil {
				return "", err
			}

			if modfile.ModulePath(content) == modulePath {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
