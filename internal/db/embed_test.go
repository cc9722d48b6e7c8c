package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// TestEmbeddedMigrationsFS verifies the embedded migrations filesystem structure
func TestEmbeddedMigrationsFS(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("Failed to read migrations/ subdirectory: %v", err)
	}
	if len(entries) != 6 {
		t.Errorf("expected 6 embedded migration files, got %d", len(entries))
	}
	for _, entry := range entries {
		t.Logf("  %s", entry.Name())
	}

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	// The returned FS is rooted at the migration files themselves
	upFiles, err := fs.Glob(migFS, "*.up.sql")
	if err != nil {
		t.Fatalf("Failed to glob up migrations: %v", err)
	}
	if len(upFiles) != 3 {
		t.Errorf("expected 3 up migrations, got %d", len(upFiles))
	}
	downFiles, err := fs.Glob(migFS, "*.down.sql")
	if err != nil {
		t.Fatalf("Failed to glob down migrations: %v", err)
	}
	if len(downFiles) != 3 {
		t.Errorf("expected 3 down migrations, got %d", len(downFiles))
	}
}

func TestMigrationsDirOverride(t *testing.T) {
	dir := t.TempDir()
	content := "CREATE TABLE override_probe (id INTEGER PRIMARY KEY);"
	if err := os.WriteFile(filepath.Join(dir, "000001_probe.up.sql"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write probe migration: %v", err)
	}

	t.Setenv("TRAJLAB_MIGRATIONS_DIR", dir)

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	entries, err := fs.ReadDir(migFS, ".")
	if err != nil {
		t.Fatalf("Failed to read override FS: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "000001_probe.up.sql" {
		t.Errorf("override FS should expose the probe migration, got %v", entries)
	}
}
