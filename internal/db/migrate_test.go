package db

import (
	"io/fs"
	"path/filepath"
	"testing"
)

// newUnmigratedDB opens a fresh database without touching the schema.
func newUnmigratedDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate-test.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func migrationsForTest(t *testing.T) fs.FS {
	t.Helper()
	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	return fsys
}

func TestMigrateUp(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}

	if !tableExists(t, db, "scenes") {
		t.Error("scenes table should exist after migration")
	}
	if !tableExists(t, db, "perturb_runs") {
		t.Error("perturb_runs table should exist after migration")
	}
	if !columnExists(t, db, "perturb_runs", "fit_cost") {
		t.Error("fit_cost column should exist after third migration")
	}
}

func TestMigrateUp_Idempotency(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("first MigrateUp failed: %v", err)
	}
	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	version, _, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3 after idempotent up, got %d", version)
	}
}

func TestMigrateDown(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	// Roll back the fit stats migration
	if err := db.MigrateDown(fsys); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2 after down migration, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful down migration")
	}

	if columnExists(t, db, "perturb_runs", "fit_cost") {
		t.Error("fit_cost column should not exist after rolling back third migration")
	}
	if !tableExists(t, db, "perturb_runs") {
		t.Error("perturb_runs should still exist after rolling back only third migration")
	}
}

func TestMigrateVersion_NoMigrations(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	version, dirty, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 before migrations, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty before any migrations")
	}
}

func TestMigrateForce(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	if err := db.MigrateForce(fsys, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, _, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after force, got %d", version)
	}
}

func TestMigrateTo(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	// Stop after the scenes migration
	if err := db.MigrateTo(fsys, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}

	version, _, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}
	if !tableExists(t, db, "scenes") {
		t.Error("scenes table should exist at version 1")
	}
	if tableExists(t, db, "perturb_runs") {
		t.Error("perturb_runs table should not exist at version 1")
	}

	// Continue to the latest version
	if err := db.MigrateTo(fsys, 3); err != nil {
		t.Fatalf("MigrateTo(3) failed: %v", err)
	}

	version, _, err = db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3, got %d", version)
	}
	if !columnExists(t, db, "perturb_runs", "fit_iterations") {
		t.Error("fit_iterations column should exist at version 3")
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db := newUnmigratedDB(t)

	if err := db.BaselineAtVersion(2); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	if !tableExists(t, db, "schema_migrations") {
		t.Error("schema_migrations table should exist after baseline")
	}

	var version int
	if err := db.QueryRow("SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected baseline version 2, got %d", version)
	}

	// Baselining twice must fail
	if err := db.BaselineAtVersion(3); err == nil {
		t.Error("expected error when baselining already-migrated database")
	}
}

func TestGetMigrationStatus(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	status, err := db.GetMigrationStatus(fsys)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["current_version"] != uint(0) {
		t.Errorf("expected version 0, got %v", status["current_version"])
	}
	if status["dirty"] != false {
		t.Error("expected dirty=false before migrations")
	}

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	status, err = db.GetMigrationStatus(fsys)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["current_version"] != uint(3) {
		t.Errorf("expected version 3, got %v", status["current_version"])
	}
	if status["schema_migrations_exists"] != true {
		t.Error("expected schema_migrations_exists=true after migrations")
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	fsys := migrationsForTest(t)

	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 3 {
		t.Errorf("expected latest version 3, got %d", latest)
	}
}

func TestCheckAndPromptMigrations(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	behind, err := db.CheckAndPromptMigrations(fsys)
	if !behind {
		t.Error("fresh database should be reported as behind")
	}
	if err == nil {
		t.Error("expected error describing the outstanding migrations")
	}

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	behind, err = db.CheckAndPromptMigrations(fsys)
	if err != nil {
		t.Fatalf("CheckAndPromptMigrations after up failed: %v", err)
	}
	if behind {
		t.Error("migrated database should not be reported as behind")
	}
}

func TestMigrateUpDown_FullCycle(t *testing.T) {
	db := newUnmigratedDB(t)
	fsys := migrationsForTest(t)

	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	// Roll everything back one step at a time
	for i := 0; i < 3; i++ {
		if err := db.MigrateDown(fsys); err != nil {
			t.Fatalf("MigrateDown %d failed: %v", i+1, err)
		}
	}

	version, _, err := db.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 after rolling back all, got %d", version)
	}
	if tableExists(t, db, "scenes") {
		t.Error("scenes table should not exist after rolling back all migrations")
	}

	// Rolling back past version 0 must error
	if err := db.MigrateDown(fsys); err == nil {
		t.Error("MigrateDown at version 0 should error (no migration to roll back)")
	}

	// Re-apply
	if err := db.MigrateUp(fsys); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
	if !tableExists(t, db, "scenes") {
		t.Error("scenes table should exist after re-applying migrations")
	}
}
