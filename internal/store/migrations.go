package store

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "attachments registry",
		SQL: `
CREATE TABLE IF NOT EXISTS attachments (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  conversation_id TEXT,
  filename TEXT NOT NULL,
  storage_locator TEXT NOT NULL,
  content_type TEXT,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  meta_json TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attachments_owner_created ON attachments(owner_id, created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "conversation and locator lookups",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_attachments_owner_conversation ON attachments(owner_id, conversation_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_attachments_storage_locator ON attachments(storage_locator);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// pendingMigrations returns the applied version and every later migration in
// version order.
func pendingMigrations(db *sql.DB) (int, []Migration, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, nil, fmt.Errorf("create migrations table: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return 0, nil, fmt.Errorf("read schema version: %w", err)
	}

	ordered := slices.Clone(migrations)
	slices.SortFunc(ordered, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	pending := slices.DeleteFunc(ordered, func(m Migration) bool { return m.Version <= current })
	return current, pending, nil
}

func latestVersion() int {
	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Version)
	}
	return latest
}

func runMigrations(db *sql.DB) error {
	_, pending, err := pendingMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration runs one migration and records it in the same transaction.
func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, dbFormatTime(time.Now())); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports the schema version of db without changing it.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, pending, err := pendingMigrations(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: latestVersion(),
		Pending:          make([]MigrationInfo, 0, len(pending)),
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}
