package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/skeinhq/skein/internal/types"
)

// currentSchemaVersion is bumped whenever the schema gains a migration.
// Version history:
//
//	1  initial schema
//	2  close_reason column on issues
//	3  archived_issues cold storage table
const currentSchemaVersion = 3

type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 2, apply: migrateCloseReason},
	{version: 3, apply: migrateArchiveTable},
}

// RunMigrations brings the database up to currentSchemaVersion. Each
// migration runs in its own transaction with the version bump, so a crash
// mid-sequence leaves a consistent prefix. A database written by a newer
// build is refused rather than half-understood.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return &types.MigrationError{
			Msg: fmt.Sprintf("database schema version %d is newer than this build supports (%d); upgrade the binary", version, currentSchemaVersion),
		}
	}
	if version == 0 {
		// Fresh database: the schema DDL already creates everything at the
		// current shape, so just stamp the version.
		return setSchemaVersion(ctx, db, currentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return &types.MigrationError{Msg: fmt.Sprintf("migration %d: begin: %v", m.version, err)}
		}
		if err := m.apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return &types.MigrationError{Msg: fmt.Sprintf("migration %d: %v", m.version, err)}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES ('schema_version', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			strconv.Itoa(m.version)); err != nil {
			_ = tx.Rollback()
			return &types.MigrationError{Msg: fmt.Sprintf("migration %d: record version: %v", m.version, err)}
		}
		if err := tx.Commit(); err != nil {
			return &types.MigrationError{Msg: fmt.Sprintf("migration %d: commit: %v", m.version, err)}
		}
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	// A fresh database has an empty issues table and no version row;
	// distinguish "fresh" from "version 1 pre-versioning" by whether any
	// data exists.
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT count(*) FROM issues`).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to probe issues table: %w", err)
		}
		if count == 0 {
			return 0, nil
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	version, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &types.MigrationError{Msg: fmt.Sprintf("schema_version %q is not a number", raw)}
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, db *sql.DB, version int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(version))
	if err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("record schema version: %v", err)}
	}
	return nil
}

func migrateCloseReason(ctx context.Context, tx *sql.Tx) error {
	if has, err := columnExists(ctx, tx, "issues", "close_reason"); err != nil || has {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`ALTER TABLE issues ADD COLUMN close_reason TEXT NOT NULL DEFAULT ''`)
	return err
}

func migrateArchiveTable(ctx context.Context, tx *sql.Tx) error {
	// Created by the schema DDL on any database opened by this build; the
	// migration exists so the version history stays linear.
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RebuildTable recreates a table with new column definitions, copying the
// columns common to both shapes. SQLite's ALTER TABLE cannot drop
// constraints or change column types, so destructive schema changes go
// through a create-copy-drop-rename sequence inside one transaction.
//
// newSchemaDDL is the column-definition body only (the text between the
// parentheses of CREATE TABLE). If the old and new shapes share no
// columns the rebuild is refused before any data is touched.
func RebuildTable(ctx context.Context, db *sql.DB, table, newSchemaDDL string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: begin: %v", table, err)}
	}
	defer func() { _ = tx.Rollback() }()

	oldCols, err := tableColumns(ctx, tx, table)
	if err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: %v", table, err)}
	}

	tmp := table + "_new"
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", tmp, newSchemaDDL)); err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: create: %v", table, err)}
	}
	newCols, err := tableColumns(ctx, tx, tmp)
	if err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: %v", table, err)}
	}

	var common []string
	newSet := make(map[string]bool, len(newCols))
	for _, c := range newCols {
		newSet[c] = true
	}
	for _, c := range oldCols {
		if newSet[c] {
			common = append(common, c)
		}
	}
	if len(common) == 0 {
		return &types.MigrationError{
			Msg: fmt.Sprintf("rebuild %s: old and new schemas share no columns; refusing to drop data", table),
		}
	}

	cols := strings.Join(common, ", ")
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tmp, cols, cols, table)); err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: copy: %v", table, err)}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", table)); err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: drop: %v", table, err)}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, table)); err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: rename: %v", table, err)}
	}
	if err := tx.Commit(); err != nil {
		return &types.MigrationError{Msg: fmt.Sprintf("rebuild %s: commit: %v", table, err)}
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
