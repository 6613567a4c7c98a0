package sqlite

import (
	"context"
	"database/sql"

	"github.com/skeinhq/skein/internal/types"
)

// SetConfig upserts a key in the store's config table. The issue prefix
// and schema version live here; callers must not clobber schema_version.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return types.Validationf("config key must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return wrapDBError("failed to set config", err)
	}
	return nil
}

// GetConfig reads a config key, returning a typed not-found error for an
// absent key.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", &types.NotFoundError{Kind: "config", ID: key}
	}
	if err != nil {
		return "", wrapDBError("failed to read config", err)
	}
	return value, nil
}
