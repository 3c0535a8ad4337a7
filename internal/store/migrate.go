package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dispatch_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		served_by TEXT NOT NULL,
		source TEXT NOT NULL,
		model TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		rotations INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error_kind TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_outcomes_created ON dispatch_outcomes(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_outcomes_request ON dispatch_outcomes(request_id);`,
	`CREATE TABLE IF NOT EXISTS credential_exhaustions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		credential_index INTEGER NOT NULL,
		exhausted_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_credential_exhaustions_at ON credential_exhaustions(exhausted_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
