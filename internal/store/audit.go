package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OutcomeRecord is one completed dispatch written to the audit trail.
type OutcomeRecord struct {
	ID        int64
	RequestID string
	ServedBy  string
	Source    string
	Model     string
	Attempts  int
	Rotations int
	Duration  time.Duration
	ErrorKind string
	CreatedAt time.Time
}

// ExhaustionRecord is one credential quota exhaustion event.
type ExhaustionRecord struct {
	ID              int64
	CredentialIndex int
	ExhaustedAt     time.Time
}

// RecordOutcome appends a dispatch outcome to the audit trail.
func (s *Store) RecordOutcome(ctx context.Context, rec *OutcomeRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if rec == nil {
		return errors.New("outcome record is required")
	}
	if strings.TrimSpace(rec.RequestID) == "" {
		return errors.New("request id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var errorKind sql.NullString
	if strings.TrimSpace(rec.ErrorKind) != "" {
		errorKind = sql.NullString{String: rec.ErrorKind, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO dispatch_outcomes (request_id, served_by, source, model, attempts, rotations, duration_ms, error_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RequestID, rec.ServedBy, rec.Source, rec.Model, rec.Attempts, rec.Rotations,
		rec.Duration.Milliseconds(), errorKind, createdAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store dispatch outcome: %w", err)
	}

	return nil
}

// RecordExhaustion appends a credential exhaustion event.
func (s *Store) RecordExhaustion(ctx context.Context, credentialIndex int, at time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO credential_exhaustions (credential_index, exhausted_at)
		VALUES (?, ?)
	`, credentialIndex, at.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store credential exhaustion: %w", err)
	}

	return nil
}

// ListOutcomes returns the most recent dispatch outcomes, newest first.
func (s *Store) ListOutcomes(ctx context.Context, limit int) ([]OutcomeRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, request_id, served_by, source, model, attempts, rotations, duration_ms, error_kind, created_at
		FROM dispatch_outcomes
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatch outcomes: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []OutcomeRecord
	for rows.Next() {
		var (
			rec        OutcomeRecord
			durationMs int64
			errorKind  sql.NullString
			createdAt  int64
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ServedBy, &rec.Source, &rec.Model,
			&rec.Attempts, &rec.Rotations, &durationMs, &errorKind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dispatch outcome: %w", err)
		}

		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		if errorKind.Valid {
			rec.ErrorKind = errorKind.String
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dispatch outcomes: %w", err)
	}

	return records, nil
}

// ListExhaustions returns the most recent credential exhaustion events,
// newest first.
func (s *Store) ListExhaustions(ctx context.Context, limit int) ([]ExhaustionRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, credential_index, exhausted_at
		FROM credential_exhaustions
		ORDER BY exhausted_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list credential exhaustions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []ExhaustionRecord
	for rows.Next() {
		var (
			rec         ExhaustionRecord
			exhaustedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.CredentialIndex, &exhaustedAt); err != nil {
			return nil, fmt.Errorf("scan credential exhaustion: %w", err)
		}
		rec.ExhaustedAt = time.Unix(exhaustedAt, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential exhaustions: %w", err)
	}

	return records, nil
}
