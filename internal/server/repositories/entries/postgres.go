// Package entries provides the PostgreSQL-backed repository for journal
// entries, one row per user and calendar day.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

const entryColumns = `user_id, date_key, mood, reason, notes, day_submitted, day_submitted_at, client_updated_at, updated_at`

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		e           models.Entry
		submittedAt sql.NullInt64
	)
	if err := s.Scan(&e.UserID, &e.DateKey, &e.Mood, &e.Reason, &e.Notes,
		&e.DaySubmitted, &submittedAt, &e.ClientUpdatedAt, &e.UpdatedAt); err != nil {
		return models.Entry{}, err
	}
	if submittedAt.Valid {
		at := submittedAt.Int64
		e.DaySubmittedAt = &at
	}
	return e, nil
}

// Get loads one row. Inside a transaction the row stays locked until commit,
// so concurrent pushes for the same day are applied one after another.
func (r *PostgresRepository) Get(ctx context.Context, userID, dateKey string) (models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id=$1 AND date_key=$2 FOR UPDATE`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, userID, dateKey))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, common.ErrorNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, e models.Entry) (models.Entry, error) {
	query := `
		INSERT INTO entries (user_id, date_key, mood, reason, notes, day_submitted, day_submitted_at, client_updated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, date_key)
		DO UPDATE SET
			mood = EXCLUDED.mood,
			reason = EXCLUDED.reason,
			notes = EXCLUDED.notes,
			day_submitted = EXCLUDED.day_submitted,
			day_submitted_at = EXCLUDED.day_submitted_at,
			client_updated_at = EXCLUDED.client_updated_at,
			updated_at = now()
		RETURNING updated_at;
	`
	var submittedAt sql.NullInt64
	if e.DaySubmittedAt != nil {
		submittedAt = sql.NullInt64{Int64: *e.DaySubmittedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.DateKey, e.Mood, e.Reason, e.Notes, e.DaySubmitted, submittedAt, e.ClientUpdatedAt,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return models.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Range(ctx context.Context, userID, from, to string) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id=$1 AND date_key >= $2 AND date_key <= $3
		ORDER BY date_key`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	return dbx.CollectRows(rows, func(rows *sql.Rows) (models.Entry, error) { return scanEntry(rows) })
}

func (r *PostgresRepository) All(ctx context.Context, userID string) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id=$1 ORDER BY date_key`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	return dbx.CollectRows(rows, func(rows *sql.Rows) (models.Entry, error) { return scanEntry(rows) })
}
