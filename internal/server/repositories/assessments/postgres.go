// Package assessments stores weekly self-check results in PostgreSQL.
package assessments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, a models.Assessment) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	query := `INSERT INTO assessments (id, user_id, answers, score, severity, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	res, err := r.db.ExecContext(ctx, query, a.ID, a.UserID, string(answers), a.Score, a.Severity, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// LockUser takes a transaction-scoped advisory lock on userID. Submissions
// run check-then-insert under it, so two of them cannot share one window.
func (r *PostgresRepository) LockUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string) (models.Assessment, error) {
	query := `SELECT id, user_id, answers, score, severity, submitted_at FROM assessments
		WHERE user_id=$1 ORDER BY submitted_at DESC LIMIT 1`

	var (
		a       models.Assessment
		answers []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&a.ID, &a.UserID, &answers, &a.Score, &a.Severity, &a.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assessment{}, common.ErrorNotFound
	}
	if err != nil {
		return models.Assessment{}, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return models.Assessment{}, fmt.Errorf("decode answers: %w", err)
	}
	return a, nil
}
