package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	clientmodels "github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
)

const lastDateKey = "9999-12-31"

// JournalService applies client pushes to the stored journal.
type JournalService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewJournalService(db *sql.DB, repomanager repomanager.RepositoryManager) *JournalService {
	return &JournalService{
		db:          db,
		repomanager: repomanager,
		now:         time.Now,
	}
}

// resolve decides what to store for a push. A push older than the stored row
// is dropped and the stored row is kept (write=false). Submission time is
// stamped on the first submit, kept on re-submit and cleared by a reset.
func resolve(stored *models.Entry, in models.Entry, now int64) (out models.Entry, write bool) {
	if stored != nil && in.ClientUpdatedAt < stored.ClientUpdatedAt {
		return *stored, false
	}

	in.DaySubmittedAt = nil
	if in.DaySubmitted {
		if stored != nil && stored.DaySubmitted && stored.DaySubmittedAt != nil {
			at := *stored.DaySubmittedAt
			in.DaySubmittedAt = &at
		} else {
			in.DaySubmittedAt = &now
		}
	}
	return in, true
}

func (s *JournalService) upsert(ctx context.Context, repo entries.Repository, e models.Entry) (models.Entry, error) {
	var stored *models.Entry
	current, err := repo.Get(ctx, e.UserID, e.DateKey)
	switch {
	case err == nil:
		stored = &current
	case !errors.Is(err, common.ErrorNotFound):
		return models.Entry{}, err
	}

	out, write := resolve(stored, e, s.now().UnixMilli())
	if !write {
		return out, nil
	}
	return repo.Upsert(ctx, out)
}

// Upsert stores one pushed entry and returns the row as persisted.
func (s *JournalService) Upsert(ctx context.Context, userID string, in models.EntryInput) (models.Entry, error) {
	if err := in.Validate(); err != nil {
		return models.Entry{}, err
	}

	var result models.Entry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.upsert(ctx, s.repomanager.Entries(tx), in.ToEntry(userID))
		return err
	})
	if err != nil {
		return models.Entry{}, fmt.Errorf("upsert entry: %w", err)
	}
	return result, nil
}

// Sync applies a batch in one transaction. One invalid item rejects the
// batch before anything is written.
func (s *JournalService) Sync(ctx context.Context, userID string, batch []models.EntryInput) ([]models.Entry, error) {
	for _, in := range batch {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}

	result := make([]models.Entry, 0, len(batch))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Entries(tx)
		for _, in := range batch {
			e, err := s.upsert(ctx, repo, in.ToEntry(userID))
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync entries: %w", err)
	}
	return result, nil
}

// Range returns the user's entries with from <= dateKey <= to. Either bound
// may be empty to leave that side open.
func (s *JournalService) Range(ctx context.Context, userID, from, to string) ([]models.Entry, error) {
	for _, k := range []string{from, to} {
		if k != "" && !clientmodels.ValidDateKey(k) {
			return nil, fmt.Errorf("%w: %q", common.ErrInvalidDateKey, k)
		}
	}
	if to == "" {
		to = lastDateKey
	}
	if from > to {
		return nil, fmt.Errorf("%w: from %s is after to %s", common.ErrorValidation, from, to)
	}

	list, err := s.repomanager.Entries(s.db).Range(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return list, nil
}
