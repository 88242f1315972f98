package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/lock"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AssessmentService records weekly self-checks and enforces the cooldown
// independently of the client.
type AssessmentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
	newID       func() string
}

func NewAssessmentService(db *sql.DB, repomanager repomanager.RepositoryManager) *AssessmentService {
	return &AssessmentService{
		db:          db,
		repomanager: repomanager,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// Submit scores and stores answers. It returns common.ErrAssessmentLocked
// while the previous result is younger than the cooldown.
func (s *AssessmentService) Submit(ctx context.Context, userID string, answers []int) (models.Assessment, error) {
	if err := models.ValidateAnswers(answers); err != nil {
		return models.Assessment{}, err
	}

	var result models.Assessment
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Assessments(tx)

		if err := repo.LockUser(ctx, userID); err != nil {
			return err
		}

		now := s.now()
		last, err := repo.Latest(ctx, userID)
		switch {
		case err == nil:
			if lock.AssessmentLocked(&last.SubmittedAt, now) {
				return common.ErrAssessmentLocked
			}
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		result = models.NewAssessment(s.newID(), userID, answers, now.UnixMilli())
		return repo.Insert(ctx, result)
	})
	if err != nil {
		return models.Assessment{}, fmt.Errorf("submit assessment: %w", err)
	}
	return result, nil
}

// Latest returns the newest result or common.ErrorNotFound.
func (s *AssessmentService) Latest(ctx context.Context, userID string) (models.Assessment, error) {
	return s.repomanager.Assessments(s.db).Latest(ctx, userID)
}
