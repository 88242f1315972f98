package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/client/lock"
	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

// AssessmentStatus describes the weekly self-check for the current identity.
type AssessmentStatus struct {
	Latest    *models.Assessment
	Locked    bool
	UnlocksAt time.Time
}

// AssessmentService runs the weekly PHQ-9 self-check.
//
// Contract:
//   - Submit refuses with common.ErrAssessmentLocked inside the cooldown.
//   - The result is cached locally per identity; a failed upload still
//     starts the local cooldown and is reported as ErrNotSynced.
type AssessmentService interface {
	Switch(ctx context.Context, s scope.UserScope)
	Status(ctx context.Context) (AssessmentStatus, error)
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, answers []int) (models.Assessment, error)
}

type assessmentService struct {
	mu     sync.Mutex
	client client.Client
	store  kv.Repository
	clock  scheduler.Clock
	log    logging.Logger
	scope  scope.UserScope
}

func NewAssessmentService(c client.Client, store kv.Repository, clock scheduler.Clock, log logging.Logger) AssessmentService {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &assessmentService{client: c, store: store, clock: clock, log: log, scope: scope.For("")}
}

func (s *assessmentService) Switch(_ context.Context, sc scope.UserScope) {
	s.mu.Lock()
	s.scope = sc
	s.mu.Unlock()
}

func (s *assessmentService) current() scope.UserScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func (s *assessmentService) load(ctx context.Context, sc scope.UserScope) (*models.Assessment, error) {
	raw, err := s.store.Get(ctx, sc.AssessmentNamespace)
	if err != nil {
		return nil, fmt.Errorf("read assessment: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	a := models.NormalizeAssessment(raw)
	return &a, nil
}

func (s *assessmentService) save(ctx context.Context, sc scope.UserScope, a models.Assessment) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, sc.AssessmentNamespace, b)
}

func (s *assessmentService) Status(ctx context.Context) (AssessmentStatus, error) {
	latest, err := s.load(ctx, s.current())
	if err != nil {
		return AssessmentStatus{}, err
	}

	st := AssessmentStatus{Latest: latest}
	if latest != nil {
		st.Locked = lock.AssessmentLocked(latest.LastSubmittedAt, s.clock.Now())
		st.UnlocksAt, _ = lock.AssessmentUnlocksAt(latest.LastSubmittedAt)
	}
	return st, nil
}

// Refresh replaces the cached result with the server's latest one when the
// server's is newer.
func (s *assessmentService) Refresh(ctx context.Context) error {
	sc := s.current()
	if sc.Anonymous() {
		return nil
	}

	remote, err := s.client.LatestAssessment(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	local, err := s.load(ctx, sc)
	if err != nil {
		return err
	}
	if local != nil && newer(local.LastSubmittedAt, remote.LastSubmittedAt) {
		return nil
	}
	return s.save(ctx, sc, remote)
}

func newer(a, b *int64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}

func (s *assessmentService) Submit(ctx context.Context, answers []int) (models.Assessment, error) {
	sc := s.current()

	st, err := s.Status(ctx)
	if err != nil {
		return models.Assessment{}, err
	}
	if st.Locked {
		return *st.Latest, common.ErrAssessmentLocked
	}

	now := s.clock.Now().UnixMilli()
	result := models.NormalizeAssessment(models.Assessment{Answers: answers, LastSubmittedAt: &now})

	var pushErr error
	if !sc.Anonymous() {
		stored, err := s.client.SubmitAssessment(ctx, result.Answers)
		switch {
		case errors.Is(err, common.ErrAssessmentLocked):
			return result, err
		case err != nil:
			pushErr = fmt.Errorf("%w: %v", ErrNotSynced, err)
		default:
			result = stored
		}
	}

	if err := s.save(ctx, sc, result); err != nil {
		s.log.Warn(ctx, "assessment not cached", "error", err)
	}
	return result, pushErr
}
