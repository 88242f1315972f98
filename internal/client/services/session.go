package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// tokenKey holds the bearer token between CLI invocations.
const tokenKey = "journal:session:token"

// SessionService ties the identity to the journal and assessment services.
//
// Contract:
//   - SignIn derives the user id from the token, runs the legacy migration,
//     records the device owner and switches every service to the new scope.
//   - SignOut flushes pending pushes and switches back to the anonymous scope.
//   - Restore re-applies the token saved by a previous SignIn.
type SessionService interface {
	SignIn(ctx context.Context, token string) (scope.UserScope, bool, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) (scope.UserScope, error)
	Current() scope.UserScope

	AcceptTerms(ctx context.Context) error
	TermsAccepted(ctx context.Context) (bool, error)

	Ping(ctx context.Context) error
}

type sessionService struct {
	client      client.Client
	store       kv.Repository
	migrator    *scope.Migrator
	journal     JournalService
	assessments AssessmentService
	log         logging.Logger
}

func NewSessionService(c client.Client, store kv.Repository, migrator *scope.Migrator, journal JournalService, assessments AssessmentService, log logging.Logger) SessionService {
	if log == nil {
		log = logging.Nop()
	}
	return &sessionService{client: c, store: store, migrator: migrator, journal: journal, assessments: assessments, log: log}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string
}

// UserIDFromToken reads the user id claim without verifying the signature;
// the server verifies every request.
func UserIDFromToken(token string) (string, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" || id == scope.AnonUserID {
		return "", common.ErrInvalidToken
	}
	return id, nil
}

func (s *sessionService) SignIn(ctx context.Context, token string) (scope.UserScope, bool, error) {
	userID, err := UserIDFromToken(token)
	if err != nil {
		return s.Current(), false, err
	}

	sc := scope.For(userID)

	migrated, err := s.migrator.Migrate(ctx, sc)
	if err != nil {
		s.log.Warn(ctx, "legacy migration skipped", "user", userID, "error", err)
	}
	if err := s.migrator.RecordOwner(ctx, userID); err != nil {
		s.log.Warn(ctx, "owner marker not recorded", "user", userID, "error", err)
	}

	if err := s.store.Set(ctx, tokenKey, []byte(strings.TrimSpace(token))); err != nil {
		s.log.Warn(ctx, "token not persisted", "error", err)
	}

	s.client.SetToken(strings.TrimSpace(token))
	s.journal.Switch(ctx, sc)
	s.assessments.Switch(ctx, sc)

	if migrated {
		s.journal.MarkPending(ctx)
	}

	s.log.Info(ctx, "signed in", "user", userID, "migrated", migrated)
	return sc, migrated, nil
}

func (s *sessionService) SignOut(ctx context.Context) error {
	if err := s.journal.Flush(ctx); err != nil {
		s.log.Warn(ctx, "pending pushes kept for next sign-in", "error", err)
	}

	if err := s.store.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("forget token: %w", err)
	}

	if err := s.migrator.ReleaseOwner(ctx, s.Current().UserID); err != nil {
		s.log.Warn(ctx, "owner marker not released", "error", err)
	}

	anon := scope.For("")
	s.client.SetToken("")
	s.journal.Switch(ctx, anon)
	s.assessments.Switch(ctx, anon)
	return nil
}

func (s *sessionService) Restore(ctx context.Context) (scope.UserScope, error) {
	raw, err := s.store.Get(ctx, tokenKey)
	if err != nil {
		return s.Current(), fmt.Errorf("read token: %w", err)
	}
	if len(raw) == 0 {
		return s.Current(), nil
	}

	sc, _, err := s.SignIn(ctx, string(raw))
	return sc, err
}

func (s *sessionService) Current() scope.UserScope {
	return s.journal.Scope()
}

func (s *sessionService) AcceptTerms(ctx context.Context) error {
	if err := s.store.Set(ctx, s.Current().TermsNamespace, []byte("true")); err != nil {
		return fmt.Errorf("store terms acceptance: %w", err)
	}
	return nil
}

func (s *sessionService) TermsAccepted(ctx context.Context) (bool, error) {
	v, err := s.store.Get(ctx, s.Current().TermsNamespace)
	if err != nil {
		return false, fmt.Errorf("read terms acceptance: %w", err)
	}
	return string(v) == "true", nil
}

func (s *sessionService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
