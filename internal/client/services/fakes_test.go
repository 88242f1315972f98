package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const day = "2024-05-01"

var start = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{UserID: userID}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

// fakeServer mimics the REST backend: stale pushes are ignored, the
// submission time is assigned once and cleared by a reset.
type fakeServer struct {
	client.Client

	mu      sync.Mutex
	clock   scheduler.Clock
	token   string
	rows    map[string]map[string]models.Entry
	upserts []models.Entry
	synced  int
	fail    error

	assessment *models.Assessment
	assessErr  error
}

func newFakeServer(clock scheduler.Clock) *fakeServer {
	return &fakeServer{clock: clock, rows: map[string]map[string]models.Entry{}}
}

func (f *fakeServer) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeServer) Ping(context.Context) error { return f.fail }

func (f *fakeServer) user() (string, error) {
	id, err := UserIDFromToken(f.token)
	if err != nil {
		return "", client.ErrUnauthorized
	}
	return id, nil
}

func (f *fakeServer) store(user string, e models.Entry) models.Entry {
	rows := f.rows[user]
	if rows == nil {
		rows = map[string]models.Entry{}
		f.rows[user] = rows
	}

	prev, ok := rows[e.DateKey]
	if ok && e.ClientUpdatedAt < prev.ClientUpdatedAt {
		return prev
	}

	e.DaySubmittedAt = nil
	if e.DaySubmitted {
		if ok && prev.DaySubmitted && prev.DaySubmittedAt != nil {
			e.DaySubmittedAt = prev.DaySubmittedAt
		} else {
			e.DaySubmittedAt = ptr(f.clock.Now().UnixMilli() + 1)
		}
	}
	rows[e.DateKey] = e
	return e
}

func (f *fakeServer) Upsert(_ context.Context, e models.Entry) (models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return models.Entry{}, f.fail
	}
	user, err := f.user()
	if err != nil {
		return models.Entry{}, err
	}
	f.upserts = append(f.upserts, e)
	return f.store(user, e), nil
}

func (f *fakeServer) Sync(_ context.Context, batch []models.Entry) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	user, err := f.user()
	if err != nil {
		return nil, err
	}
	f.synced++
	out := make([]models.Entry, 0, len(batch))
	for _, e := range batch {
		out = append(out, f.store(user, e))
	}
	return out, nil
}

func (f *fakeServer) FetchRange(_ context.Context, from, to string) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	user, err := f.user()
	if err != nil {
		return nil, err
	}
	var out []models.Entry
	for k, e := range f.rows[user] {
		if k >= from && k <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeServer) SubmitAssessment(_ context.Context, answers []int) (models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return models.Assessment{}, f.fail
	}
	if f.assessErr != nil {
		return models.Assessment{}, f.assessErr
	}
	a := models.NormalizeAssessment(models.Assessment{Answers: answers, LastSubmittedAt: ptr(f.clock.Now().UnixMilli())})
	f.assessment = &a
	return a, nil
}

func (f *fakeServer) LatestAssessment(context.Context) (models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.assessment == nil {
		return models.Assessment{}, common.ErrorNotFound
	}
	return *f.assessment, nil
}

func (f *fakeServer) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

type harness struct {
	store    *kv.SQLiteRepository
	repo     *entries.KVRepository
	srv      *fakeServer
	clock    *scheduler.FakeClock
	notices  []Notice
	journal  JournalService
	assess   AssessmentService
	session  SessionService
	migrator *scope.Migrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := kv.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{clock: scheduler.NewFakeClock(start)}
	h.store = kv.NewSQLiteRepository(db)
	h.repo = entries.NewKVRepository(h.store, nil)
	h.srv = newFakeServer(h.clock)
	h.migrator = scope.NewMigrator(h.store, h.repo, nil)

	h.journal = NewJournalService(h.srv, h.repo, JournalOptions{
		Clock:    h.clock,
		Location: time.UTC,
		OnNotice: func(n Notice) { h.notices = append(h.notices, n) },
	})
	t.Cleanup(h.journal.Close)

	h.assess = NewAssessmentService(h.srv, h.store, h.clock, nil)
	h.session = NewSessionService(h.srv, h.store, h.migrator, h.journal, h.assess, nil)
	return h
}

func (h *harness) signIn(t *testing.T, userID string) {
	t.Helper()
	_, _, err := h.session.SignIn(context.Background(), tokenFor(t, userID))
	require.NoError(t, err)
}
