package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/assessments"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
)

var (
	start    = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	storedAt = time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC)
)

// -------- test fakes --------

type fakeEntriesRepo struct {
	entries.Repository
	rows map[string]models.Entry

	getErr    error
	upsertErr error
	rangeErr  error

	upserts   int
	rangeArgs []string
}

func newFakeEntriesRepo() *fakeEntriesRepo {
	return &fakeEntriesRepo{rows: map[string]models.Entry{}}
}

func rowKey(userID, dateKey string) string { return userID + "|" + dateKey }

func (f *fakeEntriesRepo) Get(ctx context.Context, userID, dateKey string) (models.Entry, error) {
	if f.getErr != nil {
		return models.Entry{}, f.getErr
	}
	e, ok := f.rows[rowKey(userID, dateKey)]
	if !ok {
		return models.Entry{}, common.ErrorNotFound
	}
	return e, nil
}

func (f *fakeEntriesRepo) Upsert(ctx context.Context, e models.Entry) (models.Entry, error) {
	if f.upsertErr != nil {
		return models.Entry{}, f.upsertErr
	}
	e.UpdatedAt = storedAt
	f.rows[rowKey(e.UserID, e.DateKey)] = e
	f.upserts++
	return e, nil
}

func (f *fakeEntriesRepo) Range(ctx context.Context, userID, from, to string) ([]models.Entry, error) {
	f.rangeArgs = []string{userID, from, to}
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []models.Entry
	for _, e := range f.sorted(userID) {
		if e.DateKey >= from && e.DateKey <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntriesRepo) All(ctx context.Context, userID string) ([]models.Entry, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	return f.sorted(userID), nil
}

func (f *fakeEntriesRepo) sorted(userID string) []models.Entry {
	var out []models.Entry
	for _, e := range f.rows {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey < out[j].DateKey })
	return out
}

type fakeAssessmentsRepo struct {
	assessments.Repository
	stored []models.Assessment

	lockErr   error
	latestErr error
	insertErr error

	locks int
}

func (f *fakeAssessmentsRepo) LockUser(ctx context.Context, userID string) error {
	f.locks++
	return f.lockErr
}

func (f *fakeAssessmentsRepo) Latest(ctx context.Context, userID string) (models.Assessment, error) {
	if f.latestErr != nil {
		return models.Assessment{}, f.latestErr
	}
	for i := len(f.stored) - 1; i >= 0; i-- {
		if f.stored[i].UserID == userID {
			return f.stored[i], nil
		}
	}
	return models.Assessment{}, common.ErrorNotFound
}

func (f *fakeAssessmentsRepo) Insert(ctx context.Context, a models.Assessment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.stored = append(f.stored, a)
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	e *fakeEntriesRepo
	a *fakeAssessmentsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{e: newFakeEntriesRepo(), a: &fakeAssessmentsRepo{}}
}

func (m *fakeRepoManager) Entries(dbx.DBTX) entries.Repository         { return m.e }
func (m *fakeRepoManager) Assessments(dbx.DBTX) assessments.Repository { return m.a }

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func ptr[T any](v T) *T { return &v }

func newAssessmentFor(userID string) models.Assessment {
	return models.NewAssessment("id-"+userID, userID, []int{0, 0, 0, 0, 0, 0, 0, 0, 0}, start.UnixMilli())
}
