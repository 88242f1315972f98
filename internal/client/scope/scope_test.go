package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	kv.Repository
	data   map[string][]byte
	getErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, getErr: map[string]error{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := m.getErr[key]; err != nil {
		return nil, err
	}
	return m.data[key], nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func setup(t *testing.T) (*memStore, *entries.KVRepository, *Migrator) {
	t.Helper()
	store := newMemStore()
	repo := entries.NewKVRepository(store, nil)
	return store, repo, NewMigrator(store, repo, nil)
}

func calm(key string) models.EntryMap {
	return models.EntryMap{key: {DateKey: key, Mood: models.MoodCalm, ClientUpdatedAt: 1}}
}

func TestFor(t *testing.T) {
	anon := For("")
	assert.True(t, anon.Anonymous())
	assert.Equal(t, "journal:anon:entries", anon.EntriesNamespace)
	assert.Equal(t, "journal:anon:terms", anon.TermsNamespace)

	s := For(" 42 ")
	assert.False(t, s.Anonymous())
	assert.Equal(t, "journal:42:entries", s.EntriesNamespace)
	assert.Equal(t, "journal:42:pending", s.PendingNamespace)
	assert.Equal(t, "journal:42:assessment", s.AssessmentNamespace)
	assert.Equal(t, "journal:42:", s.Prefix())
	assert.NotEqual(t, For("43").EntriesNamespace, s.EntriesNamespace)
}

func TestScopedIsolation(t *testing.T) {
	_, repo, _ := setup(t)
	ctx := context.Background()

	require.True(t, repo.Commit(ctx, For("A").EntriesNamespace, calm("2024-05-01")))
	assert.Empty(t, repo.Load(ctx, For("B").EntriesNamespace))
}

func TestMigrate_ImportsForRecordedOwner(t *testing.T) {
	store, repo, m := setup(t)
	ctx := context.Background()

	require.True(t, repo.Commit(ctx, LegacyEntriesNamespace, calm("2024-04-30")))
	require.True(t, repo.Commit(ctx, For("").EntriesNamespace, calm("2024-05-01")))
	store.data[LegacyOwnerKey] = []byte("42")
	store.data[LegacyTermsNamespace] = []byte("true")

	ok, err := m.Migrate(ctx, For("42"))
	require.NoError(t, err)
	assert.True(t, ok)

	got := repo.Load(ctx, For("42").EntriesNamespace)
	assert.Len(t, got, 2)
	assert.Equal(t, models.MoodCalm, got["2024-05-01"].Mood)
	assert.Equal(t, []byte("true"), store.data[For("42").TermsNamespace])

	// Sources are kept.
	assert.Len(t, repo.Load(ctx, LegacyEntriesNamespace), 1)
	assert.Len(t, repo.Load(ctx, For("").EntriesNamespace), 1)
}

func TestMigrate_RefusesOtherUser(t *testing.T) {
	store, repo, m := setup(t)
	ctx := context.Background()

	require.True(t, repo.Commit(ctx, LegacyEntriesNamespace, calm("2024-05-01")))
	store.data[LegacyOwnerKey] = []byte("A")

	ok, err := m.Migrate(ctx, For("B"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, repo.Load(ctx, For("B").EntriesNamespace))
}

func TestMigrate_RefusesNonEmptyTarget(t *testing.T) {
	store, repo, m := setup(t)
	ctx := context.Background()

	require.True(t, repo.Commit(ctx, LegacyEntriesNamespace, calm("2024-05-01")))
	require.True(t, repo.Commit(ctx, For("42").EntriesNamespace, calm("2024-06-01")))
	store.data[LegacyOwnerKey] = []byte("42")

	ok, err := m.Migrate(ctx, For("42"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, repo.Load(ctx, For("42").EntriesNamespace), 1)
}

func TestMigrate_AnonymousAndMissingMarker(t *testing.T) {
	_, repo, m := setup(t)
	ctx := context.Background()
	require.True(t, repo.Commit(ctx, LegacyEntriesNamespace, calm("2024-05-01")))

	ok, err := m.Migrate(ctx, For(""))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Migrate(ctx, For("42"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrate_UnreadableTargetIsAnError(t *testing.T) {
	store, repo, m := setup(t)
	ctx := context.Background()

	require.True(t, repo.Commit(ctx, LegacyEntriesNamespace, calm("2024-05-01")))
	store.data[LegacyOwnerKey] = []byte("42")
	store.getErr[For("42").EntriesNamespace] = errors.New("io error")

	ok, err := m.Migrate(ctx, For("42"))
	require.Error(t, err)
	assert.False(t, ok)
}

func TestRecordOwner(t *testing.T) {
	store, _, m := setup(t)
	ctx := context.Background()

	require.NoError(t, m.RecordOwner(ctx, ""))
	assert.Nil(t, store.data[LegacyOwnerKey])

	require.NoError(t, m.RecordOwner(ctx, "42"))
	assert.Equal(t, []byte("42"), store.data[LegacyOwnerKey])

	require.NoError(t, m.RecordOwner(ctx, "43"))
	assert.Equal(t, []byte("42"), store.data[LegacyOwnerKey], "an existing owner is never replaced")
}

func TestRecordOwner_LeavesUnscopedDataUnclaimed(t *testing.T) {
	for _, ns := range []string{LegacyEntriesNamespace, For("").EntriesNamespace} {
		t.Run(ns, func(t *testing.T) {
			store, repo, m := setup(t)
			ctx := context.Background()

			require.True(t, repo.Commit(ctx, ns, calm("2024-05-01")))
			require.NoError(t, m.RecordOwner(ctx, "43"))
			assert.Nil(t, store.data[LegacyOwnerKey])

			ok, err := m.Migrate(ctx, For("43"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRecordOwner_UnreadableSourceIsAnError(t *testing.T) {
	store, _, m := setup(t)
	store.getErr[LegacyEntriesNamespace] = errors.New("disk")

	err := m.RecordOwner(context.Background(), "42")
	require.Error(t, err)
	assert.Nil(t, store.data[LegacyOwnerKey])
}

func TestReleaseOwner(t *testing.T) {
	store, _, m := setup(t)
	ctx := context.Background()
	store.data[LegacyOwnerKey] = []byte("42")

	require.NoError(t, m.ReleaseOwner(ctx, "43"))
	assert.Equal(t, []byte("42"), store.data[LegacyOwnerKey])

	require.NoError(t, m.ReleaseOwner(ctx, ""))
	assert.Equal(t, []byte("42"), store.data[LegacyOwnerKey])

	require.NoError(t, m.ReleaseOwner(ctx, "42"))
	_, ok := store.data[LegacyOwnerKey]
	assert.False(t, ok)
}
