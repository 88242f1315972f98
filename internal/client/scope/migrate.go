package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

// ErrMigrationWrite is returned when the imported map could not be stored.
var ErrMigrationWrite = errors.New("could not store migrated entries")

// Migrator imports legacy unscoped data into a user's namespace.
type Migrator struct {
	store kv.Repository
	repo  entries.Repository
	log   logging.Logger
}

func NewMigrator(store kv.Repository, repo entries.Repository, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Migrator{store: store, repo: repo, log: log}
}

// Migrate imports the legacy namespace and the anonymous bucket into s when
// all of these hold: s is a signed-in user, the legacy owner marker names that
// user, and the user's entries namespace is empty. Sources are left in place.
// It reports whether anything was imported.
func (m *Migrator) Migrate(ctx context.Context, s UserScope) (bool, error) {
	if s.Anonymous() {
		return false, nil
	}

	owner, err := m.store.Get(ctx, LegacyOwnerKey)
	if err != nil {
		return false, fmt.Errorf("read legacy owner: %w", err)
	}
	if string(owner) != s.UserID {
		m.log.Debug(ctx, "legacy data belongs to someone else", "user", s.UserID)
		return false, nil
	}

	target, err := m.read(ctx, s.EntriesNamespace)
	if err != nil {
		return false, err
	}
	if len(target) > 0 {
		return false, nil
	}

	legacy, err := m.read(ctx, LegacyEntriesNamespace)
	if err != nil {
		return false, err
	}
	anon, err := m.read(ctx, For("").EntriesNamespace)
	if err != nil {
		return false, err
	}

	merged := reconcile.MergeAll(legacy, values(anon))
	if len(merged) == 0 {
		return false, nil
	}

	if !m.repo.Commit(ctx, s.EntriesNamespace, merged) {
		return false, ErrMigrationWrite
	}

	if err := m.copyTerms(ctx, s); err != nil {
		m.log.Warn(ctx, "terms flag not migrated", "user", s.UserID, "error", err)
	}

	m.log.Info(ctx, "legacy entries migrated", "user", s.UserID, "count", len(merged))
	return true, nil
}

// RecordOwner claims the owner marker for userID. The marker is only written
// while no marker exists and neither the legacy nor the anonymous namespace
// holds entries: unscoped data already on the device is never attributed to
// whoever happens to sign in next. The anonymous bucket never becomes an owner.
func (m *Migrator) RecordOwner(ctx context.Context, userID string) error {
	s := For(userID)
	if s.Anonymous() {
		return nil
	}

	owner, err := m.store.Get(ctx, LegacyOwnerKey)
	if err != nil {
		return fmt.Errorf("read legacy owner: %w", err)
	}
	if owner != nil {
		return nil
	}

	unclaimed, err := m.unscopedData(ctx)
	if err != nil {
		return err
	}
	if unclaimed {
		m.log.Debug(ctx, "unscoped data present, owner left unset", "user", s.UserID)
		return nil
	}

	if err := m.store.Set(ctx, LegacyOwnerKey, []byte(s.UserID)); err != nil {
		return fmt.Errorf("record legacy owner: %w", err)
	}
	return nil
}

// ReleaseOwner drops the marker when it names userID, so anonymous entries
// written after a sign-out are not claimed by that user later.
func (m *Migrator) ReleaseOwner(ctx context.Context, userID string) error {
	owner, err := m.store.Get(ctx, LegacyOwnerKey)
	if err != nil {
		return fmt.Errorf("read legacy owner: %w", err)
	}
	if owner == nil || string(owner) != For(userID).UserID {
		return nil
	}
	if err := m.store.Delete(ctx, LegacyOwnerKey); err != nil {
		return fmt.Errorf("release legacy owner: %w", err)
	}
	return nil
}

func (m *Migrator) unscopedData(ctx context.Context) (bool, error) {
	for _, ns := range []string{LegacyEntriesNamespace, For("").EntriesNamespace} {
		found, err := m.read(ctx, ns)
		if err != nil {
			return false, err
		}
		if len(found) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// read is strict: unlike Repository.Load it refuses to treat an unreadable
// namespace as empty, so a disk fault can never look like a blank target.
func (m *Migrator) read(ctx context.Context, namespace string) (models.EntryMap, error) {
	raw, err := m.store.Get(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", namespace, err)
	}
	parsed, err := entries.Decode(raw)
	if err != nil {
		m.log.Warn(ctx, "corrupt namespace skipped", "namespace", namespace, "error", err)
		return models.EntryMap{}, nil
	}
	return parsed, nil
}

func (m *Migrator) copyTerms(ctx context.Context, s UserScope) error {
	current, err := m.store.Get(ctx, s.TermsNamespace)
	if err != nil || current != nil {
		return err
	}

	for _, src := range []string{LegacyTermsNamespace, For("").TermsNamespace} {
		v, err := m.store.Get(ctx, src)
		if err != nil {
			return err
		}
		if string(v) == "true" {
			return m.store.Set(ctx, s.TermsNamespace, v)
		}
	}
	return nil
}

func values(m models.EntryMap) []models.Entry {
	out := make([]models.Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}
