// Package services contains the application services of the journal client:
// the local-first journal, the weekly self-assessment and the session that
// ties both to the signed-in identity.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/client/lock"
	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

var (
	// ErrNotSynced wraps push failures of explicit actions whose local commit
	// succeeded.
	ErrNotSynced = errors.New("saved locally, not synced")

	errScopeChanged = errors.New("identity changed before push")
)

// DefaultFetchDays is how far back Load asks the server for entries.
const DefaultFetchDays = 31

// Notice is the passive status shown next to the editor. It never blocks
// writing.
type Notice struct {
	StorageError bool
	NotSynced    bool
	Err          error
}

// Draft is a content edit. Nil fields are left unchanged.
type Draft struct {
	Mood   *models.Mood
	Reason *models.Reason
	Notes  *string
}

// JournalService is the local-first daily entry store.
//
// Contract:
//   - Edit, Submit and Reset commit locally before any network call.
//   - Edit refuses submitted days with lock.ErrDayLocked; Reset is the only
//     way back.
//   - Edits are pushed after a debounce; Submit, Reset and Save push at once.
//   - Network failures leave the date pending and raise Notice.NotSynced.
type JournalService interface {
	Scope() scope.UserScope
	Switch(ctx context.Context, s scope.UserScope)

	Load(ctx context.Context) error
	Reload(ctx context.Context)

	TodayKey() string
	Entry(dateKey string) models.Entry
	Days(n int) []models.Entry
	Entries() models.EntryMap

	Edit(ctx context.Context, dateKey string, d Draft) (models.Entry, error)
	Save(ctx context.Context, dateKey string) error
	Submit(ctx context.Context, dateKey string) (models.Entry, error)
	Reset(ctx context.Context, dateKey string) (models.Entry, error)

	MarkPending(ctx context.Context, dateKeys ...string)
	Pending() []string
	SyncPending(ctx context.Context) error
	Flush(ctx context.Context) error

	Notice() Notice
	Close()
}

// JournalOptions tunes a JournalService. Zero values pick defaults.
type JournalOptions struct {
	Clock     scheduler.Clock
	Delay     time.Duration
	Location  *time.Location
	FetchDays int
	Logger    logging.Logger

	// OnNotice is called whenever the passive notice changes. It runs with the
	// service lock held and must not call back into the service.
	OnNotice func(Notice)
	// OnStatus receives every push outcome.
	OnStatus func(scheduler.Status)
}

type journalService struct {
	mu sync.Mutex

	client client.Client
	repo   entries.Repository
	sched  *scheduler.Scheduler

	clock     scheduler.Clock
	loc       *time.Location
	fetchDays int
	log       logging.Logger
	onNotice  func(Notice)

	scope   scope.UserScope
	entries models.EntryMap
	pending map[string]struct{}
	notice  Notice
}

// NewJournalService builds a JournalService for the anonymous scope; call
// Switch once the identity is known.
func NewJournalService(c client.Client, repo entries.Repository, opts JournalOptions) JournalService {
	s := &journalService{
		client:    c,
		repo:      repo,
		clock:     opts.Clock,
		loc:       opts.Location,
		fetchDays: opts.FetchDays,
		log:       opts.Logger,
		onNotice:  opts.OnNotice,
		entries:   models.EntryMap{},
		pending:   map[string]struct{}{},
	}
	if s.clock == nil {
		s.clock = scheduler.RealClock()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.fetchDays <= 0 {
		s.fetchDays = DefaultFetchDays
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.onNotice == nil {
		s.onNotice = func(Notice) {}
	}

	schedOpts := []scheduler.Option{
		scheduler.WithClock(s.clock),
		scheduler.WithDelay(opts.Delay),
		scheduler.WithLogger(s.log),
	}
	if opts.OnStatus != nil {
		schedOpts = append(schedOpts, scheduler.WithStatus(opts.OnStatus))
	}
	s.sched = scheduler.New(s.push, schedOpts...)

	s.switchLocked(context.Background(), scope.For(""))
	return s
}

func (s *journalService) Scope() scope.UserScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Switch pushes whatever is armed for the current identity and then loads
// the namespaces of sc. Unpushed dates stay in the old identity's pending set.
func (s *journalService) Switch(ctx context.Context, sc scope.UserScope) {
	if err := s.sched.Flush(ctx); err != nil {
		s.log.Warn(ctx, "flush before identity switch", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchLocked(ctx, sc)
}

func (s *journalService) switchLocked(ctx context.Context, sc scope.UserScope) {
	s.scope = sc
	s.entries = s.repo.Load(ctx, sc.EntriesNamespace)
	s.pending = make(map[string]struct{})
	for _, k := range s.repo.LoadPending(ctx, sc.PendingNamespace) {
		s.pending[k] = struct{}{}
	}
	s.notice = Notice{}
	s.log.Debug(ctx, "scope loaded", "user", sc.UserID, "entries", len(s.entries), "pending", len(s.pending))
}

func (s *journalService) TodayKey() string {
	return models.DateKey(s.clock.Now(), s.loc)
}

func (s *journalService) Entry(dateKey string) models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entries.Get(s.entries, dateKey)
}

// Days returns the last n days ending today, oldest first.
func (s *journalService) Days(n int) []models.Entry {
	today, _ := models.ParseDateKey(s.TodayKey(), s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Entry, 0, n)
	for i := n - 1; i >= 0; i-- {
		key := models.DateKey(today.AddDate(0, 0, -i), s.loc)
		out = append(out, entries.Get(s.entries, key))
	}
	return out
}

func (s *journalService) Entries() models.EntryMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Clone()
}

func (s *journalService) Notice() Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

func (s *journalService) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingKeys()
}

func (s *journalService) pendingKeys() []string {
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// setNotice updates one flag of the notice; s.mu must be held. The callback
// runs only when the visible state changes.
func (s *journalService) setNotice(update func(n *Notice)) {
	before := s.notice
	update(&s.notice)
	if before.StorageError != s.notice.StorageError || before.NotSynced != s.notice.NotSynced {
		s.onNotice(s.notice)
	}
}

// commit stores next as the in-memory map and persists it; s.mu must be held.
// The in-memory map is kept even when the write fails.
func (s *journalService) commit(ctx context.Context, next models.EntryMap) bool {
	s.entries = next
	ok := s.repo.Commit(ctx, s.scope.EntriesNamespace, next)
	s.setNotice(func(n *Notice) {
		n.StorageError = !ok
		if !ok {
			n.Err = errors.New("could not write the local journal")
		}
	})
	return ok
}

func (s *journalService) markPendingLocked(ctx context.Context, keys ...string) {
	for _, k := range keys {
		s.pending[k] = struct{}{}
	}
	s.repo.CommitPending(ctx, s.scope.PendingNamespace, s.pendingKeys())
}

func (s *journalService) clearPendingLocked(ctx context.Context, keys ...string) {
	for _, k := range keys {
		delete(s.pending, k)
	}
	s.repo.CommitPending(ctx, s.scope.PendingNamespace, s.pendingKeys())
	if len(s.pending) == 0 {
		s.setNotice(func(n *Notice) {
			n.NotSynced = false
			if !n.StorageError {
				n.Err = nil
			}
		})
	}
}

func (s *journalService) failedLocked(err error) {
	s.setNotice(func(n *Notice) {
		n.NotSynced = true
		n.Err = err
	})
}

func (s *journalService) MarkPending(ctx context.Context, dateKeys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(dateKeys) == 0 {
		for k := range s.entries {
			dateKeys = append(dateKeys, k)
		}
	}
	s.markPendingLocked(ctx, dateKeys...)
}

func (s *journalService) now() int64 {
	return s.clock.Now().UnixMilli()
}

// stampLocked returns the edit time for a change to current. Stamps of one
// entry strictly increase, so an in-flight push can always tell a later edit
// made within the same millisecond apart from the state it sent.
func (s *journalService) stampLocked(current models.Entry) int64 {
	now := s.now()
	if now <= current.ClientUpdatedAt {
		now = current.ClientUpdatedAt + 1
	}
	return now
}

// streamKey binds a scheduled push to the identity that made the edit.
func streamKey(userID, dateKey string) string {
	return userID + "|" + dateKey
}

func splitStreamKey(key string) (userID, dateKey string) {
	i := strings.LastIndex(key, "|")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

func (s *journalService) Edit(ctx context.Context, dateKey string, d Draft) (models.Entry, error) {
	if !models.ValidDateKey(dateKey) {
		return models.Entry{}, fmt.Errorf("edit %q: %w", dateKey, common.ErrInvalidDateKey)
	}

	s.mu.Lock()
	current := entries.Get(s.entries, dateKey)
	if lock.IsLocked(current) {
		s.mu.Unlock()
		return current, lock.ErrDayLocked
	}

	now := s.stampLocked(current)
	p := models.Patch{Mood: d.Mood, Reason: d.Reason, ClientUpdatedAt: &now}
	if d.Notes != nil {
		clamped := models.ClampWords(*d.Notes, models.MaxNoteWords)
		p.Notes = &clamped
	}

	next := entries.Set(s.entries, dateKey, p)
	s.commit(ctx, next)
	s.markPendingLocked(ctx, dateKey)
	sc := s.scope
	s.mu.Unlock()

	if !sc.Anonymous() {
		s.sched.Schedule(streamKey(sc.UserID, dateKey))
	}
	return next[dateKey], nil
}

func (s *journalService) Save(ctx context.Context, dateKey string) error {
	sc := s.Scope()
	if sc.Anonymous() {
		return nil
	}
	if err := s.sched.PushNow(ctx, streamKey(sc.UserID, dateKey)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSynced, err)
	}
	return nil
}

// Submit seals the day. Submitting an already submitted day keeps its original
// submission time.
func (s *journalService) Submit(ctx context.Context, dateKey string) (models.Entry, error) {
	return s.apply(ctx, dateKey, func(now int64) models.Patch {
		submitted := true
		return models.Patch{DaySubmitted: &submitted, DaySubmittedAt: &now, ClientUpdatedAt: &now}
	})
}

// Reset clears the day and its submission so it can be edited again.
func (s *journalService) Reset(ctx context.Context, dateKey string) (models.Entry, error) {
	return s.apply(ctx, dateKey, models.ResetPatch)
}

func (s *journalService) apply(ctx context.Context, dateKey string, patch func(now int64) models.Patch) (models.Entry, error) {
	if !models.ValidDateKey(dateKey) {
		return models.Entry{}, fmt.Errorf("%q: %w", dateKey, common.ErrInvalidDateKey)
	}

	s.mu.Lock()
	next := entries.Set(s.entries, dateKey, patch(s.stampLocked(entries.Get(s.entries, dateKey))))
	s.commit(ctx, next)
	s.markPendingLocked(ctx, dateKey)
	s.mu.Unlock()

	err := s.Save(ctx, dateKey)
	return s.Entry(dateKey), err
}

// push uploads the state of the stream's date as it is now and folds the
// server's copy back when nothing changed locally meanwhile.
func (s *journalService) push(ctx context.Context, key string) error {
	userID, dateKey := splitStreamKey(key)

	s.mu.Lock()
	if s.scope.UserID != userID {
		s.mu.Unlock()
		return errScopeChanged
	}
	sent := entries.Get(s.entries, dateKey)
	s.mu.Unlock()

	stored, err := s.client.Upsert(ctx, sent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope.UserID != userID {
		return errScopeChanged
	}
	if err != nil {
		s.failedLocked(err)
		return err
	}

	s.foldLocked(ctx, sent, stored)
	return nil
}

// foldLocked merges a confirmed server copy; s.mu must be held. When the
// local entry moved on since sent was read, the local state is kept and the
// date stays pending for the next push.
func (s *journalService) foldLocked(ctx context.Context, sent, stored models.Entry) {
	key := sent.DateKey
	current := entries.Get(s.entries, key)
	if current.ClientUpdatedAt != sent.ClientUpdatedAt {
		return
	}

	winner := reconcile.Resolve(current, stored)
	winner.DateKey = key
	next := s.entries.Clone()
	next[key] = winner
	s.commit(ctx, next)
	s.clearPendingLocked(ctx, key)
}

// Load fetches the recent range from the server, merges it into the local
// cache and then pushes the pending set.
func (s *journalService) Load(ctx context.Context) error {
	sc := s.Scope()
	if sc.Anonymous() {
		return nil
	}

	to := s.clock.Now().In(s.loc)
	from := to.AddDate(0, 0, -s.fetchDays)

	server, err := s.client.FetchRange(ctx, models.DateKey(from, s.loc), models.DateKey(to, s.loc))
	if err != nil {
		s.mu.Lock()
		s.failedLocked(err)
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotSynced, err)
	}

	s.mu.Lock()
	if s.scope.UserID != sc.UserID {
		s.mu.Unlock()
		return nil
	}
	merged := reconcile.MergeAll(s.entries, server)
	if changed := reconcile.Changed(s.entries, merged); len(changed) > 0 {
		s.commit(ctx, merged)
		s.log.Info(ctx, "merged server entries", "changed", len(changed))
	}
	s.mu.Unlock()

	return s.SyncPending(ctx)
}

// Reload re-reads the local namespace after another process wrote it. The
// foreign copy is merged like a server copy so a submitted day is never lost.
func (s *journalService) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.repo.Load(ctx, s.scope.EntriesNamespace)
	foreign := make([]models.Entry, 0, len(fresh))
	for _, e := range fresh {
		foreign = append(foreign, e)
	}

	merged := reconcile.MergeAll(s.entries, foreign)
	s.entries = merged
	if len(reconcile.Changed(fresh, merged)) > 0 {
		s.commit(ctx, merged)
	}

	for _, k := range s.repo.LoadPending(ctx, s.scope.PendingNamespace) {
		s.pending[k] = struct{}{}
	}
	s.log.Debug(ctx, "reloaded after foreign write", "user", s.scope.UserID)
}

// SyncPending pushes every pending date in one batch.
func (s *journalService) SyncPending(ctx context.Context) error {
	s.mu.Lock()
	sc := s.scope
	if sc.Anonymous() || len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := make([]models.Entry, 0, len(s.pending))
	for _, k := range s.pendingKeys() {
		batch = append(batch, entries.Get(s.entries, k))
	}
	s.mu.Unlock()

	stored, err := s.client.Sync(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope.UserID != sc.UserID {
		return nil
	}
	if err != nil {
		s.failedLocked(err)
		return fmt.Errorf("%w: %v", ErrNotSynced, err)
	}

	byKey := make(map[string]models.Entry, len(stored))
	for _, e := range stored {
		byKey[e.DateKey] = e
	}
	for _, sent := range batch {
		if st, ok := byKey[sent.DateKey]; ok {
			s.foldLocked(ctx, sent, st)
		}
	}
	return nil
}

func (s *journalService) Flush(ctx context.Context) error {
	return s.sched.Flush(ctx)
}

func (s *journalService) Close() {
	s.sched.Close()
}
