// Package scheduler coalesces bursts of local edits into single outbound
// pushes, one debounce timer and at most one in-flight push per date key.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

// DefaultDelay is the quiet period before a scheduled push fires.
const DefaultDelay = 600 * time.Millisecond

// ErrClosed is returned by PushNow after Close.
var ErrClosed = errors.New("scheduler closed")

// State is the outcome of a push.
type State int

const (
	StateSynced State = iota
	StateFailed
)

func (s State) String() string {
	if s == StateSynced {
		return "synced"
	}
	return "failed"
}

// Status is reported after every push attempt.
type Status struct {
	DateKey string
	State   State
	Err     error
	At      time.Time
}

// PushFunc uploads the current state of dateKey. It must read that state when
// called, not capture it at schedule time.
type PushFunc func(ctx context.Context, dateKey string) error

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithStatus registers the callback receiving push outcomes. It runs on the
// pushing goroutine and must not block.
func WithStatus(fn func(Status)) Option { return func(s *Scheduler) { s.onStatus = fn } }

func WithLogger(l logging.Logger) Option { return func(s *Scheduler) { s.log = l } }

type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	delay    time.Duration
	push     PushFunc
	onStatus func(Status)
	log      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	streams map[string]*stream
	closed  bool
}

type stream struct {
	timer Timer
	gen   uint64

	busy  bool
	dirty bool
	idle  chan struct{}
}

func New(push PushFunc, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:    RealClock(),
		delay:    DefaultDelay,
		push:     push,
		onStatus: func(Status) {},
		log:      logging.Nop(),
		ctx:      ctx,
		cancel:   cancel,
		streams:  make(map[string]*stream),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) stream(key string) *stream {
	st, ok := s.streams[key]
	if !ok {
		st = &stream{}
		s.streams[key] = st
	}
	return st
}

// disarm stops the pending timer of st; s.mu must be held.
func (st *stream) disarm() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.gen++
}

// arm (re)starts the debounce timer of key; s.mu must be held.
func (s *Scheduler) arm(key string, st *stream) {
	st.disarm()
	gen := st.gen
	st.timer = s.clock.AfterFunc(s.delay, func() { s.fire(key, gen) })
}

// Schedule restarts the debounce timer of dateKey.
func (s *Scheduler) Schedule(dateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.arm(dateKey, s.stream(dateKey))
}

func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	st, ok := s.streams[key]
	if s.closed || !ok || st.gen != gen {
		s.mu.Unlock()
		return
	}
	st.timer = nil

	if st.busy {
		st.dirty = true
		s.mu.Unlock()
		return
	}
	s.acquire(st)
	s.mu.Unlock()

	_ = s.run(s.ctx, key)
	s.release(key)
}

// acquire marks st busy; s.mu must be held.
func (s *Scheduler) acquire(st *stream) {
	st.busy = true
	st.dirty = false
	st.idle = make(chan struct{})
	s.wg.Add(1)
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	st := s.streams[key]
	st.busy = false
	close(st.idle)
	st.idle = nil

	switch {
	case st.dirty && !s.closed:
		st.dirty = false
		s.arm(key, st)
	case st.timer == nil:
		delete(s.streams, key)
	}
	s.mu.Unlock()

	s.wg.Done()
}

func (s *Scheduler) run(ctx context.Context, key string) error {
	err := s.push(ctx, key)

	status := Status{DateKey: key, State: StateSynced, At: s.clock.Now()}
	if err != nil {
		status.State = StateFailed
		status.Err = err
		s.log.Warn(ctx, "push failed", "date", key, "error", err)
	} else {
		s.log.Debug(ctx, "pushed", "date", key)
	}
	s.onStatus(status)

	return err
}

// PushNow cancels the pending timer of dateKey, waits for an in-flight push of
// the same key to finish and then pushes synchronously.
func (s *Scheduler) PushNow(ctx context.Context, dateKey string) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}

		st := s.stream(dateKey)
		st.disarm()

		if st.busy {
			idle := st.idle
			s.mu.Unlock()

			select {
			case <-idle:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s.acquire(st)
		s.mu.Unlock()

		err := s.run(ctx, dateKey)
		s.release(dateKey)
		return err
	}
}

// Cancel drops the pending timer of dateKey. An in-flight push is not aborted.
func (s *Scheduler) Cancel(dateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[dateKey]
	if !ok {
		return
	}
	st.disarm()
	st.dirty = false
	if !st.busy {
		delete(s.streams, dateKey)
	}
}

// Armed lists the keys with a pending timer or a deferred re-push, sorted.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k, st := range s.streams {
		if st.timer != nil || st.dirty {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Flush pushes every armed key now and returns the joined errors.
func (s *Scheduler) Flush(ctx context.Context) error {
	var errs []error
	for _, key := range s.Armed() {
		if err := s.PushNow(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops all timers, cancels background pushes and waits for them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, st := range s.streams {
		st.disarm()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
