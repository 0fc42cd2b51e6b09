package tasksync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// DefaultAnonymousLimit is how many tasks can be created without a session.
const DefaultAnonymousLimit = 5

var (
	ErrStoreClosed    = errors.New("task store is closed")
	ErrAlreadyStarted = errors.New("task store already started")
	ErrNotStarted     = errors.New("task store not started")
)

// Snapshot is a read-only view of the store for presentation.
type Snapshot struct {
	Tasks              []domain.Task
	IsLoading          bool
	SaveError          SaveError
	OwnerID            string
	AnonymousTaskCount int
}

// IsAuthenticated reports whether the snapshot belongs to a signed-in owner.
func (s Snapshot) IsAuthenticated() bool { return s.OwnerID != "" }

// Option configures a Store.
type Option func(*Store)

// WithAnonymousLimit overrides the anonymous task quota.
func WithAnonymousLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.actions = make(chan envelope, n)
		}
	}
}

type envelope struct {
	action Action
	remote bool
	gen    uint64
	// hold and release bracket an authoritative load: remote actions that
	// arrive in between are applied after the load instead of being lost.
	hold    bool
	release bool
	done    chan State
}

// Store owns the task collection. Every transition goes through a single
// dispatch queue drained by one goroutine, so user mutations, request
// confirmations and real-time events never interleave mid-update.
type Store struct {
	gateway domain.Gateway
	ledger  *AnonymousLedger
	logger  *slog.Logger
	limit   int
	now     func() time.Time

	actions   chan envelope
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	state   State
	holding bool
	held    []Action

	mu           sync.RWMutex
	current      State
	ownerID      string
	listeners    map[int]func(Snapshot)
	nextListener int

	identityMu   sync.Mutex
	started      bool
	subscription domain.Subscription
	generation   atomic.Uint64

	// held from the quota check until the add is recorded
	quotaMu   sync.Mutex
	anonCount atomic.Int64
}

// NewStore creates a store and starts its dispatch loop. Call Start to load
// tasks and Close to release the subscription.
func NewStore(gateway domain.Gateway, ledger *AnonymousLedger, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		gateway:   gateway,
		ledger:    ledger,
		logger:    logger.With("component", "tasksync"),
		limit:     DefaultAnonymousLimit,
		now:       time.Now,
		actions:   make(chan envelope, 64),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Start records the initial identity, migrates leftover anonymous tasks if
// ownerID is set, loads the collection and subscribes to changes.
func (s *Store) Start(ctx context.Context, ownerID string) error {
	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.anonCount.Store(int64(s.ledger.Count(ctx)))

	return s.switchIdentity(ctx, "", ownerID)
}

// SetIdentity switches the store to ownerID. An empty id means anonymous.
// Switching from anonymous to an owner migrates the anonymous tasks first.
func (s *Store) SetIdentity(ctx context.Context, ownerID string) error {
	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}
	if !s.started {
		return ErrNotStarted
	}

	prev := s.OwnerID()
	if prev == ownerID {
		return nil
	}
	return s.switchIdentity(ctx, prev, ownerID)
}

// Reload replaces the collection with the gateway's copy.
func (s *Store) Reload(ctx context.Context) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	return s.load(ctx, s.OwnerID())
}

// DismissSaveError clears the save error banner.
func (s *Store) DismissSaveError() error {
	_, err := s.dispatch(SetSaveError{Err: SaveErrorNone})
	return err
}

// Close unsubscribes and stops the dispatch loop. It is safe to call more
// than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.identityMu.Lock()
		s.generation.Add(1)
		if s.subscription != nil {
			s.subscription.Unsubscribe()
			s.subscription = nil
		}
		s.identityMu.Unlock()

		close(s.quit)
		<-s.stopped
	})
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Tasks:              slices.Clone(s.current.Tasks),
		IsLoading:          s.current.IsLoading,
		SaveError:          s.current.SaveError,
		OwnerID:            s.ownerID,
		AnonymousTaskCount: int(s.anonCount.Load()),
	}
}

// OnChange registers fn to run after every state transition and returns a
// function that removes it. Listeners run on the dispatch loop: they must
// return quickly and must not call mutating Store methods.
func (s *Store) OnChange(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// OwnerID returns the current identity, empty when anonymous.
func (s *Store) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// AnonymousTaskCount returns how many tasks were created without a session.
func (s *Store) AnonymousTaskCount() int {
	return int(s.anonCount.Load())
}

// CanAddTask reports whether the quota allows another task.
func (s *Store) CanAddTask() bool {
	if s.OwnerID() != "" {
		return true
	}
	return s.AnonymousTaskCount() < s.limit
}

// MigrateAnonymousTasks reassigns the anonymous ids to ownerID. On success,
// partial or not, the anonymous bookkeeping is cleared. On failure it is
// kept so a later sign-in retries.
func (s *Store) MigrateAnonymousTasks(ctx context.Context, ids []string, ownerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.logger.Info("migrating anonymous tasks", "count", len(ids), "owner_id", ownerID)
	n, err := s.gateway.ReassignOwner(ctx, ids, ownerID)
	if err != nil {
		s.logger.Warn("anonymous task migration failed",
			"owner_id", ownerID,
			"kind", domain.KindOf(err),
			"error", err,
		)
		return 0, errors.Join(domain.ErrMigration, err)
	}

	s.ledger.Clear(ctx)
	s.anonCount.Store(0)
	if n == len(ids) {
		if _, err := s.dispatch(OwnerAssigned{IDs: ids, OwnerID: ownerID}); err != nil {
			return n, err
		}
	}

	s.logger.Info("anonymous tasks migrated", "migrated", n, "requested", len(ids), "owner_id", ownerID)
	return n, nil
}

// switchIdentity must be called with identityMu held.
func (s *Store) switchIdentity(ctx context.Context, prev, next string) error {
	gen := s.generation.Add(1)
	if s.subscription != nil {
		s.subscription.Unsubscribe()
		s.subscription = nil
	}

	s.mu.Lock()
	s.ownerID = next
	s.mu.Unlock()

	s.logger.Info("identity changed", "authenticated", next != "", "owner_id", next)

	if prev != "" {
		// the previous owner's tasks must not stay visible
		if _, err := s.dispatch(Reset{}); err != nil {
			return err
		}
	}

	switch {
	case next != "" && prev == "":
		ids := s.ledger.IDs(ctx)
		if len(ids) == 0 {
			s.ledger.Clear(ctx)
			s.anonCount.Store(0)
		} else if _, err := s.MigrateAnonymousTasks(ctx, ids, next); errors.Is(err, ErrStoreClosed) {
			return err
		}
	case next == "":
		s.anonCount.Store(int64(s.ledger.Count(ctx)))
	}

	if err := s.control(envelope{hold: true}); err != nil {
		return err
	}
	defer func() {
		_ = s.control(envelope{release: true})
	}()

	sub, err := s.gateway.Subscribe(ctx, next, s.remoteHandler(gen))
	switch {
	case err == nil:
		s.subscription = sub
	case domain.KindOf(err) == domain.KindNotConfigured:
		s.logger.Debug("real-time updates unavailable in offline mode")
	default:
		s.logger.Warn("failed to subscribe to task changes", "owner_id", next, "error", err)
	}

	return s.load(ctx, next)
}

func (s *Store) load(ctx context.Context, ownerID string) error {
	if _, err := s.dispatch(SetLoading{Loading: true}); err != nil {
		return err
	}

	tasks, err := s.gateway.List(ctx, ownerID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotConfigured {
			_, derr := s.dispatch(SetLoading{Loading: false})
			return derr
		}
		s.logger.Error("failed to load tasks", "owner_id", ownerID, "error", err)
		_, derr := s.dispatch(LoadErrored{})
		return derr
	}

	if _, dropped := domain.FilterValid(tasks); dropped > 0 {
		s.logger.Warn("skipping invalid tasks during load", "dropped", dropped)
	}
	_, err = s.dispatch(Load{Tasks: tasks})
	return err
}

func (s *Store) remoteHandler(gen uint64) func(domain.ChangeEvent) {
	return func(ev domain.ChangeEvent) {
		a, ok := s.actionFor(ev)
		if !ok {
			return
		}
		select {
		case s.actions <- envelope{action: a, remote: true, gen: gen}:
		case <-s.quit:
		}
	}
}

func (s *Store) actionFor(ev domain.ChangeEvent) (Action, bool) {
	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if ev.Task == nil || !domain.IsValidTask(*ev.Task) {
			s.logger.Warn("invalid task from real-time feed, skipping", "kind", ev.Kind, "task_id", ev.TaskID)
			return nil, false
		}
		if ev.Kind == domain.ChangeInsert {
			return RemoteInsert{Task: *ev.Task}, true
		}
		return RemoteUpdate{Task: *ev.Task}, true
	case domain.ChangeDelete:
		if ev.TaskID == "" {
			return nil, false
		}
		return RemoteDelete{ID: ev.TaskID}, true
	default:
		s.logger.Warn("unknown real-time event kind", "kind", ev.Kind)
		return nil, false
	}
}

func (s *Store) dispatch(a Action) (State, error) {
	return s.send(envelope{action: a})
}

func (s *Store) control(env envelope) error {
	_, err := s.send(env)
	return err
}

func (s *Store) send(env envelope) (State, error) {
	env.done = make(chan State, 1)
	select {
	case s.actions <- env:
	case <-s.quit:
		return State{}, ErrStoreClosed
	}
	select {
	case st := <-env.done:
		return st, nil
	case <-s.stopped:
		return State{}, ErrStoreClosed
	}
}

func (s *Store) isClosed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			return
		case env := <-s.actions:
			s.handle(env)
		}
	}
}

func (s *Store) handle(env envelope) {
	switch {
	case env.hold:
		s.holding = true
		s.held = nil
	case env.release:
		held := s.held
		s.holding = false
		s.held = nil
		for _, a := range held {
			s.apply(a)
		}
	case env.remote:
		if env.gen != s.generation.Load() {
			s.logger.Debug("dropping event from stale subscription", "action", env.action.actionName())
			return
		}
		if s.holding {
			s.held = append(s.held, env.action)
			return
		}
		s.apply(env.action)
	default:
		s.apply(env.action)
	}

	if env.done != nil {
		env.done <- s.state
	}
}

func (s *Store) apply(a Action) {
	s.state = Reduce(s.state, a)
	s.logger.Debug("action applied", "action", a.actionName(), "tasks", len(s.state.Tasks))

	s.mu.Lock()
	s.current = s.state
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
