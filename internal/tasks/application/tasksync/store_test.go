package tasksync_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

var errBoom = errors.New("connection reset")

type subscriber struct {
	owner  string
	fn     func(domain.ChangeEvent)
	active bool
}

// fakeGateway is an in-memory remote collection that echoes every write to
// its subscribers, like the real feeds do.
type fakeGateway struct {
	mu            sync.Mutex
	rows          map[string]domain.Task
	clock         time.Time
	subs          []*subscriber
	reassignCalls [][]string

	createErr   error
	updateErr   error
	deleteErr   error
	listErr     error
	reassignErr error
	// assignID lets a test simulate a server that replaces client ids.
	assignID func(string) string
	// onList runs inside List before the rows are read.
	onList func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rows:  make(map[string]domain.Task),
		clock: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (g *fakeGateway) tick() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *fakeGateway) List(_ context.Context, ownerID string) ([]domain.Task, error) {
	if g.onList != nil {
		g.onList()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []domain.Task
	for _, t := range g.rows {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (g *fakeGateway) Create(_ context.Context, t domain.Task, ownerID string) (domain.Task, error) {
	g.mu.Lock()
	if g.createErr != nil {
		g.mu.Unlock()
		return domain.Task{}, g.createErr
	}
	if g.assignID != nil {
		t.ID = g.assignID(t.ID)
	}
	t.OwnerID = ownerID
	t.CreatedAt = g.tick()
	t.Version = 1
	g.rows[t.ID] = t
	g.mu.Unlock()

	g.emit(domain.NewUpsertEvent(domain.ChangeInsert, t))
	return t, nil
}

func (g *fakeGateway) Update(_ context.Context, id string, fields domain.Fields) (domain.Task, error) {
	g.mu.Lock()
	if g.updateErr != nil {
		g.mu.Unlock()
		return domain.Task{}, g.updateErr
	}
	t, ok := g.rows[id]
	if !ok {
		g.mu.Unlock()
		return domain.Task{}, domain.ErrTaskNotFound
	}
	t = t.Apply(fields, g.tick())
	t.Version++
	g.rows[id] = t
	g.mu.Unlock()

	g.emit(domain.NewUpsertEvent(domain.ChangeUpdate, t))
	return t, nil
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	if g.deleteErr != nil {
		g.mu.Unlock()
		return g.deleteErr
	}
	t, ok := g.rows[id]
	delete(g.rows, id)
	g.mu.Unlock()

	if ok {
		g.emit(domain.NewDeleteEvent(id, t.OwnerID, t.Version))
	}
	return nil
}

func (g *fakeGateway) ReassignOwner(_ context.Context, ids []string, ownerID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reassignCalls = append(g.reassignCalls, slices.Clone(ids))
	if g.reassignErr != nil {
		return 0, g.reassignErr
	}
	n := 0
	for _, id := range ids {
		t, ok := g.rows[id]
		if !ok || t.OwnerID != "" {
			continue
		}
		t.OwnerID = ownerID
		t.Version++
		g.rows[id] = t
		n++
	}
	return n, nil
}

func (g *fakeGateway) Subscribe(_ context.Context, ownerID string, fn func(domain.ChangeEvent)) (domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &subscriber{owner: ownerID, fn: fn, active: true}
	g.subs = append(g.subs, s)
	return domain.SubscriptionFunc(func() {
		g.mu.Lock()
		s.active = false
		g.mu.Unlock()
	}), nil
}

func (g *fakeGateway) emit(ev domain.ChangeEvent) {
	g.mu.Lock()
	var targets []func(domain.ChangeEvent)
	for _, s := range g.subs {
		if s.active && s.owner == ev.OwnerID {
			targets = append(targets, s.fn)
		}
	}
	g.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}

func (g *fakeGateway) handler(i int) func(domain.ChangeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subs[i].fn
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) row(id string) (domain.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.rows[id]
	return t, ok
}

type fixture struct {
	gw     *fakeGateway
	ledger *tasksync.AnonymousLedger
	store  *tasksync.Store
}

func newFixture(t *testing.T, opts ...tasksync.Option) *fixture {
	t.Helper()
	gw := newFakeGateway()
	ledger, _ := newLedger()
	opts = append([]tasksync.Option{tasksync.WithClock(func() time.Time { return at })}, opts...)
	store := tasksync.NewStore(gw, ledger, nil, opts...)
	t.Cleanup(func() { store.Close() })
	return &fixture{gw: gw, ledger: ledger, store: store}
}

// barrier waits until everything queued before it has been applied.
func (f *fixture) barrier(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.DismissSaveError())
}

func (f *fixture) add(t *testing.T, text string) domain.Task {
	t.Helper()
	res, err := f.store.AddTask(context.Background(), domain.Input{Text: text})
	require.NoError(t, err)
	require.True(t, res.Success, "add %q", text)
	return res.Task
}

func TestStore_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	require.Empty(t, f.store.Snapshot().Tasks)

	res, err := f.store.AddTask(ctx, domain.Input{Text: "Buy milk", Priority: "high", Category: "shopping"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.False(t, res.RequiresAuth)

	snap := f.store.Snapshot()
	require.Len(t, snap.Tasks, 1)
	got := snap.Tasks[0]
	assert.Equal(t, "Buy milk", got.Text)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.CategoryShopping, got.Category)
	assert.False(t, got.Completed)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, domain.IsValidTask(got))

	require.NoError(t, f.store.ToggleTask(ctx, got.ID))
	snap = f.store.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.True(t, snap.Tasks[0].Completed)

	require.NoError(t, f.store.DeleteTask(ctx, got.ID))
	f.barrier(t)
	assert.Empty(t, f.store.Snapshot().Tasks)
	assert.Equal(t, tasksync.SaveErrorNone, f.store.Snapshot().SaveError)
	_, exists := f.gw.row(got.ID)
	assert.False(t, exists)
}

func TestStore_AddCreateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	f.gw.set(func(g *fakeGateway) { g.createErr = errBoom })

	res, err := f.store.AddTask(ctx, domain.Input{Text: "X"})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.RequiresAuth)
	snap := f.store.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.Equal(t, tasksync.SaveFailed, snap.SaveError)
	assert.Equal(t, 0, snap.AnonymousTaskCount)
	assert.Empty(t, f.ledger.IDs(ctx))
}

func TestStore_AddInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))

	_, err := f.store.AddTask(ctx, domain.Input{Text: "   "})

	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Empty(t, f.store.Snapshot().Tasks)
	assert.Equal(t, 0, f.store.AnonymousTaskCount())
}

func TestStore_AnonymousQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))

	for i := range 5 {
		f.add(t, fmt.Sprintf("task %d", i))
	}
	require.Equal(t, 5, f.store.AnonymousTaskCount())
	assert.False(t, f.store.CanAddTask())
	before := f.store.Snapshot().Tasks

	res, err := f.store.AddTask(ctx, domain.Input{Text: "one too many"})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresAuth)
	assert.Equal(t, before, f.store.Snapshot().Tasks)
	assert.True(t, f.ledger.LimitShown(ctx))
}

func TestStore_QuotaSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	ledger, _ := newLedger()
	for i := range 5 {
		ledger.Record(ctx, fmt.Sprintf("old-%d", i))
	}

	store := tasksync.NewStore(gw, ledger, nil)
	defer store.Close()
	require.NoError(t, store.Start(ctx, ""))

	res, err := store.AddTask(ctx, domain.Input{Text: "sixth"})
	require.NoError(t, err)
	assert.True(t, res.RequiresAuth)
}

func TestStore_DeleteDoesNotRefundQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tasksync.WithAnonymousLimit(2))
	require.NoError(t, f.store.Start(ctx, ""))

	a := f.add(t, "a")
	f.add(t, "b")
	require.NoError(t, f.store.DeleteTask(ctx, a.ID))

	res, err := f.store.AddTask(ctx, domain.Input{Text: "c"})
	require.NoError(t, err)
	assert.True(t, res.RequiresAuth)
}

func TestStore_AuthenticatedIsUnlimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, "u1"))

	for i := range 7 {
		task := f.add(t, fmt.Sprintf("task %d", i))
		assert.Equal(t, "u1", task.OwnerID)
	}
	assert.Len(t, f.store.Snapshot().Tasks, 7)
	assert.Equal(t, 0, f.store.AnonymousTaskCount())
}

func TestStore_MigrateAnonymousTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	a := f.add(t, "a")
	b := f.add(t, "b")
	require.Equal(t, []string{a.ID, b.ID}, f.ledger.IDs(ctx))

	n, err := f.store.MigrateAnonymousTasks(ctx, []string{a.ID, b.ID}, "u1")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, tk := range f.store.Snapshot().Tasks {
		assert.Equal(t, "u1", tk.OwnerID)
	}
	assert.Empty(t, f.ledger.IDs(ctx))
	assert.Equal(t, 0, f.ledger.Count(ctx))
	assert.Equal(t, 0, f.store.AnonymousTaskCount())
}

func TestStore_SignInMigratesThenReloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	a := f.add(t, "a")
	b := f.add(t, "b")

	// someone else's task must never be taken over
	f.gw.set(func(g *fakeGateway) {
		g.rows["theirs"] = domain.Task{ID: "theirs", Text: "x", OwnerID: "u2", Version: 1}
	})

	require.NoError(t, f.store.SetIdentity(ctx, "u1"))

	snap := f.store.Snapshot()
	assert.True(t, snap.IsAuthenticated())
	assert.ElementsMatch(t, []string{a.ID, b.ID}, taskIDsOf(snap.Tasks))
	for _, tk := range snap.Tasks {
		assert.Equal(t, "u1", tk.OwnerID)
	}
	theirs, _ := f.gw.row("theirs")
	assert.Equal(t, "u2", theirs.OwnerID)
	assert.Empty(t, f.ledger.IDs(ctx))

	// a second identical transition does nothing
	require.NoError(t, f.store.SetIdentity(ctx, "u1"))
	assert.Len(t, f.gw.reassignCalls, 1)
}

func TestStore_StartWithLeftoverAnonymousTasksMigrates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.set(func(g *fakeGateway) {
		g.rows["a"] = domain.Task{ID: "a", Text: "left behind", Version: 1, CreatedAt: at}
	})
	f.ledger.Record(ctx, "a")

	require.NoError(t, f.store.Start(ctx, "u1"))

	require.Len(t, f.store.Snapshot().Tasks, 1)
	assert.Equal(t, "u1", f.store.Snapshot().Tasks[0].OwnerID)
	assert.Empty(t, f.ledger.IDs(ctx))
}

func TestStore_MigrationFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	a := f.add(t, "a")
	f.gw.set(func(g *fakeGateway) { g.reassignErr = errBoom })

	require.NoError(t, f.store.SetIdentity(ctx, "u1"))

	assert.Equal(t, []string{a.ID}, f.ledger.IDs(ctx))

	_, err := f.store.MigrateAnonymousTasks(ctx, []string{a.ID}, "u1")
	assert.Equal(t, domain.KindMigration, domain.KindOf(err))
	assert.ErrorIs(t, err, errBoom)
}

func TestStore_SignOutClearsPreviousOwnersTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, "u1"))
	f.add(t, "private")

	require.NoError(t, f.store.SetIdentity(ctx, ""))

	snap := f.store.Snapshot()
	assert.False(t, snap.IsAuthenticated())
	assert.Empty(t, snap.Tasks)
}

func TestStore_NotConfiguredKeepsOptimisticState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.set(func(g *fakeGateway) { g.listErr = domain.ErrNotConfigured })
	require.NoError(t, f.store.Start(ctx, ""))
	assert.Equal(t, tasksync.SaveErrorNone, f.store.Snapshot().SaveError)

	f.gw.set(func(g *fakeGateway) {
		g.createErr = domain.ErrNotConfigured
		g.updateErr = domain.ErrNotConfigured
		g.deleteErr = domain.ErrNotConfigured
	})

	res, err := f.store.AddTask(ctx, domain.Input{Text: "offline"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NoError(t, f.store.ToggleTask(ctx, res.Task.ID))

	snap := f.store.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.True(t, snap.Tasks[0].Completed)
	assert.Equal(t, tasksync.SaveErrorNone, snap.SaveError)
	assert.Equal(t, 1, snap.AnonymousTaskCount)

	require.NoError(t, f.store.DeleteTask(ctx, res.Task.ID))
	assert.Empty(t, f.store.Snapshot().Tasks)
}

func TestStore_NotConfiguredLeavesSaveErrorShowing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	tk := f.add(t, "a")

	f.gw.set(func(g *fakeGateway) { g.updateErr = errBoom })
	require.NoError(t, f.store.ToggleTask(ctx, tk.ID))
	require.Equal(t, tasksync.SaveFailed, f.store.Snapshot().SaveError)

	f.gw.set(func(g *fakeGateway) {
		g.createErr = domain.ErrNotConfigured
		g.updateErr = domain.ErrNotConfigured
		g.deleteErr = domain.ErrNotConfigured
	})

	res, err := f.store.AddTask(ctx, domain.Input{Text: "offline"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, f.store.ToggleTask(ctx, res.Task.ID))
	require.NoError(t, f.store.EditTask(ctx, res.Task.ID, domain.EditInput{Text: "offline edit"}))
	require.NoError(t, f.store.DeleteTask(ctx, res.Task.ID))

	assert.Equal(t, tasksync.SaveFailed, f.store.Snapshot().SaveError)
}

func TestStore_ToggleFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	tk := f.add(t, "a")
	f.gw.set(func(g *fakeGateway) { g.updateErr = errBoom })

	require.NoError(t, f.store.ToggleTask(ctx, tk.ID))

	snap := f.store.Snapshot()
	assert.False(t, snap.Tasks[0].Completed)
	assert.Equal(t, tasksync.SaveFailed, snap.SaveError)

	require.NoError(t, f.store.DismissSaveError())
	assert.Equal(t, tasksync.SaveErrorNone, f.store.Snapshot().SaveError)
}

func TestStore_EditFailureReloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	tk := f.add(t, "original")
	f.gw.set(func(g *fakeGateway) { g.updateErr = errBoom })

	require.NoError(t, f.store.EditTask(ctx, tk.ID, domain.EditInput{Text: "changed"}))

	snap := f.store.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "original", snap.Tasks[0].Text)
	assert.Equal(t, tasksync.SaveFailed, snap.SaveError)
}

func TestStore_EditSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	tk := f.add(t, "original")
	cat := "work"

	require.NoError(t, f.store.EditTask(ctx, tk.ID, domain.EditInput{Text: " edited ", Category: &cat}))

	snap := f.store.Snapshot()
	assert.Equal(t, "edited", snap.Tasks[0].Text)
	assert.Equal(t, domain.CategoryWork, snap.Tasks[0].Category)
	assert.Equal(t, domain.PriorityMedium, snap.Tasks[0].Priority)
	assert.Equal(t, int64(2), snap.Tasks[0].Version)
}

func TestStore_EditValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	tk := f.add(t, "original")

	err := f.store.EditTask(ctx, tk.ID, domain.EditInput{Text: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTask)
	assert.Equal(t, "original", f.store.Snapshot().Tasks[0].Text)

	err = f.store.EditTask(ctx, "missing", domain.EditInput{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, f.store.ToggleTask(ctx, "missing"), domain.ErrTaskNotFound)
	assert.ErrorIs(t, f.store.DeleteTask(ctx, "missing"), domain.ErrTaskNotFound)
}

func TestStore_DeleteFailureReloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	a := f.add(t, "a")
	f.add(t, "b")
	f.gw.set(func(g *fakeGateway) { g.deleteErr = errBoom })

	require.NoError(t, f.store.DeleteTask(ctx, a.ID))

	snap := f.store.Snapshot()
	assert.Contains(t, taskIDsOf(snap.Tasks), a.ID)
	assert.Len(t, snap.Tasks, 2)
	assert.Equal(t, tasksync.SaveFailed, snap.SaveError)
}

func TestStore_DeleteFailureWithoutReloadRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	a := f.add(t, "a")
	b := f.add(t, "b")
	c := f.add(t, "c")
	f.gw.set(func(g *fakeGateway) {
		g.deleteErr = errBoom
		g.listErr = errBoom
	})

	require.NoError(t, f.store.DeleteTask(ctx, b.ID))

	snap := f.store.Snapshot()
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, taskIDsOf(snap.Tasks))
	assert.Equal(t, tasksync.SaveFailed, snap.SaveError)
}

func TestStore_LoadFailureKeepsTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	f.add(t, "a")
	f.gw.set(func(g *fakeGateway) { g.listErr = errBoom })

	require.NoError(t, f.store.Reload(ctx))

	snap := f.store.Snapshot()
	assert.Len(t, snap.Tasks, 1)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, tasksync.LoadFailed, snap.SaveError)
}

func TestStore_LoadSkipsInvalidTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.set(func(g *fakeGateway) {
		g.rows["ok"] = domain.Task{ID: "ok", Text: "fine", Version: 1}
		g.rows["blank"] = domain.Task{ID: "blank", Text: "   ", Version: 1}
	})

	require.NoError(t, f.store.Start(ctx, ""))

	assert.Equal(t, []string{"ok"}, taskIDsOf(f.store.Snapshot().Tasks))
}

func TestStore_RealtimeEchoIsDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))

	// Create echoes an insert event before returning
	f.add(t, "mine")
	f.barrier(t)

	assert.Len(t, f.store.Snapshot().Tasks, 1)
}

func TestStore_RealtimeFromOtherDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, "u1"))
	mine := f.add(t, "mine")

	other := domain.Task{ID: "other", Text: "from phone", OwnerID: "u1", Version: 1, CreatedAt: at}
	f.gw.emit(domain.NewUpsertEvent(domain.ChangeInsert, other))
	f.gw.emit(domain.NewUpsertEvent(domain.ChangeInsert, domain.Task{ID: "bad", Text: "", OwnerID: "u1"}))
	f.barrier(t)
	assert.Equal(t, []string{"other", mine.ID}, taskIDsOf(f.store.Snapshot().Tasks))

	f.gw.emit(domain.NewDeleteEvent("other", "u1", 1))
	stale := other
	stale.Text = "stale"
	f.gw.emit(domain.NewUpsertEvent(domain.ChangeUpdate, stale))
	f.barrier(t)

	assert.Equal(t, []string{mine.ID}, taskIDsOf(f.store.Snapshot().Tasks))
}

func TestStore_EventsFromOldSubscriptionAreDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))
	old := f.gw.handler(0)

	require.NoError(t, f.store.SetIdentity(ctx, "u1"))
	old(domain.NewUpsertEvent(domain.ChangeInsert, domain.Task{ID: "late", Text: "anonymous echo"}))
	f.barrier(t)

	assert.Empty(t, f.store.Snapshot().Tasks)
}

func TestStore_EventsDuringLoadAreNotLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.set(func(g *fakeGateway) {
		g.rows["listed"] = domain.Task{ID: "listed", Text: "listed", Version: 1, CreatedAt: at}
	})
	f.gw.onList = func() {
		f.gw.onList = nil
		f.gw.emit(domain.NewUpsertEvent(domain.ChangeInsert, domain.Task{ID: "racing", Text: "racing", Version: 1}))
	}

	require.NoError(t, f.store.Start(ctx, ""))
	f.barrier(t)

	assert.ElementsMatch(t, []string{"listed", "racing"}, taskIDsOf(f.store.Snapshot().Tasks))
}

func TestStore_ServerAssignedID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.assignID = func(string) string { return "srv-1" }
	require.NoError(t, f.store.Start(ctx, ""))

	res, err := f.store.AddTask(ctx, domain.Input{Text: "renamed"})
	require.NoError(t, err)
	f.barrier(t)

	assert.Equal(t, "srv-1", res.Task.ID)
	assert.Equal(t, []string{"srv-1"}, taskIDsOf(f.store.Snapshot().Tasks))
	assert.Equal(t, []string{"srv-1"}, f.ledger.IDs(ctx))
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))

	var mu sync.Mutex
	var seen []int
	cancel := f.store.OnChange(func(s tasksync.Snapshot) {
		mu.Lock()
		seen = append(seen, len(s.Tasks))
		mu.Unlock()
	})

	f.add(t, "a")
	cancel()
	f.add(t, "b")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 1, seen[len(seen)-1])
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.store.SetIdentity(ctx, "u1"), tasksync.ErrNotStarted)
	require.NoError(t, f.store.Start(ctx, ""))
	assert.ErrorIs(t, f.store.Start(ctx, ""), tasksync.ErrAlreadyStarted)

	require.NoError(t, f.store.Close())
	require.NoError(t, f.store.Close())

	_, err := f.store.AddTask(ctx, domain.Input{Text: "late"})
	assert.ErrorIs(t, err, tasksync.ErrStoreClosed)
	assert.ErrorIs(t, f.store.ToggleTask(ctx, "x"), tasksync.ErrStoreClosed)
	assert.ErrorIs(t, f.store.Reload(ctx), tasksync.ErrStoreClosed)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, "u1"))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.store.AddTask(ctx, domain.Input{Text: fmt.Sprintf("task %d", i)})
			if err == nil && res.Success {
				_ = f.store.ToggleTask(ctx, res.Task.ID)
			}
		}()
	}
	wg.Wait()
	f.barrier(t)

	snap := f.store.Snapshot()
	require.Len(t, snap.Tasks, 20)
	seen := map[string]bool{}
	for _, tk := range snap.Tasks {
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

func TestStore_ConcurrentAnonymousAddsRespectQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Start(ctx, ""))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		added   int
		refused int
		start   = make(chan struct{})
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.store.AddTask(ctx, domain.Input{Text: fmt.Sprintf("task %d", i)})
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				added++
			}
			if res.RequiresAuth {
				refused++
			}
		}()
	}
	close(start)
	wg.Wait()
	f.barrier(t)

	assert.Equal(t, 5, added)
	assert.Equal(t, 15, refused)
	assert.Len(t, f.store.Snapshot().Tasks, 5)
	assert.Equal(t, 5, f.store.AnonymousTaskCount())
	assert.Equal(t, 5, f.ledger.Count(ctx))
}

func taskIDsOf(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
