package scheduler

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/storage"
)

type gate struct{ err error }

func (g *gate) Require() error { return g.err }

type harness struct {
	clock  *clockwork.FakeClock
	store  *settings.Store
	sched  *Scheduler
	fires  chan time.Time
	mu     sync.Mutex
	pushes []models.SettingsUpdate
}

func newHarness(t *testing.T, g Gate, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock: clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)),
		fires: make(chan time.Time, 16),
	}
	h.store = settings.New(storage.NewMemoryStore(), h.clock)
	if _, err := h.store.Load(); err != nil {
		t.Fatal(err)
	}
	if g == nil {
		g = &gate{}
	}
	opts = append([]Option{
		WithClock(h.clock),
		WithFireHook(func(at time.Time) { h.fires <- at }),
		WithPusher(func(u models.SettingsUpdate) {
			h.mu.Lock()
			h.pushes = append(h.pushes, u)
			h.mu.Unlock()
		}),
	}, opts...)
	h.sched = New(h.store, g, opts...)
	t.Cleanup(h.sched.Close)
	return h
}

func (h *harness) lastPush(t *testing.T) models.SettingsUpdate {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pushes) == 0 {
		t.Fatal("nothing pushed")
	}
	return h.pushes[len(h.pushes)-1]
}

func (h *harness) expectFire(t *testing.T) time.Time {
	t.Helper()
	select {
	case at := <-h.fires:
		return at
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reminder to fire")
	}
	return time.Time{}
}

func (h *harness) expectNoFire(t *testing.T) {
	t.Helper()
	select {
	case at := <-h.fires:
		t.Fatalf("unexpected fire at %v", at)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetIntervalValidation(t *testing.T) {
	tests := []struct {
		minutes int
		wantErr bool
	}{
		{1, false},
		{1440, false},
		{0, true},
		{-5, true},
		{1441, true},
	}

	for _, tt := range tests {
		h := newHarness(t, nil)
		err := h.sched.SetInterval(tt.minutes)
		if tt.wantErr {
			if !errors.Is(err, hyerrors.ErrInvalidInterval) {
				t.Errorf("SetInterval(%d) error = %v, want ErrInvalidInterval", tt.minutes, err)
			}
			if got := h.sched.Config().IntervalMinutes; got != 60 {
				t.Errorf("SetInterval(%d) changed interval to %d", tt.minutes, got)
			}
			continue
		}
		if err != nil || h.sched.Config().IntervalMinutes != tt.minutes {
			t.Errorf("SetInterval(%d) = %v, interval %d", tt.minutes, err, h.sched.Config().IntervalMinutes)
		}
	}
}

func TestStartRequiresPermission(t *testing.T) {
	h := newHarness(t, &gate{err: hyerrors.ErrPermissionRequired})

	if err := h.sched.Start(); !errors.Is(err, hyerrors.ErrPermissionRequired) {
		t.Fatalf("Start() error = %v, want ErrPermissionRequired", err)
	}
	if h.sched.Config().Active || h.sched.Schedule().NextFireAt != nil {
		t.Error("Start() without permission must leave reminders off")
	}
}

func TestStartFiresEveryInterval(t *testing.T) {
	h := newHarness(t, nil)
	start := h.clock.Now()

	if err := h.sched.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	state := h.store.State()
	if !state.Active || !state.NextFireAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("after Start: active=%v next=%v", state.Active, state.NextFireAt)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("state invalid after Start: %v", err)
	}

	h.clock.Advance(59 * time.Minute)
	h.expectNoFire(t)

	h.clock.Advance(time.Minute)
	first := h.expectFire(t)
	if !first.Equal(start.Add(time.Hour)) {
		t.Errorf("fired at %v, want %v", first, start.Add(time.Hour))
	}
	state = h.store.State()
	if !state.NextFireAt.Equal(first.Add(time.Hour)) || !state.LastFiredAt.Equal(first) {
		t.Errorf("after fire: next=%v last=%v", state.NextFireAt, state.LastFiredAt)
	}
	if u := h.lastPush(t); u.LastReminderAt == nil || !u.LastReminderAt.Equal(first) {
		t.Errorf("fire must push lastReminderAt, got %+v", u)
	}

	h.clock.Advance(time.Hour)
	h.expectFire(t)
	h.expectNoFire(t)
}

func TestStopCancelsPendingFire(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.Start()

	h.clock.Advance(30 * time.Minute)
	if err := h.sched.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	h.clock.Advance(2 * time.Hour)
	h.expectNoFire(t)

	state := h.store.State()
	if state.Active || state.NextFireAt != nil {
		t.Errorf("after Stop: active=%v next=%v", state.Active, state.NextFireAt)
	}
	if u := h.lastPush(t); u.Active == nil || *u.Active {
		t.Errorf("Stop must push active=false, got %+v", u)
	}
}

// lineHook runs fn the first time a log line containing match is written.
type lineHook struct {
	match string
	once  sync.Once
	fn    func()
}

func (w *lineHook) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(w.match)) {
		w.once.Do(w.fn)
	}
	return len(p), nil
}

func TestStopDuringFireWaitsForHook(t *testing.T) {
	var stopReturned, presentedAfterStop atomic.Bool
	presented := make(chan struct{}, 1)
	stopDone := make(chan struct{})

	hook := &lineHook{match: "Reminder fired"}
	h := newHarness(t, nil,
		WithLogger(log.NewWithOptions(hook, log.Options{Level: log.DebugLevel})),
		WithFireHook(func(time.Time) {
			presentedAfterStop.Store(stopReturned.Load())
			presented <- struct{}{}
		}),
	)
	// The fire has been decided and recorded; Stop races the hook from here.
	hook.fn = func() {
		go func() {
			h.sched.Stop()
			stopReturned.Store(true)
			close(stopDone)
		}()
		time.Sleep(30 * time.Millisecond)
	}

	if err := h.sched.Start(); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Hour)

	select {
	case <-presented:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder was not presented")
	}
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the fire completed")
	}
	if presentedAfterStop.Load() {
		t.Error("reminder presented after Stop returned")
	}
	if h.sched.Config().Active {
		t.Error("reminders still active after Stop")
	}

	h.clock.Advance(2 * time.Hour)
	select {
	case <-presented:
		t.Error("reminder fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetIntervalWhileActiveRestarts(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.Start()

	h.clock.Advance(30 * time.Minute)
	changedAt := h.clock.Now()
	if err := h.sched.SetInterval(10); err != nil {
		t.Fatal(err)
	}
	if next := h.store.State().NextFireAt; !next.Equal(changedAt.Add(10 * time.Minute)) {
		t.Errorf("next = %v, want %v", next, changedAt.Add(10*time.Minute))
	}

	// Three fires at +10, +20 and +30; the old 60 minute timer would have
	// added a fourth at +30.
	for i := 0; i < 3; i++ {
		h.clock.Advance(10 * time.Minute)
		h.expectFire(t)
	}
	h.expectNoFire(t)
	if u := h.lastPush(t); u.IntervalMinutes == nil || *u.IntervalMinutes != 10 {
		t.Errorf("pushed %+v, want interval 10", u)
	}
}

func TestSetIntervalWhileInactive(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.sched.SetInterval(15); err != nil {
		t.Fatal(err)
	}
	if h.store.State().Active || h.store.State().NextFireAt != nil {
		t.Error("SetInterval must not start reminders")
	}
	h.clock.Advance(time.Hour)
	h.expectNoFire(t)
}

func TestSnoozeRestartsAfterDelay(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.Start()

	if err := h.sched.Snooze(10 * time.Minute); err != nil {
		t.Fatal(err)
	}
	if h.sched.Config().Active {
		t.Fatal("snoozed scheduler should be inactive")
	}
	until, ok := h.sched.SnoozedUntil()
	if !ok || !until.Equal(h.clock.Now().Add(10*time.Minute)) {
		t.Errorf("SnoozedUntil() = %v, %v", until, ok)
	}

	h.clock.Advance(10 * time.Minute)
	waitFor(t, func() bool { return h.sched.Config().Active })
	if _, ok := h.sched.SnoozedUntil(); ok {
		t.Error("snooze should be cleared after restart")
	}

	h.clock.Advance(time.Hour)
	h.expectFire(t)
}

func TestStopCancelsSnooze(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.Start()
	h.sched.Snooze(10 * time.Minute)

	if err := h.sched.Stop(); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(2 * time.Hour)
	h.expectNoFire(t)
	if h.sched.Config().Active {
		t.Error("Stop must cancel the pending snooze restart")
	}
}

func TestSnoozeAgainReplacesPending(t *testing.T) {
	h := newHarness(t, nil)
	h.sched.Start()
	h.sched.Snooze(10 * time.Minute)
	h.sched.Snooze(30 * time.Minute)

	h.clock.Advance(10 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if h.sched.Config().Active {
		t.Fatal("first snooze should have been replaced")
	}

	h.clock.Advance(20 * time.Minute)
	waitFor(t, func() bool { return h.sched.Config().Active })
}

func TestSnoozeWhileInactive(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.sched.Snooze(10 * time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.sched.SnoozedUntil(); ok {
		t.Error("snoozing inactive reminders should do nothing")
	}
	if err := h.sched.Snooze(0); err == nil {
		t.Error("Snooze(0) should fail")
	}
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name     string
		nextIn   time.Duration
		wantNext time.Duration
	}{
		{"future fire time kept", 20 * time.Minute, 20 * time.Minute},
		{"past fire time rescheduled", -3 * time.Hour, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			now := h.clock.Now()
			next := now.Add(tt.nextIn)
			h.store.Update(func(s *models.PersistedState) {
				s.Active = true
				s.NextFireAt = &next
			})

			if err := h.sched.Restore(); err != nil {
				t.Fatal(err)
			}
			want := now.Add(tt.wantNext)
			if got := h.store.State().NextFireAt; !got.Equal(want) {
				t.Errorf("next = %v, want %v", got, want)
			}

			h.expectNoFire(t)
			h.clock.Advance(tt.wantNext)
			h.expectFire(t)
		})
	}
}

func TestRestoreWithoutPermissionStops(t *testing.T) {
	h := newHarness(t, &gate{err: hyerrors.ErrPermissionRequired})
	next := h.clock.Now().Add(time.Minute)
	h.store.Update(func(s *models.PersistedState) {
		s.Active = true
		s.NextFireAt = &next
	})

	if err := h.sched.Restore(); err != nil {
		t.Fatal(err)
	}
	if h.sched.Config().Active {
		t.Error("Restore without permission should deactivate")
	}
}

func TestCountdown(t *testing.T) {
	ticks := make(chan time.Duration, 8)
	h := newHarness(t, nil, WithCountdown(func(d time.Duration) { ticks <- d }))
	h.sched.SetInterval(1)
	h.sched.Start()

	h.clock.Advance(time.Second)
	select {
	case d := <-ticks:
		if d != 59*time.Second {
			t.Errorf("remaining = %v, want 59s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no countdown tick")
	}

	if got := h.sched.Remaining(); got != 59*time.Second {
		t.Errorf("Remaining() = %v", got)
	}

	h.sched.Stop()
	if got := h.sched.Remaining(); got != 0 {
		t.Errorf("Remaining() after Stop = %v", got)
	}
	h.clock.Advance(time.Second)
	select {
	case d := <-ticks:
		t.Errorf("tick after Stop: %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPersistenceFailureKeepsRunning(t *testing.T) {
	mem := storage.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	store := settings.New(mem, clock)
	store.Load()
	mem.FailWith("hydrate_state", errors.New("disk full"))

	sched := New(store, &gate{}, WithClock(clock))
	defer sched.Close()

	if err := sched.Start(); err != nil {
		t.Fatalf("Start() on degraded store error = %v", err)
	}
	if !sched.Config().Active || !store.Degraded() {
		t.Error("expected active reminders on a degraded store")
	}
}
