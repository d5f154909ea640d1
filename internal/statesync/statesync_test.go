package statesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/intake"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/protocol"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/storage"
)

type fakeLink struct {
	mu         sync.Mutex
	sent       []protocol.Envelope
	sendErr    error
	subErr     error
	subscribes int
	events     chan protocol.Envelope
}

func (f *fakeLink) Send(_ context.Context, env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeLink) Subscribe(context.Context) (<-chan protocol.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.events, nil
}

func (f *fakeLink) Sent() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Envelope(nil), f.sent...)
}

func (f *fakeLink) Subscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

type fakeSnoozer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSnoozer) Snooze(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	return nil
}

func newCounter(t *testing.T, clock clockwork.Clock) *intake.Counter {
	t.Helper()
	store := settings.New(storage.NewMemoryStore(), clock)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	return intake.New(store, clock)
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

func TestHandleWaterConsumedOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	counter := newCounter(t, clock)
	s := New(nil, counter, &fakeSnoozer{}, nil, WithClock(clock))

	env, _ := protocol.Consumed(250)
	for i := 0; i < 3; i++ {
		if err := s.Handle(env); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	today := counter.Today()
	if today.TotalMl != 250 || today.DrinkCount != 1 {
		t.Errorf("redelivered message applied more than once: %+v", today)
	}

	other, _ := protocol.Consumed(250)
	s.Handle(other)
	if got := counter.Today().TotalMl; got != 500 {
		t.Errorf("TotalMl = %d, want 500", got)
	}
}

func TestHandleSnooze(t *testing.T) {
	snoozer := &fakeSnoozer{}
	s := New(nil, newCounter(t, clockwork.NewFakeClock()), snoozer, nil)

	env, _ := protocol.Snooze(10)
	if err := s.Handle(env); err != nil {
		t.Fatal(err)
	}
	if len(snoozer.delays) != 1 || snoozer.delays[0] != 10*time.Minute {
		t.Errorf("snooze delays = %v", snoozer.delays)
	}
}

func TestHandleRejectsForegroundTypes(t *testing.T) {
	s := New(nil, newCounter(t, clockwork.NewFakeClock()), &fakeSnoozer{}, nil)
	env, _ := protocol.GetSettings()
	if err := s.Handle(env); !errors.Is(err, protocol.ErrUnknownType) {
		t.Errorf("Handle(GET_REMINDER_SETTINGS) error = %v", err)
	}
}

func TestPushCoalescesLatestWins(t *testing.T) {
	link := &fakeLink{}
	s := New(link, nil, nil, nil)

	for _, minutes := range []int{10, 20, 30} {
		s.Push(models.FullUpdate(models.ReminderConfig{IntervalMinutes: minutes, Active: true}, time.Now()))
	}
	s.Flush(context.Background())
	s.Flush(context.Background())

	sent := link.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(sent))
	}
	u, err := sent[0].Settings()
	if err != nil || *u.IntervalMinutes != 30 {
		t.Errorf("pushed %+v, %v; want interval 30", u, err)
	}
}

func TestPushToUnreachableAgentIsSilent(t *testing.T) {
	link := &fakeLink{sendErr: errors.New("connection refused")}
	s := New(link, nil, nil, nil)

	s.Push(models.SettingsUpdate{})
	s.Flush(context.Background())

	link.mu.Lock()
	link.sendErr = nil
	link.mu.Unlock()
	s.Flush(context.Background())
	if len(link.Sent()) != 0 {
		t.Error("a dropped push must not be retried")
	}
}

func TestRunActivatesAndApplies(t *testing.T) {
	clock := clockwork.NewFakeClock()
	counter := newCounter(t, clock)
	link := &fakeLink{events: make(chan protocol.Envelope, 4)}
	cfg := models.ReminderConfig{IntervalMinutes: 45, Active: true}
	s := New(link, counter, &fakeSnoozer{}, func() models.ReminderConfig { return cfg }, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return len(link.Sent()) == 1 })
	u, _ := link.Sent()[0].Settings()
	if !*u.Active || *u.IntervalMinutes != 45 || !u.LastReminderAt.Equal(clock.Now()) {
		t.Errorf("activation pushed %+v", u)
	}

	env, _ := protocol.Consumed(300)
	link.events <- env
	link.events <- env
	waitFor(t, func() bool { return counter.Today().TotalMl == 300 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if counter.Today().DrinkCount != 1 {
		t.Errorf("DrinkCount = %d, want 1", counter.Today().DrinkCount)
	}
}

func TestRunReconnects(t *testing.T) {
	clock := clockwork.NewFakeClock()
	link := &fakeLink{subErr: errors.New("agent not running")}
	s := New(link, nil, nil, nil, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, func() bool { return link.Subscribes() == 1 })
	clock.BlockUntil(1)
	clock.Advance(reconnectDelay)
	waitFor(t, func() bool { return link.Subscribes() == 2 })
}

func TestHandleIgnoresUnknownPayload(t *testing.T) {
	s := New(nil, newCounter(t, clockwork.NewFakeClock()), &fakeSnoozer{}, nil)
	env := protocol.Envelope{V: 1, ID: "x", Type: constants.MsgWaterConsumed, Payload: []byte(`{"amountMl":0}`)}
	if err := s.Handle(env); !errors.Is(err, protocol.ErrInvalidPayload) {
		t.Errorf("Handle() error = %v, want ErrInvalidPayload", err)
	}
}
