package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/notifier"
	"github.com/julianstephens/hydrate/internal/protocol"
)

type granted struct{}

func (granted) Granted() bool { return true }

func startAgent(t *testing.T) (*Agent, *clockwork.FakeClock, *notifier.DryRunPlatform) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	dry := notifier.NewDryRunPlatform(nil, true)
	presenter := notifier.New(dry, granted{}, notifier.WithClock(clock))
	// The check cadence is then the interval itself, so tests that stay
	// inside one interval never race the ticker.
	a := New(presenter, WithClock(clock), WithResolution(24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return a, clock, dry
}

func activate(t *testing.T, a *Agent, minutes int, last time.Time) {
	t.Helper()
	env, err := protocol.UpdateSettings(models.FullUpdate(models.ReminderConfig{IntervalMinutes: minutes, Active: true}, last))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Deliver(context.Background(), env); err != nil {
		t.Fatalf("Deliver() error = %v", err)
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

func TestNewAgentStartsInactive(t *testing.T) {
	a, _, _ := startAgent(t)
	s, err := a.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Active || s.LastReminderAt != nil {
		t.Errorf("fresh agent settings = %+v", s)
	}
}

func TestUpdateSettingsMirrorsConfig(t *testing.T) {
	a, clock, _ := startAgent(t)
	activate(t, a, 45, clock.Now())

	s, err := a.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !s.Active || s.IntervalMinutes != 45 || !s.LastReminderAt.Equal(clock.Now()) {
		t.Errorf("settings = %+v", s)
	}
}

func TestCheckAndFire(t *testing.T) {
	a, clock, dry := startAgent(t)
	ctx := context.Background()
	activate(t, a, 30, clock.Now().Add(-29*time.Minute))

	if fired, _ := a.CheckAndFire(ctx); fired {
		t.Fatal("fired before the interval elapsed")
	}

	clock.Advance(time.Minute)
	fired, err := a.CheckAndFire(ctx)
	if err != nil || !fired {
		t.Fatalf("CheckAndFire() = %v, %v; want fired", fired, err)
	}
	waitFor(t, func() bool { return len(dry.Shown()) == 1 })

	n := dry.Shown()[0]
	if n.Title != constants.ReminderTitle || len(n.Actions) != 2 {
		t.Errorf("notification = %+v", n)
	}

	s, _ := a.Settings(ctx)
	if !s.LastReminderAt.Equal(clock.Now()) {
		t.Errorf("lastReminderAt = %v, want %v", s.LastReminderAt, clock.Now())
	}

	if fired, _ := a.CheckAndFire(ctx); fired {
		t.Error("second check right after a fire must be a no-op")
	}
}

func TestCheckAndFireInactive(t *testing.T) {
	a, clock, dry := startAgent(t)
	ctx := context.Background()
	activate(t, a, 1, clock.Now().Add(-time.Hour))

	// Activation runs an immediate check, which fires for an overdue reminder.
	waitFor(t, func() bool { return len(dry.Shown()) == 1 })

	off := false
	env, _ := protocol.UpdateSettings(models.SettingsUpdate{Active: &off})
	if err := a.Deliver(ctx, env); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	if fired, _ := a.CheckAndFire(ctx); fired {
		t.Error("inactive agent fired")
	}
}

func TestPeriodicCheck(t *testing.T) {
	a, clock, dry := startAgent(t)
	activate(t, a, 1, clock.Now())

	clock.Advance(time.Minute)
	waitFor(t, func() bool { return len(dry.Shown()) == 1 })
}

func TestAttachedForegroundSuppressesPresentation(t *testing.T) {
	a, clock, dry := startAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := a.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	activate(t, a, 10, clock.Now().Add(-9*time.Minute))

	clock.Advance(time.Minute)
	fired, err := a.CheckAndFire(context.Background())
	if err != nil || !fired {
		t.Fatalf("CheckAndFire() = %v, %v", fired, err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(dry.Shown()) != 0 {
		t.Error("agent presented while a foreground was attached")
	}
	s, _ := a.Settings(context.Background())
	if !s.LastReminderAt.Equal(clock.Now()) {
		t.Error("lastReminderAt must still advance while attached")
	}
}

func TestHandleAction(t *testing.T) {
	tests := []struct {
		action   constants.ReminderAction
		wantType constants.MessageType
		check    func(t *testing.T, env protocol.Envelope)
	}{
		{constants.ActionDrink, constants.MsgWaterConsumed, func(t *testing.T, env protocol.Envelope) {
			p, err := env.Consumed()
			if err != nil || p.AmountMl != 250 {
				t.Errorf("payload = %+v, %v", p, err)
			}
		}},
		{constants.ActionSnooze, constants.MsgSnoozeReminder, func(t *testing.T, env protocol.Envelope) {
			p, err := env.Snooze()
			if err != nil || p.DelayMinutes != 10 {
				t.Errorf("payload = %+v, %v", p, err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			a, _, _ := startAgent(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			events, err := a.Subscribe(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if err := a.HandleAction(ctx, "n-1", tt.action); err != nil {
				t.Fatalf("HandleAction() error = %v", err)
			}

			select {
			case env := <-events:
				if env.Type != tt.wantType || env.ID == "" {
					t.Errorf("envelope = %+v", env)
				}
				tt.check(t, env)
			case <-time.After(2 * time.Second):
				t.Fatal("no envelope broadcast")
			}
		})
	}
}

func TestHandleActionOpenAndDropped(t *testing.T) {
	a, _, _ := startAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No foreground attached: dropped without error.
	if err := a.HandleAction(ctx, "n-1", constants.ActionDrink); err != nil {
		t.Errorf("HandleAction() with no foreground error = %v", err)
	}

	events, _ := a.Subscribe(ctx)
	if err := a.HandleAction(ctx, "n-2", constants.ActionOpen); err != nil {
		t.Fatal(err)
	}
	select {
	case env := <-events:
		t.Errorf("open must not broadcast, got %+v", env)
	case <-time.After(50 * time.Millisecond):
	}

	if err := a.HandleAction(ctx, "n-3", "wave"); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	a, _, _ := startAgent(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := a.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := a.Attached(context.Background()); n != 1 {
		t.Fatalf("Attached() = %d, want 1", n)
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
	if n, _ := a.Attached(context.Background()); n != 0 {
		t.Errorf("Attached() = %d after detach", n)
	}
}

func TestDeliverRejectsForegroundTypes(t *testing.T) {
	a, _, _ := startAgent(t)
	env, _ := protocol.Consumed(250)
	if err := a.Deliver(context.Background(), env); !errors.Is(err, protocol.ErrUnknownType) {
		t.Errorf("Deliver(WATER_CONSUMED) error = %v", err)
	}
	if _, err := a.Query(context.Background(), env); err == nil {
		t.Error("Query with a non-query envelope should fail")
	}
}

func TestStoppedAgentUnavailable(t *testing.T) {
	a := New(notifier.New(nil, granted{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, err := a.Settings(context.Background()); !errors.Is(err, hyerrors.ErrAgentUnavailable) {
		t.Errorf("Settings() after stop error = %v", err)
	}
}

func TestLocalLink(t *testing.T) {
	a, clock, _ := startAgent(t)
	link := LocalLink{Agent: a}
	env, _ := protocol.UpdateSettings(models.FullUpdate(models.ReminderConfig{IntervalMinutes: 20, Active: true}, clock.Now()))

	if err := link.Send(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	s, err := link.Settings(context.Background())
	if err != nil || s.IntervalMinutes != 20 {
		t.Errorf("Settings() = %+v, %v", s, err)
	}
}
