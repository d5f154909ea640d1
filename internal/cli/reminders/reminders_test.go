package reminders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/config"
	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/storage"
)

func setupTestContext(t *testing.T) *cli.Context {
	t.Helper()
	tempDir := t.TempDir()
	store := storage.NewSQLiteStore(filepath.Join(tempDir, "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	ctx := cli.New(store, config.Default(), filepath.Join(tempDir, "config.yaml"))
	ctx.Clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	if err := ctx.Load(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx.Finish(context.Background())
		ctx.Close()
	})
	return ctx
}

func grant(t *testing.T, ctx *cli.Context) {
	t.Helper()
	if err := ctx.Permission.MarkExplained(); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Permission.Request(context.Background(), func(context.Context) (bool, error) { return true, nil }); err != nil {
		t.Fatal(err)
	}
}

// stored reads the record back the way the next command would.
func stored(t *testing.T, ctx *cli.Context) models.PersistedState {
	t.Helper()
	state, err := settings.New(ctx.Store, ctx.Clock).Load()
	if err != nil {
		t.Fatal(err)
	}
	return state
}

func TestStartCmd_RequiresPermission(t *testing.T) {
	ctx := setupTestContext(t)

	err := (&StartCmd{}).Run(ctx)
	if !errors.Is(err, hyerrors.ErrPermissionRequired) {
		t.Fatalf("start error = %v, want ErrPermissionRequired", err)
	}
	if ctx.Scheduler.Config().Active {
		t.Error("reminders started without permission")
	}
}

func TestStartStopCmd(t *testing.T) {
	ctx := setupTestContext(t)
	grant(t, ctx)

	if err := (&StartCmd{}).Run(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	st := stored(t, ctx)
	if !st.Active || st.NextFireAt == nil {
		t.Fatalf("stored state = %+v, want active with a next fire time", st.ReminderConfig)
	}
	if want := ctx.Clock.Now().Add(time.Hour); !st.NextFireAt.Equal(want) {
		t.Errorf("NextFireAt = %v, want %v", st.NextFireAt, want)
	}

	ctx.Finish(context.Background())

	if err := (&StopCmd{}).Run(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if stored(t, ctx).Active {
		t.Error("stop did not persist")
	}
}

func TestIntervalCmd(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"45", 45, false},
		{" 90 ", 90, false},
		{"0", constants.DefaultIntervalMinutes, true},
		{"1441", constants.DefaultIntervalMinutes, true},
		{"1.5", constants.DefaultIntervalMinutes, true},
		{"abc", constants.DefaultIntervalMinutes, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ctx := setupTestContext(t)
			err := (&IntervalCmd{Minutes: tt.input}).Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("interval %q error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, hyerrors.ErrInvalidInterval) {
				t.Errorf("error = %v, want ErrInvalidInterval", err)
			}
			if got := stored(t, ctx).IntervalMinutes; got != tt.want {
				t.Errorf("IntervalMinutes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntervalCmd_ReschedulesActive(t *testing.T) {
	ctx := setupTestContext(t)
	grant(t, ctx)
	if err := (&StartCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	ctx.Finish(context.Background())

	if err := (&IntervalCmd{Minutes: "20"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	want := ctx.Clock.Now().Add(20 * time.Minute)
	if next := stored(t, ctx).NextFireAt; next == nil || !next.Equal(want) {
		t.Errorf("NextFireAt = %v, want %v", next, want)
	}
}

func TestSnoozeCmd_Inactive(t *testing.T) {
	ctx := setupTestContext(t)
	if err := (&SnoozeCmd{Minutes: 10}).Run(ctx); err != nil {
		t.Fatalf("snooze while stopped failed: %v", err)
	}
	if ctx.Scheduler.Config().Active {
		t.Error("snooze started reminders")
	}
}

func TestSnoozeCmd_RejectsNonPositive(t *testing.T) {
	ctx := setupTestContext(t)
	if err := (&SnoozeCmd{Minutes: 0}).Run(ctx); err == nil {
		t.Error("expected an error for a zero-minute snooze")
	}
}

func TestWaitForRestart(t *testing.T) {
	ctx := setupTestContext(t)
	grant(t, ctx)
	ctx.Foreground(nil)
	if err := ctx.Scheduler.Start(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Scheduler.Snooze(10 * time.Minute); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- waitForRestart(context.Background(), ctx) }()

	clock := ctx.Clock.(*clockwork.FakeClock)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
			if !ctx.Scheduler.Config().Active {
				t.Error("returned before reminders restarted")
			}
			return
		case <-deadline:
			t.Fatal("waitForRestart did not return after the snooze ended")
		case <-time.After(10 * time.Millisecond):
			clock.Advance(time.Minute)
		}
	}
}

func TestWaitForRestart_Cancelled(t *testing.T) {
	ctx := setupTestContext(t)
	ctx.Foreground(nil)

	sigCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitForRestart(sigCtx, ctx); err != nil {
		t.Errorf("waitForRestart() = %v, want nil on cancel", err)
	}
}

func TestDrinkCmd(t *testing.T) {
	ctx := setupTestContext(t)

	for _, ml := range []int{250, 1750} {
		if err := (&DrinkCmd{Amount: ml}).Run(ctx); err != nil {
			t.Fatalf("drink %d failed: %v", ml, err)
		}
	}
	if got := stored(t, ctx).DailyIntake; got.TotalMl != 2000 || got.DrinkCount != 2 {
		t.Errorf("today = %+v, want 2000 ml in 2 drinks", got)
	}

	if err := (&DrinkCmd{Amount: 0}).Run(ctx); !errors.Is(err, hyerrors.ErrInvalidAmount) {
		t.Errorf("drink 0 error = %v, want ErrInvalidAmount", err)
	}
}

func TestStatusCmd(t *testing.T) {
	ctx := setupTestContext(t)
	if err := (&DrinkCmd{Amount: 300}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&StatusCmd{}).Run(ctx); err != nil {
		t.Errorf("status failed: %v", err)
	}
}
