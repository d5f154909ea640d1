package reminders

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/models"
)

type StartCmd struct{}

func (c *StartCmd) Run(ctx *cli.Context) error {
	ctx.Foreground(ctx.Agent)
	if err := ctx.Scheduler.Start(); err != nil {
		return err
	}
	next := ctx.Scheduler.Schedule().NextFireAt
	fmt.Printf("✓ Reminding you every %d min, next at %s\n",
		ctx.Scheduler.Config().IntervalMinutes, next.Format(constants.TimeFormat))
	warnWithoutAgent(ctx)
	return nil
}

type StopCmd struct{}

func (c *StopCmd) Run(ctx *cli.Context) error {
	ctx.Foreground(ctx.Agent)
	if err := ctx.Scheduler.Stop(); err != nil {
		return err
	}
	fmt.Println("✓ Reminders stopped")
	return nil
}

type IntervalCmd struct {
	Minutes string `arg:"" help:"Minutes between reminders (1-1440)."`
}

func (c *IntervalCmd) Run(ctx *cli.Context) error {
	minutes, err := models.ParseInterval(c.Minutes)
	if err != nil {
		return err
	}
	ctx.Foreground(ctx.Agent)
	if err := ctx.Scheduler.SetInterval(minutes); err != nil {
		return err
	}
	if ctx.Scheduler.Config().Active {
		next := ctx.Scheduler.Schedule().NextFireAt
		fmt.Printf("✓ Interval set to %d min, next reminder at %s\n", minutes, next.Format(constants.TimeFormat))
		return nil
	}
	fmt.Printf("✓ Interval set to %d min (reminders are off)\n", minutes)
	return nil
}

// SnoozeCmd pauses reminders and stays in the foreground until they
// restart, since the restart belongs to this process.
type SnoozeCmd struct {
	Minutes int `arg:"" optional:"" default:"10" help:"Minutes to snooze."`
}

func (c *SnoozeCmd) Run(ctx *cli.Context) error {
	if c.Minutes <= 0 {
		return fmt.Errorf("snooze must be at least one minute, got %d", c.Minutes)
	}
	ctx.Foreground(ctx.Agent)
	if !ctx.Scheduler.Config().Active {
		fmt.Println("Reminders are off, nothing to snooze.")
		return nil
	}
	if err := ctx.Scheduler.Snooze(time.Duration(c.Minutes) * time.Minute); err != nil {
		return err
	}
	ctx.Sync.Flush(context.Background())

	until, _ := ctx.Scheduler.SnoozedUntil()
	fmt.Printf("💤 Snoozed until %s. Press Ctrl+C to keep reminders off.\n", until.Format(constants.TimeFormat))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return waitForRestart(sigCtx, ctx)
}

func waitForRestart(sigCtx context.Context, ctx *cli.Context) error {
	ticker := ctx.Clock.NewTicker(time.Second)
	defer ticker.Stop()
	for !ctx.Scheduler.Config().Active {
		select {
		case <-sigCtx.Done():
			fmt.Println("\nSnooze cancelled, reminders stay off. Run 'hydrate start' to resume.")
			return nil
		case <-ticker.Chan():
		}
	}
	next := ctx.Scheduler.Schedule().NextFireAt
	fmt.Printf("✓ Reminders back on, next at %s\n", next.Format(constants.TimeFormat))
	return nil
}

// warnWithoutAgent reminds the user that one-shot commands only schedule;
// something still has to raise the reminders.
func warnWithoutAgent(ctx *cli.Context) {
	if !ctx.Agent.Available() {
		fmt.Println("  No background agent is running. Start one with 'hydrate agent' or keep 'hydrate run' open.")
	}
}
