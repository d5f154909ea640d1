package system

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/hydrate/internal/agent"
	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/notifier"
	"github.com/julianstephens/hydrate/internal/scheduler"
	"github.com/julianstephens/hydrate/internal/statesync"
	"github.com/julianstephens/hydrate/internal/tui"
)

// RunCmd is the interactive foreground. It attaches to a running agent
// daemon, or runs an agent of its own when configured to.
type RunCmd struct{}

func (c *RunCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	platform, tray := ctx.Platform(os.Stdout)

	var link statesync.Link
	switch {
	case ctx.Agent.Available():
		link = ctx.Agent
		if lock, err := ctx.Agent.Lock(); err == nil && tray != nil {
			tray.SetActionCallback(cli.ActionCallback(lock))
		}
		logger.Info("Attached to background agent", "lockfile", ctx.LockPath())
	case ctx.Config.Agent.InProcess:
		bg := notifier.New(platform, ctx.Permission)
		defer bg.Close()
		a := agent.New(bg, agent.WithResolution(ctx.Config.Agent.CheckResolution), agent.WithClock(ctx.Clock))
		g.Go(func() error { return a.Run(gctx) })
		link = agent.LocalLink{Agent: a}
		logger.Info("No agent daemon running, using an in-process agent")
	default:
		logger.Info("No background agent, reminders stop with this window")
	}

	bridge := &tui.Bridge{}
	opts := []notifier.Option{
		notifier.WithPrompter(bridge.Prompt),
		notifier.WithDrinkHook(func(ml int) {
			if _, err := ctx.Counter.RecordIntake(ml); err != nil {
				logger.Warn("Failed to record drink from reminder", "error", err)
			}
		}),
		notifier.WithClock(ctx.Clock),
	}
	if ctx.Config.UI.Bell {
		opts = append(opts, notifier.WithBell(os.Stdout))
	}
	fg := notifier.New(platform, ctx.Permission, opts...)
	defer fg.Close()

	ctx.Foreground(link,
		scheduler.WithFireHook(func(at time.Time) {
			bridge.Fired(at)
			if _, err := fg.Present(gctx, constants.ReminderTitle, notifier.RandomMessage(), notifier.Options{AllowActions: true}); err != nil {
				logger.Warn("Reminder shown as a prompt instead", "error", err)
			}
		}),
		scheduler.WithCountdown(bridge.Countdown),
	)
	if err := ctx.Scheduler.Restore(); err != nil {
		logger.Warn("Failed to resume reminders", "error", err)
	}
	ctx.PerformAutomaticBackup()

	g.Go(func() error { return ctx.Sync.Run(gctx) })

	p := tea.NewProgram(
		tui.NewModel(ctx.Scheduler, ctx.Counter, ctx.Permission, ctx.Clock),
		tea.WithAltScreen(),
		tea.WithContext(gctx),
	)
	bridge.Attach(p)
	_, err := p.Run()
	bridge.Attach(nil)

	ctx.Scheduler.Close()
	stop()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
