package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/hydrate/internal/agent"
	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/daemon"
	"github.com/julianstephens/hydrate/internal/lockfile"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/notifier"
	"github.com/julianstephens/hydrate/internal/permission"
)

// AgentCmd runs the background agent daemon until interrupted.
type AgentCmd struct {
	Addr string `help:"Listen address." default:"127.0.0.1:0"`
}

func (c *AgentCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform, tray := ctx.Platform(os.Stdout)
	presenter := notifier.New(platform, storedPermission{ctx.Permission}, notifier.WithClock(ctx.Clock))
	defer presenter.Close()

	a := agent.New(presenter,
		agent.WithResolution(ctx.Config.Agent.CheckResolution),
		agent.WithClock(ctx.Clock),
		agent.WithLogger(logger.Named("agent")),
	)
	d := daemon.New(a, ctx.LockPath(),
		daemon.WithAddr(c.Addr),
		daemon.WithListenHook(func(lock lockfile.Lock) {
			if tray != nil {
				tray.SetActionCallback(cli.ActionCallback(lock))
			}
		}),
	)
	logger.Info("Starting agent", "platform", platform.Name())
	return d.Run(sigCtx)
}

// storedPermission re-reads the permission before every reminder, since
// foreground processes grant and reset it while the agent runs.
type storedPermission struct {
	*permission.Authorizer
}

func (p storedPermission) Granted() bool {
	if err := p.Load(); err != nil {
		logger.Debug("Using last known permission", "error", err)
	}
	return p.Authorizer.Granted()
}
