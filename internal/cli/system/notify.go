package system

import (
	"context"
	"fmt"
	"os"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/notifier"
)

// NotifyCmd raises one test reminder through the configured platform.
type NotifyCmd struct {
	DryRun bool `help:"Print the notification to stdout instead of showing it."`
}

type allowAll struct{}

func (allowAll) Granted() bool { return true }

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	var (
		platform notifier.Platform
		gate     notifier.Gate = ctx.Permission
	)
	if c.DryRun {
		platform = notifier.NewDryRunPlatform(os.Stdout, true)
		gate = allowAll{}
	} else {
		platform, _ = ctx.Platform(os.Stdout)
	}

	opts := []notifier.Option{
		notifier.WithPrompter(cli.ConfirmPrompt),
		notifier.WithDrinkHook(func(ml int) {
			if today, err := ctx.Counter.RecordIntake(ml); err == nil {
				fmt.Printf("💧 +%d ml, %d ml today\n", ml, today.TotalMl)
			}
		}),
	}
	if ctx.Config.UI.Bell && !c.DryRun {
		opts = append(opts, notifier.WithBell(os.Stdout))
	}
	presenter := notifier.New(platform, gate, opts...)
	defer presenter.Close()

	out, err := presenter.Present(context.Background(), constants.ReminderTitle, notifier.RandomMessage(),
		notifier.Options{AllowActions: true})
	presenter.Wait()
	if err != nil {
		fmt.Printf("⚠ %s could not show the reminder: %v\n", platform.Name(), err)
	}
	fmt.Printf("Reminder %s via %s\n", out, platform.Name())
	return nil
}
