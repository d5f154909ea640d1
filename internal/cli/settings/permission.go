package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
)

const explanation = `hydrate raises a desktop notification each time a reminder is due,
even when no hydrate window is open. Notifications can carry "I drank"
and "Snooze" buttons so you can answer without switching windows.`

type PermissionStatusCmd struct{}

func (c *PermissionStatusCmd) Run(ctx *cli.Context) error {
	fmt.Printf("Notifications: %s\n", ctx.Permission.State())
	if ctx.Permission.State() == constants.PermissionUnknown {
		fmt.Println("Run 'hydrate permission request' to enable reminders.")
	}
	return nil
}

type PermissionRequestCmd struct {
	Yes bool `short:"y" help:"Allow without asking."`
}

func (c *PermissionRequestCmd) Run(ctx *cli.Context) error {
	if st := ctx.Permission.State(); st != constants.PermissionUnknown {
		fmt.Printf("Notifications are already %s.\n", st)
		if st == constants.PermissionDenied {
			fmt.Println("Run 'hydrate permission reset' to be asked again.")
		}
		return nil
	}

	if !ctx.Permission.Explained() {
		fmt.Println(explanation)
		fmt.Println()
		if err := ctx.Permission.MarkExplained(); err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
			return err
		}
	}

	state, err := ctx.Permission.Request(context.Background(), c.ask)
	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		return err
	}
	if state == constants.PermissionGranted {
		fmt.Println("✓ Notifications allowed. Run 'hydrate start' to begin reminders.")
	} else {
		fmt.Println("Notifications denied. Reminders stay off.")
	}
	return nil
}

func (c *PermissionRequestCmd) ask(ctx context.Context) (bool, error) {
	if c.Yes {
		return true, nil
	}
	allow := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow hydration reminders?").
				Affirmative("Allow").
				Negative("Don't allow").
				Value(&allow),
		),
	).WithTheme(huh.ThemeDracula()).RunWithContext(ctx)
	return allow, err
}

// PermissionResetCmd returns to the undecided state, as when the user
// changes the platform's notification settings. Running reminders stop.
type PermissionResetCmd struct{}

func (c *PermissionResetCmd) Run(ctx *cli.Context) error {
	if err := ctx.Permission.Reset(); err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		return err
	}
	ctx.Foreground(ctx.Agent)
	if ctx.Scheduler.Config().Active {
		if err := ctx.Scheduler.Stop(); err != nil {
			return err
		}
		logger.Info("Reminders stopped after permission reset")
		fmt.Println("Reminders stopped.")
	}
	fmt.Println("✓ Notification permission reset. Run 'hydrate permission request' to decide again.")
	return nil
}
