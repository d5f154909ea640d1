package settings

import (
	"fmt"
	"strings"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Goal     *int    `help:"Daily goal in ml."`
	Sound    *string `help:"Reminder sound name."`
	Theme    *string `help:"Color theme name."`
	Timezone *string `help:"IANA timezone used for the daily reset, or Local."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	if c.Timezone != nil && !utils.ValidateTimezone(*c.Timezone) {
		return fmt.Errorf("invalid timezone %q", *c.Timezone)
	}
	if c.Goal != nil {
		if err := ctx.Counter.SetGoal(*c.Goal); err != nil {
			return err
		}
	}

	updated := c.Goal != nil
	if c.Sound != nil || c.Theme != nil || c.Timezone != nil {
		_, err := ctx.Settings.Update(func(st *models.PersistedState) {
			if c.Sound != nil {
				st.Sound = strings.TrimSpace(*c.Sound)
			}
			if c.Theme != nil {
				st.Theme = strings.TrimSpace(*c.Theme)
			}
			if c.Timezone != nil {
				st.Timezone = *c.Timezone
			}
		})
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		updated = true
	}

	if updated {
		fmt.Println("✓ Settings updated")
		if !c.List {
			return nil
		}
	}

	prefs := ctx.Settings.State().Preferences
	fmt.Println("Current Settings:")
	fmt.Printf("  Goal:      %d ml\n", prefs.GoalMl)
	fmt.Printf("  Sound:     %s\n", prefs.Sound)
	fmt.Printf("  Theme:     %s\n", prefs.Theme)
	fmt.Printf("  Timezone:  %s\n", prefs.Timezone)

	cfg := ctx.Config
	fmt.Println("\nConfig file:", ctx.ConfigPath)
	fmt.Printf("  Platform:          %s\n", cfg.Notifications.Platform)
	fmt.Printf("  Agent resolution:  %s\n", cfg.Agent.CheckResolution)
	fmt.Printf("  In-process agent:  %v\n", cfg.Agent.InProcess)
	fmt.Printf("  Terminal bell:     %v\n", cfg.UI.Bell)
	return nil
}
