package reminders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/utils"
)

const historyDays = 7

type StatusCmd struct {
	Check bool `help:"Ask the background agent to raise a reminder now if one is due."`
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	state := ctx.Settings.State()
	now := ctx.Clock.Now()

	fmt.Println("Reminders:")
	if state.Active {
		fmt.Printf("  Status:        on, every %d min\n", state.IntervalMinutes)
	} else {
		fmt.Printf("  Status:        off (interval %d min)\n", state.IntervalMinutes)
	}
	if state.NextFireAt != nil {
		fmt.Printf("  Next reminder: %s (in %s)\n", state.NextFireAt.Format(constants.TimeFormat),
			utils.FormatCountdown(state.NextFireAt.Sub(now)))
	}
	if state.LastFiredAt != nil {
		fmt.Printf("  Last reminder: %s\n", humanize.RelTime(*state.LastFiredAt, now, "ago", "from now"))
	}
	fmt.Printf("  Notifications: %s\n", ctx.Permission.State())

	today := ctx.Counter.Today()
	goal := ctx.Counter.Goal()
	fmt.Println("\nToday:")
	fmt.Printf("  Intake:   %s / %s ml in %d drinks\n", humanize.Comma(int64(today.TotalMl)), humanize.Comma(int64(goal)), today.DrinkCount)
	fmt.Printf("  Progress: %s %.0f%%\n", bar(today.Progress(goal), 20), today.Progress(goal)*100)

	history, err := ctx.Counter.History(historyDays)
	if err != nil {
		fmt.Printf("  History unavailable: %v\n", err)
	} else if len(history) > 0 {
		fmt.Printf("\nLast %d days:\n", historyDays)
		days := make([]string, 0, len(history))
		for day := range history {
			days = append(days, day)
		}
		sort.Strings(days)
		for _, day := range days {
			fmt.Printf("  %s  %6s ml\n", day, humanize.Comma(int64(history[day])))
		}
	}

	fmt.Println("\nBackground agent:")
	reqCtx, cancel := context.WithTimeout(context.Background(), constants.NotifyTimeout)
	defer cancel()
	bg, err := ctx.Agent.Settings(reqCtx)
	if err != nil {
		fmt.Println("  not running")
		return nil
	}
	fmt.Printf("  Active:        %v\n", bg.Active)
	fmt.Printf("  Interval:      %d min\n", bg.IntervalMinutes)
	if bg.LastReminderAt != nil {
		fmt.Printf("  Last reminder: %s\n", humanize.RelTime(*bg.LastReminderAt, now, "ago", "from now"))
	}
	if c.Check {
		fired, err := ctx.Agent.Check(reqCtx)
		if err != nil {
			return err
		}
		if fired {
			fmt.Println("  Reminder raised.")
		} else {
			fmt.Println("  No reminder due.")
		}
	}
	return nil
}

func bar(p float64, width int) string {
	filled := int(p*float64(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

