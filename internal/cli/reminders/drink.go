package reminders

import (
	"fmt"

	"github.com/julianstephens/hydrate/internal/cli"
)

type DrinkCmd struct {
	Amount int `arg:"" optional:"" default:"250" help:"Amount in ml."`
}

func (c *DrinkCmd) Run(ctx *cli.Context) error {
	today, err := ctx.Counter.RecordIntake(c.Amount)
	if err != nil {
		return err
	}
	goal := ctx.Counter.Goal()
	fmt.Printf("💧 +%d ml, %d / %d ml today (%.0f%%)\n",
		c.Amount, today.TotalMl, goal, today.Progress(goal)*100)
	if today.TotalMl >= goal && today.TotalMl-c.Amount < goal {
		fmt.Println("🎉 Daily goal reached!")
	}
	return nil
}
