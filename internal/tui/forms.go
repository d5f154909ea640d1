package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/hydrate/internal/models"
)

type formKind int

const (
	formNone formKind = iota
	formInterval
	formAmount
	formPermission
	formPrompt
)

type IntervalFormModel struct {
	Minutes string
}

type AmountFormModel struct {
	Amount string
}

type PermissionFormModel struct {
	Allow bool
}

type PromptFormModel struct {
	Drank bool
}

const permissionExplanation = "hydrate raises a desktop notification every time a reminder is due, " +
	"even while this window is closed. Without notifications it can only ask you here."

func newIntervalForm(fm *IntervalFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Remind me every (minutes)").
				Value(&fm.Minutes).
				Validate(func(s string) error {
					_, err := models.ParseInterval(s)
					return err
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

func newAmountForm(fm *AmountFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("How much did you drink? (ml)").
				Value(&fm.Amount).
				Validate(func(s string) error {
					_, err := parseAmount(s)
					return err
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

// newPermissionForm shows the explanation step first unless it has already
// been seen.
func newPermissionForm(fm *PermissionFormModel, explained bool) *huh.Form {
	var fields []huh.Field
	if !explained {
		fields = append(fields, huh.NewNote().
			Title("Why notifications?").
			Description(permissionExplanation))
	}
	fields = append(fields, huh.NewConfirm().
		Title("Allow hydration reminders?").
		Affirmative("Allow").
		Negative("Not now").
		Value(&fm.Allow))
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeDracula())
}

func newPromptForm(fm *PromptFormModel, title, body string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(body).
				Affirmative("I drank").
				Negative("Not yet").
				Value(&fm.Drank),
		),
	).WithTheme(huh.ThemeDracula())
}

func parseAmount(s string) (int, error) {
	ml, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || ml <= 0 {
		return 0, fmt.Errorf("amount must be a positive number of ml")
	}
	return ml, nil
}
