package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return "Stay hydrated!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("💧 hydrate"))
	b.WriteString("\n\n")

	cfg := m.scheduler.Config()
	switch until, snoozed := m.scheduler.SnoozedUntil(); {
	case snoozed:
		b.WriteString(warningStyle.Render("Snoozed until " + until.Format(constants.TimeFormat)))
		b.WriteString("\n")
		b.WriteString(countdownStyle.Render(utils.FormatCountdown(until.Sub(m.clock.Now()))))
	case cfg.Active:
		b.WriteString(activeStyle.Render(fmt.Sprintf("● Reminding every %d min", cfg.IntervalMinutes)))
		b.WriteString("\n")
		b.WriteString(countdownStyle.Render(utils.FormatCountdown(m.remaining)))
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("○ Paused (every %d min)", cfg.IntervalMinutes)))
		b.WriteString("\n")
		b.WriteString(countdownStyle.Render("--:--"))
	}
	b.WriteString("\n\n")

	today := m.counter.Today()
	b.WriteString(m.progress.ViewAs(m.counter.Progress()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d / %d ml  ·  %d drinks", today.TotalMl, m.counter.Goal(), today.DrinkCount))
	b.WriteString("\n")

	last := "never"
	if !m.lastFired.IsZero() {
		last = humanize.RelTime(m.lastFired, m.clock.Now(), "ago", "from now")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Last reminder: %s  ·  Notifications: %s", last, m.permission.State())))
	b.WriteString("\n")

	if m.flash != "" {
		b.WriteString("\n" + m.flash + "\n")
	}

	if m.form != nil {
		b.WriteString("\n")
		b.WriteString(m.form.View())
		if m.formError != "" {
			b.WriteString("\n" + dangerStyle.Render(m.formError))
		}
		b.WriteString("\n" + mutedStyle.Render("esc to cancel"))
	} else {
		b.WriteString("\n" + m.help.View(m))
	}

	return docStyle.Render(b.String())
}
