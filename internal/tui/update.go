package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/models"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = max(10, min(msg.Width-8, 60))
		return m, nil
	case TickMsg:
		return m, tick()
	case CountdownMsg:
		m.remaining = time.Duration(msg)
		return m, nil
	case FiredMsg:
		m.lastFired = time.Time(msg)
		m.remaining = m.scheduler.Remaining()
		return m, nil
	case PromptMsg:
		m.queued = append(m.queued, msg)
		if m.form == nil {
			return m.nextPrompt()
		}
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Toggle):
		return m.toggle()
	case key.Matches(msg, m.keys.Drink):
		m.recordIntake(constants.DefaultDrinkAmountMl)
	case key.Matches(msg, m.keys.DrinkCustom):
		m.amountForm = &AmountFormModel{Amount: strconv.Itoa(constants.DefaultDrinkAmountMl)}
		return m.openForm(formAmount, newAmountForm(m.amountForm))
	case key.Matches(msg, m.keys.Interval):
		m.intervalForm = &IntervalFormModel{Minutes: strconv.Itoa(m.scheduler.Config().IntervalMinutes)}
		return m.openForm(formInterval, newIntervalForm(m.intervalForm))
	case key.Matches(msg, m.keys.Snooze):
		m.snooze()
	case key.Matches(msg, m.keys.Permission):
		return m.askPermission(false)
	}
	return m, nil
}

func (m Model) toggle() (tea.Model, tea.Cmd) {
	if m.scheduler.Config().Active {
		if err := m.scheduler.Stop(); err != nil {
			m.flash = dangerStyle.Render(err.Error())
		} else {
			m.flash = "Reminders paused"
		}
		m.remaining = 0
		return m, nil
	}

	err := m.scheduler.Start()
	if errors.Is(err, hyerrors.ErrPermissionRequired) {
		if m.permission.State() == constants.PermissionUnknown {
			return m.askPermission(true)
		}
		m.flash = warningStyle.Render("Notifications are denied. Run `hydrate permission reset` to ask again.")
		return m, nil
	}
	if err != nil {
		m.flash = dangerStyle.Render(err.Error())
		return m, nil
	}
	m.remaining = m.scheduler.Remaining()
	m.flash = fmt.Sprintf("Reminding you every %d min", m.scheduler.Config().IntervalMinutes)
	return m, nil
}

func (m *Model) recordIntake(ml int) {
	today, err := m.counter.RecordIntake(ml)
	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		m.flash = dangerStyle.Render(err.Error())
		return
	}
	m.flash = fmt.Sprintf("+%d ml, %d ml today", ml, today.TotalMl)
}

func (m *Model) snooze() {
	delay := time.Duration(constants.DefaultSnoozeMinutes) * time.Minute
	if err := m.scheduler.Snooze(delay); err != nil {
		m.flash = dangerStyle.Render(err.Error())
		return
	}
	if until, ok := m.scheduler.SnoozedUntil(); ok {
		m.flash = "Snoozed until " + until.Format(constants.TimeFormat)
		return
	}
	m.flash = "Nothing to snooze"
}

func (m Model) askPermission(thenStart bool) (tea.Model, tea.Cmd) {
	if st := m.permission.State(); st != constants.PermissionUnknown {
		m.flash = fmt.Sprintf("Notifications are %s", st)
		return m, nil
	}
	m.startAfterGrant = thenStart
	m.permissionForm = &PermissionFormModel{Allow: true}
	return m.openForm(formPermission, newPermissionForm(m.permissionForm, m.permission.Explained()))
}

func (m Model) openForm(kind formKind, form *huh.Form) (tea.Model, tea.Cmd) {
	m.form = form
	m.formKind = kind
	m.formError = ""
	return m, m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEsc:
			return m.closeForm(false)
		case tea.KeyCtrlC:
			return m.quit()
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.closeForm(true)
	case huh.StateAborted:
		return m.closeForm(false)
	}
	return m, cmd
}

// quit answers "not yet" to the open prompt and every queued one, so no
// presenter goroutine is left waiting on a window that is gone.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.prompt != nil {
		m.prompt.Reply <- false
		m.prompt = nil
	}
	for _, p := range m.queued {
		p.Reply <- false
	}
	m.queued = nil
	m.form = nil
	m.formKind = formNone
	return m, tea.Quit
}

// closeForm applies a completed form, then shows the next queued prompt.
func (m Model) closeForm(completed bool) (tea.Model, tea.Cmd) {
	switch m.formKind {
	case formInterval:
		if completed {
			minutes, err := models.ParseInterval(m.intervalForm.Minutes)
			if err == nil {
				err = m.scheduler.SetInterval(minutes)
			}
			if err != nil {
				m.formError = err.Error()
				m.form.State = huh.StateNormal
				return m, nil
			}
			m.remaining = m.scheduler.Remaining()
			m.flash = fmt.Sprintf("Interval set to %d min", minutes)
		}
	case formAmount:
		if completed {
			ml, err := parseAmount(m.amountForm.Amount)
			if err != nil {
				m.formError = err.Error()
				m.form.State = huh.StateNormal
				return m, nil
			}
			m.recordIntake(ml)
		}
	case formPermission:
		if completed {
			m.decidePermission()
		}
		m.startAfterGrant = false
	case formPrompt:
		m.prompt.Reply <- completed && m.promptForm.Drank
		m.prompt = nil
	}

	m.form = nil
	m.formKind = formNone
	m.formError = ""
	return m.nextPrompt()
}

func (m *Model) decidePermission() {
	if !m.permission.Explained() {
		if err := m.permission.MarkExplained(); err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
			m.flash = dangerStyle.Render(err.Error())
			return
		}
	}
	allow := m.permissionForm.Allow
	state, err := m.permission.Request(context.Background(), func(context.Context) (bool, error) {
		return allow, nil
	})
	if err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		m.flash = dangerStyle.Render(err.Error())
		return
	}
	m.flash = fmt.Sprintf("Notifications %s", state)
	if state == constants.PermissionGranted && m.startAfterGrant {
		if err := m.scheduler.Start(); err != nil {
			m.flash = dangerStyle.Render(err.Error())
			return
		}
		m.remaining = m.scheduler.Remaining()
		m.flash = fmt.Sprintf("Notifications granted, reminding you every %d min", m.scheduler.Config().IntervalMinutes)
	}
}

func (m Model) nextPrompt() (tea.Model, tea.Cmd) {
	if len(m.queued) == 0 {
		return m, nil
	}
	p := m.queued[0]
	m.queued = m.queued[1:]
	m.prompt = &p
	m.promptForm = &PromptFormModel{Drank: true}
	return m.openForm(formPrompt, newPromptForm(m.promptForm, p.Title, p.Body))
}
