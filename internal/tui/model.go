// Package tui is the interactive foreground: a countdown to the next
// reminder, today's intake and the controls for both.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/intake"
	"github.com/julianstephens/hydrate/internal/permission"
	"github.com/julianstephens/hydrate/internal/scheduler"
)

// TickMsg refreshes the view once a second.
type TickMsg time.Time

// CountdownMsg carries the scheduler's remaining time.
type CountdownMsg time.Duration

// FiredMsg reports that a reminder fired.
type FiredMsg time.Time

// PromptMsg asks the user whether they drank. The answer goes to Reply.
type PromptMsg struct {
	Title string
	Body  string
	Reply chan<- bool
}

type Model struct {
	scheduler  *scheduler.Scheduler
	counter    *intake.Counter
	permission *permission.Authorizer
	clock      clockwork.Clock

	keys     KeyMap
	help     help.Model
	progress progress.Model

	form           *huh.Form
	formKind       formKind
	intervalForm   *IntervalFormModel
	amountForm     *AmountFormModel
	permissionForm *PermissionFormModel
	promptForm     *PromptFormModel
	prompt         *PromptMsg
	queued         []PromptMsg

	startAfterGrant bool
	remaining       time.Duration
	lastFired       time.Time
	flash           string
	formError       string
	quitting        bool
	width           int
}

func NewModel(sched *scheduler.Scheduler, counter *intake.Counter, perm *permission.Authorizer, clock clockwork.Clock) Model {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := Model{
		scheduler:  sched,
		counter:    counter,
		permission: perm,
		clock:      clock,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		remaining:  sched.Remaining(),
	}
	if last := sched.Schedule().LastFiredAt; last != nil {
		m.lastFired = *last
	}
	return m
}

func (m Model) ShortHelp() []key.Binding {
	return m.keys.ShortHelp()
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
