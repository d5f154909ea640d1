// Package agent is the background reminder agent. It keeps its own copy
// of the reminder settings and raises reminders when no foreground is
// running. All state is owned by the Run goroutine; every other method
// posts a request to its inbox.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/notifier"
	"github.com/julianstephens/hydrate/internal/protocol"
)

// Presenter raises reminders. *notifier.Presenter satisfies it.
type Presenter interface {
	Present(ctx context.Context, title, body string, opts notifier.Options) (notifier.Outcome, error)
	Acknowledge(id string)
}

const subscriberBuffer = 16

type Agent struct {
	clock      clockwork.Clock
	presenter  Presenter
	resolution time.Duration
	log        *log.Logger

	inbox   chan func()
	stopped chan struct{}
	wg      sync.WaitGroup

	// owned by Run
	settings models.BackgroundSettings
	ticker   clockwork.Ticker
	subs     map[int]chan protocol.Envelope
	nextSub  int
	runCtx   context.Context
}

type Option func(*Agent)

func WithClock(c clockwork.Clock) Option { return func(a *Agent) { a.clock = c } }

// WithResolution sets the longest time between checks. Defaults to one minute.
func WithResolution(d time.Duration) Option { return func(a *Agent) { a.resolution = d } }

func WithLogger(l *log.Logger) Option { return func(a *Agent) { a.log = l } }

func New(presenter Presenter, opts ...Option) *Agent {
	a := &Agent{
		clock:      clockwork.NewRealClock(),
		presenter:  presenter,
		resolution: constants.AgentCheckResolution,
		log:        logger.Named("agent"),
		inbox:      make(chan func()),
		stopped:    make(chan struct{}),
		subs:       make(map[int]chan protocol.Envelope),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run processes requests and periodic checks until ctx is done. The
// settings copy is lost when Run returns.
func (a *Agent) Run(ctx context.Context) error {
	a.runCtx = ctx
	defer func() {
		if a.ticker != nil {
			a.ticker.Stop()
		}
		for id, ch := range a.subs {
			close(ch)
			delete(a.subs, id)
		}
		close(a.stopped)
		a.wg.Wait()
	}()

	a.log.Info("Agent running", "resolution", a.resolution)
	for {
		var tick <-chan time.Time
		if a.ticker != nil {
			tick = a.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			a.log.Info("Agent stopped")
			return nil
		case fn := <-a.inbox:
			fn()
		case <-tick:
			a.checkAndFire()
		}
	}
}

// do runs fn on the Run goroutine and waits for it to finish.
func (a *Agent) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}
	select {
	case a.inbox <- req:
	case <-a.stopped:
		return hyerrors.ErrAgentUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-a.stopped:
		return hyerrors.ErrAgentUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver applies a foreground envelope. Only UPDATE_REMINDER_SETTINGS
// changes state; GET_REMINDER_SETTINGS goes through Query.
func (a *Agent) Deliver(ctx context.Context, env protocol.Envelope) error {
	if env.Type != constants.MsgUpdateReminderSettings {
		return fmt.Errorf("%w: agent does not accept %s", protocol.ErrUnknownType, env.Type)
	}
	update, err := env.Settings()
	if err != nil {
		return err
	}
	return a.do(ctx, func() { a.updateSettings(update) })
}

// Query answers a GET_REMINDER_SETTINGS request with the agent's copy.
func (a *Agent) Query(ctx context.Context, env protocol.Envelope) (models.BackgroundSettings, error) {
	if env.Type != constants.MsgGetReminderSettings {
		return models.BackgroundSettings{}, fmt.Errorf("%w: %s is not a query", protocol.ErrUnknownType, env.Type)
	}
	var out models.BackgroundSettings
	err := a.do(ctx, func() { out = a.settings })
	return out, err
}

// Settings is Query without building the envelope.
func (a *Agent) Settings(ctx context.Context) (models.BackgroundSettings, error) {
	env, err := protocol.GetSettings()
	if err != nil {
		return models.BackgroundSettings{}, err
	}
	return a.Query(ctx, env)
}

// CheckAndFire raises a reminder if at least one interval has passed since
// the last one. Calling it early is harmless. It reports whether it fired.
func (a *Agent) CheckAndFire(ctx context.Context) (bool, error) {
	var fired bool
	err := a.do(ctx, func() { fired = a.checkAndFire() })
	return fired, err
}

// Attached reports how many foregrounds are subscribed.
func (a *Agent) Attached(ctx context.Context) (int, error) {
	var n int
	err := a.do(ctx, func() { n = len(a.subs) })
	return n, err
}

// Subscribe attaches a foreground. Background to foreground envelopes are
// sent on the returned channel until ctx is done or the agent stops, then
// the channel is closed. While attached, the agent leaves presentation to
// the foreground.
func (a *Agent) Subscribe(ctx context.Context) (<-chan protocol.Envelope, error) {
	ch := make(chan protocol.Envelope, subscriberBuffer)
	var id int
	err := a.do(ctx, func() {
		id = a.nextSub
		a.nextSub++
		a.subs[id] = ch
		a.log.Debug("Foreground attached", "subscribers", len(a.subs))
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = a.do(context.Background(), func() {
			if c, ok := a.subs[id]; ok {
				close(c)
				delete(a.subs, id)
				a.log.Debug("Foreground detached", "subscribers", len(a.subs))
			}
		})
	}()
	return ch, nil
}

// HandleAction turns a user action on an agent-raised reminder into a
// message for the attached foregrounds. With none attached the message is
// dropped.
func (a *Agent) HandleAction(ctx context.Context, notificationID string, action constants.ReminderAction) error {
	if notificationID != "" {
		a.presenter.Acknowledge(notificationID)
	}

	var (
		env protocol.Envelope
		err error
	)
	switch action {
	case constants.ActionDrink:
		env, err = protocol.Consumed(constants.DefaultDrinkAmountMl)
	case constants.ActionSnooze:
		env, err = protocol.Snooze(constants.DefaultSnoozeMinutes)
	case constants.ActionOpen:
		a.log.Debug("Reminder opened", "id", notificationID)
		return nil
	default:
		return fmt.Errorf("unknown reminder action %q", action)
	}
	if err != nil {
		return err
	}
	return a.do(ctx, func() { a.broadcast(env) })
}

func (a *Agent) updateSettings(u models.SettingsUpdate) {
	prev := a.settings
	a.settings = a.settings.Merge(u)
	a.log.Debug("Settings updated", "active", a.settings.Active, "interval", a.settings.IntervalMinutes)

	if a.settings.Active && a.settings.IntervalMinutes > 0 {
		if !prev.Active || prev.IntervalMinutes != a.settings.IntervalMinutes || a.ticker == nil {
			a.arm()
		}
		a.checkAndFire()
		return
	}
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
}

// arm (re)starts the periodic check at min(interval, resolution).
func (a *Agent) arm() {
	if a.ticker != nil {
		a.ticker.Stop()
	}
	cadence := min(a.settings.Interval(), a.resolution)
	a.ticker = a.clock.NewTicker(cadence)
}

func (a *Agent) checkAndFire() bool {
	s := a.settings
	if !s.Active || s.IntervalMinutes <= 0 {
		return false
	}
	now := a.clock.Now()
	if s.LastReminderAt == nil {
		a.settings.LastReminderAt = &now
		return false
	}
	if now.Sub(*s.LastReminderAt) < s.Interval() {
		return false
	}

	a.settings.LastReminderAt = &now
	if len(a.subs) > 0 {
		a.log.Debug("Reminder due, foreground attached")
		return true
	}

	a.log.Info("Raising background reminder")
	ctx := a.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		out, err := a.presenter.Present(ctx, constants.ReminderTitle, notifier.RandomMessage(), notifier.Options{AllowActions: true})
		if err != nil {
			a.log.Warn("Background reminder not shown", "outcome", out, "error", err)
		}
	}()
	return true
}

func (a *Agent) broadcast(env protocol.Envelope) {
	if len(a.subs) == 0 {
		a.log.Info("No foreground attached, dropping message", "type", env.Type)
		return
	}
	for id, ch := range a.subs {
		select {
		case ch <- env:
		default:
			a.log.Warn("Foreground not keeping up, dropping message", "subscriber", id, "type", env.Type)
		}
	}
}
