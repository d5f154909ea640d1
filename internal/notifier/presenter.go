package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
)

var errNoPlatform = errors.New("no notification platform available")

// Gate reports whether notifications are authorized.
type Gate interface {
	Granted() bool
}

// Prompter asks the user a yes/no question; yes means "I drank".
type Prompter func(ctx context.Context, title, body string) (bool, error)

// Options control a single presentation.
type Options struct {
	AllowActions bool
}

// Outcome says which path a presentation took.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeShown
	OutcomePrompted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeShown:
		return "shown"
	case OutcomePrompted:
		return "prompted"
	}
	return "dropped"
}

// Presenter turns a reminder into a platform notification, or a confirmation
// prompt when the platform is unavailable, unauthorized or failing.
// It never calls back into the scheduler; a "yes" to the prompt only reaches
// the drink hook.
type Presenter struct {
	platform Platform
	gate     Gate
	clock    clockwork.Clock
	prompter Prompter
	onDrink  func(amountMl int)
	bell     io.Writer
	log      *log.Logger

	mu      sync.Mutex
	pending map[string]clockwork.Timer
	wg      sync.WaitGroup
}

type Option func(*Presenter)

// WithPrompter sets the fallback confirmation prompt. Without one, fallback
// reminders are logged and dropped (the background agent has no user to ask).
func WithPrompter(p Prompter) Option { return func(pr *Presenter) { pr.prompter = p } }

// WithDrinkHook is called with the default amount when the prompt is confirmed.
func WithDrinkHook(fn func(amountMl int)) Option { return func(pr *Presenter) { pr.onDrink = fn } }

// WithBell sets where the haptic hint (terminal bell) is written; nil disables it.
func WithBell(w io.Writer) Option { return func(pr *Presenter) { pr.bell = w } }

func WithClock(c clockwork.Clock) Option { return func(pr *Presenter) { pr.clock = c } }

func WithLogger(l *log.Logger) Option { return func(pr *Presenter) { pr.log = l } }

func New(platform Platform, gate Gate, opts ...Option) *Presenter {
	p := &Presenter{
		platform: platform,
		gate:     gate,
		clock:    clockwork.NewRealClock(),
		log:      logger.Named("notifier"),
		pending:  make(map[string]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the configured platform, or nil.
func (p *Presenter) Platform() Platform {
	return p.platform
}

// Present raises a reminder. The error is non-nil only when the platform
// failed; it wraps ErrPresentationUnavailable and the fallback was still taken.
func (p *Presenter) Present(ctx context.Context, title, body string, opts Options) (Outcome, error) {
	p.haptic()

	var showErr error
	if p.platform != nil && p.gate != nil && p.gate.Granted() && p.platform.Available() {
		n := Notification{
			ID:        uuid.NewString(),
			Title:     title,
			Body:      body,
			Tag:       constants.ReminderTag,
			Vibrate:   constants.VibrationPattern,
			TimeoutMs: DismissTimeout(p.platform).Milliseconds(),
		}
		if opts.AllowActions && p.platform.SupportsActions() {
			n.Actions = []constants.ReminderAction{constants.ActionDrink, constants.ActionSnooze}
		}

		err := p.platform.Show(ctx, n)
		if err == nil {
			p.scheduleDismiss(n.ID, n.Timeout())
			p.log.Debug("Reminder shown", "platform", p.platform.Name(), "id", n.ID)
			return OutcomeShown, nil
		}
		showErr = fmt.Errorf("%s: %w: %v", p.platform.Name(), hyerrors.ErrPresentationUnavailable, err)
		p.log.Warn("Notification failed, falling back to prompt", "error", err)
	}

	if p.prompter == nil {
		p.log.Info("Reminder dropped, nothing can present it", "body", body)
		return OutcomeDropped, showErr
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		yes, err := p.prompter(context.WithoutCancel(ctx), title, body)
		if err != nil {
			p.log.Debug("Reminder prompt dismissed", "error", err)
			return
		}
		if yes && p.onDrink != nil {
			p.onDrink(constants.DefaultDrinkAmountMl)
		}
	}()
	return OutcomePrompted, showErr
}

// Acknowledge cancels the auto-dismiss of a notification the user acted on.
func (p *Presenter) Acknowledge(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.pending[id]; ok {
		t.Stop()
		delete(p.pending, id)
	}
}

// Pending returns how many shown notifications still await auto-dismiss.
func (p *Presenter) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Presenter) scheduleDismiss(id string, after time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[id] = p.clock.AfterFunc(after, func() {
		p.mu.Lock()
		_, live := p.pending[id]
		delete(p.pending, id)
		p.mu.Unlock()
		if !live {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.NotifyTimeout)
		defer cancel()
		if err := p.platform.Close(ctx, id); err != nil {
			p.log.Debug("Auto-dismiss failed", "id", id, "error", err)
		}
	})
}

// haptic rings the terminal bell once per pulse of the vibration pattern.
func (p *Presenter) haptic() {
	if p.bell == nil {
		return
	}
	pulses := (len(constants.VibrationPattern) + 1) / 2
	_, _ = io.WriteString(p.bell, strings.Repeat("\a", pulses))
}

// Wait blocks until outstanding prompts have returned. Used on shutdown and in tests.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

// Close stops pending auto-dismiss timers.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.pending {
		t.Stop()
		delete(p.pending, id)
	}
}
