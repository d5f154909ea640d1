// Package statesync keeps the foreground and the background agent in step:
// config changes go out as UPDATE_REMINDER_SETTINGS, and user actions on
// background reminders come back as WATER_CONSUMED and SNOOZE_REMINDER.
package statesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/protocol"
)

// Link is a connection to the background agent.
type Link interface {
	Send(ctx context.Context, env protocol.Envelope) error
	Subscribe(ctx context.Context) (<-chan protocol.Envelope, error)
}

// Intake records drinks. *intake.Counter satisfies it.
type Intake interface {
	RecordIntake(amountMl int) (models.DailyIntake, error)
}

// Snoozer defers reminders. *scheduler.Scheduler satisfies it.
type Snoozer interface {
	Snooze(delay time.Duration) error
}

const (
	reconnectDelay = 5 * time.Second
	sendTimeout    = 2 * time.Second
	seenLimit      = 256
)

type Synchronizer struct {
	link    Link
	intake  Intake
	snoozer Snoozer
	config  func() models.ReminderConfig
	clock   clockwork.Clock
	log     *log.Logger

	mu      sync.Mutex
	pending *models.SettingsUpdate
	wake    chan struct{}

	handleMu sync.Mutex
	seen     map[string]struct{}
	order    []string
}

type Option func(*Synchronizer)

func WithClock(c clockwork.Clock) Option { return func(s *Synchronizer) { s.clock = c } }

func WithLogger(l *log.Logger) Option { return func(s *Synchronizer) { s.log = l } }

// New creates a synchronizer. config returns the current foreground config
// and is pushed whenever the link is (re)established.
func New(link Link, intake Intake, snoozer Snoozer, config func() models.ReminderConfig, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		link:    link,
		intake:  intake,
		snoozer: snoozer,
		config:  config,
		clock:   clockwork.NewRealClock(),
		log:     logger.Named("sync"),
		wake:    make(chan struct{}, 1),
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSnoozer sets the snooze target after construction, since the scheduler
// usually needs the synchronizer as its pusher first.
func (s *Synchronizer) SetSnoozer(sn Snoozer) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	s.snoozer = sn
}

// Push queues u for the agent. Only the latest queued update is sent.
func (s *Synchronizer) Push(u models.SettingsUpdate) {
	s.mu.Lock()
	s.pending = &u
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Activate pushes the current config, as after connecting to the agent.
func (s *Synchronizer) Activate() {
	if s.config == nil {
		return
	}
	s.Push(models.FullUpdate(s.config(), s.clock.Now()))
}

// Flush sends the queued update now. An unreachable agent is not an error:
// the push is dropped and logged.
func (s *Synchronizer) Flush(ctx context.Context) {
	s.mu.Lock()
	u := s.pending
	s.pending = nil
	s.mu.Unlock()
	if u == nil || s.link == nil {
		return
	}

	env, err := protocol.UpdateSettings(*u)
	if err != nil {
		s.log.Error("Failed to build settings update", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.link.Send(ctx, env); err != nil {
		s.log.Debug("Agent unreachable, settings push dropped", "error", err)
		return
	}
	s.log.Debug("Settings pushed", "active", derefBool(u.Active), "interval", derefInt(u.IntervalMinutes))
}

// Handle applies one background envelope. An ID seen before is ignored.
func (s *Synchronizer) Handle(env protocol.Envelope) error {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if _, dup := s.seen[env.ID]; dup {
		s.log.Debug("Duplicate message ignored", "id", env.ID, "type", env.Type)
		return nil
	}
	s.remember(env.ID)

	switch env.Type {
	case constants.MsgWaterConsumed:
		p, err := env.Consumed()
		if err != nil {
			return err
		}
		if _, err := s.intake.RecordIntake(p.AmountMl); err != nil {
			return fmt.Errorf("recording intake from reminder: %w", err)
		}
		s.log.Info("Drink recorded from reminder", "amountMl", p.AmountMl)
	case constants.MsgSnoozeReminder:
		p, err := env.Snooze()
		if err != nil {
			return err
		}
		if s.snoozer == nil {
			return fmt.Errorf("no scheduler to snooze")
		}
		if err := s.snoozer.Snooze(time.Duration(p.DelayMinutes) * time.Minute); err != nil {
			return fmt.Errorf("snoozing from reminder: %w", err)
		}
	default:
		return fmt.Errorf("%w: foreground does not accept %s", protocol.ErrUnknownType, env.Type)
	}
	return nil
}

func (s *Synchronizer) remember(id string) {
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > seenLimit {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
}

// Run sends queued pushes and applies incoming envelopes until ctx is done.
// A lost link is re-established every few seconds, each time followed by
// Activate. Queued pushes are flushed once more on the way out.
func (s *Synchronizer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				s.Flush(context.WithoutCancel(ctx))
				return nil
			case <-s.wake:
				s.Flush(ctx)
			}
		}
	})
	g.Go(func() error {
		for {
			s.receive(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(reconnectDelay):
			}
		}
	})
	return g.Wait()
}

// receive handles one subscription until it closes.
func (s *Synchronizer) receive(ctx context.Context) {
	if s.link == nil {
		return
	}
	events, err := s.link.Subscribe(ctx)
	if err != nil {
		s.log.Debug("Agent unreachable", "error", err)
		return
	}
	s.log.Debug("Attached to agent")
	s.Activate()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				s.log.Debug("Agent link closed")
				return
			}
			if err := s.Handle(env); err != nil {
				s.log.Warn("Failed to apply agent message", "type", env.Type, "error", err)
			}
		}
	}
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
