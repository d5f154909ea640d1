package notifier

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Notification is what a platform is asked to show.
type Notification struct {
	ID      string                     `json:"id"`
	Title   string                     `json:"title"`
	Body    string                     `json:"body"`
	Tag     string                     `json:"tag"`
	Actions []constants.ReminderAction `json:"actions,omitempty"`
	Vibrate []int                      `json:"vibrate,omitempty"`
	// TimeoutMs is how long the platform may keep it on screen untouched.
	TimeoutMs int64 `json:"timeout_ms"`
}

// Timeout returns TimeoutMs as a duration.
func (n Notification) Timeout() time.Duration {
	return time.Duration(n.TimeoutMs) * time.Millisecond
}

// Platform is a notification capability: a tray app, Web Push, or stdout.
type Platform interface {
	Name() string
	// Available is a cheap capability probe.
	Available() bool
	SupportsActions() bool
	// Constrained platforms get the shorter auto-dismiss timeout.
	Constrained() bool
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, id string) error
}

// DismissTimeout returns the auto-dismiss timeout for p.
func DismissTimeout(p Platform) time.Duration {
	if p != nil && p.Constrained() {
		return constants.AutoDismissConstrained
	}
	return constants.AutoDismissTimeout
}

// Auto returns a platform that delegates to the first available candidate.
func Auto(candidates ...Platform) Platform {
	return &autoPlatform{candidates: candidates}
}

type autoPlatform struct {
	candidates []Platform
}

func (a *autoPlatform) pick() Platform {
	for _, p := range a.candidates {
		if p != nil && p.Available() {
			return p
		}
	}
	return nil
}

func (a *autoPlatform) Name() string {
	if p := a.pick(); p != nil {
		return p.Name()
	}
	return "none"
}

func (a *autoPlatform) Available() bool { return a.pick() != nil }

func (a *autoPlatform) SupportsActions() bool {
	p := a.pick()
	return p != nil && p.SupportsActions()
}

func (a *autoPlatform) Constrained() bool {
	p := a.pick()
	return p != nil && p.Constrained()
}

func (a *autoPlatform) Show(ctx context.Context, n Notification) error {
	p := a.pick()
	if p == nil {
		return errNoPlatform
	}
	return p.Show(ctx, n)
}

// Close is sent to every candidate since the one that showed n may have gone away.
func (a *autoPlatform) Close(ctx context.Context, id string) error {
	var firstErr error
	for _, p := range a.candidates {
		if p == nil || !p.Available() {
			continue
		}
		if err := p.Close(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
