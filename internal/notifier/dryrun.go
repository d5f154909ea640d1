package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DryRunPlatform prints notifications instead of showing them.
type DryRunPlatform struct {
	mu          sync.Mutex
	out         io.Writer
	actions     bool
	constrained bool
	shown       []Notification
	closed      []string
}

// NewDryRunPlatform writes to out. actions controls SupportsActions.
func NewDryRunPlatform(out io.Writer, actions bool) *DryRunPlatform {
	return &DryRunPlatform{out: out, actions: actions}
}

// SetConstrained makes the platform report itself as constrained.
func (d *DryRunPlatform) SetConstrained(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constrained = v
}

func (d *DryRunPlatform) Name() string          { return "dryrun" }
func (d *DryRunPlatform) Available() bool       { return true }
func (d *DryRunPlatform) SupportsActions() bool { return d.actions }

func (d *DryRunPlatform) Constrained() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.constrained
}

func (d *DryRunPlatform) Show(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, n)
	if d.out == nil {
		return nil
	}
	line := fmt.Sprintf("[notify] %s: %s", n.Title, n.Body)
	if len(n.Actions) > 0 {
		names := make([]string, len(n.Actions))
		for i, a := range n.Actions {
			names[i] = string(a)
		}
		line += " [" + strings.Join(names, ", ") + "]"
	}
	_, err := fmt.Fprintln(d.out, line)
	return err
}

func (d *DryRunPlatform) Close(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = append(d.closed, id)
	return nil
}

// Shown returns a copy of every notification shown so far.
func (d *DryRunPlatform) Shown() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.shown...)
}

// Closed returns the IDs closed so far.
func (d *DryRunPlatform) Closed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.closed...)
}
