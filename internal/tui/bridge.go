package tui

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var errNotRunning = errors.New("interactive session is not running")

// Bridge forwards scheduler and presenter callbacks, which run on timer
// goroutines, into the program's update loop.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach sets the program to forward to. Until then messages are dropped.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

func (b *Bridge) send(msg tea.Msg) bool {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

// Countdown satisfies scheduler.CountdownFunc.
func (b *Bridge) Countdown(remaining time.Duration) {
	b.send(CountdownMsg(remaining))
}

// Fired reports a reminder to the view. It runs inside the scheduler's fire
// hook, which Stop waits on, so it must not block on the update loop.
func (b *Bridge) Fired(at time.Time) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		go p.Send(FiredMsg(at))
	}
}

// Prompt satisfies notifier.Prompter. It blocks until the user answers, the
// session ends or ctx is done.
func (b *Bridge) Prompt(ctx context.Context, title, body string) (bool, error) {
	reply := make(chan bool, 1)
	if !b.send(PromptMsg{Title: title, Body: body, Reply: reply}) {
		return false, errNotRunning
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
