// Package permission implements the notification authorization flow:
// unknown -> granted | denied, with an explanation step before the first request.
package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AskFunc asks the user (or platform) for permission and reports the answer.
type AskFunc func(ctx context.Context) (granted bool, err error)

// Authorizer owns the persisted permission state.
type Authorizer struct {
	mu       sync.Mutex
	provider storage.Provider
	current  models.Permission
}

// New creates an authorizer in state unknown; call Load to read the stored state.
func New(provider storage.Provider) *Authorizer {
	return &Authorizer{
		provider: provider,
		current:  models.Permission{State: constants.PermissionUnknown},
	}
}

// Load reads the stored state. A missing or unreadable value means unknown.
func (a *Authorizer) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := a.provider.Get(constants.PermissionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading permission: %w: %v", hyerrors.ErrPersistenceUnavailable, err)
	}

	var p models.Permission
	if err := json.Unmarshal([]byte(raw), &p); err != nil || !valid(p.State) {
		logger.Warn("Ignoring malformed permission record", "value", raw)
		return nil
	}
	a.current = p
	return nil
}

func valid(s constants.PermissionState) bool {
	switch s {
	case constants.PermissionUnknown, constants.PermissionGranted, constants.PermissionDenied:
		return true
	}
	return false
}

// State returns the current authorization state.
func (a *Authorizer) State() constants.PermissionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.State
}

// Granted reports whether reminders may be started.
func (a *Authorizer) Granted() bool {
	return a.State() == constants.PermissionGranted
}

// Explained reports whether the explanation step has been shown.
func (a *Authorizer) Explained() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.Explained
}

// Require returns ErrPermissionRequired unless permission is granted.
func (a *Authorizer) Require() error {
	if st := a.State(); st != constants.PermissionGranted {
		return fmt.Errorf("permission is %s: %w", st, hyerrors.ErrPermissionRequired)
	}
	return nil
}

// MarkExplained records that the user has seen why notifications are needed.
func (a *Authorizer) MarkExplained() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current
	next.Explained = true
	return a.persist(next)
}

// Request asks for permission. Outside state unknown it returns the current
// state without asking. In state unknown it fails with ErrExplanationRequired
// until MarkExplained has been called.
func (a *Authorizer) Request(ctx context.Context, ask AskFunc) (constants.PermissionState, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur.State != constants.PermissionUnknown {
		return cur.State, nil
	}
	if !cur.Explained {
		return cur.State, hyerrors.ErrExplanationRequired
	}

	granted, err := ask(ctx)
	if err != nil {
		return constants.PermissionUnknown, fmt.Errorf("requesting permission: %w", err)
	}

	next := cur
	next.State = constants.PermissionDenied
	if granted {
		next.State = constants.PermissionGranted
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current.State != constants.PermissionUnknown {
		// Another request finished first.
		return a.current.State, nil
	}
	logger.Info("Notification permission decided", "state", next.State)
	return next.State, a.persist(next)
}

// Reset returns to state unknown, as when the user changes platform settings.
// The explanation does not need to be shown again.
func (a *Authorizer) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persist(models.Permission{State: constants.PermissionUnknown, Explained: a.current.Explained})
}

// persist updates the in-memory state first so a failing store only costs durability.
func (a *Authorizer) persist(p models.Permission) error {
	a.current = p
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := a.provider.Put(constants.PermissionKey, string(data)); err != nil {
		logger.Warn("Permission kept in memory only", "error", err)
		return fmt.Errorf("saving permission: %w: %v", hyerrors.ErrPersistenceUnavailable, err)
	}
	return nil
}
