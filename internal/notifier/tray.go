package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/lockfile"
)

var userConfigDirFunc = os.UserConfigDir

// ActionCallback tells the tray where to report drink/snooze clicks.
type ActionCallback struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

type trayPayload struct {
	Notification
	Callback *ActionCallback `json:"callback,omitempty"`
}

// TrayPlatform talks to the hydrate-tray helper over its loopback webhook.
// POST / shows a notification, DELETE /{id} closes it.
type TrayPlatform struct {
	lockDir     string
	processName string
	client      *http.Client

	mu       sync.Mutex
	callback *ActionCallback
}

// NewTrayPlatform creates a tray platform. An empty lockDir means the
// tray's own config directory.
func NewTrayPlatform(lockDir string) *TrayPlatform {
	return &TrayPlatform{
		lockDir:     lockDir,
		processName: constants.TrayProcessName,
		client:      &http.Client{Timeout: constants.NotifyTimeout},
	}
}

// SetActionCallback makes shown notifications report actions to cb.URL,
// which the tray completes with /{id}/actions.
func (t *TrayPlatform) SetActionCallback(cb *ActionCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callback = cb
}

func (t *TrayPlatform) Name() string      { return "tray" }
func (t *TrayPlatform) Constrained() bool { return false }

// SupportsActions is true only once an action callback is set; without one
// a click on drink or snooze would reach nobody.
func (t *TrayPlatform) SupportsActions() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callback != nil
}

func (t *TrayPlatform) Available() bool {
	_, err := t.find()
	return err == nil
}

// GetTrayAppConfigDir returns the configuration directory used by the tray
// application, honoring a lockfile_dir override in its settings.json.
func GetTrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayConfigDir := filepath.Join(configDir, constants.TrayProcessName)

	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err != nil {
		return trayConfigDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil && store.Settings.LockfileDir != nil && *store.Settings.LockfileDir != "" {
		return *store.Settings.LockfileDir, nil
	}
	return trayConfigDir, nil
}

func (t *TrayPlatform) find() (lockfile.Lock, error) {
	dir := t.lockDir
	if dir == "" {
		var err error
		if dir, err = GetTrayAppConfigDir(); err != nil {
			return lockfile.Lock{}, err
		}
	}
	return lockfile.Find(filepath.Join(dir, constants.TrayLockfileName), t.processName)
}

func (t *TrayPlatform) Show(ctx context.Context, n Notification) error {
	lock, err := t.find()
	if err != nil {
		return err
	}
	t.mu.Lock()
	cb := t.callback
	t.mu.Unlock()
	body, err := json.Marshal(trayPayload{Notification: n, Callback: cb})
	if err != nil {
		return err
	}
	return t.do(ctx, http.MethodPost, lock.BaseURL()+"/", lock.Secret, body)
}

func (t *TrayPlatform) Close(ctx context.Context, id string) error {
	lock, err := t.find()
	if err != nil {
		return err
	}
	return t.do(ctx, http.MethodDelete, lock.BaseURL()+"/"+id, lock.Secret, nil)
}

// do retries transport errors a few times; HTTP error statuses are final.
func (t *TrayPlatform) do(ctx context.Context, method, url, secret string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < constants.NotifyMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(constants.NotifyRetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(constants.SecretHeader, secret)

		res, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("tray %s failed with status %d: %s", method, res.StatusCode, bytes.TrimSpace(msg))
	}
	return fmt.Errorf("tray unreachable after %d attempts: %w", constants.NotifyMaxRetries, lastErr)
}
