package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/storage"
)

// ErrNoSubscription means no browser has subscribed to Web Push yet.
var ErrNoSubscription = errors.New("no push subscription stored")

// WebPushConfig holds the VAPID identity used to sign pushes.
type WebPushConfig struct {
	Subscriber string
	PublicKey  string
	// PrivateKey is looked up on every send so the key can live in the OS keyring.
	PrivateKey func() (string, error)
	TTL        int
	HTTPClient webpush.HTTPClient
}

// WebPushPlatform delivers reminders to a subscribed browser. Push
// notifications carry no actions and cannot be closed remotely.
type WebPushPlatform struct {
	cfg      WebPushConfig
	provider storage.Provider
	mu       sync.Mutex
}

func NewWebPushPlatform(cfg WebPushConfig, provider storage.Provider) *WebPushPlatform {
	if cfg.TTL == 0 {
		cfg.TTL = 30
	}
	return &WebPushPlatform{cfg: cfg, provider: provider}
}

func (w *WebPushPlatform) Name() string          { return "webpush" }
func (w *WebPushPlatform) SupportsActions() bool { return false }
func (w *WebPushPlatform) Constrained() bool     { return true }

func (w *WebPushPlatform) Available() bool {
	if w.cfg.PublicKey == "" || w.cfg.PrivateKey == nil {
		return false
	}
	_, err := w.Subscription()
	return err == nil
}

// Subscription returns the stored subscription.
func (w *WebPushPlatform) Subscription() (models.PushSubscription, error) {
	raw, err := w.provider.Get(constants.PushSubscriptionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PushSubscription{}, ErrNoSubscription
	}
	if err != nil {
		return models.PushSubscription{}, err
	}
	var sub models.PushSubscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return models.PushSubscription{}, fmt.Errorf("stored push subscription is malformed: %w", err)
	}
	return sub, nil
}

// Subscribe validates and stores sub, replacing any previous one.
func (w *WebPushPlatform) Subscribe(sub models.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid push subscription: %w", err)
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return w.provider.Put(constants.PushSubscriptionKey, string(data))
}

// Unsubscribe forgets the stored subscription.
func (w *WebPushPlatform) Unsubscribe() error {
	return w.provider.Delete(constants.PushSubscriptionKey)
}

func (w *WebPushPlatform) Show(ctx context.Context, n Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, err := w.Subscription()
	if err != nil {
		return err
	}
	privateKey, err := w.cfg.PrivateKey()
	if err != nil {
		return fmt.Errorf("loading VAPID private key: %w", err)
	}

	message, err := json.Marshal(n)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      w.cfg.HTTPClient,
		Subscriber:      w.cfg.Subscriber,
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: privateKey,
		TTL:             w.cfg.TTL,
		Topic:           constants.ReminderTag,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		logger.Info("Push subscription expired, removing it", "status", resp.StatusCode)
		if err := w.Unsubscribe(); err != nil {
			logger.Warn("Failed to remove expired push subscription", "error", err)
		}
		return fmt.Errorf("push subscription expired (status %d)", resp.StatusCode)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// Close is a no-op: a delivered push can only be closed by the receiving browser.
func (w *WebPushPlatform) Close(context.Context, string) error {
	return nil
}

// GenerateVAPIDKeys creates a new VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
