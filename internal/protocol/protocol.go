// Package protocol defines the versioned envelopes exchanged between the
// foreground and the background agent.
package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrUnknownType        = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid message payload")
)

// Envelope wraps every cross-context message.
type Envelope struct {
	V       int                   `json:"v"`
	ID      string                `json:"id"`
	Type    constants.MessageType `json:"type"`
	Payload jsoniter.RawMessage   `json:"payload,omitempty"`
}

// WaterConsumed reports a "drank" action taken on a background reminder.
type WaterConsumed struct {
	AmountMl int `json:"amountMl" validate:"gt=0"`
}

// SnoozeReminder reports a "snooze" action taken on a background reminder.
type SnoozeReminder struct {
	DelayMinutes int `json:"delayMinutes" validate:"gt=0"`
}

var known = map[constants.MessageType]bool{
	constants.MsgUpdateReminderSettings: true,
	constants.MsgGetReminderSettings:    true,
	constants.MsgWaterConsumed:          true,
	constants.MsgSnoozeReminder:         true,
}

// New builds an envelope with a fresh ID. A nil payload is omitted.
func New(t constants.MessageType, payload any) (Envelope, error) {
	if !known[t] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	env := Envelope{V: constants.ProtocolVersion, ID: uuid.NewString(), Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// UpdateSettings builds an UPDATE_REMINDER_SETTINGS envelope.
func UpdateSettings(u models.SettingsUpdate) (Envelope, error) {
	return New(constants.MsgUpdateReminderSettings, u)
}

// GetSettings builds a GET_REMINDER_SETTINGS request.
func GetSettings() (Envelope, error) {
	return New(constants.MsgGetReminderSettings, nil)
}

// Consumed builds a WATER_CONSUMED envelope.
func Consumed(amountMl int) (Envelope, error) {
	return New(constants.MsgWaterConsumed, WaterConsumed{AmountMl: amountMl})
}

// Snooze builds a SNOOZE_REMINDER envelope.
func Snooze(delayMinutes int) (Envelope, error) {
	return New(constants.MsgSnoozeReminder, SnoozeReminder{DelayMinutes: delayMinutes})
}

// Encode serializes an envelope.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses an envelope, rejecting unknown versions and types.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.V != constants.ProtocolVersion {
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.V)
	}
	if !known[env.Type] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if env.ID == "" {
		return Envelope{}, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	return env, nil
}

// Settings decodes an UPDATE_REMINDER_SETTINGS payload.
func (e Envelope) Settings() (models.SettingsUpdate, error) {
	var u models.SettingsUpdate
	return u, e.decode(constants.MsgUpdateReminderSettings, &u)
}

// Consumed decodes a WATER_CONSUMED payload.
func (e Envelope) Consumed() (WaterConsumed, error) {
	var w WaterConsumed
	return w, e.decode(constants.MsgWaterConsumed, &w)
}

// Snooze decodes a SNOOZE_REMINDER payload.
func (e Envelope) Snooze() (SnoozeReminder, error) {
	var s SnoozeReminder
	return s, e.decode(constants.MsgSnoozeReminder, &s)
}

func (e Envelope) decode(want constants.MessageType, dst any) error {
	if e.Type != want {
		return fmt.Errorf("%w: have %s, want %s", ErrInvalidPayload, e.Type, want)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrInvalidPayload, want)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := models.Validator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Agent daemon routes.
const (
	PathMessages      = "/v1/messages"
	PathSettings      = "/v1/settings"
	PathCheck         = "/v1/check"
	PathNotifications = "/v1/notifications"
	PathActions       = PathNotifications + "/{id}/actions"
	PathEvents        = "/v1/events"
)

// ActionPath returns the action route for one notification.
func ActionPath(notificationID string) string {
	return PathNotifications + "/" + notificationID + "/actions"
}

// ActionRequest is the body the tray posts when the user clicks a reminder action.
type ActionRequest struct {
	Action constants.ReminderAction `json:"action" validate:"required,oneof=drink snooze open"`
}

// CheckResult answers a speculative check.
type CheckResult struct {
	Fired bool `json:"fired"`
}
