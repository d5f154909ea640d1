package constants

import "time"

// MessageType identifies an envelope exchanged between the foreground and the agent
type MessageType string

// PermissionState represents the notification authorization state
type PermissionState string

// ReminderAction represents a user action taken on a raised reminder
type ReminderAction string

const (
	AppName            = "hydrate"
	DefaultConfigDir   = "~/.config/hydrate"
	DefaultDBPath      = "~/.config/hydrate/hydrate.db"
	DefaultConfigPath  = "~/.config/hydrate/config.yaml"
	DefaultKeyringUser = "vapid-private-key"
	Version            = "v0.3.0"

	// DateFormat is the calendar day key used for daily intake (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the clock format used in status output (HH:MM)
	TimeFormat = "15:04"

	// Interval bounds (minutes)
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 1440
	DefaultIntervalMinutes = 60

	// Intake constants
	DefaultDrinkAmountMl = 250
	DefaultGoalMl        = 2000
	DefaultSnoozeMinutes = 10

	// Scheduling constants
	CountdownTick          = time.Second
	AgentCheckResolution   = time.Minute
	AutoDismissTimeout     = 10 * time.Second
	AutoDismissConstrained = 5 * time.Second

	// Persistence keys
	StateKey            = "hydrate_state"
	PermissionKey       = "notification_permission"
	PushSubscriptionKey = "push_subscription"
	StateVersion        = 1

	// Protocol constants
	ProtocolVersion = 1
	SecretHeader    = "X-Hydrate-Secret"

	// Lockfiles
	AgentLockfileName = "hydrate-agent.lock"
	TrayLockfileName  = "hydrate-tray.lock"
	AgentProcessName  = "hydrate"
	TrayProcessName   = "hydrate-tray"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "hydrate-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifyMaxRetries = 3
	NotifyRetryDelay = 100 * time.Millisecond
	NotifyTimeout    = 3 * time.Second
	ReminderTitle    = "💧 Time to hydrate"
	ReminderTag      = "water-reminder"

	// Message types
	MsgUpdateReminderSettings MessageType = "UPDATE_REMINDER_SETTINGS"
	MsgGetReminderSettings    MessageType = "GET_REMINDER_SETTINGS"
	MsgWaterConsumed          MessageType = "WATER_CONSUMED"
	MsgSnoozeReminder         MessageType = "SNOOZE_REMINDER"

	// Permission states
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"

	// Reminder actions
	ActionDrink  ReminderAction = "drink"
	ActionSnooze ReminderAction = "snooze"
	ActionOpen   ReminderAction = "open"
)

// VibrationPattern is the haptic hint played with every reminder (ms on/off)
var VibrationPattern = []int{200, 100, 200, 100, 500}

// ReminderMessages are the bodies a reminder picks from
var ReminderMessages = []string{
	"💧 Time for a glass of water!",
	"💧 Remember to top up your fluids.",
	"🥤 A sip now keeps the headache away.",
	"💙 Your body will thank you for this glass.",
	"🌊 Stay hydrated, stay sharp.",
	"⚡ Recharge with some water.",
}
