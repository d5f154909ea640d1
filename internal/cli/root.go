package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/hydrate/internal/agentclient"
	"github.com/julianstephens/hydrate/internal/backup"
	"github.com/julianstephens/hydrate/internal/config"
	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/intake"
	"github.com/julianstephens/hydrate/internal/keyring"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/lockfile"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/notifier"
	"github.com/julianstephens/hydrate/internal/permission"
	"github.com/julianstephens/hydrate/internal/protocol"
	"github.com/julianstephens/hydrate/internal/scheduler"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/statesync"
	"github.com/julianstephens/hydrate/internal/storage"
)

type Context struct {
	Store      storage.Provider
	Config     config.Config
	ConfigPath string
	Clock      clockwork.Clock

	Settings   *settings.Store
	Permission *permission.Authorizer
	Counter    *intake.Counter
	Agent      *agentclient.Client

	// Set by Foreground.
	Scheduler *scheduler.Scheduler
	Sync      *statesync.Synchronizer
}

func New(store storage.Provider, cfg config.Config, configPath string) *Context {
	c := &Context{
		Store:      store,
		Config:     cfg,
		ConfigPath: configPath,
		Clock:      clockwork.NewRealClock(),
	}
	c.Agent = agentclient.New(c.LockPath())
	return c
}

// ConfigDir holds the config file, the agent lockfile and the logs.
func (c *Context) ConfigDir() string {
	return filepath.Dir(c.ConfigPath)
}

func (c *Context) LockPath() string {
	return filepath.Join(c.ConfigDir(), constants.AgentLockfileName)
}

// Load opens storage and reads the persisted record and the permission
// state. An unreachable store is not fatal: commands carry on in memory.
func (c *Context) Load() error {
	if err := c.Store.Load(); err != nil {
		logger.Warn("Storage unavailable, changes will not be saved", "path", c.Store.GetConfigPath(), "error", err)
	}

	c.Settings = settings.New(c.Store, c.Clock)
	if _, err := c.Settings.Load(); err != nil && !errors.Is(err, hyerrors.ErrPersistenceUnavailable) {
		return err
	}
	c.Permission = permission.New(c.Store)
	if err := c.Permission.Load(); err != nil {
		logger.Warn("Permission unavailable, assuming unknown", "error", err)
	}
	c.Counter = intake.New(c.Settings, c.Clock)
	if _, err := c.Counter.LoadOrReset(); err != nil {
		return fmt.Errorf("resetting daily intake: %w", err)
	}
	return nil
}

// Foreground builds the scheduler and the synchronizer that mirrors it to
// the background agent over link. A nil link keeps everything local.
func (c *Context) Foreground(link statesync.Link, opts ...scheduler.Option) {
	c.Sync = statesync.New(link, c.Counter, nil, func() models.ReminderConfig {
		return c.Scheduler.Config()
	}, statesync.WithClock(c.Clock))

	opts = append([]scheduler.Option{
		scheduler.WithClock(c.Clock),
		scheduler.WithPusher(c.Sync.Push),
	}, opts...)
	c.Scheduler = scheduler.New(c.Settings, c.Permission, opts...)
	c.Sync.SetSnoozer(c.Scheduler)
}

// Finish sends any queued config to the agent and disarms the scheduler.
func (c *Context) Finish(ctx context.Context) {
	if c.Sync != nil {
		c.Sync.Flush(ctx)
	}
	if c.Scheduler != nil {
		c.Scheduler.Close()
	}
}

func (c *Context) Close() error {
	return c.Store.Close()
}

// Platform builds the configured notification platform. The tray is
// returned separately so callers can point its action callback at an agent.
func (c *Context) Platform(out io.Writer) (notifier.Platform, *notifier.TrayPlatform) {
	tray := notifier.NewTrayPlatform(c.Config.Notifications.TrayLockfileDir)
	switch c.Config.Notifications.Platform {
	case config.PlatformTray:
		return tray, tray
	case config.PlatformWebPush:
		return c.WebPush(), nil
	case config.PlatformDryRun:
		return notifier.NewDryRunPlatform(out, true), nil
	}
	return notifier.Auto(tray, c.WebPush()), tray
}

func (c *Context) WebPush() *notifier.WebPushPlatform {
	wp := c.Config.Notifications.WebPush
	return notifier.NewWebPushPlatform(notifier.WebPushConfig{
		Subscriber: wp.Subscriber,
		PublicKey:  wp.PublicKey,
		PrivateKey: keyring.GetVAPIDPrivateKey,
		TTL:        wp.TTL,
	}, c.Store)
}

// ActionCallback points tray notification actions at the agent behind lock.
func ActionCallback(lock lockfile.Lock) *notifier.ActionCallback {
	return &notifier.ActionCallback{
		URL:    lock.BaseURL() + protocol.PathNotifications,
		Secret: lock.Secret,
	}
}

// PerformAutomaticBackup backs up a SQLite database and only logs failures.
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*storage.SQLiteStore); !ok {
		return
	}
	if _, err := backup.NewManager(c.Store.GetConfigPath()).Create(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ConfirmPrompt asks the reminder question on the terminal. It satisfies
// notifier.Prompter for one-shot commands.
func ConfirmPrompt(ctx context.Context, title, body string) (bool, error) {
	drank := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(body).
				Affirmative("I drank").
				Negative("Not yet").
				Value(&drank),
		),
	).WithTheme(huh.ThemeDracula()).RunWithContext(ctx)
	return drank, err
}
