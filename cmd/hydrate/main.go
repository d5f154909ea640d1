package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/cli/backups"
	"github.com/julianstephens/hydrate/internal/cli/reminders"
	"github.com/julianstephens/hydrate/internal/cli/settings"
	"github.com/julianstephens/hydrate/internal/cli/system"
	"github.com/julianstephens/hydrate/internal/config"
	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	DB      string `help:"Database path: SQLite file, *.json file, or :memory:." type:"string" default:"${db}" env:"HYDRATE_DB"`
	Config  string `help:"Config file path." type:"string" default:"${config}" env:"HYDRATE_CONFIG"`
	Debug   bool   `help:"Enable debug logging to stderr." env:"HYDRATE_DEBUG"`

	Init   system.InitCmd   `cmd:"" help:"Initialize hydrate storage and config."`
	Run    system.RunCmd    `cmd:"" help:"Open the interactive reminder window." default:"1"`
	Agent  system.AgentCmd  `cmd:"" help:"Run the background reminder agent."`
	Doctor system.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`

	Start    reminders.StartCmd    `cmd:"" help:"Start hydration reminders."`
	Stop     reminders.StopCmd     `cmd:"" help:"Stop hydration reminders."`
	Interval reminders.IntervalCmd `cmd:"" help:"Set the reminder interval in minutes."`
	Snooze   reminders.SnoozeCmd   `cmd:"" help:"Snooze reminders for a few minutes."`
	Drink    reminders.DrinkCmd    `cmd:"" help:"Record a drink."`
	Status   reminders.StatusCmd   `cmd:"" help:"Show reminders and today's intake."`

	Settings   settings.SettingsCmd `cmd:"" help:"Manage application settings."`
	Permission struct {
		Status  settings.PermissionStatusCmd  `cmd:"" help:"Show the notification permission." default:"1"`
		Request settings.PermissionRequestCmd `cmd:"" help:"Ask for notification permission."`
		Reset   settings.PermissionResetCmd   `cmd:"" help:"Forget the permission answer so it can be asked again."`
	} `cmd:"" help:"Manage notification permission."`

	Push struct {
		Subscribe   system.PushSubscribeCmd   `cmd:"" help:"Save a browser push subscription."`
		Unsubscribe system.PushUnsubscribeCmd `cmd:"" help:"Remove the browser push subscription."`
		Vapid       system.PushVAPIDCmd       `cmd:"" help:"Create the VAPID key pair for web push."`
	} `cmd:"" help:"Manage web push delivery."`
	Notify system.NotifyCmd `cmd:"" hidden:"" help:"Show one reminder now (used for testing platforms)."`

	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Hydration reminders for your terminal and desktop"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"db":      constants.DefaultDBPath,
			"config":  constants.DefaultConfigPath,
		},
	)

	configPath := storage.ExpandHome(CLI.Config)
	command := ""
	if node := ctx.Selected(); node != nil {
		command = node.Name
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: filepath.Dir(configPath),
		Stderr:    command == "agent",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("Using default config", "error", err)
	}

	store := storage.New(CLI.DB)
	appCtx := cli.New(store, cfg, configPath)

	if command != "init" {
		if err := appCtx.Load(); err != nil {
			hyerrors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	appCtx.Finish(context.Background())
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close storage", "error", cerr)
	}
	hyerrors.Fatal(err)
}
