package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/hydrate/internal/backup"
	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/keyring"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/storage"
)

type DoctorCmd struct{}

type check struct {
	name string
	// needsStore checks are skipped when storage is unreachable.
	needsStore bool
	// warnOnly failures do not fail the run.
	warnOnly bool
	run      func(*cli.Context) error
}

var checks = []check{
	{name: "Storage reachable", run: checkStoreReachable},
	{name: "Schema version", needsStore: true, run: checkSchema},
	{name: "Reminder record", needsStore: true, run: checkRecord},
	{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
	{name: "Timezone", needsStore: true, run: checkTimezone},
	{name: "Config", run: checkConfig},
	{name: "Notification permission", warnOnly: true, run: checkPermission},
	{name: "Background agent", warnOnly: true, run: checkAgent},
	{name: "Notification platform", warnOnly: true, run: checkPlatform},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	storeReachable := true
	for _, c := range checks {
		if c.needsStore && !storeReachable {
			fmt.Printf("⊘ %s: SKIPPED (storage not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
		if c.name == "Storage reachable" && err != nil {
			storeReachable = false
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load storage: %w", err)
	}
	if sqliteStore, ok := ctx.Store.(*storage.SQLiteStore); ok {
		db := sqliteStore.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchema(ctx *cli.Context) error {
	sqliteStore, ok := ctx.Store.(*storage.SQLiteStore)
	if !ok {
		return nil
	}
	status, err := sqliteStore.SchemaStatus()
	if err != nil {
		return err
	}
	if status.Current > status.Latest {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", status.Current, status.Latest)
	}
	if status.Pending() {
		return fmt.Errorf("schema v%d, v%d available; run 'hydrate init' or restart to migrate", status.Current, status.Latest)
	}
	return nil
}

// checkRecord validates the record as stored, before any recovery is applied.
func checkRecord(ctx *cli.Context) error {
	raw, err := ctx.Store.Get(constants.StateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var state models.PersistedState
	if err := json.UnmarshalFromString(raw, &state); err != nil {
		return fmt.Errorf("record is not valid JSON: %w", err)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("record will be repaired on next load: %w", err)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*storage.SQLiteStore); !ok {
		return nil
	}
	backups, err := backup.NewManager(ctx.Store.GetConfigPath()).List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups yet; run 'hydrate backup'")
	}
	return nil
}

func checkTimezone(ctx *cli.Context) error {
	tz := ctx.Settings.State().Timezone
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return nil
}

func checkConfig(ctx *cli.Context) error {
	return ctx.Config.Validate()
}

func checkPermission(ctx *cli.Context) error {
	switch ctx.Permission.State() {
	case constants.PermissionGranted:
		return nil
	case constants.PermissionDenied:
		return fmt.Errorf("denied; run 'hydrate permission reset' to ask again")
	default:
		return fmt.Errorf("not requested yet; run 'hydrate permission request'")
	}
}

func checkAgent(ctx *cli.Context) error {
	if !ctx.Agent.Available() {
		return fmt.Errorf("not running; reminders stop when the foreground exits")
	}
	return nil
}

func checkPlatform(ctx *cli.Context) error {
	platform, _ := ctx.Platform(nil)
	if !platform.Available() {
		return fmt.Errorf("no notification platform reachable (%s); reminders fall back to terminal prompts", ctx.Config.Notifications.Platform)
	}
	if !keyring.IsAvailable() && ctx.Config.Notifications.WebPush.PublicKey != "" {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}
