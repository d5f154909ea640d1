package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/config"
	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/settings"
	"github.com/julianstephens/hydrate/internal/storage"
	"github.com/julianstephens/hydrate/internal/utils"
)

type InitCmd struct {
	Force bool `help:"Delete the existing database and start over."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	path := ctx.Store.GetConfigPath()
	if c.Force && path != storage.MemoryPath {
		if _, err := os.Stat(path); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			for _, suffix := range []string{"-wal", "-shm"} {
				_ = os.Remove(path + suffix)
			}
			fmt.Printf("Deleted existing database at: %s\n", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}

	store := settings.New(ctx.Store, ctx.Clock)
	if _, err := ctx.Store.Get(constants.StateKey); errors.Is(err, storage.ErrNotFound) {
		today := utils.DayKey(ctx.Clock.Now(), models.DefaultPreferences().Timezone)
		if err := store.Save(models.DefaultState(today)); err != nil {
			return err
		}
	}
	fmt.Printf("Initialized hydrate storage at: %s\n", path)

	if _, err := os.Stat(ctx.ConfigPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(ctx.ConfigPath, config.Default()); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		fmt.Printf("Wrote default config to: %s\n", ctx.ConfigPath)
	}

	fmt.Println("Next: 'hydrate permission request', then 'hydrate start' or just 'hydrate'.")
	return nil
}
