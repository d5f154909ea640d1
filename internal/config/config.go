// Package config loads the optional YAML configuration file. User
// settings such as the goal live in the persisted record instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/hydrate/internal/constants"
	"github.com/julianstephens/hydrate/internal/models"
)

// Notification platform choices.
const (
	PlatformAuto    = "auto"
	PlatformTray    = "tray"
	PlatformWebPush = "webpush"
	PlatformDryRun  = "dryrun"
)

type Config struct {
	Notifications Notifications `yaml:"notifications"`
	Agent         Agent         `yaml:"agent"`
	UI            UI            `yaml:"ui"`
}

type Notifications struct {
	// Platform picks how reminders are shown; auto tries tray, then webpush.
	Platform string `yaml:"platform" validate:"oneof=auto tray webpush dryrun"`
	// TrayLockfileDir overrides where the tray app's lockfile is looked up.
	TrayLockfileDir string  `yaml:"tray_lockfile_dir,omitempty"`
	WebPush         WebPush `yaml:"webpush"`
}

type WebPush struct {
	Subscriber string `yaml:"subscriber" validate:"omitempty,email|url"`
	// PublicKey is the VAPID public key; the private key lives in the OS keyring.
	PublicKey string `yaml:"public_key,omitempty"`
	TTL       int    `yaml:"ttl" validate:"gte=0"`
}

type Agent struct {
	// CheckResolution caps the time between background checks.
	CheckResolution time.Duration `yaml:"check_resolution" validate:"gte=1s"`
	// InProcess starts an agent inside the foreground when no daemon is running.
	InProcess bool `yaml:"in_process"`
}

type UI struct {
	Bell bool `yaml:"bell"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Notifications: Notifications{
			Platform: PlatformAuto,
			WebPush:  WebPush{Subscriber: "hydrate@example.com", TTL: 30},
		},
		Agent: Agent{CheckResolution: constants.AgentCheckResolution, InProcess: true},
		UI:    UI{Bell: true},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return models.Validator.Struct(c)
}

// Save writes the config as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
