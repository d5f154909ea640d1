package system

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/cli"
	"github.com/julianstephens/hydrate/internal/config"
	"github.com/julianstephens/hydrate/internal/keyring"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/notifier"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// browserSubscription is the shape of PushSubscription.toJSON().
type browserSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		Auth   string `json:"auth"`
		P256dh string `json:"p256dh"`
	} `json:"keys"`
}

// PushSubscribeCmd stores the browser subscription reminders are pushed to.
type PushSubscribeCmd struct {
	File     string `help:"JSON file from PushSubscription.toJSON(), or - for stdin." xor:"source" type:"path"`
	Endpoint string `help:"Push service endpoint URL." xor:"source"`
	Auth     string `help:"Subscription auth secret (base64url)."`
	P256dh   string `help:"Subscription public key (base64url)."`
}

func (c *PushSubscribeCmd) Run(ctx *cli.Context) error {
	sub := models.PushSubscription{Endpoint: c.Endpoint, Auth: c.Auth, P256dh: c.P256dh}
	if c.File != "" {
		var err error
		if sub, err = readSubscription(c.File); err != nil {
			return err
		}
	}
	if err := ctx.WebPush().Subscribe(sub); err != nil {
		return err
	}
	fmt.Println("✓ Push subscription saved")
	if ctx.Config.Notifications.WebPush.PublicKey == "" {
		fmt.Println("  No VAPID key is configured yet. Run 'hydrate push vapid'.")
	}
	return nil
}

func readSubscription(path string) (models.PushSubscription, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.PushSubscription{}, err
		}
		defer f.Close()
		r = f
	}
	var bs browserSubscription
	if err := json.NewDecoder(r).Decode(&bs); err != nil {
		return models.PushSubscription{}, fmt.Errorf("reading push subscription: %w", err)
	}
	return models.PushSubscription{Endpoint: bs.Endpoint, Auth: bs.Keys.Auth, P256dh: bs.Keys.P256dh}, nil
}

type PushUnsubscribeCmd struct{}

func (c *PushUnsubscribeCmd) Run(ctx *cli.Context) error {
	if err := ctx.WebPush().Unsubscribe(); err != nil {
		return err
	}
	fmt.Println("✓ Push subscription removed")
	return nil
}

// PushVAPIDCmd creates the VAPID key pair. The private key goes to the OS
// keyring and the public key to the config file.
type PushVAPIDCmd struct {
	Force bool `help:"Replace an existing key pair. Existing subscriptions stop working."`
}

func (c *PushVAPIDCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	_, err := keyring.GetVAPIDPrivateKey()
	switch {
	case err == nil && !c.Force && ctx.Config.Notifications.WebPush.PublicKey != "":
		fmt.Println("VAPID key pair already exists. Public key:")
		fmt.Println(ctx.Config.Notifications.WebPush.PublicKey)
		return nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("failed to read keyring: %w", err)
	}

	private, public, err := notifier.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	if err := keyring.SetVAPIDPrivateKey(private); err != nil {
		return fmt.Errorf("failed to store private key in keyring: %w", err)
	}

	cfg := ctx.Config
	cfg.Notifications.WebPush.PublicKey = public
	if err := config.Save(ctx.ConfigPath, cfg); err != nil {
		return fmt.Errorf("failed to save public key: %w", err)
	}
	ctx.Config = cfg

	fmt.Println("✓ VAPID key pair created. Subscribe your browser with this public key:")
	fmt.Println(public)
	return nil
}
