package models

import "github.com/julianstephens/hydrate/internal/constants"

// PushSubscription is a browser Web Push subscription as exported by PushManager.
type PushSubscription struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Auth     string `json:"auth" validate:"required"`
	P256dh   string `json:"p256dh" validate:"required"`
}

// Validate checks that every field is present and the endpoint is a URL.
func (p PushSubscription) Validate() error {
	return Validator.Struct(p)
}

// Permission is the persisted notification authorization state.
type Permission struct {
	State     constants.PermissionState `json:"state"`
	Explained bool                      `json:"explained"`
}
