package models

import (
	"github.com/go-playground/validator/v10"
)

// Validator is shared by every model that declares `validate` tags.
var Validator = validator.New()
