package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AllowedEmailDomain is the only mail domain accepted for accounts.
const AllowedEmailDomain = "gmail.com"

var allowedEmailRe = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@gmail\.com$`)

// NormalizeEmail trims and lower-cases an email the way accounts are stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AllowedEmail reports whether email belongs to the allow-listed domain.
func AllowedEmail(email string) bool {
	return allowedEmailRe.MatchString(strings.TrimSpace(email))
}

// New returns a validator with the lockify_email tag registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("lockify_email", func(fl validator.FieldLevel) bool {
		return AllowedEmail(fl.Field().String())
	})

	return v
}
