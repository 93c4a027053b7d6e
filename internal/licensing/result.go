package licensing

import (
	"errors"

	"github.com/authkey/backend/internal/models"
)

// Reason is a stable machine-readable code for a rejected validation or
// activation. Clients branch on these; messages are for humans and may change.
type Reason string

const (
	ReasonInvalidKey   Reason = "invalid_key"
	ReasonKeyDisabled  Reason = "key_disabled"
	ReasonExpired      Reason = "expired"
	ReasonHWIDMismatch Reason = "hwid_mismatch"
	ReasonNotFound     Reason = "not_found"
	ReasonAlreadyBound Reason = "already_bound"
)

// Result is the outcome of a validation or activation attempt.
// Business-rule rejections are carried here, not as Go errors; only store
// failures surface as errors.
type Result struct {
	Valid     bool            `json:"valid"`
	Activated bool            `json:"activated,omitempty"` // true when this call performed the first-use binding
	Reason    Reason          `json:"reason,omitempty"`
	Message   string          `json:"message"`
	License   *models.License `json:"-"`
}

func granted(lic *models.License, activated bool, message string) *Result {
	return &Result{Valid: true, Activated: activated, Message: message, License: lic}
}

func denied(reason Reason, message string) *Result {
	return &Result{Valid: false, Reason: reason, Message: message}
}

var (
	// ErrGenerationConflict is returned when a freshly generated key collides
	// with an existing one. Practically unreachable with random UUIDs; callers
	// may retry issuance.
	ErrGenerationConflict = errors.New("generated key already exists")

	// ErrNotFound is returned by administrative operations addressing a
	// license id that does not exist.
	ErrNotFound = errors.New("license not found")
)
