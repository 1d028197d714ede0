// Package apperr defines the error taxonomy shared by the authorization,
// scoping and workflow layers. Handlers translate these into HTTP statuses;
// the core never recovers from them.
package apperr

import "errors"

var (
	// ErrForbidden indicates the identity lacks the permission, chantier
	// access or role rank required by the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates a state transition attempted from a state
	// that does not permit it (e.g. approving a rejected depense).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a uniqueness violation (duplicate reference,
	// duplicate pointage for a day).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates a malformed or out-of-range input value.
	ErrValidation = errors.New("validation error")
)

func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
