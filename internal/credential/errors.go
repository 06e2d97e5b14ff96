package credential

import "errors"

// Typed failures surfaced by the ledger operations. Every operation either
// returns a value or exactly one of these; a failed operation performs zero
// writes.
var (
	// ErrAlreadyExists — an entity with the same content-derived identity
	// already exists.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrNotFound — no entity exists under the given identity.
	ErrNotFound = errors.New("entity not found")

	// ErrRevoked — the referenced certificate has been revoked.
	ErrRevoked = errors.New("certificate is revoked")

	// ErrAlreadyRevoked — revocation was requested for a certificate that is
	// already in the terminal revoked state.
	ErrAlreadyRevoked = errors.New("certificate is already revoked")

	// ErrMissingReason — revocation requires a non-empty reason.
	ErrMissingReason = errors.New("revocation reason is required")

	// ErrUnauthorized — the caller's role does not permit the operation.
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// ErrUnknownRequester — the supplied requester identifier resolves to no
	// User record. Distinct from wrong-role.
	ErrUnknownRequester = errors.New("requester has no user record")

	// ErrNoCertificatesFound — a student certificate query matched nothing.
	ErrNoCertificatesFound = errors.New("no issued certificates found for student")

	// ErrBadDateFormat — a date argument is not a valid YYYY-MM-DD calendar date.
	ErrBadDateFormat = errors.New("date must be a valid YYYY-MM-DD calendar date")

	// ErrFutureOrPresentDate — a date argument is not strictly before today.
	ErrFutureOrPresentDate = errors.New("date must be strictly before today")

	// ErrStorageFailure — a state write failed. The underlying cause is
	// logged, never surfaced; callers must treat this as
	// non-retryable-without-investigation.
	ErrStorageFailure = errors.New("storage failure")
)

// MissingFieldError reports which required argument was empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}
