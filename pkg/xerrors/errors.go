package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Pipeline-aborting failures. Everything in this file is compared with
// errors.Is; wrap with fmt.Errorf("...: %w", err) to add context.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInsufficientTrust      = errors.New("insufficient trust score")
	ErrAlreadyExists          = errors.New("already exists")
	ErrUnknown                = errors.New("unknown error")
)

const pgUniqueViolation = "23505"

// ParsePGErrorCode extracts the SQLSTATE code from a pgx error, or "unknown".
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// FromPG maps low-level pg errors onto the service taxonomy. Unique
// violations become ErrAlreadyExists (caller-supplied message ids act as
// idempotency keys); anything else passes through untouched.
func FromPG(err error) error {
	if err == nil {
		return nil
	}
	if ParsePGErrorCode(err) == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
