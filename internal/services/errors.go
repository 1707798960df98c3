package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrGateway marks a payment gateway failure. Financial records are left
	// in a resolvable state when it is returned.
	ErrGateway = errors.New("payment gateway failure")
)

// isUniqueViolation reports whether err is a Postgres unique-index violation.
// Concurrency invariants (one open refund per participant, one payout per
// session) are enforced by indexes; the losing writer surfaces ErrConflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
