package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the postgres SQLSTATE for a unique-constraint
// violation.
const uniqueViolation = "23505"

// Sentinel errors shared by the store implementations. Services match
// on these with errors.Is and translate them into their own taxonomy.
var (
	// ErrNotFound means the row does not exist or the caller's
	// ownership/role filter excluded it.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a unique constraint rejected the insert.
	ErrDuplicate = errors.New("duplicate record")

	// ErrQuotaExceeded means the transactional count-then-insert found
	// the owner already at their active-flag quota.
	ErrQuotaExceeded = errors.New("active flag quota exceeded")
)

// mapUniqueViolation converts a postgres unique-constraint violation
// into ErrDuplicate; any other error passes through unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
