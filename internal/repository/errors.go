package repository

import (
	"database/sql"
	"errors"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/database"
)

// notFound maps sql.ErrNoRows onto the taxonomy.
func notFound(err error, resource string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	return err
}

// duplicate maps a driver unique-key violation onto the taxonomy. Callers
// rely on the store constraint, not on a prior lookup, so two racing
// creates cannot both succeed.
func duplicate(err error, resource, identifier string) error {
	if database.IsUniqueViolation(err) {
		return &apperr.DuplicateResourceError{Resource: resource, Identifier: identifier}
	}
	return err
}
