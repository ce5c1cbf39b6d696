package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrUniqueViolation marks an insert rejected by a unique constraint. Services
// translate it into the matching business error (ownership conflict,
// duplicate distribution, ...).
var ErrUniqueViolation = errors.New("unique constraint violation")

const pqUniqueViolation = "23505"

func translateConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrUniqueViolation
	}
	return err
}
