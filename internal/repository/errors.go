package repository

import (
	"errors"

	"github.com/lib/pq"
)

// IsIntegrityViolation reports whether the error is a PostgreSQL integrity
// constraint violation (unique, foreign key, check — SQLSTATE class 23).
func IsIntegrityViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	return false
}
