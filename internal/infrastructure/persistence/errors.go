package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/procurement/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the repositories care about
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsUniqueViolation reports whether err came from a unique constraint
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return pgCode(err) == pgUniqueViolation
}

// IsCheckViolation reports whether err came from a check constraint
func IsCheckViolation(err error) bool {
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	return pgCode(err) == pgCheckViolation
}

// IsLockConflict reports serialization failures, deadlocks and lock timeouts
func IsLockConflict(err error) bool {
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrapErr converts a driver error to the domain taxonomy. Domain errors pass
// through; a missing row becomes notFound when given; the rest is storage.
func wrapErr(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if shared.IsDomainError(err) {
		return err
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return shared.NewStorageError(op, err)
}
