// Package repository provides data access layer implementations for the routing engine.
package repository

import (
	"errors"
	"fmt"

	"filetrack/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes that are not translated by gorm.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// mapError converts a driver or gorm error into an AppError.
// Errors that already carry an AppError code pass through untouched.
func mapError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if models.ErrorCode(err) != "" {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewValidationError(fmt.Sprintf("%s already exists", resource))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return models.NewValidationError(fmt.Sprintf("%s already exists", resource))
		case pgSerializationFailure, pgLockNotAvailable:
			return models.NewConflictError(fmt.Sprintf("%s was modified concurrently", resource))
		case pgDeadlockDetected:
			return models.NewTransientStoreError(err)
		}
	}

	// Everything else, including context deadlines, is an infrastructure failure.
	return models.NewTransientStoreError(err)
}
