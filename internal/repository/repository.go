// Package repository defines interfaces for data access operations.
// Handlers depend on these interfaces only, so the SQLite and PostgreSQL
// backends can be swapped without changing application code.
package repository

import (
	"errors"
)

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")
)

// DatabaseType identifies the backend behind a Repositories instance.
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
)

// PaginationOptions provides common pagination parameters.
type PaginationOptions struct {
	Limit  int
	Offset int
}

// DefaultPagination returns default pagination options (limit 20, offset 0).
func DefaultPagination() PaginationOptions {
	return PaginationOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize clamps the limit to 1-100 and the offset to >= 0.
func (p PaginationOptions) Normalize() PaginationOptions {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
