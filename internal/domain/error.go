package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Payment reconciliation
	ErrAuthenticationFailed = errors.New("payment notification authentication failed")
	ErrMalformedCorrelation = errors.New("malformed payment correlation")
	ErrUnknownUser          = errors.New("unknown user")
	ErrDuplicateTransaction = errors.New("transaction already applied")
	ErrUnknownProvider      = errors.New("unknown payment provider")

	// Any downstream call failure (database, telegram, payment API).
	ErrTransientIO = errors.New("transient io failure")

	// Repository plumbing
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
