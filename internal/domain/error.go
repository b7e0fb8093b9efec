package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Store errors
	ErrOperationFailed    = errors.New("store operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Billing errors
	ErrTransient        = errors.New("transient billing provider error")
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// Batch coordination
	ErrLockHeld        = errors.New("lock is held by another owner")
	ErrBatchInProgress = errors.New("referral discount batch already in progress")
)
