// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Invariant errors. These indicate a bug in ledger code, not a runtime
	// condition callers should recover from.
	ErrInvariantViolated = errors.New("invariant violated")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Persistence errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "credibility", "xp", "guardian"
	Op      string // Operation that failed, e.g., "RedeemXP", "ProcessDownvote"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Credibility domain errors
var (
	ErrChildNotFound      = NewDomainError("credibility", "Find", ErrNotFound, "child profile not found")
	ErrInvalidChildID     = NewDomainError("credibility", "Validate", ErrInvalidID, "invalid child ID")
	ErrScoreOutOfRange    = NewDomainError("credibility", "Apply", ErrInvariantViolated, "credibility score outside [0,100]")
	ErrNoMatchingDownvote = NewDomainError("credibility", "UndoDownvote", ErrNotFound, "no matching downvote event")
)

// XP domain errors
var (
	ErrInvalidAmount   = NewDomainError("xp", "Redeem", ErrInvalidInput, "redemption amount must be positive")
	ErrInsufficientXP  = NewDomainError("xp", "Redeem", ErrValueOutOfRange, "insufficient XP balance")
	ErrAlreadyGranted  = NewDomainError("xp", "GrantDirect", ErrAlreadyProcessed, "direct grant already received")
	ErrInvalidUserID   = NewDomainError("xp", "Validate", ErrInvalidID, "invalid user ID")
	ErrNegativeBalance = NewDomainError("xp", "Apply", ErrInvariantViolated, "XP balance below zero")
)

// Guardian domain errors
var (
	ErrPINNotSet     = NewDomainError("guardian", "VerifyPIN", ErrNotFound, "guardian PIN not set")
	ErrPINMismatch   = NewDomainError("guardian", "VerifyPIN", ErrForbidden, "guardian PIN does not match")
	ErrWeakPIN       = NewDomainError("guardian", "SetPIN", ErrInvalidInput, "PIN must be 4 to 8 digits")
	ErrPINAlreadySet = NewDomainError("guardian", "SetPIN", ErrAlreadyExists, "guardian PIN already set")
)

// Persistence errors
var (
	ErrKeyNotFound    = NewDomainError("storage", "Load", ErrNotFound, "key not found")
	ErrStoreFailed    = NewDomainError("storage", "Save", ErrStorageUnavailable, "storage write failed")
	ErrDecodeFailed   = NewDomainError("storage", "Load", ErrInvalidFormat, "stored value could not be decoded")
	ErrStorageTimeout = NewDomainError("storage", "Access", ErrTimeout, "storage operation timed out")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvariantViolation checks if the error signals a ledger bug.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolated)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
