// Package errors provides custom error types for the conflict engine
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies the failure for callers that branch on error type.
type Kind string

const (
	KindMissingIdentifier    Kind = "MISSING_IDENTIFIER"
	KindDuplicatePending     Kind = "DUPLICATE_PENDING"
	KindAlreadyFinalized     Kind = "ALREADY_FINALIZED"
	KindUnresolvableStrategy Kind = "UNRESOLVABLE_STRATEGY"
	KindStorageFailure       Kind = "STORAGE_FAILURE"
	KindValidationFailure    Kind = "VALIDATION_FAILURE"
)

// Operation represents the engine operation during which the error occurred
type Operation string

const (
	OpDetect       Operation = "detect"
	OpAutoResolve  Operation = "auto_resolve"
	OpResolve      Operation = "resolve"
	OpIgnore       Operation = "ignore"
	OpFindOrCreate Operation = "find_or_create"
	OpGet          Operation = "get"
	OpList         Operation = "list"
	OpUpdate       Operation = "update"
	OpApply        Operation = "apply"
	OpClose        Operation = "close"
)

// ConflictError is the structured error carried across the engine's layers.
type ConflictError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "store", "workflow")
	Component string

	// Underlying error
	Err error

	// Kind of failure
	Kind Kind

	// Whether the operation can be retried
	Retryable bool

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *ConflictError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}

	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// New creates a new ConflictError
func New(op Operation, err error) *ConflictError {
	return &ConflictError{
		Op:  op,
		Err: err,
	}
}

// NewKind creates a new ConflictError with an explicit Kind.
func NewKind(op Operation, kind Kind, err error) *ConflictError {
	return &ConflictError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// NewMissingIdentifier signals that a resource side carried no extractable ID.
// No Conflict record is created for this input.
func NewMissingIdentifier(op Operation, side string) *ConflictError {
	return &ConflictError{
		Op:   op,
		Kind: KindMissingIdentifier,
		Err:  fmt.Errorf("no resource identifier on side %s", side),
		Metadata: map[string]interface{}{
			"side": side,
		},
	}
}

// NewAlreadyFinalized signals resolve/ignore/re-attempt on a terminal Conflict.
// This indicates an ordering bug upstream and is surfaced as a hard failure.
func NewAlreadyFinalized(op Operation, conflictID, status string) *ConflictError {
	return &ConflictError{
		Op:   op,
		Kind: KindAlreadyFinalized,
		Err:  fmt.Errorf("conflict %s is already %s", conflictID, status),
		Metadata: map[string]interface{}{
			"conflict_id": conflictID,
			"status":      status,
		},
	}
}

// NewStorageError creates a new storage-related ConflictError
func NewStorageError(op Operation, cause error) *ConflictError {
	return &ConflictError{
		Kind:      KindStorageFailure,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a new validation-related ConflictError
func NewValidationError(op Operation, cause error) *ConflictError {
	return &ConflictError{
		Kind: KindValidationFailure,
		Op:   op,
		Err:  cause,
	}
}

// NewWithComponent creates a new ConflictError with component information
func NewWithComponent(op Operation, component string, err error) *ConflictError {
	return &ConflictError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsKind checks whether err is a ConflictError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsMissingIdentifier reports whether err indicates an input lacking a resource ID.
func IsMissingIdentifier(err error) bool { return IsKind(err, KindMissingIdentifier) }

// IsAlreadyFinalized reports whether err indicates an operation on a terminal Conflict.
func IsAlreadyFinalized(err error) bool { return IsKind(err, KindAlreadyFinalized) }

// IsDuplicatePending reports whether err indicates a suppressed duplicate detection.
func IsDuplicatePending(err error) bool { return IsKind(err, KindDuplicatePending) }

// IsRetryable checks if an error is a retryable ConflictError
func IsRetryable(err error) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
