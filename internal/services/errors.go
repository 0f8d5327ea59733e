// Package services defines the business logic for threads and messages.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer; services only classify failures.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the umbrella for the entity-specific not-found errors.
	ErrNotFound = errors.New("not found")

	// ErrThreadNotFound indicates that the requested thread does not exist.
	ErrThreadNotFound = fmt.Errorf("thread %w", ErrNotFound)

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = fmt.Errorf("message %w", ErrNotFound)

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports a user-correctable problem with one input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a failure of the persistence collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// storageErr wraps err unless it is already classified.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
