// Package faults defines the structured failure types shared across
// Maestro's components. Lifecycle and queue guards report these to callers;
// execution-time failures are captured on the execution record instead of
// propagating.
package faults

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input, rejected before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for the given field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing task, agent, execution, or queue entry.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewNotFound creates a NotFoundError for the given entity kind and ID.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidStateError reports an illegal lifecycle transition, such as pausing
// a completed execution or completing a task with pending subtasks.
type InvalidStateError struct {
	Kind   string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid transition %s -> %s: %s", e.Kind, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Kind, e.From, e.To)
}

// NewInvalidState creates an InvalidStateError for a rejected transition.
func NewInvalidState(kind, from, to, reason string) error {
	return &InvalidStateError{Kind: kind, From: from, To: to, Reason: reason}
}

// DuplicateError reports an attempt to create a record that already exists,
// such as re-queuing an already-queued task or reusing an agent name.
type DuplicateError struct {
	Kind string
	Key  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Kind, e.Key)
}

// NewDuplicate creates a DuplicateError for the given entity kind and key.
func NewDuplicate(kind, key string) error {
	return &DuplicateError{Kind: kind, Key: key}
}

// ExecutionFailure reports that a work function failed. It is captured on
// the execution record and handed to the queue for a requeue-or-terminate
// decision, never propagated as a crash.
type ExecutionFailure struct {
	ExecutionID string
	Err         error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution %s failed: %v", e.ExecutionID, e.Err)
}

func (e *ExecutionFailure) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
