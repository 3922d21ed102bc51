package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError indicates invalid input. Recoverable; nothing was mutated.
type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ForbiddenError indicates the caller is not allowed to act on the resource.
type ForbiddenError struct {
	Message string
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func (e *ForbiddenError) Error() string { return e.Message }

// ConflictError indicates a concurrent modification was detected
// (optimistic lock failure or equivalent).
type ConflictError struct {
	Message string
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string { return e.Message }

// InvalidStateError indicates a disallowed status transition.
type InvalidStateError struct {
	From string
	To   string
}

func NewInvalidStateError(from, to string) *InvalidStateError {
	return &InvalidStateError{From: from, To: to}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// SeatConflictError indicates that one or more requested seats are already
// held by a confirmed booking. Recoverable; the caller should re-fetch
// availability and let the passenger pick again.
type SeatConflictError struct {
	TakenSeats []int
}

func NewSeatConflictError(taken []int) *SeatConflictError {
	return &SeatConflictError{TakenSeats: taken}
}

func (e *SeatConflictError) Error() string {
	seats := make([]string, len(e.TakenSeats))
	for i, s := range e.TakenSeats {
		seats[i] = strconv.Itoa(s)
	}
	return fmt.Sprintf("seats no longer available: %s", strings.Join(seats, ", "))
}

// OversoldError indicates the ledger precondition failed at reserve time:
// the requested seat count exceeds the trip's current availability.
type OversoldError struct {
	Requested int
	Available int
}

func NewOversoldError(requested, available int) *OversoldError {
	return &OversoldError{Requested: requested, Available: available}
}

func (e *OversoldError) Error() string {
	return fmt.Sprintf("not enough seats available: requested %d, available %d", e.Requested, e.Available)
}

// PersistenceError indicates a store write failed after a successful
// reservation. The reservation has already been released by the time this
// error reaches the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRecoverable reports whether the error is one the passenger can act on
// by adjusting their selection and retrying.
func IsRecoverable(err error) bool {
	var ve *ValidationError
	var se *SeatConflictError
	var oe *OversoldError
	return errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &oe)
}
