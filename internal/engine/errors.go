package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// Error is the typed failure returned by every engine operation.
//
// Callers switch on Code: validation failures are rejected before any I/O
// and are not retryable; storage and conflict failures leave prior state
// intact and may be retried; integrity failures need an operator.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityID identifies the affected entity, if any.
	EntityID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeInvalidArgument indicates a malformed request.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeInvalidAmount indicates a non-positive, non-finite, or oversized amount.
	CodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// CodeInvalidEntity indicates an unusable entity id.
	CodeInvalidEntity ErrorCode = "INVALID_ENTITY"

	// CodeNotFound indicates a referenced entity or event does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStorage indicates an I/O failure. The operation did not commit,
	// or committed its events but not its snapshot.
	CodeStorage ErrorCode = "STORAGE"

	// CodeIntegrity indicates corrupt or inconsistent persisted state.
	CodeIntegrity ErrorCode = "INTEGRITY"

	// CodeConflict indicates a snapshot was changed by another writer.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeCanceled indicates the context ended while waiting for the guard.
	CodeCanceled ErrorCode = "CANCELED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EntityID != "" {
		msg += fmt.Sprintf(" (entity=%s)", e.EntityID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, codes ...ErrorCode) bool {
	var ee *Error
	if !errors.As(err, &ee) {
		return false
	}
	for _, c := range codes {
		if ee.Code == c {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err was rejected before any I/O.
func IsValidationError(err error) bool {
	return hasCode(err, CodeInvalidArgument, CodeInvalidAmount, CodeInvalidEntity)
}

// IsNotFoundError reports whether err refers to a missing entity or event.
func IsNotFoundError(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsStorageError reports whether err is a retryable I/O failure.
func IsStorageError(err error) bool {
	return hasCode(err, CodeStorage)
}

// IsIntegrityError reports whether err indicates corrupt persisted state.
func IsIntegrityError(err error) bool {
	return hasCode(err, CodeIntegrity)
}

// IsConflictError reports whether err is a lost optimistic-version race.
func IsConflictError(err error) bool {
	return hasCode(err, CodeConflict)
}

func newError(code ErrorCode, entityID, message string, err error) *Error {
	return &Error{Code: code, Message: message, EntityID: entityID, Err: err}
}

// validationError classifies an input check failure.
func validationError(entityID string, err error) *Error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return newError(CodeInvalidAmount, entityID, "invalid amount", err)
	case errors.Is(err, ledger.ErrInvalidEntity):
		return newError(CodeInvalidEntity, entityID, "invalid entity id", err)
	}
	return newError(CodeInvalidArgument, entityID, "invalid argument", err)
}

// classify maps a storage, config, or fold failure onto an Error. op names
// the step that failed.
func classify(op, entityID string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(CodeCanceled, entityID, op, err)
	case errors.Is(err, store.ErrCorrupt),
		errors.Is(err, config.ErrCorrupt),
		errors.Is(err, ledger.ErrInvalidEvent):
		return newError(CodeIntegrity, entityID, op, err)
	case errors.Is(err, store.ErrStaleVersion):
		return newError(CodeConflict, entityID, op, err)
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, entityID, op, err)
	}
	return newError(CodeStorage, entityID, op, err)
}
