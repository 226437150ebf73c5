package relay_errors

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Validation errors raised by the messaging pipeline. All of them match ErrInvalidInput.
var (
	ErrEmptyText       = invalid("text is required")
	ErrMissingContext  = invalid("exactly one of listingId, textbookId or noteId is required")
	ErrMissingReceiver = invalid("recipientId is required")
	ErrSelfSend        = invalid("cannot send a message to yourself")
	ErrMalformedID     = invalid("malformed identifier")
	ErrEmptyBatch      = invalid("messageIds must not be empty")
)

// ErrNoRecipientEmail is returned by the escalation path when the recipient cannot be emailed.
var ErrNoRecipientEmail = errors.New("recipient has no email address")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrInvalidInput }

func invalid(msg string) error {
	return &validationError{msg: msg}
}

// Invalidf builds an ad-hoc validation error that matches ErrInvalidInput.
func Invalidf(format string, args ...any) error {
	return invalid(fmt.Sprintf(format, args...))
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
