// Package apperr defines the error categories surfaced by the chat service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-usable error category.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindValidation       Kind = "validation_error"
	KindConflict         Kind = "conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindPartialCreation  Kind = "partial_creation_failure"
	KindInternal         Kind = "internal"
)

// Error carries a category, a short human-readable message and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrPartialCreation  = &Error{Kind: KindPartialCreation}
)

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func StoreUnavailable(message string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Message: message, Err: err}
}

func PartialCreation(message string, err error) error {
	return &Error{Kind: KindPartialCreation, Message: message, Err: err}
}

// KindOf reports the category of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the public message of err without leaking the wrapped cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal error"
}

// Retryable reports whether the failure is transient.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// HTTPStatus maps a category to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
