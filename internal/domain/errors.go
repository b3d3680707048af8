package domain

import (
	"errors"
	"net/http"
)

// ErrEmailTaken is returned by an AccountRepository when a write would give
// two accounts the same email address.
var ErrEmailTaken = errors.New("account with this email already exists")

// ErrInvalidAvatar is wrapped by AvatarStorage implementations when an
// upload is rejected for its content (type, size) rather than an I/O failure.
var ErrInvalidAvatar = errors.New("invalid avatar")

// ErrorKind discriminates the failures an account operation can report.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindUpload
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpload:
		return "upload_failure"
	default:
		return "internal"
	}
}

// Error is the structured failure returned by account operations. Status is
// the HTTP status the transport layer should answer with and Message is safe
// to show to the caller; Err, when set, is the underlying cause and is only
// meant for logs.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

// Kind-only sentinels for use with errors.Is.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrUpload       = &Error{Kind: KindUpload}
	ErrInternal     = &Error{Kind: KindInternal}
)

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind-only sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == 0 && t.Message == "" && t.Kind == e.Kind
}

// Internal wraps an unexpected infrastructure failure.
func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		Err:     err,
	}
}

// StatusOf returns the HTTP status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
