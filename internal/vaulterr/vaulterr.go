// Package vaulterr defines the error taxonomy shared across the vault.
// Every failure is classified by a Kind so that callers can branch on
// the class of failure, and the HTTP layer can map kinds to status
// codes, without matching on error strings.
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind discriminates the classes of failure the vault can produce.
type Kind int

const (
	// KindUnknown is the zero value for errors that were not classified.
	KindUnknown Kind = iota
	// KindValidation covers malformed envelopes, unsupported versions
	// and malformed backup payloads. Always the caller's fault.
	KindValidation
	// KindConfig covers missing or unusable configuration, such as an
	// encryption key that is required but absent. Not transient.
	KindConfig
	// KindCrypto covers authentication failures on decrypt: the data
	// was tampered with or the key is wrong. Never retried.
	KindCrypto
	// KindStorage covers read/write failures of the durable store.
	KindStorage
	// KindNotFound covers unknown secret IDs and missing backup keys.
	KindNotFound
)

// String returns the kind's name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfig:
		return "config"
	case KindCrypto:
		return "crypto"
	case KindStorage:
		return "storage"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the single tagged error type used across the vault.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a static message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, or KindUnknown if err carries no
// classification anywhere in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified as not-found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
