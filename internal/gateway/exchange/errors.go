package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorKind is the closed set of venue failure classes.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindExchange ErrorKind = "exchange"
	KindTimeout  ErrorKind = "timeout"
	KindFatal    ErrorKind = "fatal"
)

var (
	// ErrUnknownVenue is returned by the registry for an unregistered venue id.
	ErrUnknownVenue = errors.New("unknown exchange venue")
	// ErrPositionsUnsupported means the venue cannot report open positions.
	ErrPositionsUnsupported = errors.New("venue cannot report open positions")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("exchange client closed")
)

// Error is a classified venue failure.
type Error struct {
	Kind  ErrorKind
	Venue string
	Op    string
	Code  int64
	Err   error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s: %s error (code=%d): %v", e.Venue, e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %s error: %v", e.Venue, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool { return e.Kind != KindFatal }

// NewError builds a classified error; venues use it for their own codes.
func NewError(kind ErrorKind, venue, op string, err error) *Error {
	return &Error{Kind: kind, Venue: venue, Op: op, Err: err}
}

// Fatal wraps a configuration or business rejection that must not be retried.
func Fatal(venue, op string, err error) *Error {
	return NewError(KindFatal, venue, op, err)
}

// KindOf returns the class of err. Errors not classified by a venue are
// inspected for transport failures; anything else is fatal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return classifyTransport(err)
}

// IsRetryable is the predicate plugged into the retry policy.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) != KindFatal
}

// Classify wraps an unclassified error with its transport-derived kind.
func Classify(venue, op string, err error) error {
	if err == nil {
		return nil
	}
	var xe *Error
	if errors.As(err, &xe) {
		return err
	}
	return NewError(classifyTransport(err), venue, op, err)
}

func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return KindNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "eof"):
		return KindNetwork
	case strings.Contains(msg, "timeout"):
		return KindTimeout
	}
	return KindFatal
}
