package transport

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed backend request.
type Kind int

const (
	KindConnectivity Kind = iota
	KindHTTPStatus
	KindMalformed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindHTTPStatus:
		return "http_status"
	case KindMalformed:
		return "malformed"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrCanceled matches any *Error of KindCanceled via errors.Is.
var ErrCanceled = errors.New("scan canceled")

// Error is the only error type returned by Client.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
	case KindMalformed:
		return fmt.Sprintf("backend response malformed: %v", e.Err)
	case KindCanceled:
		return ErrCanceled.Error()
	default:
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports cancellation as both ErrCanceled and context.Canceled.
func (e *Error) Is(target error) bool {
	if e.Kind != KindCanceled {
		return false
	}
	return target == ErrCanceled || target == context.Canceled
}

// IsCanceled reports whether err is a cancellation outcome rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// KindOf returns the Kind of a transport error, or KindConnectivity for
// errors that did not originate here.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindConnectivity
}
