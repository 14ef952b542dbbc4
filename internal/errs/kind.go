package errs

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a failure for propagation decisions.
type Kind uint8

const (
	KindNone Kind = iota
	// KindApplication is any failure the remote side reported that is not a validation problem.
	KindApplication
	// KindConnectivity is timeout, abort or network unreachable; recoverable by local fallback.
	KindConnectivity
	// KindValidation is a logically invalid request; surfaced to the caller.
	KindValidation
	// KindNotFound is an unknown id on get/update/delete; surfaced to the caller.
	KindNotFound
	// KindStorage is a local cache or snapshot store failure; logged and absorbed.
	KindStorage
	// KindCorrupt is unparseable persisted state; treated as absent.
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindApplication:
		return "application"
	case KindConnectivity:
		return "connectivity"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnectivity:
		return ErrUnavailable
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindStorage:
		return ErrStorage
	case KindCorrupt:
		return ErrCorrupt
	default:
		return nil
	}
}

// Error is a classified failure of a named operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E wraps err with a kind and an operation name.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the error kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf classifies err. Wrapped *Error values win over sentinel inspection.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindConnectivity
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoActiveProject),
		errors.Is(err, ErrAlreadyExists):
		return KindValidation
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrCorrupt):
		return KindCorrupt
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindConnectivity
	}
	return KindApplication
}

// IsConnectivity reports whether err means the remote side was not reached.
func IsConnectivity(err error) bool { return KindOf(err) == KindConnectivity }
