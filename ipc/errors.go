// Package ipc implements the Direct-IPC client subsystem: endpoint
// resolution, frame codec, feature negotiation, connection management,
// request multiplexing, event fan-out, and the reconnect supervisor.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package ipc

import "github.com/pkg/errors"

// Kind is the abstract error taxonomy from spec.md §7. Callers should switch
// on Kind rather than matching error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnectTimeout
	KindHandshakeTimeout
	KindHandshakeRejected
	KindClosed
	KindRequestTimeout
	KindProtocol
	KindCodec
	KindIo
	KindValidation
	KindResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindHandshakeTimeout:
		return "HandshakeTimeout"
	case KindHandshakeRejected:
		return "HandshakeRejected"
	case KindClosed:
		return "Closed"
	case KindRequestTimeout:
		return "RequestTimeout"
	case KindProtocol:
		return "Protocol"
	case KindCodec:
		return "Codec"
	case KindIo:
		return "Io"
	case KindValidation:
		return "Validation"
	case KindResourceExhausted:
		return "ResourceExhausted"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a taxonomy Kind, preserving
// pkg/errors stack traces captured at the Io/Closed boundary where causes
// originate from the transport.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, cause error) *Error { return &Error{Kind: kind, cause: cause} }

func wrapIo(cause error) *Error { return newErr(KindIo, errors.WithStack(cause)) }

// ErrKind extracts the Kind from err, or KindUnknown if err isn't one of
// ours.
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var errUnexpectedArm = errors.New("unexpected response arm")

var (
	ErrConnectTimeout     = newErr(KindConnectTimeout, nil)
	ErrHandshakeTimeout   = newErr(KindHandshakeTimeout, nil)
	ErrHandshakeRejected  = newErr(KindHandshakeRejected, nil)
	ErrClosed             = newErr(KindClosed, nil)
	ErrRequestTimeout     = newErr(KindRequestTimeout, nil)
	ErrProtocol           = newErr(KindProtocol, nil)
	ErrResourceExhausted  = newErr(KindResourceExhausted, nil)
)
