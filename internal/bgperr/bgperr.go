// Package bgperr defines the tagged error variant shared by every core
// component. NOTIFICATION subcodes (RFC 4271 section 6) are derived from
// the Kind by a total function so callers never hand-pick a subcode.
package bgperr

import "github.com/pkg/errors"

// Kind classifies a core error into the taxonomy of spec section 7.
type Kind int

const (
	// Protocol covers a decoded BGP message that violates the wire format.
	Protocol Kind = iota
	// Transport covers TCP connect/read/write failures.
	Transport
	// TimerExpired covers a hold timer firing without traffic.
	TimerExpired
	// External covers a failed kernel route-table operation.
	External
	// Config covers an unparseable peer configuration line.
	Config
	// FSM covers an event the current state does not expect.
	FSM
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case Transport:
		return "transport"
	case TimerExpired:
		return "timer-expired"
	case External:
		return "external"
	case Config:
		return "config"
	case FSM:
		return "fsm"
	default:
		return "unknown"
	}
}

// Code is a specific, machine-checkable reason within a Kind. Protocol
// errors use the codec's own reason strings (BadMessageType and friends);
// other kinds use the constants below.
type Code string

const (
	CodeHoldTimerExpired    Code = "hold-timer-expired"
	CodeFiniteStateMachine  Code = "fsm-error"
	CodeConnectionRefused   Code = "connection-refused"
	CodeUnexpectedEOF       Code = "unexpected-eof"
	CodeRouteInstallFailed  Code = "route-install-failed"
	CodeRouteEnumerateFailed Code = "route-enumerate-failed"
)

// Error is the tagged variant. It wraps an underlying cause where one
// exists (a decode failure, a syscall error) without discarding it.
type Error struct {
	Kind  Kind
	Code  Code
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind.String()) + ": " + string(e.Code) + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged error with no underlying cause.
func New(kind Kind, code Code) error {
	return &Error{Kind: kind, Code: code}
}

// Wrap attaches a Kind/Code to an underlying cause, preserving it for
// errors.Is/As via Unwrap.
func Wrap(kind Kind, code Code, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, cause: errors.WithStack(cause)}
}

// NotificationCode maps a Kind/Code pair to the RFC 4271 section 6
// (Error code, Error subcode) pair carried in a NOTIFICATION message.
// This is the "total function" spec section 9 requires: every
// combination this package can produce has an entry here.
func NotificationCode(kind Kind, code Code) (errorCode, errorSubcode byte) {
	switch kind {
	case Protocol:
		switch code {
		case "BadMessageType":
			return 1, 3 // Message Header Error, Bad Message Type
		case "BadMessageLength":
			return 1, 2 // Message Header Error, Bad Message Length
		case "UnsupportedVersion":
			return 2, 1 // OPEN Message Error, Unsupported Version Number
		case "UnsupportedOptionalParameter":
			return 2, 4 // OPEN Message Error, Unsupported Optional Parameter
		case "MalformedAttributeList":
			return 3, 1 // UPDATE Message Error, Malformed Attribute List
		case "InvalidNextHopAttribute":
			return 3, 8 // UPDATE Message Error, Invalid NEXT_HOP Attribute
		default:
			return 1, 0 // Message Header Error, Unspecific
		}
	case TimerExpired:
		return 4, 0 // Hold Timer Expired
	case Transport:
		return 6, 0 // Cease
	case External:
		return 6, 0 // Cease: a kernel route-table failure is not a wire violation
	case FSM:
		return 5, 0 // Finite State Machine Error
	default:
		return 5, 0 // Finite State Machine Error
	}
}
