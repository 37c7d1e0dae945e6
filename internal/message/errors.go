package message

import "github.com/pkg/errors"

// The codec surfaces a small, closed set of decode failures. Each maps
// onto a NOTIFICATION error code/subcode pair via bgperr.NotificationCode
// using the string value of Reason as the bgperr.Code.
type DecodeError struct {
	Reason string
	cause  error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return "bgp: " + e.Reason + ": " + e.cause.Error()
	}
	return "bgp: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.cause }

func newDecodeError(reason string) error {
	return &DecodeError{Reason: reason}
}

func wrapDecodeError(reason string, cause error) error {
	return &DecodeError{Reason: reason, cause: errors.WithStack(cause)}
}

// ErrNeedMore is returned by the framer when the buffer does not yet
// contain a whole message.
var ErrNeedMore = errors.New("bgp: need more data")

// ErrShortBuffer is returned by the framer when fewer bytes than the
// header's declared Length are available and more are not expected
// (e.g. a caller asking to extract from a fixed, already-complete slice).
var ErrShortBuffer = errors.New("bgp: short buffer")

const (
	ReasonBadMessageType                = "BadMessageType"
	ReasonBadMessageLength              = "BadMessageLength"
	ReasonUnsupportedVersion            = "UnsupportedVersion"
	ReasonUnsupportedOptionalParameter  = "UnsupportedOptionalParameter"
	ReasonMalformedAttributeList        = "MalformedAttributeList"
	ReasonInvalidNextHopAttribute       = "InvalidNextHopAttribute"
)
