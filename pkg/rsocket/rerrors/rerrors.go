// Package rerrors provides the error-kind taxonomy shared by the connection
// and stream state machines.
package rerrors

import "fmt"

// Kind classifies a failure without pinning it to a Go type, mirroring the
// error taxonomy of the protocol rather than the language.
type Kind int

const (
	KindInvalidFrame Kind = iota
	KindUnexpectedFrame
	KindProtocolVersionMismatch
	KindKeepaliveTimeout
	KindResumeRejected
	KindResumeFailed
	KindStreamApplicationError
	KindConnectionError
	KindTransportClosed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFrame:
		return "invalid frame"
	case KindUnexpectedFrame:
		return "unexpected frame"
	case KindProtocolVersionMismatch:
		return "protocol version mismatch"
	case KindKeepaliveTimeout:
		return "keepalive timeout"
	case KindResumeRejected:
		return "resume rejected"
	case KindResumeFailed:
		return "resume failed"
	case KindStreamApplicationError:
		return "stream application error"
	case KindConnectionError:
		return "connection error"
	case KindTransportClosed:
		return "transport closed"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type surfaced to callers. It always carries a
// Kind so callers can branch on taxonomy without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rsocket: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("rsocket: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == kind
}
