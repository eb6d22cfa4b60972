package conn

import "github.com/dymk/rsocket-go/pkg/rsocket/rerrors"

func errNotResumable() error {
	return rerrors.New(rerrors.KindResumeFailed, "connection was not configured with WithResume")
}

func errConnectionClosed(cause error) error {
	if cause != nil {
		return rerrors.Wrap(rerrors.KindConnectionError, "connection closed", cause)
	}
	return rerrors.New(rerrors.KindConnectionError, "connection closed")
}

func errKeepaliveTimeout() error {
	return rerrors.New(rerrors.KindKeepaliveTimeout, "keepalive timeout")
}

func errProtocol(message string) error {
	return rerrors.New(rerrors.KindUnexpectedFrame, message)
}
