package transport

import "errors"

var (
	// ErrSendFailed wraps every error returned by [Sender.Send].
	ErrSendFailed = errors.New("transport: send failed")

	// ErrReceiveFailed wraps socket errors that end a receive path.
	ErrReceiveFailed = errors.New("transport: receive failed")

	// ErrConnClosed is returned when operating on a closed connection.
	ErrConnClosed = errors.New("transport: connection closed")

	// ErrMalformedMetadata is returned by [ReadMetadata] for a handshake
	// that was consumed from the stream but could not be used. The stream
	// is positioned after it and the session continues with defaults.
	ErrMalformedMetadata = errors.New("transport: malformed metadata")
)
