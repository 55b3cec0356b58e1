package transport

import (
	"errors"
	"fmt"
	"io"
)

// ReassembleReader cuts a byte stream into fixed-size packets regardless of
// how the underlying reads are split.
type ReassembleReader struct {
	r   io.Reader
	buf []byte
}

// NewReassembleReader returns a reader yielding packets of exactly size
// bytes from r.
func NewReassembleReader(r io.Reader, size int) *ReassembleReader {
	return &ReassembleReader{r: r, buf: make([]byte, size)}
}

// Next returns the next complete packet. The slice is reused by the following
// call. A clean end of stream returns [io.EOF]; a stream that ends inside a
// packet returns [io.ErrUnexpectedEOF]. Both wrap [ErrConnClosed].
func (rr *ReassembleReader) Next() ([]byte, error) {
	_, err := io.ReadFull(rr.r, rr.buf)
	switch {
	case err == nil:
		return rr.buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: %w", ErrConnClosed, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}
}
