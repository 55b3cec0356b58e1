package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxMetadataSize bounds the handshake body. Larger bodies are discarded.
const MaxMetadataSize = 64 << 10

const (
	keySessionName = "SESSION_NAME"
	keyRating      = "RATING"
)

// Metadata is the session description exchanged at the start of a TCP
// connection.
type Metadata struct {
	SessionName string

	// ExpectedRating is only meaningful when HasRating is true.
	ExpectedRating float64
	HasRating      bool
}

// String returns the wire body, e.g. "SESSION_NAME:take 1|RATING:7.0".
func (m Metadata) String() string {
	parts := []string{keySessionName + ":" + m.SessionName}
	if m.HasRating {
		parts = append(parts, keyRating+":"+formatRating(m.ExpectedRating))
	}
	return strings.Join(parts, "|")
}

// formatRating keeps at least one decimal so the value reads as a float.
func formatRating(r float64) string {
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

// WriteMetadata writes the length-prefixed handshake for m to w.
func WriteMetadata(w io.Writer, m Metadata) error {
	body := m.String()
	buf := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("transport: write metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads one length-prefixed handshake from r. A body that is
// oversized or not UTF-8 is consumed and reported as [ErrMalformedMetadata]
// with zero Metadata; any other error is an I/O failure. Unparsable items
// inside a valid body are skipped by [ParseMetadata].
func ReadMetadata(r io.Reader) (Metadata, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Metadata{}, fmt.Errorf("transport: read metadata length: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n == 0 {
		return Metadata{}, nil
	}
	if n > MaxMetadataSize {
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return Metadata{}, fmt.Errorf("transport: discard metadata: %w", err)
		}
		return Metadata{}, fmt.Errorf("%w: declared length %d exceeds %d bytes", ErrMalformedMetadata, n, MaxMetadataSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Metadata{}, fmt.Errorf("transport: read metadata body: %w", err)
	}
	if !utf8.Valid(body) {
		return Metadata{}, fmt.Errorf("%w: %d byte body is not valid UTF-8", ErrMalformedMetadata, n)
	}
	return ParseMetadata(string(body)), nil
}

// ParseMetadata decodes a handshake body. Items are separated by '|' and
// split into key and value on the first ':'. Unknown keys and items without
// a ':' are ignored, as is a RATING that is not a finite number in
// [0, 10].
func ParseMetadata(body string) Metadata {
	var m Metadata
	for item := range strings.SplitSeq(body, "|") {
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		switch key {
		case keySessionName:
			m.SessionName = value
		case keyRating:
			r, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || !validRating(r) {
				continue
			}
			m.ExpectedRating = r
			m.HasRating = true
		}
	}
	return m
}

// validRating rejects NaN, infinities and values outside [0, 10]. NaN
// fails both comparisons.
func validRating(r float64) bool {
	return r >= 0 && r <= 10
}
