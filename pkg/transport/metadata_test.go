package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestMetadata_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		md   Metadata
		want string
	}{
		{"name and whole rating", Metadata{SessionName: "take 1", ExpectedRating: 7, HasRating: true}, "SESSION_NAME:take 1|RATING:7.0"},
		{"fractional rating", Metadata{SessionName: "x", ExpectedRating: 8.5, HasRating: true}, "SESSION_NAME:x|RATING:8.5"},
		{"no rating", Metadata{SessionName: "x"}, "SESSION_NAME:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.md.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want Metadata
	}{
		{"full", "SESSION_NAME:jam|RATING:9.5", Metadata{SessionName: "jam", ExpectedRating: 9.5, HasRating: true}},
		{"value containing colon", "SESSION_NAME:a:b|RATING:1", Metadata{SessionName: "a:b", ExpectedRating: 1, HasRating: true}},
		{"unknown key ignored", "FOO:bar|SESSION_NAME:jam", Metadata{SessionName: "jam"}},
		{"bad rating keeps default", "SESSION_NAME:jam|RATING:high", Metadata{SessionName: "jam"}},
		{"NaN rating keeps default", "SESSION_NAME:jam|RATING:NaN", Metadata{SessionName: "jam"}},
		{"infinite rating keeps default", "SESSION_NAME:jam|RATING:+Inf", Metadata{SessionName: "jam"}},
		{"negative infinite rating keeps default", "SESSION_NAME:jam|RATING:-Inf", Metadata{SessionName: "jam"}},
		{"rating above range keeps default", "SESSION_NAME:jam|RATING:99", Metadata{SessionName: "jam"}},
		{"rating below range keeps default", "SESSION_NAME:jam|RATING:-0.5", Metadata{SessionName: "jam"}},
		{"rating at bounds", "RATING:10", Metadata{ExpectedRating: 10, HasRating: true}},
		{"zero rating", "RATING:0.0", Metadata{HasRating: true}},
		{"item without colon", "garbage|SESSION_NAME:jam", Metadata{SessionName: "jam"}},
		{"empty", "", Metadata{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseMetadata(tt.body); got != tt.want {
				t.Errorf("ParseMetadata(%q) = %+v, want %+v", tt.body, got, tt.want)
			}
		})
	}
}

func TestReadMetadata(t *testing.T) {
	t.Parallel()

	t.Run("round trip leaves stream positioned after handshake", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		want := Metadata{SessionName: "s", ExpectedRating: 6.5, HasRating: true}
		if err := WriteMetadata(&buf, want); err != nil {
			t.Fatalf("WriteMetadata: %v", err)
		}
		buf.WriteString("next")

		got, err := ReadMetadata(&buf)
		if err != nil {
			t.Fatalf("ReadMetadata: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
		if rest := buf.String(); rest != "next" {
			t.Errorf("remaining stream = %q, want %q", rest, "next")
		}
	})

	t.Run("zero length", func(t *testing.T) {
		t.Parallel()
		got, err := ReadMetadata(bytes.NewReader([]byte{0, 0, 0, 0}))
		if err != nil {
			t.Fatalf("ReadMetadata: %v", err)
		}
		if got != (Metadata{}) {
			t.Errorf("got %+v, want zero", got)
		}
	})

	t.Run("oversized body is discarded", func(t *testing.T) {
		t.Parallel()
		n := MaxMetadataSize + 1
		b := make([]byte, 4, 4+n+3)
		binary.LittleEndian.PutUint32(b, uint32(n))
		b = append(b, bytes.Repeat([]byte("x"), n)...)
		b = append(b, "end"...)
		r := bytes.NewReader(b)

		got, err := ReadMetadata(r)
		if !errors.Is(err, ErrMalformedMetadata) {
			t.Fatalf("err = %v, want ErrMalformedMetadata", err)
		}
		if !strings.Contains(err.Error(), strconv.Itoa(n)) {
			t.Errorf("err = %q, want declared length %d", err, n)
		}
		if got != (Metadata{}) {
			t.Errorf("got %+v, want zero", got)
		}
		rest, _ := io.ReadAll(r)
		if string(rest) != "end" {
			t.Errorf("remaining stream = %q, want %q", rest, "end")
		}
	})

	t.Run("invalid utf8 is swallowed", func(t *testing.T) {
		t.Parallel()
		b := []byte{3, 0, 0, 0, 0xff, 0xfe, 0xfd}
		got, err := ReadMetadata(bytes.NewReader(b))
		if !errors.Is(err, ErrMalformedMetadata) {
			t.Fatalf("err = %v, want ErrMalformedMetadata", err)
		}
		if got != (Metadata{}) {
			t.Errorf("got %+v, want zero", got)
		}
	})

	t.Run("truncated body is an error", func(t *testing.T) {
		t.Parallel()
		b := []byte{10, 0, 0, 0, 'a', 'b'}
		_, err := ReadMetadata(bytes.NewReader(b))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
		}
	})
}
