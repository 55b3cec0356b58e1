package frame_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MrWong99/audiorelay/pkg/frame"
)

func TestPayloadSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ms   int
		want int
	}{
		{10, 882},
		{20, 1764},
		{100, 8820},
		{150, 13230},
	}
	for _, tc := range tests {
		if got := frame.PayloadSize(tc.ms); got != tc.want {
			t.Errorf("PayloadSize(%d) = %d, want %d", tc.ms, got, tc.want)
		}
		if got := frame.PacketSize(tc.ms); got != tc.want+2 {
			t.Errorf("PacketSize(%d) = %d, want %d", tc.ms, got, tc.want+2)
		}
	}
}

func TestValidChunkMs(t *testing.T) {
	t.Parallel()
	for _, ms := range []int{10, 20, 70, 150} {
		if !frame.ValidChunkMs(ms) {
			t.Errorf("ValidChunkMs(%d) = false, want true", ms)
		}
	}
	for _, ms := range []int{0, 5, 15, 160, -10} {
		if frame.ValidChunkMs(ms) {
			t.Errorf("ValidChunkMs(%d) = true, want false", ms)
		}
	}
}

func TestEncode_Layout(t *testing.T) {
	t.Parallel()
	got := frame.Encode(0x0102, []byte{0xAA, 0xBB})
	want := []byte{0x02, 0x01, 0xAA, 0xBB}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode = %x, want %x", got, want)
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()
	for _, in := range [][]byte{nil, {}, {0x01}} {
		_, _, err := frame.Decode(in)
		if !errors.Is(err, frame.ErrMalformedPacket) {
			t.Errorf("Decode(%x) err = %v, want ErrMalformedPacket", in, err)
		}
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	t.Parallel()
	seq, payload, err := frame.Decode([]byte{0xFF, 0xFF})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 65535 {
		t.Errorf("seq = %d, want 65535", seq)
	}
	if len(payload) != 0 {
		t.Errorf("payload length = %d, want 0", len(payload))
	}
}

func TestRoundTrip_AllSequences(t *testing.T) {
	t.Parallel()
	payload := make([]byte, frame.PayloadSize(frame.DefaultChunkMs))
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	for s := 0; s <= 65535; s++ {
		seq := uint16(s)
		gotSeq, gotPayload, err := frame.Decode(frame.Encode(seq, payload))
		if err != nil {
			t.Fatalf("seq %d: unexpected error: %v", s, err)
		}
		if gotSeq != seq {
			t.Fatalf("seq = %d, want %d", gotSeq, seq)
		}
		if !bytes.Equal(gotPayload, payload) {
			t.Fatalf("seq %d: payload mismatch", s)
		}
	}
}

func TestDistance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		seq, expected uint16
		want          int
	}{
		{"equal", 5, 5, 0},
		{"ahead", 4, 2, 2},
		{"behind", 1, 3, -2},
		{"ahead across wrap", 2, 65535, 3},
		{"behind across wrap", 65534, 1, -3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := frame.Distance(tc.seq, tc.expected); got != tc.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tc.seq, tc.expected, got, tc.want)
			}
		})
	}
}

func TestNext_Wraps(t *testing.T) {
	t.Parallel()
	if got := frame.Next(65535); got != 0 {
		t.Errorf("Next(65535) = %d, want 0", got)
	}
}

func TestSilence(t *testing.T) {
	t.Parallel()
	s := frame.Silence(882)
	if len(s) != 882 {
		t.Fatalf("len = %d, want 882", len(s))
	}
	for i, b := range s {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}
