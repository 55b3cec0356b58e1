package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/audiorelay/pkg/frame"
)

func TestUDP_SendAndServe(t *testing.T) {
	t.Parallel()
	size := frame.PacketSize(10)

	ln, err := ListenUDP("127.0.0.1:0", size)
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan []byte, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ln.Serve(ctx, func(pkt []byte) { got <- bytes.Clone(pkt) })
	}()

	snd, err := DialUDP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	t.Cleanup(func() { _ = snd.Close() })

	payload := bytes.Repeat([]byte{0x11}, frame.PayloadSize(10))
	for seq := range uint16(3) {
		if err := snd.Send(frame.Encode(seq, payload)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	for want := range uint16(3) {
		select {
		case pkt := <-got:
			if len(pkt) != size {
				t.Errorf("packet len = %d, want %d", len(pkt), size)
			}
			seq, _, _ := frame.Decode(pkt)
			if seq != want {
				t.Errorf("seq = %d, want %d", seq, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for packet %d", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestUDP_CloseEndsServeWithError(t *testing.T) {
	t.Parallel()
	ln, err := ListenUDP("127.0.0.1:0", 4)
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ln.Serve(context.Background(), func([]byte) {}) }()

	time.Sleep(20 * time.Millisecond)
	_ = ln.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrReceiveFailed) {
			t.Errorf("Serve err = %v, want ErrReceiveFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestUDPSender_SendAfterClose(t *testing.T) {
	t.Parallel()
	snd, err := DialUDP(context.Background(), "127.0.0.1:9")
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	_ = snd.Close()
	err = snd.Send([]byte{0, 0})
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, ErrConnClosed) {
		t.Errorf("err = %v, want ErrSendFailed wrapping ErrConnClosed", err)
	}
}

func TestParseProtocol(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Protocol{"udp": UDP, "TCP": TCP, " tcp ": TCP} {
		got, err := ParseProtocol(in)
		if err != nil || got != want {
			t.Errorf("ParseProtocol(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseProtocol("sctp"); err == nil {
		t.Error("expected error for sctp")
	}
}
