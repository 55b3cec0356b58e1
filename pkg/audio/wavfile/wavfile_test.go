package wavfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/MrWong99/audiorelay/pkg/audio/wavfile"
)

func TestSink_WritesValidWAV(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.wav")

	sink, err := wavfile.Create(path, 1, 2, 44100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := make([]byte, 882)
	for i := range payload {
		payload[i] = byte(i)
	}
	for range 3 {
		if err := sink.WriteFrames(payload); err != nil {
			t.Fatalf("WriteFrames: %v", err)
		}
	}
	if got := sink.BytesWritten(); got != 3*882 {
		t.Errorf("BytesWritten = %d, want %d", got, 3*882)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("decoder reports invalid WAV file")
	}
	if dec.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("NumChans = %d, want 1", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want 16", dec.BitDepth)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() < 3*882 {
		t.Errorf("file size = %d, want at least %d", info.Size(), 3*882)
	}
}

func TestSink_WriteAfterClose(t *testing.T) {
	t.Parallel()
	sink, err := wavfile.Create(filepath.Join(t.TempDir(), "x.wav"), 1, 2, 44100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = sink.Close()
	if err := sink.WriteFrames([]byte{0, 0}); err == nil {
		t.Error("expected error writing after Close")
	}
}

func TestCreate_InvalidFormat(t *testing.T) {
	t.Parallel()
	if _, err := wavfile.Create(filepath.Join(t.TempDir(), "x.wav"), 0, 2, 44100); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	t.Run("explicit wav path", func(t *testing.T) {
		want := filepath.Join(dir, "nested", "take1.wav")
		got, err := wavfile.ResolvePath(want, filepath.Join(dir, "unused"), now)
		if err != nil {
			t.Fatalf("ResolvePath: %v", err)
		}
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		if _, err := os.Stat(filepath.Dir(want)); err != nil {
			t.Errorf("directory not created: %v", err)
		}
	})

	t.Run("generated name", func(t *testing.T) {
		saveDir := filepath.Join(dir, "audio_files")
		got, err := wavfile.ResolvePath("yes", saveDir, now)
		if err != nil {
			t.Fatalf("ResolvePath: %v", err)
		}
		want := filepath.Join(saveDir, "audio_session_20240309_140507.wav")
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
		if _, err := os.Stat(saveDir); err != nil {
			t.Errorf("save dir not created: %v", err)
		}
	})
}
