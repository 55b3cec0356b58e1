// Package wavfile implements [audio.FileSink] as a RIFF/WAVE recording.
//
// The header is finalised on Close; a recording that is never closed has a
// zero-length data chunk.
package wavfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/audiorelay/pkg/audio"
)

var _ audio.FileSink = (*Sink)(nil)

// pcmFormat is the WAVE format tag for uncompressed integer PCM.
const pcmFormat = 1

// Sink writes PCM16 frames to a WAV file.
type Sink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	enc     *wav.Encoder
	format  *goaudio.Format
	bits    int
	written int64
	closed  bool
}

// Create opens path for writing and prepares a WAV encoder with the given
// channel count, sample width in bytes, and frame rate.
func Create(path string, channels, sampleWidth, frameRate int) (*Sink, error) {
	if channels <= 0 || sampleWidth <= 0 || frameRate <= 0 {
		return nil, fmt.Errorf("wavfile: invalid format: channels=%d width=%d rate=%d", channels, sampleWidth, frameRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: create %q: %w", path, err)
	}
	bits := sampleWidth * 8
	return &Sink{
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, frameRate, bits, channels, pcmFormat),
		format: &goaudio.Format{NumChannels: channels, SampleRate: frameRate},
		bits:   bits,
	}, nil
}

// WriteFrames implements [audio.FileSink].
func (s *Sink) WriteFrames(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("wavfile: write after close")
	}
	buf := &goaudio.IntBuffer{
		Format:         s.format,
		Data:           audio.BytesToInts(payload),
		SourceBitDepth: s.bits,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write %q: %w", s.path, err)
	}
	s.written += int64(len(payload))
	return nil
}

// Path implements [audio.FileSink].
func (s *Sink) Path() string { return s.path }

// BytesWritten returns the number of PCM bytes written so far.
func (s *Sink) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close finalises the WAV header and closes the file. Safe to call more than
// once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.enc.Close(), s.file.Close())
}

// ResolvePath returns the recording path for a save argument. A save value
// ending in ".wav" is used as given. Anything else becomes a timestamped
// audio_session_YYYYMMDD_HHMMSS.wav inside dir. The directory of the
// resulting path is created if missing.
func ResolvePath(save, dir string, now time.Time) (string, error) {
	path := save
	if !strings.HasSuffix(strings.ToLower(save), ".wav") {
		path = filepath.Join(dir, "audio_session_"+now.Format("20060102_150405")+".wav")
	}
	if d := filepath.Dir(path); d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("wavfile: create directory %q: %w", d, err)
		}
	}
	return path, nil
}
