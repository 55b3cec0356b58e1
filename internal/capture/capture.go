// Package capture hands audio frames from a device callback to the sender
// goroutine through a bounded queue.
//
// The device callback never blocks. When the queue is full the oldest frame
// is discarded so that the sender always sees the most recent audio.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/audiorelay/internal/observe"
	"github.com/MrWong99/audiorelay/pkg/audio"
	"github.com/MrWong99/audiorelay/pkg/frame"
)

// ErrDeviceOpen is returned by [Pipeline.Open] when the capture device cannot
// be started.
var ErrDeviceOpen = errors.New("capture: device open failed")

// DefaultQueueFrames is the queue capacity used when none is configured.
const DefaultQueueFrames = 256

// Config configures a [Pipeline].
type Config struct {
	// QueueFrames is the capacity of the hand-off queue. Zero means
	// [DefaultQueueFrames].
	QueueFrames int

	// Metrics records queue drops. Nil disables recording.
	Metrics *observe.Metrics

	// Now returns the current time. Nil means [time.Now].
	Now func() time.Time
}

// Pipeline owns a capture device and the queue its frames are pushed into.
// The device callback is the only producer and a single goroutine is expected
// to consume via [Pipeline.Pop].
type Pipeline struct {
	dev     audio.CaptureDevice
	queue   chan audio.AudioFrame
	metrics *observe.Metrics
	now     func() time.Time

	// started is the UnixNano time of Open; frame timestamps are relative
	// to it.
	started atomic.Int64

	recording atomic.Bool
	dropped   atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// New returns a pipeline for dev. Recording starts enabled.
func New(dev audio.CaptureDevice, cfg Config) *Pipeline {
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = DefaultQueueFrames
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &Pipeline{
		dev:     dev,
		queue:   make(chan audio.AudioFrame, cfg.QueueFrames),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
	p.recording.Store(true)
	return p
}

// Open starts the device. Errors wrap [ErrDeviceOpen].
func (p *Pipeline) Open() error {
	p.started.Store(p.now().UnixNano())
	if err := p.dev.Start(p.onFrame); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}
	return nil
}

// SetRecording enables or disables enqueueing. The device keeps running
// either way.
func (p *Pipeline) SetRecording(on bool) { p.recording.Store(on) }

// Recording reports whether frames are currently enqueued.
func (p *Pipeline) Recording() bool { return p.recording.Load() }

// Dropped returns the number of frames evicted from a full queue.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Len returns the number of queued frames.
func (p *Pipeline) Len() int { return len(p.queue) }

// onFrame is the device callback.
func (p *Pipeline) onFrame(data []byte) {
	if !p.recording.Load() {
		return
	}
	f := audio.AudioFrame{
		Data:       bytes.Clone(data),
		SampleRate: frame.SampleRate,
		Channels:   frame.Channels,
		Timestamp:  time.Duration(p.now().UnixNano() - p.started.Load()),
	}
	for {
		select {
		case p.queue <- f:
			return
		default:
		}
		// Full: evict the oldest frame and retry. The consumer may have
		// emptied a slot in the meantime, in which case nothing is evicted.
		select {
		case <-p.queue:
			p.dropped.Add(1)
			if p.metrics != nil {
				p.metrics.CaptureQueueDrops.Add(context.Background(), 1)
			}
		default:
		}
	}
}

// Pop waits up to timeout for the next frame. ok is false on timeout.
func (p *Pipeline) Pop(timeout time.Duration) (f audio.AudioFrame, ok bool) {
	select {
	case f = <-p.queue:
		return f, true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f = <-p.queue:
		return f, true
	case <-t.C:
		return f, false
	}
}

// Close stops the device. Queued frames are left in place. Safe to call
// more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.recording.Store(false)
		p.closeErr = p.dev.Close()
	})
	return p.closeErr
}
