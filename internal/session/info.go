// Package session tracks the state of one receiving session and reports it
// to the catalog when the session ends.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/audiorelay/pkg/transport"
)

// DefaultExpectedRating is used when the sender supplies no rating.
const DefaultExpectedRating = 7.0

// Stats is a point-in-time copy of a session's state.
type Stats struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`

	PacketsReceived uint64 `json:"packets_received"`
	PacketsLost     uint64 `json:"packets_lost"`
	BytesReceived   uint64 `json:"bytes_received"`
	SilenceUnits    uint64 `json:"silence_units"`

	// ExpectedSeq is the sequence number the receiver waits for next.
	ExpectedSeq uint16 `json:"expected_seq"`

	SessionName      string  `json:"session_name,omitempty"`
	ExpectedRating   float64 `json:"expected_rating"`
	CalculatedRating float64 `json:"calculated_rating"`

	// OutputWritten is set once any payload reached the file sink.
	OutputWritten bool `json:"output_written"`
}

// LossPercent returns lost / (received + lost) × 100, or 0 with no
// traffic.
func (s Stats) LossPercent() float64 {
	total := s.PacketsReceived + s.PacketsLost
	if total == 0 {
		return 0
	}
	return float64(s.PacketsLost) / float64(total) * 100
}

// Info is the shared, mutex-guarded session state. The receive path writes
// through [Info.Update]; everyone else reads [Info.Snapshot].
type Info struct {
	mu sync.RWMutex
	s  Stats
}

// NewInfo starts a session at now with a fresh identifier and the default
// expected rating.
func NewInfo(now time.Time) *Info {
	return &Info{s: Stats{
		ID:             uuid.NewString(),
		Started:        now,
		ExpectedRating: DefaultExpectedRating,
	}}
}

// Snapshot returns a copy of the current state.
func (i *Info) Snapshot() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.s
}

// Update applies fn to the state under the write lock.
func (i *Info) Update(fn func(*Stats)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	fn(&i.s)
}

// ApplyMetadata copies the handshake fields that were present. An empty
// session name or a missing rating leaves the current value in place.
func (i *Info) ApplyMetadata(md transport.Metadata) {
	i.Update(func(s *Stats) {
		if md.SessionName != "" {
			s.SessionName = md.SessionName
		}
		if md.HasRating {
			s.ExpectedRating = md.ExpectedRating
		}
	})
}
