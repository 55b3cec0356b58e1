// Package mock provides an in-memory [catalog.Catalog] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/audiorelay/pkg/catalog"
)

var _ catalog.Catalog = (*Catalog)(nil)

// Catalog records every AddAudioFile call.
type Catalog struct {
	mu sync.Mutex

	// AddError, when set, is returned by AddAudioFile.
	AddError error

	// Records holds every record passed to AddAudioFile, in order.
	Records []catalog.Record

	// PingError is returned by Ping.
	PingError error

	nextID int64
}

// AddAudioFile implements [catalog.Catalog].
func (c *Catalog) AddAudioFile(_ context.Context, r catalog.Record) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Records = append(c.Records, r)
	if c.AddError != nil {
		return 0, c.AddError
	}
	c.nextID++
	return c.nextID, nil
}

// Ping returns PingError.
func (c *Catalog) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PingError
}

// CallCount returns the number of AddAudioFile calls.
func (c *Catalog) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Records)
}
