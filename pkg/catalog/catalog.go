// Package catalog defines the narrow persistence interface a receiver uses to
// register finished recordings.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistence wraps every failure to store a [Record].
var ErrPersistence = errors.New("catalog: persistence failed")

// Record describes one finished recording.
type Record struct {
	// Name is the session name, or the file base name when none was given.
	Name string

	// Rating is the quality rating in [0, 10].
	Rating float64

	// Path is the location of the WAV file.
	Path string

	// Size is the file size in bytes; 0 when the file is missing.
	Size int64

	// DurationSeconds is the whole-second session duration.
	DurationSeconds int
}

// Validate reports whether r can be stored.
func (r Record) Validate() error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !(r.Rating >= 0 && r.Rating <= 10) {
		errs = append(errs, fmt.Errorf("rating %.1f out of range [0, 10]", r.Rating))
	}
	if r.Size < 0 {
		errs = append(errs, fmt.Errorf("negative size %d", r.Size))
	}
	if r.DurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("negative duration %d", r.DurationSeconds))
	}
	return errors.Join(errs...)
}

// Catalog stores recordings.
//
// Implementations must be safe for concurrent use.
type Catalog interface {
	// AddAudioFile stores r and returns its identifier. Errors wrap
	// [ErrPersistence].
	AddAudioFile(ctx context.Context, r Record) (int64, error)
}
