package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no document has been written yet.
var ErrNotFound = errors.New("document not found")

// Store reads and writes a single serialized document.
type Store interface {
	// Read returns the stored document, or ErrNotFound if none exists.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored document.
	Write(ctx context.Context, data []byte) error
}
