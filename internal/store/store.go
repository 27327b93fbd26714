// internal/store/store.go
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document exists under a code.
	ErrNotFound = errors.New("room not found")
	// ErrExists is returned by Create when the code is taken.
	ErrExists = errors.New("room already exists")
	// ErrConflict is returned by CompareAndSwap when the document changed
	// since the version the caller read.
	ErrConflict = errors.New("room changed since it was read")
)

// Versioned is a stored room document and the version it was read at.
type Versioned struct {
	Data    []byte
	Version int64
}

// Store holds room documents by code. Documents are only ever replaced as a
// whole, and only through CompareAndSwap, so two writers that read the same
// version can never both commit.
type Store interface {
	// Create stores a new document at version 1.
	Create(ctx context.Context, code string, data []byte) error
	// Load returns the current document and its version.
	Load(ctx context.Context, code string) (Versioned, error)
	// CompareAndSwap replaces the document if it is still at version and
	// returns the new version. It returns ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, code string, version int64, data []byte) (int64, error)
	// Delete removes the document if it is still at version. Deleting a
	// missing document is not an error; a moved version returns ErrConflict.
	Delete(ctx context.Context, code string, version int64) error
	// Codes lists the code of every stored room.
	Codes(ctx context.Context) ([]string, error)
}
