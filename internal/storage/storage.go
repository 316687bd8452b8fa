package storage

import (
	"errors"

	"clipvault/pkg/types"
)

// Store defines the interface for clipboard item persistence.
type Store interface {
	// Save inserts an item and back-fills the generated ID onto it.
	Save(item *types.Item) error

	// GetAll returns items ordered by timestamp descending, capped at limit.
	GetAll(limit int) ([]*types.Item, error)

	// Search returns items whose content or preview contains query as a
	// substring, newest first.
	Search(query string, limit int) ([]*types.Item, error)

	// Get returns a single item by ID, or ErrNotFound.
	Get(id int64) (*types.Item, error)

	// Delete removes a single item by ID.
	Delete(id int64) error

	// ClearAll removes every stored item.
	ClearAll() error

	// Count returns the number of stored items.
	Count() (int64, error)

	// EnforceLimit deletes the oldest rows so that at most maxItems remain.
	EnforceLimit(maxItems int) error

	// ImagePaths returns the blob paths referenced by image rows, for
	// orphan reconciliation against the image store.
	ImagePaths() ([]string, error)

	Close() error
}

// Config holds storage configuration.
type Config struct {
	DBPath string // Path to the SQLite database file
}

var ErrNotFound = errors.New("clipboard item not found")
