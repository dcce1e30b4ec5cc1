package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was
// deleted.
var ErrNotFound = errors.New("storage: key not found")

// Keys used by the application. Values are opaque blobs owned by the
// package that writes them.
const (
	KeyPreferences = "user_preferences"
	KeySavedBooks  = "saved_books"
	KeyUserID      = "user_id"
)

// KV is the durable key/value boundary. Set replaces the whole value; there
// are no partial updates. Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
