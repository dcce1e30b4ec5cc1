// Package profile persists the reader's preference profile.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

// Store reads and writes the profile blob under storage.KeyPreferences.
type Store struct {
	kv storage.KV
}

func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Load returns the saved profile, or nil when none exists. A blob that cannot
// be decoded is treated as absent. The result is always sanitized.
func (s *Store) Load(ctx context.Context) (*books.Preferences, error) {
	data, err := s.kv.Get(ctx, storage.KeyPreferences)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	var p books.Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		log := logging.Component("profile")
		log.Warn().Err(err).Msg("discarding unreadable preferences")
		return nil, nil
	}
	p = p.Sanitize()
	return &p, nil
}

// Save sanitizes p and replaces the stored profile. It returns what was
// stored.
func (s *Store) Save(ctx context.Context, p books.Preferences) (books.Preferences, error) {
	p = p.Sanitize()
	data, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("marshal preferences: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyPreferences, data); err != nil {
		return p, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// Clear removes the stored profile.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyPreferences); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}
