// Package collection keeps the reader's saved books: an ordered set, unique
// by book ID, that survives restarts.
//
// Mutations apply to memory immediately and return; persistence happens on a
// single writer goroutine that always stores the latest full snapshot. Writes
// therefore never interleave, bursts of mutations coalesce into fewer writes,
// and a failed write is repaired by the next successful one.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

// Options configures a Store.
type Options struct {
	// Key is the storage key holding the serialized collection.
	// Default storage.KeySavedBooks.
	Key string
	// WriteTimeout bounds each background write. Default 10s.
	WriteTimeout time.Duration
}

// Store is the saved-books collection. All methods are safe for concurrent
// use.
type Store struct {
	kv           storage.KV
	key          string
	writeTimeout time.Duration
	log          zerolog.Logger

	mu    sync.Mutex
	items []books.Book
	index map[string]struct{}

	scheduled uint64 // version of the newest in-memory state
	attempted uint64 // version covered by the last finished write
	lastErr   error
	progress  chan struct{} // closed and replaced after each write
	closed    bool

	wake       chan struct{}
	stop       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// New loads the persisted collection and starts the writer.
func New(ctx context.Context, kv storage.KV, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = storage.KeySavedBooks
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Store{
		kv:           kv,
		key:          opts.Key,
		writeTimeout: opts.WriteTimeout,
		log:          logging.Component("collection"),
		items:        []books.Book{},
		index:        make(map[string]struct{}),
		progress:     make(chan struct{}),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	for _, b := range s.Load(ctx) {
		s.items = append(s.items, b)
		s.index[b.ID] = struct{}{}
	}
	go s.writer()
	return s
}

// Load reads the collection from durable storage. A missing key gives an
// empty collection; so does an unreadable or corrupt value, which is logged.
// Duplicate IDs in storage are collapsed, first occurrence wins.
func (s *Store) Load(ctx context.Context) []books.Book {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []books.Book{}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("reading saved books failed; starting empty")
		return []books.Book{}
	}

	var stored []books.Book
	if err := json.Unmarshal(data, &stored); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("saved books unreadable; starting empty")
		return []books.Book{}
	}
	return books.Dedupe(stored)
}

// Add inserts b unless a book with the same ID is already present, and
// schedules a write either way. It reports whether b was newly inserted.
// Books without an ID are ignored.
func (s *Store) Add(b books.Book) bool {
	if b.ID == "" {
		return false
	}
	s.mu.Lock()
	_, exists := s.index[b.ID]
	if !exists {
		s.items = append(s.items, b)
		s.index[b.ID] = struct{}{}
	}
	s.scheduleLocked()
	s.mu.Unlock()

	if !exists {
		s.log.Debug().Str("book_id", b.ID).Msg("saved")
	}
	return !exists
}

// Remove deletes the book with the given ID and schedules a write. Absent
// IDs are a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	s.items = slices.DeleteFunc(s.items, func(b books.Book) bool { return b.ID == id })
	s.scheduleLocked()
	return true
}

// List returns the collection in insertion order.
func (s *Store) List() []books.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Get returns the saved book with the given ID.
func (s *Store) Get(id string) (books.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.items {
		if b.ID == id {
			return b, true
		}
	}
	return books.Book{}, false
}

func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Len is the badge count shown on the saved view.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Flush waits until every write scheduled before the call has been attempted.
// It returns the error of the most recent attempt, if it failed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	target := s.scheduled
	for s.attempted < target {
		ch := s.progress
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	err := s.lastErr
	s.mu.Unlock()
	return err
}

// Close writes any pending state and stops the writer. Mutations after Close
// stay in memory only.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
		<-s.writerDone
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) scheduleLocked() {
	if s.closed {
		return
	}
	s.scheduled++
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.wake:
			s.writeLatest()
		case <-s.stop:
			s.writeLatest()
			return
		}
	}
}

// writeLatest persists the current snapshot if it is newer than the last
// attempt.
func (s *Store) writeLatest() {
	s.mu.Lock()
	version := s.scheduled
	if version == s.attempted {
		s.mu.Unlock()
		return
	}
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	err := s.persist(snapshot)
	if err != nil {
		s.log.Warn().Err(err).Int("books", len(snapshot)).Msg("saving collection failed; will retry on next change")
	}

	s.mu.Lock()
	s.attempted = version
	s.lastErr = err
	close(s.progress)
	s.progress = make(chan struct{})
	s.mu.Unlock()
}

func (s *Store) persist(snapshot []books.Book) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	return nil
}
