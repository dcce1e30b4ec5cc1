package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

func book(id string) books.Book {
	return books.Book{ID: id, Title: "Title " + id, Author: "Author", Genres: []string{"Fantasy"}}
}

func newStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s := New(context.Background(), kv, Options{})
	t.Cleanup(func() { s.Close() })
	return s
}

func flush(t *testing.T, s *Store) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Flush(ctx)
}

func TestAddTwiceKeepsOneCopy(t *testing.T) {
	kv := storage.NewMemStore()
	s := newStore(t, kv)

	assert.True(t, s.Add(book("b1")))
	assert.False(t, s.Add(book("b1")))
	assert.Equal(t, []string{"b1"}, books.IDs(s.List()))

	require.NoError(t, flush(t, s))
	assert.Equal(t, []string{"b1"}, books.IDs(s.Load(context.Background())))
}

func TestAddIdempotent(t *testing.T) {
	s := newStore(t, storage.NewMemStore())
	s.Add(book("a"))
	before := s.List()
	for i := 0; i < 3; i++ {
		s.Add(book("a"))
	}
	assert.Equal(t, before, s.List())
	assert.Equal(t, 1, s.Len())
}

func TestReadAfterWrite(t *testing.T) {
	kv := storage.NewMemStore()
	release := make(chan struct{})
	kv.OnSet(func(string, []byte) error {
		<-release
		return nil
	})
	s := newStore(t, kv)
	defer close(release)

	s.Add(book("x"))
	assert.True(t, s.Has("x"), "visible before the write lands")
	got, ok := s.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "Title x", got.Title)
}

func TestDurableRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()

	s := New(ctx, kv, Options{})
	for _, id := range []string{"c", "a", "b"} {
		s.Add(book(id))
	}
	s.Remove("a")
	require.NoError(t, s.Close())

	reopened := newStore(t, kv)
	assert.Equal(t, []string{"c", "b"}, books.IDs(reopened.List()))
	assert.Equal(t, s.List(), reopened.Load(ctx))
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, err := storage.NewSQLiteStore(t.TempDir() + "/saved.db")
	require.NoError(t, err)
	defer kv.Close()

	s := New(ctx, kv, Options{})
	s.Add(book("1"))
	s.Add(book("2"))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"1", "2"}, books.IDs(New(ctx, kv, Options{}).List()))
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newStore(t, storage.NewMemStore())
	got := s.Load(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	require.NoError(t, kv.Set(ctx, storage.KeySavedBooks, []byte(`{"oops"`)))

	s := newStore(t, kv)
	assert.Empty(t, s.List())

	// The next mutation overwrites the corrupt value.
	s.Add(book("fresh"))
	require.NoError(t, flush(t, s))
	assert.Equal(t, []string{"fresh"}, books.IDs(s.Load(ctx)))
}

func TestLoadReadFailureIsEmpty(t *testing.T) {
	kv := storage.NewMemStore()
	kv.FailGets(errors.New("permission denied"))
	s := newStore(t, kv)
	assert.Empty(t, s.List())
}

func TestLoadCollapsesDuplicates(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	blob := `[{"id":"a","title":"first"},{"id":"b"},{"id":"a","title":"second"}]`
	require.NoError(t, kv.Set(ctx, storage.KeySavedBooks, []byte(blob)))

	s := newStore(t, kv)
	require.Equal(t, []string{"a", "b"}, books.IDs(s.List()))
	assert.Equal(t, "first", s.List()[0].Title)
}

func TestWriteFailureSelfHeals(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := newStore(t, kv)
	boom := errors.New("disk full")

	kv.FailSets(boom)
	s.Add(book("a"))
	assert.ErrorIs(t, flush(t, s), boom)
	assert.Equal(t, []string{"a"}, books.IDs(s.List()), "memory keeps the mutation")
	assert.Empty(t, s.Load(ctx))

	kv.FailSets(nil)
	s.Add(book("b"))
	require.NoError(t, flush(t, s))
	assert.Equal(t, []string{"a", "b"}, books.IDs(s.Load(ctx)))
}

func TestDuplicateAddRewritesSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := newStore(t, kv)
	boom := errors.New("io")

	kv.FailSets(boom)
	s.Add(book("a"))
	require.ErrorIs(t, flush(t, s), boom)

	// Re-adding an existing book still schedules a write, which repairs
	// storage.
	kv.FailSets(nil)
	assert.False(t, s.Add(book("a")))
	require.NoError(t, flush(t, s))
	assert.Equal(t, []string{"a"}, books.IDs(s.Load(ctx)))
}

func TestWritesCoalesce(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	kv.OnSet(func(string, []byte) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	})
	s := newStore(t, kv)

	s.Add(book("0"))
	<-started
	for i := 1; i <= 10; i++ {
		s.Add(book(fmt.Sprint(i)))
	}
	close(release)
	require.NoError(t, flush(t, s))

	assert.Equal(t, 2, kv.Writes(storage.KeySavedBooks), "blocked write plus one catch-up write")
	assert.Len(t, s.Load(ctx), 11)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := newStore(t, kv)

	s.Add(book("a"))
	s.Add(book("b"))
	require.NoError(t, flush(t, s))
	writes := kv.Writes(storage.KeySavedBooks)

	assert.False(t, s.Remove("zzz"))
	require.NoError(t, flush(t, s))
	assert.Equal(t, writes, kv.Writes(storage.KeySavedBooks), "removing an absent id writes nothing")

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Has("a"))
	require.NoError(t, flush(t, s))
	assert.Equal(t, []string{"b"}, books.IDs(s.Load(ctx)))
}

func TestAddIgnoresEmptyID(t *testing.T) {
	s := newStore(t, storage.NewMemStore())
	assert.False(t, s.Add(books.Book{Title: "no id"}))
	assert.Zero(t, s.Len())
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := newStore(t, kv)

	var wg sync.WaitGroup
	var inserted atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every id is added by two goroutines.
			if s.Add(book(fmt.Sprint(i % 25))) {
				inserted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(25), inserted.Load())
	assert.Equal(t, 25, s.Len())
	require.NoError(t, flush(t, s))
	assert.Equal(t, s.List(), s.Load(ctx))
}

func TestFlushHonorsContext(t *testing.T) {
	kv := storage.NewMemStore()
	release := make(chan struct{})
	kv.OnSet(func(string, []byte) error {
		<-release
		return nil
	})
	s := newStore(t, kv)
	defer close(release)

	s.Add(book("a"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

func TestFlushWithNothingPending(t *testing.T) {
	s := newStore(t, storage.NewMemStore())
	assert.NoError(t, flush(t, s))
}

func TestCloseDrainsPendingWrite(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := New(ctx, kv, Options{})
	s.Add(book("last"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	raw, err := kv.Get(ctx, storage.KeySavedBooks)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last"`)

	// After Close mutations are memory-only.
	s.Add(book("late"))
	assert.True(t, s.Has("late"))
	assert.NoError(t, s.Flush(ctx))
}
