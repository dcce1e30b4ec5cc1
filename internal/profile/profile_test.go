package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	s := NewStore(storage.NewMemStore())
	p, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	s := NewStore(kv)

	saved, err := s.Save(ctx, books.Preferences{
		Genres: []string{"Fantasy", "Fantasy", " "},
		Vibes:  []string{"Cozy"},
		Pace:   "Fast-paced",
		Length: "Short & sweet (< 300 pages)",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fantasy"}, saved.Genres)
	assert.Equal(t, books.PaceFast, saved.Pace)
	assert.Equal(t, books.LengthShort, saved.Length)

	raw, err := kv.Get(ctx, storage.KeyPreferences)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lengthPreference":"short"`)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved, *got)
}

func TestLoadCorruptIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	require.NoError(t, kv.Set(ctx, storage.KeyPreferences, []byte("{not json")))

	p, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadSanitizesStoredBlob(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	blob := `{"genres":["Mystery",""],"pacePreference":"Slow burn","lengthPreference":"gigantic"}`
	require.NoError(t, kv.Set(ctx, storage.KeyPreferences, []byte(blob)))

	p, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"Mystery"}, p.Genres)
	assert.Equal(t, books.PaceSlowBurn, p.Pace)
	assert.Empty(t, p.Length)
}

func TestLoadReadError(t *testing.T) {
	kv := storage.NewMemStore()
	kv.FailGets(errors.New("io"))
	_, err := NewStore(kv).Load(context.Background())
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemStore())
	_, err := s.Save(ctx, books.Preferences{Genres: []string{"Horror"}})
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}
