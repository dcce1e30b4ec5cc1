package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func() KV {
	t.Helper()
	return map[string]func() KV{
		"sqlite": func() KV {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func() KV {
			s, err := NewBadgerStore(filepath.Join(t.TempDir(), "badger"))
			require.NoError(t, err)
			return s
		},
		"memory": func() KV { return NewMemStore() },
	}
}

func TestKVContract(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open()
			defer kv.Close()

			_, err := kv.Get(ctx, KeySavedBooks)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, KeySavedBooks, []byte(`[{"id":"b1"}]`)))
			got, err := kv.Get(ctx, KeySavedBooks)
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"b1"}]`, string(got))

			// Set replaces the whole value.
			require.NoError(t, kv.Set(ctx, KeySavedBooks, []byte(`[]`)))
			got, err = kv.Get(ctx, KeySavedBooks)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			require.NoError(t, kv.Delete(ctx, KeySavedBooks))
			_, err = kv.Get(ctx, KeySavedBooks)
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error.
			assert.NoError(t, kv.Delete(ctx, "missing"))
		})
	}
}

func TestKVConcurrentSets(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open()
			defer kv.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, kv.Set(ctx, KeyUserID, []byte("same")))
				}()
			}
			wg.Wait()

			got, err := kv.Get(ctx, KeyUserID)
			require.NoError(t, err)
			assert.Equal(t, "same", string(got))
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyPreferences, []byte(`{"genres":["Fantasy"]}`)))
	require.NoError(t, s.Set(ctx, KeyUserID, []byte("u1")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, KeyPreferences)
	require.NoError(t, err)
	assert.JSONEq(t, `{"genres":["Fantasy"]}`, string(got))

	got, err = s.Get(ctx, KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "u1", string(got))
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "badger")

	s, err := NewBadgerStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeySavedBooks, []byte(`[{"id":"7"}]`)))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, KeySavedBooks)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"7"}]`, string(got))
}

func TestMemStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	boom := errors.New("disk full")

	m.FailSets(boom)
	assert.ErrorIs(t, m.Set(ctx, "k", []byte("v")), boom)
	assert.Equal(t, 0, m.Writes("k"))

	m.FailSets(nil)
	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	assert.Equal(t, 1, m.Writes("k"))

	m.FailGets(boom)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	m.FailGets(nil)

	var seen []string
	m.OnSet(func(key string, value []byte) error {
		seen = append(seen, string(value))
		if string(value) == "bad" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, m.Set(ctx, "k", []byte("bad")), boom)
	require.NoError(t, m.Set(ctx, "k", []byte("good")))
	assert.Equal(t, []string{"bad", "good"}, seen)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "good", string(got))
}

func TestMemStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Backend = BackendMemory
	kv, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, kv)

	cfg.Database.Backend = BackendSQLite
	cfg.Database.Path = filepath.Join(t.TempDir(), "open.db")
	kv, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, kv)
	require.NoError(t, kv.Close())

	cfg.Database.Backend = "postgres"
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `database:
  backend: badger
  path: /tmp/cv
api:
  base_url: http://recs.local
  timeout: 3s
  remote_ranking: true
swipe:
  viewport_width: 390
  exit_duration: 100ms
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, cfg.Database.Backend)
	assert.Equal(t, "/tmp/cv", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.API.RemoteRanking)
	assert.Equal(t, 390.0, cfg.Swipe.ViewportWidth)
	assert.Equal(t, 100*time.Millisecond, cfg.Swipe.ExitDuration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.25, cfg.Swipe.ThresholdFraction)
	assert.Equal(t, 15, cfg.API.Limit)
	assert.Equal(t, "http://recs.local/api/v1/signals/event", cfg.SignalEndpoint())
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `
[database]
backend = "memory"

[signals]
enabled = false
endpoint = "http://events.local/in"

[ranking]
short_page_limit = 250
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Database.Backend)
	assert.False(t, cfg.Signals.Enabled)
	assert.Equal(t, "http://events.local/in", cfg.SignalEndpoint())
	assert.Equal(t, 250, cfg.Ranking.ShortPageLimit)
	assert.Equal(t, 450, cfg.Ranking.EpicPageMin)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [unclosed"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("swipe:\n  threshold_fraction: 1.5\n"), 0644))
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "threshold_fraction")
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data, err := DefaultConfig().Marshal(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
