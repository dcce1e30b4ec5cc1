package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/matthewjhunter/chapterverse/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDGeneratedAndPersisted(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()

	id := NewProvider(kv).UserID(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	stored, err := kv.Get(ctx, storage.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, id, string(stored))

	// A fresh provider over the same storage returns the same id.
	assert.Equal(t, id, NewProvider(kv).UserID(ctx))
}

func TestUserIDStable(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(storage.NewMemStore())
	assert.Equal(t, p.UserID(ctx), p.UserID(ctx))
}

func TestUserIDUsesStoredValue(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	require.NoError(t, kv.Set(ctx, storage.KeyUserID, []byte("reader-42\n")))
	assert.Equal(t, "reader-42", NewProvider(kv).UserID(ctx))
}

func TestUserIDSurvivesWriteFailure(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	kv.FailSets(errors.New("read-only"))

	p := NewProvider(kv)
	id := p.UserID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, p.UserID(ctx))
	assert.Equal(t, 0, kv.Writes(storage.KeyUserID))
}
