package main

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

func memoryConfig() *storage.Config {
	c := storage.DefaultConfig()
	c.Database.Backend = storage.BackendMemory
	c.Signals.Enabled = false
	return c
}

func TestContainerProvidesEngine(t *testing.T) {
	injector := newContainer(memoryConfig())

	e, err := do.Invoke[*chapterverse.Engine](injector)
	require.NoError(t, err)

	again := do.MustInvoke[*chapterverse.Engine](injector)
	assert.Same(t, e, again)

	deck := e.BuildDeck(context.Background())
	assert.Equal(t, chapterverse.SourceLocal, deck.Source)
	assert.NotEmpty(t, deck.Books)

	injector.Shutdown()
	assert.NoError(t, e.Close())
}

func TestContainerRejectsBadEngineConfig(t *testing.T) {
	c := memoryConfig()
	c.API.RemoteRanking = true
	c.API.BaseURL = ""

	_, err := do.Invoke[*chapterverse.Engine](newContainer(c))
	assert.Error(t, err)
}

func TestDeckResult(t *testing.T) {
	r := deckResult(chapterverse.Deck{
		Books:  []chapterverse.Book{{ID: "1"}},
		Source: chapterverse.SourceLocal,
		Scores: []int{2},
	})
	assert.Equal(t, "local", r.Source)
	assert.Equal(t, []int{2}, r.Scores)
	assert.Empty(t, r.Error)

	failed := deckResult(chapterverse.Deck{
		Books:  []chapterverse.Book{},
		Source: chapterverse.SourceRemoteFailed,
		Err:    errors.New("connection refused"),
	})
	assert.Equal(t, "remote-failed", failed.Source)
	assert.Equal(t, "connection refused", failed.Error)
}
