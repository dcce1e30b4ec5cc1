package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

func testCatalog() []books.Book {
	return []books.Book{
		{ID: "f1", Title: "Fantasy One", Author: "A", Genres: []string{"Fantasy"}},
		{ID: "m1", Title: "Mystery One", Author: "B", Genres: []string{"Mystery"}},
		{ID: "f2", Title: "Fantasy Two", Author: "C", Genres: []string{"Fantasy"}, Vibes: []string{"Cozy"}},
	}
}

func newTestServer(t *testing.T) (*server, *chapterverse.Engine) {
	t.Helper()
	engine, err := chapterverse.NewEngine(chapterverse.EngineConfig{
		Store:   storage.NewMemStore(),
		Catalog: testCatalog(),
		Rand:    rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return newServer(engine), engine
}

func ptr[T any](v T) *T { return &v }

func TestDeckCurrentRanksByPreferences(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.preferencesSet(ctx, nil, preferencesSetInput{Genres: []string{"Fantasy"}, Vibes: []string{"Cozy"}})
	require.NoError(t, err)

	_, card, err := srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)
	require.NotNil(t, card.Book)
	assert.Equal(t, "f2", card.Book.ID)
	assert.Equal(t, 1, card.Position)
	assert.Equal(t, 3, card.Total)
	assert.Equal(t, "local", card.Source)
	assert.False(t, card.Exhausted)
	assert.NotEmpty(t, card.Book.Reasons)
}

func TestLikeAndPassWalkTheDeck(t *testing.T) {
	srv, engine := newTestServer(t)
	ctx := context.Background()

	_, first, err := srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)

	_, liked, err := srv.bookLike(ctx, nil, decisionInput{BookID: ptr(first.Book.ID)})
	require.NoError(t, err)
	assert.Equal(t, first.Book.ID, liked.Decided.ID)
	assert.Equal(t, "accept", liked.Decision)
	assert.Equal(t, 2, liked.Next.Position)
	assert.Equal(t, 1, liked.Next.SavedCount)
	assert.True(t, engine.IsSaved(first.Book.ID))

	_, passed, err := srv.bookPass(ctx, nil, decisionInput{})
	require.NoError(t, err)
	assert.Equal(t, "reject", passed.Decision)
	assert.False(t, engine.IsSaved(passed.Decided.ID))

	_, last, err := srv.bookPass(ctx, nil, decisionInput{})
	require.NoError(t, err)
	assert.True(t, last.Next.Exhausted)
	assert.Nil(t, last.Next.Book)
	assert.Zero(t, last.Next.Remaining)

	_, _, err = srv.bookLike(ctx, nil, decisionInput{})
	assert.ErrorContains(t, err, "exhausted")

	_, restarted, err := srv.deckRestart(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, restarted.Position)
	assert.Equal(t, 3, restarted.Remaining)
}

func TestDecisionOnStaleCardIsRefused(t *testing.T) {
	srv, engine := newTestServer(t)
	ctx := context.Background()

	_, card, err := srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)

	_, _, err = srv.bookLike(ctx, nil, decisionInput{BookID: ptr("not-" + card.Book.ID)})
	require.Error(t, err)
	assert.Zero(t, engine.SavedCount())

	_, again, err := srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, card.Book.ID, again.Book.ID, "a refused decision must not advance the deck")
}

func TestSavedListAndRemove(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.bookLike(ctx, nil, decisionInput{})
	require.NoError(t, err)

	_, list, err := srv.savedList(ctx, nil, emptyInput{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	id := list.Books[0].ID

	_, removed, err := srv.savedRemove(ctx, nil, bookIDInput{BookID: id})
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	assert.Zero(t, removed.Count)

	_, removed, err = srv.savedRemove(ctx, nil, bookIDInput{BookID: id})
	require.NoError(t, err)
	assert.False(t, removed.Removed)

	_, _, err = srv.savedRemove(ctx, nil, bookIDInput{})
	assert.Error(t, err)
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, got, err := srv.preferencesGet(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.False(t, got.Onboarded)
	assert.Nil(t, got.Preferences)

	_, set, err := srv.preferencesSet(ctx, nil, preferencesSetInput{
		Genres: []string{" Fantasy ", "Fantasy"},
		Pace:   ptr("Fast-paced"),
		Length: ptr("Epic (> 450 pages)"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fantasy"}, set.Preferences.Genres)
	assert.Equal(t, books.PaceFast, set.Preferences.Pace)
	assert.Equal(t, books.LengthEpic, set.Preferences.Length)

	_, got, err = srv.preferencesGet(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.True(t, got.Onboarded)
	assert.Equal(t, set.Preferences, got.Preferences)
}

func TestPreferencesSetRebuildsDeck(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.preferencesSet(ctx, nil, preferencesSetInput{Genres: []string{"Mystery"}})
	require.NoError(t, err)
	_, card, err := srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, "m1", card.Book.ID)

	_, _, err = srv.preferencesSet(ctx, nil, preferencesSetInput{Genres: []string{"Fantasy"}, Vibes: []string{"Cozy"}})
	require.NoError(t, err)
	_, card, err = srv.deckCurrent(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, "f2", card.Book.ID)
}

func TestToolsOverTransport(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.mcpServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"deck_current", "book_like", "book_pass", "deck_restart",
		"saved_list", "saved_remove", "preferences_get", "preferences_set",
	}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "deck_current", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var card chapterverse.Card
	require.NoError(t, json.Unmarshal([]byte(text.Text), &card))
	require.NotNil(t, card.Book)
	assert.Equal(t, 3, card.Total)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "saved_remove", Arguments: map[string]any{"book_id": ""}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSavedRemoveDoesNotWaitForSignals(t *testing.T) {
	release := make(chan struct{})
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.Close)

	engine, err := chapterverse.NewEngine(chapterverse.EngineConfig{
		Store:          storage.NewMemStore(),
		Catalog:        testCatalog(),
		SignalsEnabled: true,
		SignalEndpoint: sink.URL,
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	t.Cleanup(func() { close(release) })
	srv := newServer(engine)
	ctx := context.Background()

	_, liked, err := srv.bookLike(ctx, nil, decisionInput{})
	require.NoError(t, err)

	done := make(chan removeOutput, 1)
	go func() {
		_, out, err := srv.savedRemove(ctx, nil, bookIDInput{BookID: liked.Decided.ID})
		assert.NoError(t, err)
		done <- out
	}()
	select {
	case out := <-done:
		assert.True(t, out.Removed)
	case <-time.After(2 * time.Second):
		t.Fatal("saved_remove waited on the signal endpoint")
	}
}
