package main

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
)

const version = "0.1.0"

// server is the chapterverse MCP server. It keeps one deck open across
// tool calls; decisions advance it without an exit animation.
type server struct {
	engine *chapterverse.Engine
	cursor *chapterverse.Cursor
	log    zerolog.Logger
}

func newServer(engine *chapterverse.Engine) *server {
	return &server{engine: engine, cursor: engine.NewCursor(), log: logging.Component("mcp")}
}

// mcpServer registers the tools.
func (s *server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "chapterverse", Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "deck_current",
		Description: "Show the book on top of the reader's recommendation deck, with the reasons it matched their preferences. Builds the deck on first use.",
	}, s.deckCurrent)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "book_like",
		Description: "Like the current book: it is added to the reader's saved books and the deck advances. Returns the next card.",
	}, s.bookLike)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "book_pass",
		Description: "Pass on the current book. The deck advances and the book is not saved. Returns the next card.",
	}, s.bookPass)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "deck_restart",
		Description: "Rebuild the deck from the reader's current preferences and start again from the top.",
	}, s.deckRestart)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "saved_list",
		Description: "List the reader's saved books in the order they were saved.",
	}, s.savedList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "saved_remove",
		Description: "Remove a book from the reader's saved books.",
	}, s.savedRemove)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "preferences_get",
		Description: "Get the reader's declared genres, vibes, themes, pace and length preferences.",
	}, s.preferencesGet)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "preferences_set",
		Description: "Replace the reader's preferences entirely. The deck is rebuilt on the next deck_current.",
	}, s.preferencesSet)

	return srv
}

// run serves over stdio until the client disconnects or ctx ends.
func (s *server) run(ctx context.Context) error {
	s.log.Info().Str("version", version).Msg("chapterverse-mcp starting")
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

// --- tool handlers ---

func (s *server) deckCurrent(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, chapterverse.Card, error) {
	card := s.cursor.Current(ctx)
	s.log.Info().Int("position", card.Position).Int("total", card.Total).Msg("deck_current")
	return nil, card, nil
}

func (s *server) bookLike(ctx context.Context, _ *mcp.CallToolRequest, in decisionInput) (*mcp.CallToolResult, decisionOutput, error) {
	return s.decide(ctx, chapterverse.Accept, in)
}

func (s *server) bookPass(ctx context.Context, _ *mcp.CallToolRequest, in decisionInput) (*mcp.CallToolResult, decisionOutput, error) {
	return s.decide(ctx, chapterverse.Reject, in)
}

func (s *server) decide(ctx context.Context, d chapterverse.Decision, in decisionInput) (*mcp.CallToolResult, decisionOutput, error) {
	expect := ""
	if in.BookID != nil {
		expect = *in.BookID
	}
	decided, next, err := s.cursor.Decide(ctx, d, expect)
	if errors.Is(err, chapterverse.ErrDeckExhausted) {
		return nil, decisionOutput{}, errors.New("the deck is exhausted; call deck_restart for a new one")
	}
	if err != nil {
		return nil, decisionOutput{}, err
	}

	s.log.Info().Str("book_id", decided.ID).Stringer("decision", d).Msg("decision")
	return nil, decisionOutput{
		Decided:  decided.WithTags(),
		Decision: d.String(),
		Next:     next,
	}, nil
}

func (s *server) deckRestart(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, chapterverse.Card, error) {
	card := s.cursor.Restart(ctx)
	s.log.Info().Str("source", card.Source).Int("total", card.Total).Msg("deck_restart")
	return nil, card, nil
}

func (s *server) savedList(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, savedOutput, error) {
	saved := s.engine.Saved()
	if saved == nil {
		saved = []books.Book{}
	}
	for i := range saved {
		saved[i] = saved[i].WithTags()
	}
	s.log.Info().Int("count", len(saved)).Msg("saved_list")
	return nil, savedOutput{Books: saved, Count: len(saved)}, nil
}

func (s *server) savedRemove(ctx context.Context, _ *mcp.CallToolRequest, in bookIDInput) (*mcp.CallToolResult, removeOutput, error) {
	if in.BookID == "" {
		return nil, removeOutput{}, errors.New("book_id parameter is required")
	}
	removed := s.engine.Unsave(in.BookID)
	if err := s.engine.FlushSaved(ctx); err != nil {
		s.log.Warn().Err(err).Msg("saved_remove: write not yet durable")
	}
	s.log.Info().Str("book_id", in.BookID).Bool("removed", removed).Msg("saved_remove")
	return nil, removeOutput{BookID: in.BookID, Removed: removed, Count: s.engine.SavedCount()}, nil
}

func (s *server) preferencesGet(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, preferencesOutput, error) {
	p, err := s.engine.Preferences(ctx)
	if err != nil {
		return nil, preferencesOutput{}, err
	}
	return nil, preferencesOutput{Onboarded: p != nil, Preferences: p}, nil
}

func (s *server) preferencesSet(ctx context.Context, _ *mcp.CallToolRequest, in preferencesSetInput) (*mcp.CallToolResult, preferencesOutput, error) {
	p := books.Preferences{
		Genres: in.Genres,
		Vibes:  in.Vibes,
		Themes: in.Themes,
	}
	if in.Pace != nil {
		p.Pace = books.ParsePace(*in.Pace)
	}
	if in.Length != nil {
		p.Length = books.ParseLength(*in.Length)
	}

	stored, err := s.engine.SavePreferences(ctx, p)
	if err != nil {
		return nil, preferencesOutput{}, err
	}

	// The open deck was ranked against the old profile.
	s.cursor.Invalidate()

	s.log.Info().Strs("genres", stored.Genres).Msg("preferences_set")
	return nil, preferencesOutput{Onboarded: true, Preferences: &stored}, nil
}
