package chapterverse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matthewjhunter/chapterverse/internal/swipe"
)

var (
	// ErrDeckExhausted is returned by Decide when no card is left.
	ErrDeckExhausted = errors.New("the deck is exhausted")
	// ErrStaleCard is returned by Decide when the caller named a card that is
	// no longer on top.
	ErrStaleCard = errors.New("not the current card")
)

// Card describes the top of a deck for request/response surfaces.
type Card struct {
	Book       *Book  `json:"book,omitempty"`
	Position   int    `json:"position"` // 1-based; 0 once exhausted
	Total      int    `json:"total"`
	Remaining  int    `json:"remaining"`
	Source     string `json:"source"`
	Exhausted  bool   `json:"exhausted"`
	Error      string `json:"error,omitempty"`
	SavedCount int    `json:"saved_count"`
}

// Cursor holds one swipe session across stateless calls, for surfaces
// without a drag gesture or exit animation. The deck is built on first use.
// It is safe for concurrent use.
type Cursor struct {
	engine *Engine

	mu      sync.Mutex
	deck    Deck
	session *swipe.Session
}

// NewCursor creates a cursor over e's decks.
func (e *Engine) NewCursor() *Cursor {
	return &Cursor{engine: e}
}

// Current returns the card on top, building a deck if none is open.
func (c *Cursor) Current(ctx context.Context) Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(ctx)
	return c.cardLocked()
}

// Decide commits d for the top card and advances. When expectID is not
// empty and names a different card, nothing is decided and ErrStaleCard is
// returned. It returns the decided book and the new top card.
func (c *Cursor) Decide(ctx context.Context, d Decision, expectID string) (Book, Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLocked(ctx)
	current, ok := c.session.Current()
	if !ok {
		return Book{}, c.cardLocked(), ErrDeckExhausted
	}
	if expectID != "" && expectID != current.ID {
		return Book{}, c.cardLocked(), fmt.Errorf("%w: %s (current is %s)", ErrStaleCard, expectID, current.ID)
	}
	if err := c.session.Swipe(d); err != nil {
		return Book{}, c.cardLocked(), err
	}
	return current, c.cardLocked(), nil
}

// Restart builds a fresh deck from the current preferences.
func (c *Cursor) Restart(ctx context.Context) Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.ensureLocked(ctx)
	return c.cardLocked()
}

// Invalidate drops the open deck; the next call builds a new one. Call it
// after the preferences change.
func (c *Cursor) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Cursor) ensureLocked(ctx context.Context) {
	if c.session != nil {
		return
	}
	c.deck = c.engine.BuildDeck(ctx)
	c.session = c.engine.NewSession(ctx, c.deck, SessionOptions{})
}

func (c *Cursor) cardLocked() Card {
	out := Card{
		Total:      c.session.Len(),
		Remaining:  c.session.Remaining(),
		Source:     string(c.deck.Source),
		Exhausted:  c.session.State() == swipe.Exhausted,
		SavedCount: c.engine.SavedCount(),
	}
	if c.deck.Err != nil {
		out.Error = c.deck.Err.Error()
	}
	if b, ok := c.session.Current(); ok {
		b = b.WithTags()
		out.Book = &b
		out.Position = c.session.Cursor() + 1
	}
	return out
}
