// Package swipe turns a drag gesture over a deck of books into exactly one
// accept or reject decision per book.
//
// A Session walks the deck one card at a time:
//
//	Idle ──Drag──▶ Dragging ──Release (past threshold)──▶ Committing
//	 ▲  ◀──Release (short)──┘                                  │
//	 │                                                  CompleteExit
//	 └──────────────── Advanced ◀──────────────────────────────┘
//	                      └──(cursor reached end)──▶ Exhausted
//
// Entering Committing is the commit: an Accept adds the book to the
// collection, and every decision emits a signal. Downstream work never
// blocks or rolls back the cursor.
package swipe

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/signals"
)

// DefaultThresholdFraction is the share of the viewport width a drag must
// exceed to commit.
const DefaultThresholdFraction = 0.25

// DefaultViewportWidth is used when the surface does not report one.
const DefaultViewportWidth = 100

var (
	ErrExhausted       = errors.New("swipe: deck exhausted")
	ErrInputLocked     = errors.New("swipe: card is leaving, input locked")
	ErrNotDragging     = errors.New("swipe: no drag in progress")
	ErrNotCommitting   = errors.New("swipe: no exit in progress")
	ErrBadDisplacement = errors.New("swipe: displacement is not a finite number")
	errUnknownOutcome  = errors.New("swipe: unknown decision")
)

// State of a Session.
type State int

const (
	Idle State = iota
	Dragging
	Committing
	Advanced
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case Advanced:
		return "advanced"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Decision is the outcome recorded for one card.
type Decision int

const (
	Accept Decision = iota + 1
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "none"
}

// Signal is the engagement kind reported for the decision.
func (d Decision) Signal() signals.Kind {
	if d == Accept {
		return signals.Like
	}
	return signals.Click
}

// Collector receives accepted books. Add must be idempotent and must not
// block on I/O.
type Collector interface {
	Add(b books.Book) bool
}

// Signaler reports decisions. Emit must not block on I/O.
type Signaler interface {
	Emit(userID, bookID string, kind signals.Kind)
}

// Transition describes one state change, delivered to Options.Observer.
type Transition struct {
	From, To State
	// Cursor after the transition.
	Cursor int
	// BookID of the card the transition applies to; empty once exhausted.
	BookID   string
	Decision Decision
}

// Options wires a Session to its collaborators.
type Options struct {
	UserID    string
	Collector Collector
	Signaler  Signaler

	ViewportWidth     float64
	ThresholdFraction float64

	// Observer, if set, is called for every transition in order. It runs
	// outside the session lock but must not call back into the session.
	Observer func(Transition)
}

// Session is one traversal of a deck. It is safe for concurrent use.
type Session struct {
	opts      Options
	threshold float64

	mu      sync.Mutex
	deck    []books.Book
	cursor  int
	state   State
	dx, dy  float64
	pending Decision

	// fx serializes side effects in commit order. Always acquired while
	// holding mu, released after mu.
	fx sync.Mutex
}

// New starts a session over deck. An empty deck starts Exhausted.
func New(deck []books.Book, opts Options) *Session {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ThresholdFraction <= 0 || opts.ThresholdFraction >= 1 {
		opts.ThresholdFraction = DefaultThresholdFraction
	}
	s := &Session{
		opts:      opts,
		threshold: opts.ViewportWidth * opts.ThresholdFraction,
		deck:      slices.Clone(deck),
	}
	if len(s.deck) == 0 {
		s.state = Exhausted
	}
	return s
}

// Drag moves the card to (dx, dy) relative to its resting position.
func (s *Session) Drag(dx, dy float64) error {
	if !finite(dx) || !finite(dy) {
		return fmt.Errorf("%w: (%v, %v)", ErrBadDisplacement, dx, dy)
	}
	s.mu.Lock()
	if err := s.inputErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	var trans []Transition
	if s.state == Idle {
		trans = append(trans, s.setLocked(Dragging, 0))
	}
	s.dx, s.dy = dx, dy
	s.dispatch(trans, nil)
	return nil
}

// Release ends the drag. Past the threshold it commits (rightward accepts,
// leftward rejects) and reports the decision; otherwise the card snaps back
// to Idle and committed is false.
func (s *Session) Release() (d Decision, committed bool, err error) {
	s.mu.Lock()
	switch s.state {
	case Exhausted:
		s.mu.Unlock()
		return 0, false, ErrExhausted
	case Committing, Advanced:
		s.mu.Unlock()
		return 0, false, ErrInputLocked
	case Idle:
		s.mu.Unlock()
		return 0, false, ErrNotDragging
	}

	if math.Abs(s.dx) <= s.threshold {
		s.dx, s.dy = 0, 0
		s.dispatch([]Transition{s.setLocked(Idle, 0)}, nil)
		return 0, false, nil
	}

	d = Reject
	if s.dx > 0 {
		d = Accept
	}
	s.commitLocked(d)
	return d, true, nil
}

// Commit records d for the current card without a gesture, as explicit
// accept and reject controls do.
func (s *Session) Commit(d Decision) error {
	if d != Accept && d != Reject {
		return errUnknownOutcome
	}
	s.mu.Lock()
	if err := s.inputErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.commitLocked(d)
	return nil
}

// CompleteExit is called when the exit animation of the committed card
// finishes. The cursor moves to the next card.
func (s *Session) CompleteExit() error {
	s.mu.Lock()
	if s.state != Committing {
		s.mu.Unlock()
		return ErrNotCommitting
	}
	s.cursor++
	s.pending = 0
	s.dx, s.dy = 0, 0

	trans := []Transition{s.setLocked(Advanced, 0)}
	if s.cursor >= len(s.deck) {
		trans = append(trans, s.setLocked(Exhausted, 0))
	} else {
		trans = append(trans, s.setLocked(Idle, 0))
	}
	s.dispatch(trans, nil)
	return nil
}

// Swipe commits d and advances immediately, for surfaces without an exit
// animation.
func (s *Session) Swipe(d Decision) error {
	if err := s.Commit(d); err != nil {
		return err
	}
	return s.CompleteExit()
}

// commitLocked enters Committing and runs the side effects after releasing
// mu. Caller holds mu.
func (s *Session) commitLocked(d Decision) {
	book := s.deck[s.cursor]
	s.pending = d
	trans := []Transition{s.setLocked(Committing, d)}

	opts := s.opts
	s.dispatch(trans, func() {
		if d == Accept && opts.Collector != nil {
			opts.Collector.Add(book)
		}
		if opts.Signaler != nil {
			opts.Signaler.Emit(opts.UserID, book.ID, d.Signal())
		}
	})
}

// dispatch releases mu and then delivers transitions and effects while
// holding fx, so observers and collaborators see commits in order. Caller
// holds mu.
func (s *Session) dispatch(trans []Transition, effects func()) {
	if len(trans) == 0 && effects == nil {
		s.mu.Unlock()
		return
	}
	s.fx.Lock()
	s.mu.Unlock()
	defer s.fx.Unlock()

	if s.opts.Observer != nil {
		for _, t := range trans {
			s.opts.Observer(t)
		}
	}
	if effects != nil {
		effects()
	}
}

func (s *Session) setLocked(to State, d Decision) Transition {
	t := Transition{From: s.state, To: to, Cursor: s.cursor, Decision: d}
	if s.cursor < len(s.deck) {
		t.BookID = s.deck[s.cursor].ID
	}
	s.state = to
	return t
}

func (s *Session) inputErrLocked() error {
	switch s.state {
	case Exhausted:
		return ErrExhausted
	case Committing, Advanced:
		return ErrInputLocked
	}
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor is the index of the current card; len(deck) once exhausted.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns the card on top of the deck. While Committing that is the
// card leaving.
func (s *Session) Current() (books.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.deck) {
		return books.Book{}, false
	}
	return s.deck[s.cursor], true
}

// Next returns the card after the current one, shown underneath it.
func (s *Session) Next() (books.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor+1 >= len(s.deck) {
		return books.Book{}, false
	}
	return s.deck[s.cursor+1], true
}

// Position is the card's displacement from rest.
func (s *Session) Position() (dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dx, s.dy
}

// Pending is the decision being committed, if any.
func (s *Session) Pending() (Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.pending != 0
}

// Remaining counts cards not yet committed, including the current one
// unless it is leaving.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.deck) - s.cursor
	if s.state == Committing {
		n--
	}
	return max(n, 0)
}

// Len is the deck size.
func (s *Session) Len() int {
	return len(s.deck)
}

// Threshold is the horizontal displacement a release must exceed to commit.
func (s *Session) Threshold() float64 {
	return s.threshold
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
