// Package tui is the terminal swipe surface: one card at a time, dragged with
// the arrow keys and released to decide.
package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/swipe"
)

const (
	cardWidth = 56
	// dragSteps is how many key presses it takes to move a card past the
	// commit threshold; one fewer lands exactly on it, which does not commit.
	dragSteps = 3
	// maxShift caps how far the card is drawn off center, in columns.
	maxShift = 12
)

// DefaultExitDuration is how long a committed card takes to leave.
const DefaultExitDuration = 250 * time.Millisecond

// Options configures the swipe model.
type Options struct {
	// Failed marks a deck that is empty because ranking failed, so the end
	// screen does not claim the reader is caught up.
	Failed bool
	Err    error
	// SavedCount feeds the header badge.
	SavedCount   func() int
	ExitDuration time.Duration
}

// exitDoneMsg fires when the exit animation of a committed card ends.
type exitDoneMsg struct{}

// Model renders a swipe.Session and feeds it key input.
type Model struct {
	session *swipe.Session
	opts    Options
	step    float64
	width   int
	height  int

	liked    int
	passed   int
	quitting bool
	lastErr  error
}

// New creates a model over session.
func New(session *swipe.Session, opts Options) Model {
	if opts.ExitDuration <= 0 {
		opts.ExitDuration = DefaultExitDuration
	}
	if opts.SavedCount == nil {
		opts.SavedCount = func() int { return 0 }
	}
	return Model{
		session: session,
		opts:    opts,
		step:    session.Threshold() / (dragSteps - 1),
	}
}

// Liked is how many cards were accepted in this run.
func (m Model) Liked() int { return m.liked }

// Passed is how many cards were rejected in this run.
func (m Model) Passed() int { return m.passed }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case exitDoneMsg:
		m.lastErr = m.session.CompleteExit()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "right", "l":
		return m.nudge(m.step)

	case "left", "h":
		return m.nudge(-m.step)

	case "esc":
		// Snap back without deciding.
		if m.session.State() == swipe.Dragging {
			m.lastErr = m.session.Drag(0, 0)
			if m.lastErr == nil {
				_, _, m.lastErr = m.session.Release()
			}
		}
		return m, nil

	case "enter", " ":
		d, committed, err := m.session.Release()
		if err != nil {
			m.lastErr = ignoreLocked(err)
			return m, nil
		}
		if !committed {
			return m, nil
		}
		return m.committed(d)

	case "a":
		return m.commit(swipe.Accept)

	case "x":
		return m.commit(swipe.Reject)
	}
	return m, nil
}

func (m Model) nudge(delta float64) (tea.Model, tea.Cmd) {
	dx, dy := m.session.Position()
	m.lastErr = ignoreLocked(m.session.Drag(dx+delta, dy))
	return m, nil
}

func (m Model) commit(d swipe.Decision) (tea.Model, tea.Cmd) {
	if err := m.session.Commit(d); err != nil {
		m.lastErr = ignoreLocked(err)
		return m, nil
	}
	return m.committed(d)
}

func (m Model) committed(d swipe.Decision) (tea.Model, tea.Cmd) {
	m.lastErr = nil
	if d == swipe.Accept {
		m.liked++
	} else {
		m.passed++
	}
	return m, tea.Tick(m.opts.ExitDuration, func(time.Time) tea.Msg {
		return exitDoneMsg{}
	})
}

// ignoreLocked drops input errors that only mean a key arrived while a card
// was leaving or after the deck ran out.
func ignoreLocked(err error) error {
	if errors.Is(err, swipe.ErrInputLocked) || errors.Is(err, swipe.ErrExhausted) || errors.Is(err, swipe.ErrNotDragging) {
		return nil
	}
	return err
}

// View renders the deck
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.session.State() == swipe.Exhausted {
		b.WriteString(m.renderEnd())
		b.WriteString("\n")
		b.WriteString(renderHints(true))
		return b.String()
	}

	book, _ := m.session.Current()
	b.WriteString(m.renderCard(book))
	b.WriteString("\n")
	if next, ok := m.session.Next(); ok {
		b.WriteString(mutedStyle.Render("Up next: " + next.Title))
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderHints(false))
	return b.String()
}

func (m Model) renderHeader() string {
	pos := m.session.Cursor() + 1
	if pos > m.session.Len() {
		pos = m.session.Len()
	}
	progress := mutedStyle.Render(fmt.Sprintf("%d / %d", pos, m.session.Len()))
	badge := badgeStyle.Render(fmt.Sprintf("💾 %d saved", m.opts.SavedCount()))
	return lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("chapterverse"), "  ", progress, "  ", badge)
}

func (m Model) renderCard(book books.Book) string {
	var body strings.Builder
	body.WriteString(titleStyle.Render(book.Title))
	body.WriteString("\n")
	body.WriteString(authorStyle.Render("by " + book.Author))
	if book.Pages > 0 {
		body.WriteString(mutedStyle.Render(fmt.Sprintf("  ·  %d pages", book.Pages)))
	}
	if len(book.Genres) > 0 {
		body.WriteString("\n")
		body.WriteString(mutedStyle.Render(strings.Join(book.Genres, " · ")))
	}
	if book.Description != "" {
		body.WriteString("\n\n")
		body.WriteString(truncate(book.Description, 240))
	}
	if len(book.Reasons) > 0 {
		body.WriteString("\n")
		for _, r := range book.Reasons {
			body.WriteString("\n")
			body.WriteString(reasonStyle.Render("✓ " + r))
		}
	}

	style := cardStyle
	stamp := ""
	dx, _ := m.session.Position()
	threshold := m.session.Threshold()
	if d, ok := m.session.Pending(); ok {
		dx = math.Copysign(threshold*2, float64(sign(d)))
	}
	switch {
	case dx > threshold:
		style = style.BorderForeground(colorAccept)
		stamp = stampAccept.Render("SAVE ♥")
	case dx < -threshold:
		style = style.BorderForeground(colorReject)
		stamp = stampReject.Render("✗ PASS")
	}

	card := style.MarginLeft(maxShift + shift(dx, threshold)).Render(body.String())
	if stamp == "" {
		return card
	}
	return lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().MarginLeft(maxShift+2).Render(stamp), card)
}

func (m Model) renderEnd() string {
	if m.opts.Failed {
		msg := "Couldn't load recommendations right now."
		if m.opts.Err != nil {
			msg += "\n" + mutedStyle.Render(m.opts.Err.Error())
		}
		return errorStyle.Render(msg)
	}
	return titleStyle.Render("You're all caught up!") + "\n" +
		mutedStyle.Render(fmt.Sprintf("Liked %d, passed %d. Check back later for more recommendations.", m.liked, m.passed))
}

func renderHints(done bool) string {
	if done {
		return hintKey.Render("q") + mutedStyle.Render(" quit")
	}
	parts := []string{
		hintKey.Render("←/→") + mutedStyle.Render(" drag"),
		hintKey.Render("enter") + mutedStyle.Render(" release"),
		hintKey.Render("a") + mutedStyle.Render(" save"),
		hintKey.Render("x") + mutedStyle.Render(" pass"),
		hintKey.Render("q") + mutedStyle.Render(" quit"),
	}
	return strings.Join(parts, "  ")
}

// shift maps a drag displacement to a column offset in [-maxShift, maxShift].
func shift(dx, threshold float64) int {
	if threshold <= 0 {
		return 0
	}
	cols := int(math.Round(dx / threshold * maxShift / 2))
	return max(-maxShift, min(maxShift, cols))
}

func sign(d swipe.Decision) int {
	if d == swipe.Accept {
		return 1
	}
	return -1
}

func truncate(s string, maxLen int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLen {
		return string(r)
	}
	return string(r[:maxLen]) + "..."
}
