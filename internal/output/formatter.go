package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/matthewjhunter/chapterverse/internal/books"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// DeckResult is a ranked deck as shown by the deck command.
type DeckResult struct {
	Source string       `json:"source"`
	Books  []books.Book `json:"books"`
	Scores []int        `json:"scores,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SaveResult reports a save or unsave.
type SaveResult struct {
	Action string     `json:"action"`
	Book   books.Book `json:"book"`
	// Changed is false when the collection already matched the request.
	Changed bool `json:"changed"`
	Count   int  `json:"saved_count"`
}

// SessionSummary is printed when a swipe session ends.
type SessionSummary struct {
	Liked     int `json:"liked"`
	Passed    int `json:"passed"`
	Remaining int `json:"remaining"`
	Saved     int `json:"saved_count"`
}

// OutputDeck outputs a ranked deck
func (f *Formatter) OutputDeck(deck *DeckResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(deck)
	case FormatText:
		for i, b := range deck.Books {
			fmt.Fprintf(f.out, "rank=%d\tid=%s\tscore=%s\ttitle=%s\tauthor=%s\treasons=%s\n",
				i+1, b.ID, scoreAt(deck.Scores, i), b.Title, b.Author, strings.Join(b.Reasons, "; "))
		}
		if deck.Error != "" {
			fmt.Fprintf(f.out, "source=%s\terror=%s\n", deck.Source, deck.Error)
		}
		return nil
	case FormatHuman:
		if deck.Error != "" {
			fmt.Fprintf(f.out, "Couldn't reach the recommendation service: %s\n", deck.Error)
			return nil
		}
		if len(deck.Books) == 0 {
			fmt.Fprintln(f.out, "You're all caught up! Check back later for more recommendations.")
			return nil
		}
		fmt.Fprintf(f.out, "Your deck (%d books, %s ranking):\n\n", len(deck.Books), deck.Source)
		for i, b := range deck.Books {
			score := ""
			if s := scoreAt(deck.Scores, i); s != "" {
				score = " [" + s + "]"
			}
			fmt.Fprintf(f.out, "%2d. %s by %s%s\n", i+1, b.Title, b.Author, score)
			for _, r := range b.Reasons {
				fmt.Fprintf(f.out, "      ✓ %s\n", r)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputBookList outputs the saved collection
func (f *Formatter) OutputBookList(list []books.Book) error {
	switch f.format {
	case FormatJSON:
		if list == nil {
			list = []books.Book{}
		}
		return json.NewEncoder(f.out).Encode(list)
	case FormatText:
		for _, b := range list {
			fmt.Fprintf(f.out, "id=%s\ttitle=%s\tauthor=%s\tpages=%d\tgenres=%s\n",
				b.ID, b.Title, b.Author, b.Pages, strings.Join(b.Genres, ","))
		}
		return nil
	case FormatHuman:
		if len(list) == 0 {
			fmt.Fprintln(f.out, "No saved books yet. Swipe right on a book to save it.")
			return nil
		}
		fmt.Fprintf(f.out, "Saved books (%d):\n\n", len(list))
		for _, b := range list {
			fmt.Fprintf(f.out, "ID: %s\n", b.ID)
			fmt.Fprintf(f.out, "Title: %s\n", b.Title)
			fmt.Fprintf(f.out, "Author: %s\n", b.Author)
			if len(b.Genres) > 0 {
				fmt.Fprintf(f.out, "Genres: %s\n", strings.Join(b.Genres, ", "))
			}
			if b.Description != "" {
				fmt.Fprintf(f.out, "\n%s\n", truncate(b.Description, 200))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputPreferences outputs the reader's profile; nil means onboarding has
// not run.
func (f *Formatter) OutputPreferences(p *books.Preferences) error {
	switch f.format {
	case FormatJSON:
		if p == nil {
			_, err := fmt.Fprintln(f.out, "null")
			return err
		}
		return json.NewEncoder(f.out).Encode(p)
	case FormatText:
		if p == nil {
			return nil
		}
		fmt.Fprintf(f.out, "genres=%s\n", strings.Join(p.Genres, ","))
		fmt.Fprintf(f.out, "vibes=%s\n", strings.Join(p.Vibes, ","))
		fmt.Fprintf(f.out, "themes=%s\n", strings.Join(p.Themes, ","))
		fmt.Fprintf(f.out, "pace=%s\n", p.Pace)
		fmt.Fprintf(f.out, "length=%s\n", p.Length)
		return nil
	case FormatHuman:
		if p == nil {
			fmt.Fprintln(f.out, "No preferences yet. Run `chapterverse onboard` to tell us what you like.")
			return nil
		}
		fmt.Fprintln(f.out, "Your reading preferences:")
		fmt.Fprintf(f.out, "  Genres: %s\n", orNone(p.Genres))
		fmt.Fprintf(f.out, "  Vibes:  %s\n", orNone(p.Vibes))
		fmt.Fprintf(f.out, "  Themes: %s\n", orNone(p.Themes))
		if p.Pace != "" {
			fmt.Fprintf(f.out, "  Pace:   %s\n", p.Pace)
		}
		if p.Length != "" {
			fmt.Fprintf(f.out, "  Length: %s\n", p.Length)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSaveResult outputs the outcome of save/unsave
func (f *Formatter) OutputSaveResult(r *SaveResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(r)
	case FormatText:
		fmt.Fprintf(f.out, "action=%s\tid=%s\tchanged=%t\tsaved_count=%d\n", r.Action, r.Book.ID, r.Changed, r.Count)
		return nil
	case FormatHuman:
		switch {
		case r.Action == "save" && r.Changed:
			fmt.Fprintf(f.out, "💾 Saved %q (%d saved)\n", r.Book.Title, r.Count)
		case r.Action == "save":
			fmt.Fprintf(f.out, "%q is already saved\n", r.Book.Title)
		case r.Changed:
			fmt.Fprintf(f.out, "Removed %s from saved books (%d left)\n", r.Book.ID, r.Count)
		default:
			fmt.Fprintf(f.out, "%s was not saved\n", r.Book.ID)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSessionSummary outputs the result of a swipe session
func (f *Formatter) OutputSessionSummary(s *SessionSummary) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(s)
	case FormatText:
		fmt.Fprintf(f.out, "liked=%d\tpassed=%d\tremaining=%d\tsaved_count=%d\n", s.Liked, s.Passed, s.Remaining, s.Saved)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Liked %d, passed %d", s.Liked, s.Passed)
		if s.Remaining > 0 {
			fmt.Fprintf(f.out, ", %d left in the deck", s.Remaining)
		}
		fmt.Fprintf(f.out, ". You have %d saved books.\n", s.Saved)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputUserID outputs the installation's user id
func (f *Formatter) OutputUserID(id string) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]string{"user_id": id})
	case FormatText:
		fmt.Fprintf(f.out, "user_id=%s\n", id)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "You are %s\n", id)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

func scoreAt(scores []int, i int) string {
	if i >= len(scores) {
		return ""
	}
	return fmt.Sprintf("%d", scores[i])
}

func orNone(tags []string) string {
	if len(tags) == 0 {
		return "(none)"
	}
	return strings.Join(tags, ", ")
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
