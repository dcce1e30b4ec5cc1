package ranking

import (
	"fmt"
	"strings"

	"github.com/matthewjhunter/chapterverse/internal/books"
)

// Reasons explains why b matched p, strongest signal first. It returns nil
// when nothing matched.
func (s Scorer) Reasons(b books.Book, p *books.Preferences) []string {
	if p.IsEmpty() {
		return nil
	}
	var reasons []string

	var genres []string
	for _, g := range p.Genres {
		if b.HasGenre(g) {
			genres = append(genres, g)
		}
	}
	if len(genres) > 0 {
		reasons = append(reasons, fmt.Sprintf("Genre match: %s", strings.Join(genres, ", ")))
	}

	for _, v := range p.Vibes {
		if b.HasVibe(v) {
			reasons = append(reasons, "Vibe match")
			break
		}
	}
	for _, t := range p.Themes {
		if b.HasTheme(t) {
			reasons = append(reasons, "Theme match")
			break
		}
	}
	if s.lengthMatch(b, p) {
		reasons = append(reasons, "Fits your preferred book length")
	}
	return reasons
}

// Explain attaches match reasons to every book that does not already carry
// its own (remote results come with reasons).
func (s Scorer) Explain(deck []books.Book, p *books.Preferences) []books.Book {
	out := make([]books.Book, len(deck))
	for i, b := range deck {
		if len(b.Reasons) == 0 {
			if r := s.Reasons(b, p); len(r) > 0 {
				b = b.WithReasons(r)
			}
		}
		out[i] = b
	}
	return out
}
