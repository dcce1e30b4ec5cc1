// Package books defines the recommendable item and the user's declared
// reading preferences.
package books

import "slices"

// Book is a recommendable item. Books are treated as immutable once obtained
// from a catalog or the remote ranking service; ID is the identity used for
// equality and deduplication everywhere.
type Book struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Author      string   `json:"author" yaml:"author"`
	CoverURL    string   `json:"coverUrl" yaml:"cover_url"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Genres      []string `json:"genres" yaml:"genres"`
	Vibes       []string `json:"vibes" yaml:"vibes"`
	Themes      []string `json:"themes" yaml:"themes"`
	Pages       int      `json:"pages,omitempty" yaml:"pages,omitempty"`
	Reasons     []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// HasGenre reports whether the book is tagged with genre g.
func (b Book) HasGenre(g string) bool { return slices.Contains(b.Genres, g) }

// HasVibe reports whether the book is tagged with vibe v.
func (b Book) HasVibe(v string) bool { return slices.Contains(b.Vibes, v) }

// HasTheme reports whether the book is tagged with theme t.
func (b Book) HasTheme(t string) bool { return slices.Contains(b.Themes, t) }

// WithReasons returns a copy of b carrying the given match reasons.
func (b Book) WithReasons(reasons []string) Book {
	b.Reasons = slices.Clone(reasons)
	return b
}

// WithTags returns a copy of b whose tag lists are non-nil, for encoders
// that must emit arrays rather than null.
func (b Book) WithTags() Book {
	if b.Genres == nil {
		b.Genres = []string{}
	}
	if b.Vibes == nil {
		b.Vibes = []string{}
	}
	if b.Themes == nil {
		b.Themes = []string{}
	}
	return b
}

// IDs returns the identifiers of bs in order.
func IDs(bs []Book) []string {
	ids := make([]string, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}

// Dedupe drops books whose ID was already seen, keeping the first copy and
// the original order. Books with an empty ID are dropped.
func Dedupe(bs []Book) []Book {
	seen := make(map[string]struct{}, len(bs))
	out := make([]Book, 0, len(bs))
	for _, b := range bs {
		if b.ID == "" {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
