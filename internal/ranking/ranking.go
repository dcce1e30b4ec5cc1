// Package ranking orders a candidate set of books against a preference
// profile. Everything here is pure: no I/O, no shared state.
package ranking

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/matthewjhunter/chapterverse/internal/books"
)

// Default page-count thresholds for the length bonus.
const (
	DefaultShortPageLimit = 300
	DefaultEpicPageMin    = 450
)

// Score weights.
const (
	genreWeight  = 2
	vibeWeight   = 1
	themeWeight  = 1
	lengthWeight = 1
)

// Scorer computes preference scores. The zero value uses the default
// thresholds.
type Scorer struct {
	// ShortPageLimit: books with fewer pages get the "short" bonus.
	ShortPageLimit int
	// EpicPageMin: books with at least this many pages get the "epic" bonus.
	EpicPageMin int
}

// Scored pairs a book with its preference score.
type Scored struct {
	Book  books.Book
	Score int
}

func (s Scorer) shortLimit() int {
	if s.ShortPageLimit > 0 {
		return s.ShortPageLimit
	}
	return DefaultShortPageLimit
}

func (s Scorer) epicMin() int {
	if s.EpicPageMin > 0 {
		return s.EpicPageMin
	}
	return DefaultEpicPageMin
}

// Score returns the non-negative preference score of b under p.
func (s Scorer) Score(b books.Book, p *books.Preferences) int {
	if p.IsEmpty() {
		return 0
	}
	score := 0
	for _, g := range p.Genres {
		if b.HasGenre(g) {
			score += genreWeight
		}
	}
	for _, v := range p.Vibes {
		if b.HasVibe(v) {
			score += vibeWeight
		}
	}
	for _, t := range p.Themes {
		if b.HasTheme(t) {
			score += themeWeight
		}
	}
	if s.lengthMatch(b, p) {
		score += lengthWeight
	}
	return score
}

// lengthMatch reports whether b earns the length bonus. Books without a page
// count never do.
func (s Scorer) lengthMatch(b books.Book, p *books.Preferences) bool {
	if b.Pages <= 0 {
		return false
	}
	switch p.Length {
	case books.LengthShort:
		return b.Pages < s.shortLimit()
	case books.LengthEpic:
		return b.Pages >= s.epicMin()
	}
	return false
}

// RankScored orders candidates by descending score. Equal scores are ordered
// by a random perturbation drawn from rng so ties do not always present in
// the same relative order. The result is a permutation of candidates; an
// empty input gives an empty, non-nil result.
func (s Scorer) RankScored(candidates []books.Book, p *books.Preferences, rng *rand.Rand) []Scored {
	if rng == nil {
		rng = NewRand()
	}
	out := make([]Scored, len(candidates))
	for i, b := range candidates {
		out[i] = Scored{Book: b, Score: s.Score(b, p)}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	slices.SortStableFunc(out, func(a, b Scored) int { return b.Score - a.Score })
	return out
}

// Rank is RankScored without the scores.
func (s Scorer) Rank(candidates []books.Book, p *books.Preferences, rng *rand.Rand) []books.Book {
	scored := s.RankScored(candidates, p, rng)
	out := make([]books.Book, len(scored))
	for i, sc := range scored {
		out[i] = sc.Book
	}
	return out
}

// Score uses the default Scorer.
func Score(b books.Book, p *books.Preferences) int { return Scorer{}.Score(b, p) }

// Rank uses the default Scorer.
func Rank(candidates []books.Book, p *books.Preferences, rng *rand.Rand) []books.Book {
	return Scorer{}.Rank(candidates, p, rng)
}

// NewRand returns a time-seeded generator for tie-breaking.
func NewRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>17|1))
}

// NewSeededRand returns a deterministic generator, for tests and replays.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
