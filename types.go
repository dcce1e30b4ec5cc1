package chapterverse

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/storage"
	"github.com/matthewjhunter/chapterverse/internal/swipe"
)

// EngineConfig configures the chapterverse engine.
type EngineConfig struct {
	Backend string // sqlite, badger or memory
	DBPath  string

	APIBaseURL      string
	APITimeout      time.Duration
	RemoteRanking   bool // ask the ranking service instead of scoring locally
	FallbackToLocal bool // score locally when the ranking service fails
	Limit           int  // deck size requested from the ranking service

	SignalsEnabled         bool
	SignalEndpoint         string // default <APIBaseURL>/api/v1/signals/event
	SignalRatePerSecond    float64
	SignalBurst            int
	SignalFailureThreshold uint32

	ViewportWidth     float64
	ThresholdFraction float64

	ShortPageLimit int
	EpicPageMin    int

	CatalogPath string // YAML catalog; empty uses the built-in sample

	// Store, when set, is used instead of opening Backend/DBPath. The
	// engine does not close it.
	Store storage.KV
	// Catalog, when set, replaces CatalogPath and the built-in sample.
	Catalog []Book
	// Rand drives tie-breaking in local ranking. Default time-seeded.
	Rand       *rand.Rand
	HTTPClient *http.Client
}

// ConfigFromFile maps the on-disk config onto an EngineConfig.
func ConfigFromFile(cfg *storage.Config) EngineConfig {
	return EngineConfig{
		Backend:                cfg.Database.Backend,
		DBPath:                 cfg.Database.Path,
		APIBaseURL:             cfg.API.BaseURL,
		APITimeout:             cfg.API.Timeout,
		RemoteRanking:          cfg.API.RemoteRanking,
		FallbackToLocal:        cfg.API.FallbackToLocal,
		Limit:                  cfg.API.Limit,
		SignalsEnabled:         cfg.Signals.Enabled,
		SignalEndpoint:         cfg.SignalEndpoint(),
		SignalRatePerSecond:    cfg.Signals.RatePerSecond,
		SignalBurst:            cfg.Signals.Burst,
		SignalFailureThreshold: cfg.Signals.FailureThreshold,
		ViewportWidth:          cfg.Swipe.ViewportWidth,
		ThresholdFraction:      cfg.Swipe.ThresholdFraction,
		ShortPageLimit:         cfg.Ranking.ShortPageLimit,
		EpicPageMin:            cfg.Ranking.EpicPageMin,
		CatalogPath:            cfg.Catalog.Path,
	}
}

// Book is a recommendable item.
type Book = books.Book

// Preferences is the reader's declared taste profile.
type Preferences = books.Preferences

// Decision is the outcome of one swipe.
type Decision = swipe.Decision

const (
	Accept = swipe.Accept
	Reject = swipe.Reject
)

// DeckSource records where a deck's order came from.
type DeckSource string

const (
	SourceLocal  DeckSource = "local"
	SourceRemote DeckSource = "remote"
	// SourceRemoteFailed marks an empty deck caused by a ranking-service
	// failure, as opposed to a genuinely exhausted catalog.
	SourceRemoteFailed DeckSource = "remote-failed"
)

// Deck is an ordered sequence of books for one swipe session.
type Deck struct {
	Books  []Book     `json:"books"`
	Source DeckSource `json:"source"`
	// Scores aligns with Books for locally ranked decks.
	Scores []int `json:"scores,omitempty"`
	Err    error `json:"-"`
}

// Empty reports whether there is nothing to swipe.
func (d Deck) Empty() bool { return len(d.Books) == 0 }

// SessionOptions customizes a swipe session.
type SessionOptions struct {
	// Observer receives every state transition; it must not call back into
	// the session.
	Observer func(swipe.Transition)
	// ViewportWidth overrides the configured width, for surfaces that know
	// their real size.
	ViewportWidth float64
}
