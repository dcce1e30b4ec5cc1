package chapterverse

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/collection"
	"github.com/matthewjhunter/chapterverse/internal/identity"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/profile"
	"github.com/matthewjhunter/chapterverse/internal/ranking"
	"github.com/matthewjhunter/chapterverse/internal/recommend"
	"github.com/matthewjhunter/chapterverse/internal/signals"
	"github.com/matthewjhunter/chapterverse/internal/storage"
	"github.com/matthewjhunter/chapterverse/internal/swipe"
)

// ErrUnknownBook is returned when a book ID is in neither the catalog nor the
// saved collection.
var ErrUnknownBook = errors.New("unknown book")

// Engine is the public API for chapterverse: preference onboarding, deck
// building, swipe sessions and the saved collection.
type Engine struct {
	kv       storage.KV
	ownsKV   bool
	profiles *profile.Store
	ids      *identity.Provider
	saved    *collection.Store
	emitter  *signals.Emitter
	remote   *recommend.Client
	scorer   ranking.Scorer
	catalog  []books.Book
	config   EngineConfig
	log      zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	closeOnce sync.Once
	closeErr  error
}

// NewEngine opens storage, loads the catalog and the saved collection, and
// prepares the network clients. Nothing touches the network until a deck is
// built or a decision is committed.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Backend == "" {
		cfg.Backend = storage.BackendSQLite
	}
	if cfg.Limit <= 0 {
		cfg.Limit = recommend.DefaultLimit
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = swipe.DefaultViewportWidth
	}
	if cfg.ThresholdFraction <= 0 {
		cfg.ThresholdFraction = swipe.DefaultThresholdFraction
	}
	if cfg.RemoteRanking && cfg.APIBaseURL == "" {
		return nil, errors.New("remote ranking requires an API base URL")
	}

	catalog := cfg.Catalog
	if catalog == nil {
		if cfg.CatalogPath != "" {
			loaded, err := books.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return nil, fmt.Errorf("load catalog: %w", err)
			}
			catalog = loaded
		} else {
			catalog = books.Sample()
		}
	}

	kv := cfg.Store
	ownsKV := false
	if kv == nil {
		fileCfg := storage.DefaultConfig()
		fileCfg.Database.Backend = cfg.Backend
		fileCfg.Database.Path = cfg.DBPath
		opened, err := storage.Open(fileCfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		kv, ownsKV = opened, true
	}

	rng := cfg.Rand
	if rng == nil {
		rng = ranking.NewRand()
	}

	e := &Engine{
		kv:       kv,
		ownsKV:   ownsKV,
		profiles: profile.NewStore(kv),
		ids:      identity.NewProvider(kv),
		saved:    collection.New(context.Background(), kv, collection.Options{}),
		scorer:   ranking.Scorer{ShortPageLimit: cfg.ShortPageLimit, EpicPageMin: cfg.EpicPageMin},
		catalog:  books.Dedupe(catalog),
		config:   cfg,
		log:      logging.Component("engine"),
		rng:      rng,
	}

	if cfg.SignalsEnabled && (cfg.SignalEndpoint != "" || cfg.APIBaseURL != "") {
		endpoint := cfg.SignalEndpoint
		if endpoint == "" {
			endpoint = signals.DefaultEndpoint(cfg.APIBaseURL)
		}
		e.emitter = signals.New(signals.Config{
			Endpoint:         endpoint,
			Timeout:          cfg.APITimeout,
			RatePerSecond:    cfg.SignalRatePerSecond,
			Burst:            cfg.SignalBurst,
			FailureThreshold: cfg.SignalFailureThreshold,
			Client:           cfg.HTTPClient,
		})
	} else {
		e.emitter = signals.Nop()
	}

	if cfg.RemoteRanking {
		e.remote = recommend.NewClient(cfg.APIBaseURL, recommend.Options{
			Timeout:    cfg.APITimeout,
			Limit:      cfg.Limit,
			HTTPClient: cfg.HTTPClient,
		})
	}

	return e, nil
}

// UserID returns the installation's stable user id.
func (e *Engine) UserID(ctx context.Context) string {
	return e.ids.UserID(ctx)
}

// Preferences returns the saved profile, or nil if onboarding has not run.
func (e *Engine) Preferences(ctx context.Context) (*Preferences, error) {
	return e.profiles.Load(ctx)
}

// SavePreferences replaces the profile wholesale and returns the sanitized
// version that was stored.
func (e *Engine) SavePreferences(ctx context.Context, p Preferences) (Preferences, error) {
	return e.profiles.Save(ctx, p)
}

// ClearPreferences forgets the profile; subsequent decks are unranked.
func (e *Engine) ClearPreferences(ctx context.Context) error {
	return e.profiles.Clear(ctx)
}

// BuildDeck produces the deck for a new session. With remote ranking enabled
// the service's order and reasons are used verbatim; a failure yields an
// empty deck marked SourceRemoteFailed unless local fallback is enabled.
// Otherwise the catalog is scored against the saved profile.
func (e *Engine) BuildDeck(ctx context.Context) Deck {
	prefs, err := e.profiles.Load(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("preferences unavailable; building an unranked deck")
		prefs = nil
	}

	if e.remote != nil {
		ranked, err := e.remote.Recommend(ctx, e.UserID(ctx), prefs)
		if err == nil {
			return Deck{Books: ranked, Source: SourceRemote}
		}
		if !e.config.FallbackToLocal {
			e.log.Warn().Err(err).Msg("ranking service failed")
			return Deck{Books: []Book{}, Source: SourceRemoteFailed, Err: err}
		}
		e.log.Warn().Err(err).Msg("ranking service failed; falling back to local ranking")
	}

	return e.localDeck(prefs)
}

func (e *Engine) localDeck(prefs *Preferences) Deck {
	e.rngMu.Lock()
	scored := e.scorer.RankScored(e.catalog, prefs, e.rng)
	e.rngMu.Unlock()

	deck := Deck{
		Books:  make([]Book, len(scored)),
		Scores: make([]int, len(scored)),
		Source: SourceLocal,
	}
	for i, s := range scored {
		deck.Books[i] = s.Book
		deck.Scores[i] = s.Score
	}
	deck.Books = e.scorer.Explain(deck.Books, prefs)
	return deck
}

// NewSession starts a swipe session over deck. Accepted books go to the saved
// collection and every decision is reported as a signal.
func (e *Engine) NewSession(ctx context.Context, deck Deck, opts SessionOptions) *swipe.Session {
	width := opts.ViewportWidth
	if width <= 0 {
		width = e.config.ViewportWidth
	}
	return swipe.New(deck.Books, swipe.Options{
		UserID:            e.UserID(ctx),
		Collector:         e.saved,
		Signaler:          e.emitter,
		ViewportWidth:     width,
		ThresholdFraction: e.config.ThresholdFraction,
		Observer:          opts.Observer,
	})
}

// Saved lists the saved collection in the order books were added.
func (e *Engine) Saved() []Book {
	return e.saved.List()
}

// SavedCount is the number of saved books.
func (e *Engine) SavedCount() int {
	return e.saved.Len()
}

// IsSaved reports whether the book is in the saved collection.
func (e *Engine) IsSaved(id string) bool {
	return e.saved.Has(id)
}

// Save adds a catalog book to the collection outside a swipe and reports a
// save signal. It returns the book and whether it was newly added.
func (e *Engine) Save(ctx context.Context, id string) (Book, bool, error) {
	b, ok := e.FindBook(id)
	if !ok {
		return Book{}, false, fmt.Errorf("%w: %s", ErrUnknownBook, id)
	}
	added := e.saved.Add(b)
	e.emitter.Emit(e.UserID(ctx), b.ID, signals.Save)
	return b, added, nil
}

// Unsave removes a book from the collection. It reports whether it was
// present.
func (e *Engine) Unsave(id string) bool {
	return e.saved.Remove(id)
}

// FindBook looks a book up in the saved collection, then the catalog.
func (e *Engine) FindBook(id string) (Book, bool) {
	if b, ok := e.saved.Get(id); ok {
		return b, true
	}
	for _, b := range e.catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

// Catalog returns the local candidate set.
func (e *Engine) Catalog() []Book {
	out := make([]Book, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// FlushSaved waits for pending collection writes only. It never waits on
// the network.
func (e *Engine) FlushSaved(ctx context.Context) error {
	return e.saved.Flush(ctx)
}

// Flush waits for pending collection writes and in-flight signals.
func (e *Engine) Flush(ctx context.Context) error {
	err := e.saved.Flush(ctx)
	e.emitter.Wait()
	return err
}

// Close drains pending writes and signals and releases storage.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if err := e.saved.Close(); err != nil {
			e.log.Warn().Err(err).Msg("final collection write failed")
		}
		e.emitter.Wait()
		if e.ownsKV {
			e.closeErr = e.kv.Close()
		}
	})
	return e.closeErr
}

// Shutdown implements the DI container's shutdown hook.
func (e *Engine) Shutdown() error {
	return e.Close()
}
