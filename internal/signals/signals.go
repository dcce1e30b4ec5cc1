// Package signals reports per-book engagement events to the ingestion
// endpoint. Delivery is best effort: every Emit returns immediately and a
// failed send is logged and forgotten.
package signals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/matthewjhunter/chapterverse/internal/logging"
)

// Kind identifies the engagement being reported.
type Kind string

const (
	Click Kind = "click"
	Like  Kind = "like"
	Save  Kind = "save"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Click, Like, Save:
		return true
	}
	return false
}

// Event is the JSON body posted for each signal.
type Event struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
	Signal Kind   `json:"signal"`
}

// Config controls delivery. Zero values pick the defaults noted per field.
type Config struct {
	Endpoint string
	// Timeout bounds a single POST. Default 5s.
	Timeout time.Duration
	// RatePerSecond caps sustained sends; excess signals are dropped. Zero
	// disables the limiter.
	RatePerSecond float64
	Burst         int
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing. Default 30s.
	OpenTimeout time.Duration
	Client      *http.Client
}

// DefaultEndpoint is the ingestion route under the API base URL.
func DefaultEndpoint(apiBaseURL string) string {
	return strings.TrimRight(apiBaseURL, "/") + "/api/v1/signals/event"
}

// Emitter sends signals in the background.
type Emitter struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	log      zerolog.Logger
	disabled bool

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

// New returns an emitter posting to cfg.Endpoint.
func New(cfg Config) *Emitter {
	log := logging.Component("signals")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	e := &Emitter{
		endpoint: cfg.Endpoint,
		client:   client,
		log:      log,
	}
	e.idle = sync.NewCond(&e.mu)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	e.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "signals",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("signal circuit breaker state changed")
		},
	})
	return e
}

// Nop returns an emitter that drops everything.
func Nop() *Emitter {
	e := &Emitter{disabled: true, log: logging.Component("signals")}
	e.idle = sync.NewCond(&e.mu)
	return e
}

// Emit schedules delivery of one signal and returns immediately. At most one
// delivery attempt is made.
func (e *Emitter) Emit(userID, bookID string, kind Kind) {
	if e.disabled {
		return
	}
	if userID == "" || bookID == "" || !kind.Valid() {
		e.log.Warn().Str("user_id", userID).Str("book_id", bookID).Str("signal", string(kind)).
			Msg("dropping malformed signal")
		return
	}
	if e.limiter != nil && !e.limiter.Allow() {
		e.log.Debug().Str("book_id", bookID).Str("signal", string(kind)).Msg("signal over rate budget, dropped")
		return
	}

	ev := Event{UserID: userID, BookID: bookID, Signal: kind}
	e.mu.Lock()
	e.inflight++
	e.mu.Unlock()
	go func() {
		defer e.done()
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Interface("panic", r).Str("book_id", ev.BookID).Msg("signal send panicked")
			}
		}()
		e.deliver(ev)
	}()
}

func (e *Emitter) deliver(ev Event) {
	_, err := e.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, e.post(ev)
	})
	switch {
	case err == nil:
		e.log.Debug().Str("book_id", ev.BookID).Str("signal", string(ev.Signal)).Msg("signal delivered")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		e.log.Debug().Str("book_id", ev.BookID).Msg("signal circuit open, dropped")
	default:
		e.log.Warn().Err(err).Str("book_id", ev.BookID).Str("signal", string(ev.Signal)).Msg("signal delivery failed")
	}
}

func (e *Emitter) post(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build signal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post signal: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("signal endpoint returned %s", resp.Status)
	}
	return nil
}

func (e *Emitter) done() {
	e.mu.Lock()
	e.inflight--
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
	e.mu.Unlock()
}

// Wait blocks until no send is in flight. Sends started while waiting are
// waited for too. Safe to call concurrently with Emit.
func (e *Emitter) Wait() {
	e.mu.Lock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	e.mu.Unlock()
}

// BreakerState reports the circuit breaker state ("closed", "open",
// "half-open").
func (e *Emitter) BreakerState() string {
	if e.breaker == nil {
		return "disabled"
	}
	return e.breaker.State().String()
}
