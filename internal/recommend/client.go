// Package recommend is the client for the remote ranking service. The
// service returns an ordered, already-explained deck for a preference
// profile.
package recommend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
)

// DefaultLimit matches the service's own default page of results.
const DefaultLimit = 15

// Request is the body posted to /api/v1/recommend.
type Request struct {
	UserID           string   `json:"user_id"`
	Genres           []string `json:"genres"`
	Vibes            []string `json:"vibes"`
	Themes           []string `json:"themes"`
	PacePreference   string   `json:"pacePreference,omitempty"`
	LengthPreference string   `json:"lengthPreference,omitempty"`
	Limit            int      `json:"limit"`
}

// Result is one ranked book as returned by the service.
type Result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description *string  `json:"description"`
	Genres      []string `json:"genres"`
	Pages       *int     `json:"pages"`
	CoverURL    *string  `json:"cover_url"`
	Score       float64  `json:"score"`
	Reasons     []string `json:"reasons"`
}

// Client talks to the ranking service.
type Client struct {
	baseURL string
	limit   int
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]Result]
	policy  *bluemonday.Policy
}

// Options configures a Client. Zero values use defaults.
type Options struct {
	Timeout          time.Duration
	Limit            int
	FailureThreshold uint32
	HTTPClient       *http.Client
}

func NewClient(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	log := logging.Component("recommend")
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		http:    hc,
		policy:  bluemonday.StrictPolicy(),
		breaker: gobreaker.NewCircuitBreaker[[]Result](gobreaker.Settings{
			Name:        "recommend",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info().Str("from", from.String()).Str("to", to.String()).Msg("recommend circuit breaker state changed")
			},
		}),
	}
}

// Recommend asks the service for a ranked deck. The returned books keep the
// service's order and carry its match reasons.
func (c *Client) Recommend(ctx context.Context, userID string, p *books.Preferences) ([]books.Book, error) {
	req := Request{UserID: userID, Limit: c.limit, Genres: []string{}, Vibes: []string{}, Themes: []string{}}
	if p != nil {
		req.Genres = append(req.Genres, p.Genres...)
		req.Vibes = append(req.Vibes, p.Vibes...)
		req.Themes = append(req.Themes, p.Themes...)
		req.PacePreference = string(p.Pace)
		req.LengthPreference = string(p.Length)
	}

	results, err := c.breaker.Execute(func() ([]Result, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return c.toBooks(results), nil
}

func (c *Client) post(ctx context.Context, body Request) ([]Result, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal recommend request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/recommend", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build recommend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recommend service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode recommend response: %w", err)
	}
	return results, nil
}

func (c *Client) toBooks(results []Result) []books.Book {
	out := make([]books.Book, 0, len(results))
	for _, r := range results {
		b := books.Book{
			ID:      r.ID,
			Title:   r.Title,
			Author:  r.Author,
			Genres:  r.Genres,
			Reasons: r.Reasons,
		}
		if r.Description != nil {
			b.Description = strings.TrimSpace(c.policy.Sanitize(*r.Description))
		}
		if r.Pages != nil {
			b.Pages = *r.Pages
		}
		if r.CoverURL != nil {
			b.CoverURL = *r.CoverURL
		}
		out = append(out, b)
	}
	return books.Dedupe(out)
}
