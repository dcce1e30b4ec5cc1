package main

import (
	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/books"
)

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types are optional; value types are required.

type emptyInput struct{}

type decisionInput struct {
	BookID *string `json:"book_id,omitempty" jsonschema:"ID of the card you are deciding on, as returned by deck_current. If it is no longer the current card nothing is decided."`
}

type bookIDInput struct {
	BookID string `json:"book_id" jsonschema:"The book ID"`
}

type preferencesSetInput struct {
	Genres []string `json:"genres,omitempty" jsonschema:"Genres the reader enjoys, e.g. Fantasy, Romance, Mystery"`
	Vibes  []string `json:"vibes,omitempty"  jsonschema:"Vibes the reader enjoys, e.g. Cozy, Dark, Dreamy"`
	Themes []string `json:"themes,omitempty" jsonschema:"Themes the reader enjoys, e.g. Found family, Grief"`
	Pace   *string  `json:"pace,omitempty"   jsonschema:"Reading pace: slow-burn, fast-paced or variety"`
	Length *string  `json:"length,omitempty" jsonschema:"Book length: short (under 300 pages), medium, epic (over 450 pages) or any"`
}

// Output types. Tools return these as structured content.

type decisionOutput struct {
	Decided  books.Book        `json:"decided"`
	Decision string            `json:"decision"`
	Next     chapterverse.Card `json:"next"`
}

type savedOutput struct {
	Books []books.Book `json:"books"`
	Count int          `json:"count"`
}

type removeOutput struct {
	BookID  string `json:"book_id"`
	Removed bool   `json:"removed"`
	Count   int    `json:"count"`
}

type preferencesOutput struct {
	Onboarded   bool               `json:"onboarded"`
	Preferences *books.Preferences `json:"preferences,omitempty"`
}
