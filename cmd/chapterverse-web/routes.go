package main

import (
	"net/http"

	"github.com/matthewjhunter/chapterverse"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing.
func newRouter(engine *chapterverse.Engine) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{engine: engine, cursor: engine.NewCursor()}

	mux.HandleFunc("GET /api/v1/me", h.handleMe)

	mux.HandleFunc("GET /api/v1/deck", h.handleDeck)
	mux.HandleFunc("POST /api/v1/deck/restart", h.handleDeckRestart)
	mux.HandleFunc("POST /api/v1/deck/decisions", h.handleDecision)

	mux.HandleFunc("GET /api/v1/saved", h.handleSavedList)
	mux.HandleFunc("PUT /api/v1/saved/{bookID}", h.handleSave)
	mux.HandleFunc("DELETE /api/v1/saved/{bookID}", h.handleUnsave)

	mux.HandleFunc("GET /api/v1/preferences", h.handlePreferencesGet)
	mux.HandleFunc("PUT /api/v1/preferences", h.handlePreferencesPut)

	return mux
}
