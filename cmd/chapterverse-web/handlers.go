package main

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/books"
	"github.com/matthewjhunter/chapterverse/internal/logging"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

type handlers struct {
	engine *chapterverse.Engine
	cursor *chapterverse.Cursor
}

type decisionRequest struct {
	BookID   string `json:"book_id" validate:"max=256"`
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
}

type decisionResponse struct {
	Decided  books.Book        `json:"decided"`
	Decision string            `json:"decision"`
	Next     chapterverse.Card `json:"next"`
}

type preferencesRequest struct {
	Genres []string `json:"genres"`
	Vibes  []string `json:"vibes"`
	Themes []string `json:"themes"`
	Pace   string   `json:"pace"`
	Length string   `json:"length"`
}

type preferencesResponse struct {
	Onboarded   bool               `json:"onboarded"`
	Preferences *books.Preferences `json:"preferences,omitempty"`
}

type savedResponse struct {
	Books []books.Book `json:"books"`
	Count int          `json:"count"`
}

type saveResponse struct {
	BookID  string `json:"book_id"`
	Changed bool   `json:"changed"`
	Count   int    `json:"saved_count"`
}

func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"user_id": h.engine.UserID(r.Context())})
}

func (h *handlers) handleDeck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cursor.Current(r.Context()))
}

func (h *handlers) handleDeckRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cursor.Restart(r.Context()))
}

func (h *handlers) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d := chapterverse.Reject
	if req.Decision == "accept" {
		d = chapterverse.Accept
	}

	decided, next, err := h.cursor.Decide(r.Context(), d, req.BookID)
	switch {
	case errors.Is(err, chapterverse.ErrDeckExhausted):
		writeJSON(w, http.StatusConflict, errorBody{Error: "deck exhausted", Card: &next})
		return
	case errors.Is(err, chapterverse.ErrStaleCard):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Card: &next})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Decided:  decided.WithTags(),
		Decision: d.String(),
		Next:     next,
	})
}

func (h *handlers) handleSavedList(w http.ResponseWriter, r *http.Request) {
	saved := h.engine.Saved()
	if saved == nil {
		saved = []books.Book{}
	}
	for i := range saved {
		saved[i] = saved[i].WithTags()
	}
	writeJSON(w, http.StatusOK, savedResponse{Books: saved, Count: len(saved)})
}

func (h *handlers) handleSave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("bookID")
	_, added, err := h.engine.Save(r.Context(), id)
	if errors.Is(err, chapterverse.ErrUnknownBook) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.flush(r)
	writeJSON(w, http.StatusOK, saveResponse{BookID: id, Changed: added, Count: h.engine.SavedCount()})
}

func (h *handlers) handleUnsave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("bookID")
	removed := h.engine.Unsave(id)
	h.flush(r)
	writeJSON(w, http.StatusOK, saveResponse{BookID: id, Changed: removed, Count: h.engine.SavedCount()})
}

func (h *handlers) handlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Preferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Onboarded: p != nil, Preferences: p})
}

func (h *handlers) handlePreferencesPut(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stored, err := h.engine.SavePreferences(r.Context(), books.Preferences{
		Genres: req.Genres,
		Vibes:  req.Vibes,
		Themes: req.Themes,
		Pace:   books.ParsePace(req.Pace),
		Length: books.ParseLength(req.Length),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cursor.Invalidate()
	writeJSON(w, http.StatusOK, preferencesResponse{Onboarded: true, Preferences: &stored})
}

// flush waits for the collection write so a 200 means the change is on disk.
// In-flight signals are not waited for.
func (h *handlers) flush(r *http.Request) {
	if err := h.engine.FlushSaved(r.Context()); err != nil {
		log := logging.Component("web")
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("collection write not yet durable")
	}
}

// --- helpers ---

type errorBody struct {
	Error string             `json:"error"`
	Card  *chapterverse.Card `json:"card,omitempty"`
}

// decodeBody reads and validates a JSON request body. On failure it writes a
// 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logging.Component("web")
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
