package messaging

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Resolver func(r *http.Request) (*Panel, error)

type Handler struct {
	resolve Resolver
}

func NewHandler(resolve Resolver) *Handler {
	return &Handler{resolve: resolve}
}

type TextRequest struct {
	Text string `json:"text"`
}

func (h *Handler) panel(w http.ResponseWriter, r *http.Request) (*Panel, bool) {
	p, err := h.resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return "", false
	}
	return req.Text, true
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	m, err := p.Send(text)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, ErrNoPatient):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
		return
	case errors.Is(err, ErrClosed):
		http.Error(w, err.Error(), http.StatusGone)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

func (h *Handler) SetDraft(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	p.SetDraft(text)
	writeJSON(w, http.StatusOK, p.View())
}

func (h *Handler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	if err := p.ApplySuggestion(text); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/messages", h.View)
	r.Post("/messages", h.Send)
	r.Put("/messages/draft", h.SetDraft)
	r.Post("/messages/suggestions", h.ApplySuggestion)
}
