package patient

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"patients": h.dir.Search(r.URL.Query().Get("q")),
	})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/patients", h.Search)
}
