package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Resolver finds the workspace a request addresses.
type Resolver func(r *http.Request) (*Workspace, error)

// Transcriber turns dictated audio into text. fileName is the uploaded
// recording's name.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)
}

type Handler struct {
	resolve Resolver
	stt     Transcriber
}

// NewHandler builds the workspace endpoints. stt may be nil, which turns
// dictation off.
func NewHandler(resolve Resolver, stt Transcriber) *Handler {
	return &Handler{resolve: resolve, stt: stt}
}

type SymptomsRequest struct {
	Symptoms *string `json:"symptoms"`
}

func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*Workspace, bool) {
	ws, err := h.resolve(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return ws, true
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.View())
}

func (h *Handler) SetSymptoms(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req SymptomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symptoms == nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	ws.SetSymptoms(*req.Symptoms)
	writeJSON(w, http.StatusOK, ws.View())
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var req SymptomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	symptoms := ws.Symptoms()
	if req.Symptoms != nil {
		symptoms = *req.Symptoms
	}

	if err := ws.Generate(kind, symptoms); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusAccepted, ws.View())
}

func (h *Handler) Dictation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if h.stt == nil {
		http.Error(w, "Dictation is not configured", http.StatusNotImplemented)
		return
	}

	// Limit upload size (10MB is plenty for dictation)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error retrieving audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		http.Error(w, "Failed to read audio file", http.StatusInternalServerError)
		return
	}
	if buf.Len() == 0 {
		http.Error(w, "Audio file is empty", http.StatusBadRequest)
		return
	}

	text, err := h.stt.Transcribe(r.Context(), buf.Bytes(), header.Filename)
	if err != nil {
		http.Error(w, "Transcription failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		current := strings.TrimSpace(ws.Symptoms())
		if current != "" {
			text = current + "\n" + text
		}
		ws.SetSymptoms(text)
	}
	writeJSON(w, http.StatusOK, ws.View())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSymptomsRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrNoPatient):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/workspace", h.View)
	r.Put("/workspace/symptoms", h.SetSymptoms)
	r.Post("/workspace/dictation", h.Dictation)
	r.Post("/workspace/{kind}", h.Generate)
}
