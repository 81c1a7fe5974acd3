package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinical-dashboard/internal/consultation"
	"clinical-dashboard/internal/messaging"
	"clinical-dashboard/internal/patient"
	"clinical-dashboard/internal/report"
)

// Exporter renders and shares generated documents.
type Exporter interface {
	Text(doc consultation.Document, p patient.Patient) ([]byte, error)
	PDF(doc consultation.Document, p patient.Patient) ([]byte, error)
	Share(ctx context.Context, doc consultation.Document, p patient.Patient) error
}

type Handler struct {
	mgr       *Manager
	exporter  Exporter
	workspace *consultation.Handler
	chat      *messaging.Handler
}

// NewHandler wires the session endpoints. stt may be nil.
func NewHandler(mgr *Manager, exporter Exporter, stt consultation.Transcriber) *Handler {
	h := &Handler{mgr: mgr, exporter: exporter}
	h.workspace = consultation.NewHandler(func(r *http.Request) (*consultation.Workspace, error) {
		s, err := h.lookup(r)
		if err != nil {
			return nil, err
		}
		return s.Workspace, nil
	}, stt)
	h.chat = messaging.NewHandler(func(r *http.Request) (*messaging.Panel, error) {
		s, err := h.lookup(r)
		if err != nil {
			return nil, err
		}
		return s.Chat, nil
	})
	return h
}

func (h *Handler) lookup(r *http.Request) (*Session, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return h.mgr.Get(id)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.lookup(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.mgr.Create()
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": s.ID.String(),
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err == nil {
		err = h.mgr.Close(id)
	}
	if err != nil {
		http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp := map[string]any{"patients": s.Patients.Search(r.URL.Query().Get("q"))}
	if id, ok := s.Patients.Active(); ok {
		resp["active_patient_id"] = id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SelectPatient(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	pid, err := strconv.Atoi(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}
	if _, err := s.Patients.Select(pid); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.Notices.Drain()})
}

// document resolves the document a request names and the patient it was
// written for.
func (h *Handler) document(w http.ResponseWriter, r *http.Request) (consultation.Document, patient.Patient, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return consultation.Document{}, patient.Patient{}, false
	}
	kind, err := consultation.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return consultation.Document{}, patient.Patient{}, false
	}
	doc, _ := s.Workspace.Document(kind)
	if doc.Text == "" {
		http.Error(w, report.ErrNotReady.Error(), http.StatusConflict)
		return consultation.Document{}, patient.Patient{}, false
	}
	p, err := h.mgr.Directory().Get(doc.PatientID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return consultation.Document{}, patient.Patient{}, false
	}
	return doc, p, true
}

func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	doc, p, ok := h.document(w, r)
	if !ok {
		return
	}

	var (
		data        []byte
		err         error
		contentType string
		ext         string
	)
	switch r.URL.Query().Get("format") {
	case "", "pdf":
		data, err = h.exporter.PDF(doc, p)
		contentType, ext = "application/pdf", "pdf"
	case "txt":
		data, err = h.exporter.Text(doc, p)
		contentType, ext = "text/plain; charset=utf-8", "txt"
	default:
		http.Error(w, "format must be pdf or txt", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Export failed: "+err.Error(), exportStatus(err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(doc, p, ext)+`"`)
	w.Write(data)
}

func (h *Handler) ShareDocument(w http.ResponseWriter, r *http.Request) {
	doc, p, ok := h.document(w, r)
	if !ok {
		return
	}
	if err := h.exporter.Share(r.Context(), doc, p); err != nil {
		http.Error(w, "Share failed: "+err.Error(), exportStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, report.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, report.ErrShareDisabled):
		return http.StatusNotImplemented
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
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Get("/patients", h.SearchPatients)
		r.Post("/patients/{patientID}/select", h.SelectPatient)
		r.Get("/notices", h.DrainNotices)
		r.Get("/documents/{kind}/export", h.ExportDocument)
		r.Post("/documents/{kind}/share", h.ShareDocument)
		consultation.RegisterRoutes(r, h.workspace)
		messaging.RegisterRoutes(r, h.chat)
	})
}
