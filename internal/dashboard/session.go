// Package dashboard composes the patient list, consultation workspace and
// chat panel into per-tab sessions that share a single patient selection.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/consultation"
	"clinical-dashboard/internal/messaging"
	"clinical-dashboard/internal/notify"
	"clinical-dashboard/internal/patient"
	"clinical-dashboard/internal/platform/metrics"
)

var ErrSessionNotFound = errors.New("session not found")

// Deps are shared by every session a Manager creates.
type Deps struct {
	Directory    *patient.Directory
	Generator    consultation.Generator
	Responder    messaging.Responder
	Clock        clockwork.Clock
	Notices      notify.Sink // receives every session's notices, may be nil
	NoticeBuffer int
	IdleTTL      time.Duration // zero disables expiry
	Logger       zerolog.Logger
}

type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Patients  *patient.List
	Workspace *consultation.Workspace
	Chat      *messaging.Panel
	Notices   *notify.Recorder

	selection *patient.Selection
	cancel    context.CancelFunc
}

// View is the shell's own state: who is selected and which list entry is lit.
type View struct {
	SessionID       uuid.UUID        `json:"session_id"`
	CreatedAt       time.Time        `json:"created_at"`
	Selected        *patient.Patient `json:"selected"`
	ActivePatientID *int             `json:"active_patient_id"`
}

func NewSession(deps Deps) *Session {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With().Str("session_id", id.String()).Logger()

	rec := notify.NewRecorder(deps.NoticeBuffer)
	sink := notify.Sink(rec)
	if deps.Notices != nil {
		sink = notify.Fanout{rec, deps.Notices}
	}
	sink = notify.Tag(id.String(), sink)

	sel := &patient.Selection{}
	return &Session{
		ID:        id,
		CreatedAt: deps.Clock.Now(),
		Patients:  patient.NewList(deps.Directory, sel),
		Workspace: consultation.NewWorkspace(ctx, deps.Generator, sel, sink, deps.Clock, logger),
		Chat:      messaging.NewPanel(ctx, deps.Responder, sel, deps.Clock, logger),
		Notices:   rec,
		selection: sel,
		cancel:    cancel,
	}
}

func (s *Session) View() View {
	v := View{SessionID: s.ID, CreatedAt: s.CreatedAt}
	if p, ok := s.selection.Current(); ok {
		v.Selected = &p
	}
	if id, ok := s.Patients.Active(); ok {
		v.ActivePatientID = &id
	}
	return v
}

// Close abandons pending generations and replies and waits for them to
// unwind. Requests still holding the session get ErrClosed from then on.
func (s *Session) Close() {
	s.cancel()
	s.Workspace.Close()
	s.Chat.Close()
}

// reapInterval bounds how long an idle session outlives its TTL.
const reapInterval = time.Minute

type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Manager{deps: deps, sessions: make(map[uuid.UUID]*entry)}
}

func (m *Manager) Create() *Session {
	s := NewSession(m.deps)
	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s, lastSeen: m.deps.Clock.Now()}
	m.mu.Unlock()
	metrics.Sessions.Inc()
	m.deps.Logger.Info().Str("session_id", s.ID.String()).Msg("session opened")
	return s
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = m.deps.Clock.Now()
	return e.session, nil
}

func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.session.Close()
	metrics.Sessions.Dec()
	m.deps.Logger.Info().Str("session_id", id.String()).Msg("session closed")
	return nil
}

// CloseAll tears down every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[uuid.UUID]*entry)
	m.mu.Unlock()
	for _, e := range all {
		e.session.Close()
		metrics.Sessions.Dec()
	}
}

// Reap closes sessions unused for at least IdleTTL and returns how many it
// closed. A zero IdleTTL keeps sessions forever.
func (m *Manager) Reap() int {
	ttl := m.deps.IdleTTL
	if ttl <= 0 {
		return 0
	}
	now := m.deps.Clock.Now()

	var idle []*Session
	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) >= ttl {
			idle = append(idle, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		metrics.Sessions.Dec()
		m.deps.Logger.Info().Str("session_id", s.ID.String()).Dur("idle_ttl", ttl).Msg("session expired")
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.deps.IdleTTL <= 0 {
		return
	}
	interval := reapInterval
	if m.deps.IdleTTL < interval {
		interval = m.deps.IdleTTL
	}
	ticker := m.deps.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Reap()
		}
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Directory() *patient.Directory {
	return m.deps.Directory
}
