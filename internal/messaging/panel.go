package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/patient"
	"clinical-dashboard/internal/platform/metrics"
)

// Responder answers on the patient's behalf.
type Responder interface {
	PatientReply(ctx context.Context, p patient.Patient, question string) (string, error)
}

// Panel is the chat with the selected patient. The transcript is
// append-only and belongs to the session, not to a patient.
type Panel struct {
	ctx       context.Context
	responder Responder
	sel       patient.Selected
	clock     clockwork.Clock
	logger    zerolog.Logger
	wg        sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	lastID     int
	transcript []Message
	draft      string
}

func NewPanel(ctx context.Context, responder Responder, sel patient.Selected, clock clockwork.Clock, logger zerolog.Logger) *Panel {
	seed := seedTranscript()
	return &Panel{
		ctx:        ctx,
		responder:  responder,
		sel:        sel,
		clock:      clock,
		logger:     logger,
		lastID:     seed[len(seed)-1].ID,
		transcript: seed,
	}
}

// append must be called with mu held.
func (p *Panel) append(kind Kind, content string) Message {
	now := p.clock.Now()
	p.lastID++
	m := Message{
		ID:        p.lastID,
		Kind:      kind,
		Content:   content,
		Timestamp: now.Format(TimeFormat),
		SentAt:    &now,
	}
	p.transcript = append(p.transcript, m)
	metrics.Messages.WithLabelValues(string(kind)).Inc()
	return m
}

// Send posts a clinician message and schedules the patient's reply.
func (p *Panel) Send(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		metrics.ValidationFailures.WithLabelValues("send_message").Inc()
		return Message{}, ErrEmptyMessage
	}
	pt, ok := p.sel.Current()
	if !ok {
		return Message{}, ErrNoPatient
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Message{}, ErrClosed
	}
	m := p.append(KindDoctor, text)
	p.draft = ""
	p.wg.Add(1)
	p.mu.Unlock()

	go p.reply(pt, text)
	return m, nil
}

func (p *Panel) reply(pt patient.Patient, question string) {
	defer p.wg.Done()

	answer, err := p.responder.PatientReply(p.ctx, pt, question)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Error().Err(err).Int("patient_id", pt.ID).Msg("patient reply failed")
		}
		return
	}

	p.mu.Lock()
	m := p.append(KindPatient, answer)
	p.mu.Unlock()
	p.logger.Debug().Int("message_id", m.ID).Int("patient_id", pt.ID).Msg("patient replied")
}

// ApplySuggestion copies a suggestion into the draft. Nothing is sent.
func (p *Panel) ApplySuggestion(text string) error {
	for _, s := range Suggestions {
		if s == text {
			p.SetDraft(s)
			return nil
		}
	}
	return ErrUnknownSuggestion
}

func (p *Panel) SetDraft(text string) {
	p.mu.Lock()
	p.draft = text
	p.mu.Unlock()
}

func (p *Panel) Draft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

func (p *Panel) Transcript() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.transcript))
	copy(out, p.transcript)
	return out
}

func (p *Panel) View() View {
	v := View{Placeholder: true, Suggestions: append([]string(nil), Suggestions...)}
	if pt, ok := p.sel.Current(); ok {
		v.PatientName = pt.Name
		v.Initials = pt.Initials()
		v.Placeholder = false
	}
	v.Messages = p.Transcript()
	v.Draft = p.Draft()
	return v
}

// Wait blocks until every scheduled reply has been delivered or abandoned.
func (p *Panel) Wait() {
	p.wg.Wait()
}

// Close refuses further messages and waits for scheduled replies.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
