package consultation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/notify"
	"clinical-dashboard/internal/patient"
	"clinical-dashboard/internal/platform/metrics"
)

// Generator produces document text. Implementations may take as long as
// they like; the workspace waits for them off the caller's goroutine.
type Generator interface {
	SOAPNote(ctx context.Context, symptoms string) (string, error)
	Diagnosis(ctx context.Context, symptoms string) (string, error)
	DischargeSummary(ctx context.Context, p patient.Patient) (string, error)
}

type notice struct {
	title       string
	description string
}

var (
	readyNotices = map[Kind]notice{
		KindSOAP:      {"SOAP Notes Generated", "AI-powered clinical notes are ready for review"},
		KindDiagnosis: {"Diagnosis Generated", "AI analysis complete with recommendations"},
		KindDischarge: {"Discharge Summary Generated", "Complete summary ready for patient records"},
	}
	missingSymptoms = map[Kind]notice{
		KindSOAP:      {"Please enter symptoms", "Add patient symptoms to generate SOAP notes"},
		KindDiagnosis: {"Please enter symptoms", "Add patient symptoms to generate diagnosis suggestions"},
	}
)

// Workspace is the consultation screen of one session. All three document
// kinds share a single in-flight flag, so only one generation runs at a time.
type Workspace struct {
	ctx     context.Context
	gen     Generator
	sel     patient.Selected
	notices notify.Sink
	clock   clockwork.Clock
	logger  zerolog.Logger
	wg      sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	symptoms   string
	generating bool
	docs       map[Kind]Document
}

// NewWorkspace binds pending generations to ctx: cancelling it abandons them.
func NewWorkspace(ctx context.Context, gen Generator, sel patient.Selected, notices notify.Sink, clock clockwork.Clock, logger zerolog.Logger) *Workspace {
	docs := make(map[Kind]Document, len(Kinds))
	for _, k := range Kinds {
		docs[k] = Document{Kind: k, State: StateIdle}
	}
	return &Workspace{
		ctx:     ctx,
		gen:     gen,
		sel:     sel,
		notices: notices,
		clock:   clock,
		logger:  logger,
		docs:    docs,
	}
}

func (w *Workspace) GenerateSOAP(symptoms string) error {
	return w.Generate(KindSOAP, symptoms)
}

func (w *Workspace) GenerateDiagnosis(symptoms string) error {
	return w.Generate(KindDiagnosis, symptoms)
}

func (w *Workspace) GenerateDischargeSummary() error {
	return w.Generate(KindDischarge, "")
}

// Generate starts producing a document of the given kind and returns once
// the request is accepted. The discharge summary ignores symptoms.
func (w *Workspace) Generate(kind Kind, symptoms string) error {
	if _, ok := readyNotices[kind]; !ok {
		return ErrUnknownKind
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.generating {
		w.mu.Unlock()
		return ErrBusy
	}
	p, ok := w.sel.Current()
	if !ok {
		w.mu.Unlock()
		return ErrNoPatient
	}
	if kind != KindDischarge && strings.TrimSpace(symptoms) == "" {
		w.mu.Unlock()
		metrics.ValidationFailures.WithLabelValues(string(kind)).Inc()
		n := missingSymptoms[kind]
		w.notify(n, notify.SeverityDestructive)
		return ErrSymptomsRequired
	}

	if kind != KindDischarge {
		w.symptoms = symptoms
	}
	prev := w.docs[kind]
	doc := prev
	doc.State = StateGenerating
	w.docs[kind] = doc
	w.generating = true
	w.wg.Add(1)
	w.mu.Unlock()

	w.logger.Info().Str("kind", string(kind)).Int("patient_id", p.ID).Msg("generation started")
	go w.run(kind, prev, p, symptoms)
	return nil
}

func (w *Workspace) run(kind Kind, prev Document, p patient.Patient, symptoms string) {
	defer w.wg.Done()
	started := w.clock.Now()

	var (
		text string
		err  error
	)
	switch kind {
	case KindSOAP:
		text, err = w.gen.SOAPNote(w.ctx, symptoms)
	case KindDiagnosis:
		text, err = w.gen.Diagnosis(w.ctx, symptoms)
	case KindDischarge:
		text, err = w.gen.DischargeSummary(w.ctx, p)
	}

	w.mu.Lock()
	w.generating = false
	if err != nil {
		w.docs[kind] = prev
		w.mu.Unlock()

		if errors.Is(err, context.Canceled) {
			metrics.Generations.WithLabelValues(string(kind), "cancelled").Inc()
			w.logger.Debug().Str("kind", string(kind)).Msg("generation abandoned")
			return
		}
		metrics.Generations.WithLabelValues(string(kind), "error").Inc()
		w.logger.Error().Err(err).Str("kind", string(kind)).Int("patient_id", p.ID).Msg("generation failed")
		w.notify(notice{"Generation failed", kind.Title() + " could not be generated. Please try again."}, notify.SeverityDestructive)
		return
	}

	now := w.clock.Now()
	w.docs[kind] = Document{
		Kind:        kind,
		State:       StateReady,
		Text:        text,
		PatientID:   p.ID,
		GeneratedAt: &now,
	}
	w.mu.Unlock()

	metrics.Generations.WithLabelValues(string(kind), "ok").Inc()
	metrics.GenerationSeconds.WithLabelValues(string(kind)).Observe(now.Sub(started).Seconds())
	w.logger.Info().Str("kind", string(kind)).Int("patient_id", p.ID).Msg("generation finished")
	w.notify(readyNotices[kind], notify.SeverityDefault)
}

func (w *Workspace) notify(n notice, sev notify.Severity) {
	if w.notices == nil {
		return
	}
	w.notices.Notify(w.ctx, notify.Notice{
		Title:       n.title,
		Description: n.description,
		Severity:    sev,
		At:          w.clock.Now(),
	})
}

// SetSymptoms updates the symptom field without generating anything.
func (w *Workspace) SetSymptoms(text string) {
	w.mu.Lock()
	w.symptoms = text
	w.mu.Unlock()
}

func (w *Workspace) Symptoms() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.symptoms
}

func (w *Workspace) Document(kind Kind) (Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[kind]
	if !ok {
		return Document{}, ErrUnknownKind
	}
	return doc, nil
}

func (w *Workspace) Generating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generating
}

// View snapshots the workspace. Without a selected patient the screen shows
// its placeholder, but documents are still reported.
func (w *Workspace) View() View {
	v := View{Placeholder: true}
	if p, ok := w.sel.Current(); ok {
		v.Patient = &p
		v.Initials = p.Initials()
		v.Placeholder = false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	v.Symptoms = w.symptoms
	v.Generating = w.generating
	v.Documents = make([]Document, 0, len(Kinds))
	for _, k := range Kinds {
		v.Documents = append(v.Documents, w.docs[k])
	}
	return v
}

// Wait blocks until every accepted generation has finished.
func (w *Workspace) Wait() {
	w.wg.Wait()
}

// Close refuses further generations and waits for accepted ones. Cancel the
// workspace context first to abandon them instead.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}
