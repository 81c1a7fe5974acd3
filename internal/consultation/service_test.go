package consultation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/agent"
	"clinical-dashboard/internal/notify"
	"clinical-dashboard/internal/patient"
)

type fixture struct {
	ws      *Workspace
	clock   clockwork.FakeClock
	sel     *patient.Selection
	notices *notify.Recorder
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, gen Generator) *fixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))
	if gen == nil {
		gen = agent.NewSimulated(fc, agent.DefaultDelays(), "")
	}
	ctx, cancel := context.WithCancel(context.Background())
	sel := &patient.Selection{}
	rec := notify.NewRecorder(50)
	f := &fixture{
		ws:      NewWorkspace(ctx, gen, sel, rec, fc, zerolog.Nop()),
		clock:   fc,
		sel:     sel,
		notices: rec,
		cancel:  cancel,
	}
	t.Cleanup(func() {
		cancel()
		f.ws.Wait()
	})
	return f
}

func (f *fixture) selectPatient(t *testing.T, id int) {
	t.Helper()
	p, err := patient.NewDirectory(patient.Seed()).Get(id)
	if err != nil {
		t.Fatalf("get patient %d: %v", id, err)
	}
	f.sel.Set(p)
}

// finish lets the pending generation's timer fire and waits for it.
func (f *fixture) finish(d time.Duration) {
	f.clock.BlockUntil(1)
	f.clock.Advance(d)
	f.ws.Wait()
}

func TestWorkspace_GenerateSOAP(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	if err := f.ws.GenerateSOAP("chest tightness after climbing stairs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, _ := f.ws.Document(KindSOAP)
	if doc.State != StateGenerating {
		t.Fatalf("expected generating, got %s", doc.State)
	}
	if !f.ws.Generating() {
		t.Fatal("expected shared flag to be set")
	}

	f.finish(2 * time.Second)

	doc, _ = f.ws.Document(KindSOAP)
	if doc.State != StateReady {
		t.Fatalf("expected ready, got %s", doc.State)
	}
	if !strings.Contains(doc.Text, "chest tightness after climbing stairs") {
		t.Errorf("expected symptoms verbatim in SOAP note")
	}
	if doc.PatientID != 1 || doc.GeneratedAt == nil {
		t.Errorf("expected provenance on document, got %+v", doc)
	}
	if f.ws.Generating() {
		t.Error("expected shared flag to clear")
	}

	got := f.notices.Drain()
	if len(got) != 1 || got[0].Title != "SOAP Notes Generated" || got[0].Severity != notify.SeverityDefault {
		t.Errorf("unexpected notices %+v", got)
	}
}

func TestWorkspace_SymptomsRequired(t *testing.T) {
	for _, kind := range []Kind{KindSOAP, KindDiagnosis} {
		for _, symptoms := range []string{"", "   ", "\n\t"} {
			f := newFixture(t, nil)
			f.selectPatient(t, 2)

			err := f.ws.Generate(kind, symptoms)
			if !errors.Is(err, ErrSymptomsRequired) {
				t.Fatalf("%s(%q): expected ErrSymptomsRequired, got %v", kind, symptoms, err)
			}
			doc, _ := f.ws.Document(kind)
			if doc.State != StateIdle {
				t.Errorf("%s(%q): expected idle, got %s", kind, symptoms, doc.State)
			}
			if f.ws.Generating() {
				t.Errorf("%s(%q): validation failure must not set the flag", kind, symptoms)
			}
			got := f.notices.Drain()
			if len(got) != 1 || got[0].Title != "Please enter symptoms" || got[0].Severity != notify.SeverityDestructive {
				t.Errorf("%s(%q): expected destructive notice, got %+v", kind, symptoms, got)
			}
		}
	}
}

func TestWorkspace_ValidationNoticeNamesAction(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	f.ws.GenerateSOAP("")
	f.ws.GenerateDiagnosis("")
	got := f.notices.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(got))
	}
	if !strings.HasSuffix(got[0].Description, "SOAP notes") {
		t.Errorf("unexpected SOAP description %q", got[0].Description)
	}
	if !strings.HasSuffix(got[1].Description, "diagnosis suggestions") {
		t.Errorf("unexpected diagnosis description %q", got[1].Description)
	}
}

func TestWorkspace_SharedFlagRejectsOtherKinds(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	if err := f.ws.GenerateDiagnosis("palpitations"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.ws.GenerateSOAP("palpitations"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for SOAP, got %v", err)
	}
	if err := f.ws.GenerateDischargeSummary(); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for discharge, got %v", err)
	}
	if err := f.ws.GenerateDiagnosis("palpitations"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for diagnosis, got %v", err)
	}
	// While busy, even blank input is a silent no-op.
	if err := f.ws.GenerateSOAP(""); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for blank SOAP while busy, got %v", err)
	}

	for _, k := range []Kind{KindSOAP, KindDischarge} {
		if doc, _ := f.ws.Document(k); doc.State != StateIdle {
			t.Errorf("%s: rejected trigger changed state to %s", k, doc.State)
		}
	}

	f.finish(2500 * time.Millisecond)
	if len(f.notices.Drain()) != 1 {
		t.Error("expected a single success notice")
	}
	if err := f.ws.GenerateDischargeSummary(); err != nil {
		t.Fatalf("expected trigger to be accepted after completion, got %v", err)
	}
	f.finish(1500 * time.Millisecond)
}

func TestWorkspace_RegenerateReplaces(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	f.ws.GenerateSOAP("first complaint")
	f.finish(2 * time.Second)

	if err := f.ws.GenerateSOAP("second complaint"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	doc, _ := f.ws.Document(KindSOAP)
	if doc.State != StateGenerating || !strings.Contains(doc.Text, "first complaint") {
		t.Errorf("expected old text to remain visible while regenerating, got %s", doc.State)
	}
	f.finish(2 * time.Second)

	doc, _ = f.ws.Document(KindSOAP)
	if strings.Contains(doc.Text, "first complaint") {
		t.Error("expected old text to be replaced")
	}
	if !strings.Contains(doc.Text, "second complaint") {
		t.Error("expected new symptoms in text")
	}
	if strings.Count(doc.Text, "SUBJECTIVE:") != 1 {
		t.Error("expected exactly one note, not an appended one")
	}
}

func TestWorkspace_DischargeSummary(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 2)

	if err := f.ws.GenerateDischargeSummary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.finish(1500 * time.Millisecond)

	doc, _ := f.ws.Document(KindDischarge)
	for _, want := range []string{"Patient: Michael Chen", "ADMISSION DIAGNOSIS: Diabetes Type 2", "Date: 1/15/2024"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("expected %q in discharge summary", want)
		}
	}
	if got := f.notices.Drain(); len(got) != 1 || got[0].Title != "Discharge Summary Generated" {
		t.Errorf("unexpected notices %+v", got)
	}
}

func TestWorkspace_NoPatient(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.ws.GenerateSOAP("cough"); !errors.Is(err, ErrNoPatient) {
		t.Fatalf("expected ErrNoPatient, got %v", err)
	}
	if err := f.ws.GenerateDischargeSummary(); !errors.Is(err, ErrNoPatient) {
		t.Fatalf("expected ErrNoPatient, got %v", err)
	}
	v := f.ws.View()
	if !v.Placeholder || v.Patient != nil {
		t.Errorf("expected placeholder view, got %+v", v)
	}
}

func TestWorkspace_SwitchPatientMidGeneration(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	if err := f.ws.GenerateDischargeSummary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.selectPatient(t, 3)
	f.finish(1500 * time.Millisecond)

	// The pending generation is not cancelled and still lands in the
	// session-wide slot, written for the patient it was requested for.
	doc, _ := f.ws.Document(KindDischarge)
	if doc.State != StateReady {
		t.Fatalf("expected ready, got %s", doc.State)
	}
	if doc.PatientID != 1 || !strings.Contains(doc.Text, "Emily Rodriguez") {
		t.Errorf("expected summary for Emily Rodriguez, got patient %d", doc.PatientID)
	}

	v := f.ws.View()
	if v.Patient == nil || v.Patient.ID != 3 {
		t.Fatalf("expected view for patient 3")
	}
	if v.Documents[2].Text == "" {
		t.Error("expected documents to survive a patient switch")
	}
}

type failingGenerator struct{}

func (failingGenerator) SOAPNote(context.Context, string) (string, error) {
	return "", errors.New("upstream unavailable")
}

func (failingGenerator) Diagnosis(context.Context, string) (string, error) {
	return "", errors.New("upstream unavailable")
}

func (failingGenerator) DischargeSummary(context.Context, patient.Patient) (string, error) {
	return "", errors.New("upstream unavailable")
}

func TestWorkspace_GeneratorFailureRestoresState(t *testing.T) {
	f := newFixture(t, failingGenerator{})
	f.selectPatient(t, 1)

	if err := f.ws.GenerateSOAP("cough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.ws.Wait()

	doc, _ := f.ws.Document(KindSOAP)
	if doc.State != StateIdle || doc.Text != "" {
		t.Errorf("expected idle empty document after failure, got %+v", doc)
	}
	if f.ws.Generating() {
		t.Error("expected flag cleared after failure")
	}
	got := f.notices.Drain()
	if len(got) != 1 || got[0].Severity != notify.SeverityDestructive {
		t.Errorf("expected one destructive notice, got %+v", got)
	}
}

func TestWorkspace_CancelAbandonsQuietly(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	f.ws.GenerateSOAP("cough")
	f.clock.BlockUntil(1)
	f.cancel()
	f.ws.Wait()

	doc, _ := f.ws.Document(KindSOAP)
	if doc.State != StateIdle {
		t.Errorf("expected idle after cancellation, got %s", doc.State)
	}
	if got := f.notices.Drain(); len(got) != 0 {
		t.Errorf("expected no notices on cancellation, got %+v", got)
	}
}

func TestWorkspace_GenerateAfterClose(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	f.ws.GenerateSOAP("cough")
	f.clock.BlockUntil(1)
	f.cancel()
	f.ws.Close()

	if err := f.ws.GenerateDischargeSummary(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if f.ws.Generating() {
		t.Error("closed workspace must not start a generation")
	}
}

func TestWorkspace_CloseRacesGenerate(t *testing.T) {
	for i := 0; i < 200; i++ {
		fc := clockwork.NewFakeClock()
		ctx, cancel := context.WithCancel(context.Background())
		sel := &patient.Selection{}
		sel.Set(patient.Seed()[3])
		ws := NewWorkspace(ctx, agent.NewSimulated(fc, agent.DefaultDelays(), ""), sel, nil, fc, zerolog.Nop())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ws.GenerateDischargeSummary()
		}()
		go func() {
			defer wg.Done()
			cancel()
			ws.Close()
		}()
		wg.Wait()

		if ws.Generating() {
			t.Fatalf("iteration %d: generation still running after Close returned", i)
		}
	}
}

func TestWorkspace_ViewInitials(t *testing.T) {
	f := newFixture(t, nil)
	if v := f.ws.View(); v.Initials != "" {
		t.Errorf("expected no initials without a patient, got %q", v.Initials)
	}
	f.selectPatient(t, 2)
	if v := f.ws.View(); v.Initials != "MC" {
		t.Errorf("expected MC, got %q", v.Initials)
	}
}

func TestWorkspace_SymptomsKept(t *testing.T) {
	f := newFixture(t, nil)
	f.selectPatient(t, 1)

	f.ws.SetSymptoms("draft")
	if f.ws.Symptoms() != "draft" {
		t.Fatal("expected symptoms to be stored")
	}
	f.ws.GenerateSOAP("")
	if f.ws.Symptoms() != "draft" {
		t.Error("failed validation must not overwrite the symptom field")
	}
	f.ws.GenerateDiagnosis("fever")
	if f.ws.Symptoms() != "fever" {
		t.Error("expected accepted symptoms to be stored")
	}
	f.finish(2500 * time.Millisecond)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("xray"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
