package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clinical-dashboard/internal/consultation"
	"clinical-dashboard/internal/patient"
)

func readyDoc() consultation.Document {
	at := time.Date(2024, time.January, 15, 14, 30, 0, 0, time.UTC)
	return consultation.Document{
		Kind:        consultation.KindSOAP,
		State:       consultation.StateReady,
		Text:        "SUBJECTIVE:\nPatient reports: cough\n\nPLAN:\n1. Follow-up in 1 week",
		PatientID:   1,
		GeneratedAt: &at,
	}
}

func emily() patient.Patient {
	return patient.Seed()[0]
}

func haveFont() bool {
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

type fakeTelegram struct {
	chatID int64
	name   string
	data   []byte
}

func (f *fakeTelegram) SendDocument(_ context.Context, chatID int64, data []byte, name string) error {
	f.chatID, f.name, f.data = chatID, name, data
	return nil
}

func TestFileName(t *testing.T) {
	if got := FileName(readyDoc(), emily(), "pdf"); got != "soap_emily-rodriguez_20240115.pdf" {
		t.Errorf("unexpected file name %s", got)
	}
}

func TestService_Text(t *testing.T) {
	s := NewService(nil, 0, nil, zerolog.Nop())
	out, err := s.Text(readyDoc(), emily())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := string(out)
	for _, want := range []string{"SOAP Notes", "Patient: Emily Rodriguez (34, Female)", "Patient reports: cough"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in export", want)
		}
	}
}

func TestService_NotReady(t *testing.T) {
	s := NewService(nil, 0, nil, zerolog.Nop())
	idle := consultation.Document{Kind: consultation.KindDiagnosis, State: consultation.StateIdle}
	if _, err := s.Text(idle, emily()); !errors.Is(err, ErrNotReady) {
		t.Errorf("text: expected ErrNotReady, got %v", err)
	}
	if _, err := s.PDF(idle, emily()); !errors.Is(err, ErrNotReady) {
		t.Errorf("pdf: expected ErrNotReady, got %v", err)
	}
}

func TestService_PDFWithoutFont(t *testing.T) {
	s := NewService(nil, 0, []string{"/nonexistent/font.ttf"}, zerolog.Nop())
	if _, err := s.PDF(readyDoc(), emily()); !errors.Is(err, ErrNoFont) {
		t.Fatalf("expected ErrNoFont, got %v", err)
	}
}

func TestService_PDF(t *testing.T) {
	if !haveFont() {
		t.Skip("DejaVuSans not installed")
	}
	s := NewService(nil, 0, nil, zerolog.Nop())
	out, err := s.PDF(readyDoc(), emily())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("expected PDF header, got %q", out[:8])
	}
}

func TestService_ShareDisabled(t *testing.T) {
	s := NewService(nil, 0, nil, zerolog.Nop())
	if err := s.Share(context.Background(), readyDoc(), emily()); !errors.Is(err, ErrShareDisabled) {
		t.Fatalf("expected ErrShareDisabled, got %v", err)
	}
}

func TestService_Share(t *testing.T) {
	if !haveFont() {
		t.Skip("DejaVuSans not installed")
	}
	tg := &fakeTelegram{}
	s := NewService(tg, 77, nil, zerolog.Nop())
	if err := s.Share(context.Background(), readyDoc(), emily()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tg.chatID != 77 || tg.name != "soap_emily-rodriguez_20240115.pdf" || len(tg.data) == 0 {
		t.Errorf("unexpected upload chat=%d name=%s size=%d", tg.chatID, tg.name, len(tg.data))
	}
}
