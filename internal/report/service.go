package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/signintech/gopdf"

	"clinical-dashboard/internal/consultation"
	"clinical-dashboard/internal/patient"
)

var (
	ErrNotReady      = errors.New("document has not been generated yet")
	ErrNoFont        = errors.New("no usable font for PDF export")
	ErrShareDisabled = errors.New("document sharing is not configured")
)

type TelegramClient interface {
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// DefaultFontPaths are tried in order; DejaVuSans covers the bullets and
// degree signs used in the templates.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	pageBottom = 790.0
	textWidth  = 500.0
)

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	logger       zerolog.Logger
}

// NewService builds the exporter. tg may be nil when sharing is off.
func NewService(tg TelegramClient, doctorChatID int64, fontPaths []string, logger zerolog.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		logger:       logger,
	}
}

// FileName names an export, e.g. "soap_emily-rodriguez_20240115.pdf".
func FileName(doc consultation.Document, p patient.Patient, ext string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(p.Name), "-"))
	if slug == "" {
		slug = "patient"
	}
	stamp := time.Now()
	if doc.GeneratedAt != nil {
		stamp = *doc.GeneratedAt
	}
	return fmt.Sprintf("%s_%s_%s.%s", doc.Kind, slug, stamp.Format("20060102"), ext)
}

// Text renders the plain-text export.
func (s *Service) Text(doc consultation.Document, p patient.Patient) ([]byte, error) {
	if doc.State != consultation.StateReady && doc.Text == "" {
		return nil, ErrNotReady
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n", doc.Kind.Title())
	fmt.Fprintf(&b, "Patient: %s (%d, %s)\n", p.Name, p.Age, p.Gender)
	if doc.GeneratedAt != nil {
		fmt.Fprintf(&b, "Generated: %s\n", doc.GeneratedAt.Format("01/02/2006 03:04 PM"))
	}
	b.WriteString("\n")
	b.WriteString(doc.Text)
	b.WriteString("\n")
	return b.Bytes(), nil
}

// PDF renders the document onto A4 pages.
func (s *Service) PDF(doc consultation.Document, p patient.Patient) ([]byte, error) {
	if doc.State != consultation.StateReady && doc.Text == "" {
		return nil, ErrNotReady
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("%w: %v", ErrNoFont, fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, doc.Kind.Title())
	pdf.Br(28)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Patient: %s, %d years, %s", p.Name, p.Age, p.Gender))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Condition: %s", p.Condition))
	pdf.Br(14)
	if doc.GeneratedAt != nil {
		pdf.Cell(nil, fmt.Sprintf("Generated: %s", doc.GeneratedAt.Format("01/02/2006 03:04 PM")))
		pdf.Br(14)
	}
	pdf.Br(12)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	for _, para := range strings.Split(doc.Text, "\n") {
		if strings.TrimSpace(para) == "" {
			pdf.Br(8)
			continue
		}
		lines, err := pdf.SplitText(para, textWidth)
		if err != nil {
			lines = []string{para}
		}
		for _, l := range lines {
			if pdf.GetY() > pageBottom {
				pdf.AddPage()
			}
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Share sends the PDF export to the doctor's Telegram chat.
func (s *Service) Share(ctx context.Context, doc consultation.Document, p patient.Patient) error {
	if s.tgClient == nil || s.doctorChatID == 0 {
		return ErrShareDisabled
	}
	data, err := s.PDF(doc, p)
	if err != nil {
		return err
	}
	name := FileName(doc, p, "pdf")
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, data, name); err != nil {
		return fmt.Errorf("share %s: %w", name, err)
	}
	s.logger.Info().Str("file", name).Int64("chat_id", s.doctorChatID).Msg("document shared")
	return nil
}
