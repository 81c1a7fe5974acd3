package consultation

import (
	"errors"
	"time"

	"clinical-dashboard/internal/patient"
)

var (
	ErrSymptomsRequired = errors.New("symptoms are required")
	ErrBusy             = errors.New("a generation is already in progress")
	ErrNoPatient        = errors.New("no patient selected")
	ErrUnknownKind      = errors.New("unknown document kind")
	ErrClosed           = errors.New("workspace is closed")
)

type Kind string

const (
	KindSOAP      Kind = "soap"
	KindDiagnosis Kind = "diagnosis"
	KindDischarge Kind = "discharge"
)

// Kinds lists document kinds in the order the workspace shows them.
var Kinds = []Kind{KindSOAP, KindDiagnosis, KindDischarge}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// Title is the heading used on screen and in exports.
func (k Kind) Title() string {
	switch k {
	case KindSOAP:
		return "SOAP Notes"
	case KindDiagnosis:
		return "AI Diagnosis Suggestions"
	case KindDischarge:
		return "Discharge Summary"
	default:
		return string(k)
	}
}

type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReady      State = "ready"
)

// Document is the latest text of one kind. Regeneration replaces Text
// wholesale.
type Document struct {
	Kind        Kind       `json:"kind"`
	State       State      `json:"state"`
	Text        string     `json:"text,omitempty"`
	PatientID   int        `json:"patient_id,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

type View struct {
	Patient     *patient.Patient `json:"patient"`
	Initials    string           `json:"initials,omitempty"`
	Placeholder bool             `json:"placeholder"`
	Symptoms    string           `json:"symptoms"`
	Generating  bool             `json:"generating"`
	Documents   []Document       `json:"documents"`
}
