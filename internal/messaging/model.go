package messaging

import (
	"errors"
	"time"
)

var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	ErrNoPatient         = errors.New("no patient selected")
	ErrClosed            = errors.New("chat is closed")
)

type Kind string

const (
	KindDoctor     Kind = "doctor"
	KindPatient    Kind = "patient"
	KindSuggestion Kind = "ai-suggestion"
)

// TimeFormat renders message times the way the chat panel shows them.
const TimeFormat = "03:04 PM"

type Message struct {
	ID        int        `json:"id"`
	Kind      Kind       `json:"type"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Suggestions are the prompts offered under the transcript.
var Suggestions = []string{
	"Ask about pain scale (1-10)",
	"Inquire about family history",
	"Check for shortness of breath",
	"Ask about recent stress levels",
}

// seedTranscript opens every chat, whoever the patient is.
func seedTranscript() []Message {
	return []Message{
		{
			ID:        1,
			Kind:      KindPatient,
			Content:   "Hello Doctor, I've been experiencing some chest discomfort since yesterday.",
			Timestamp: "10:30 AM",
		},
		{
			ID:        2,
			Kind:      KindSuggestion,
			Content:   "Consider asking about: Pain characteristics (sharp/dull), radiation, associated symptoms, triggers, and previous similar episodes.",
			Timestamp: "10:31 AM",
		},
		{
			ID:        3,
			Kind:      KindDoctor,
			Content:   "I understand your concern. Can you describe the pain - is it sharp or dull? Does it radiate anywhere?",
			Timestamp: "10:32 AM",
		},
	}
}

type View struct {
	PatientName string    `json:"patient_name,omitempty"`
	Initials    string    `json:"initials,omitempty"`
	Placeholder bool      `json:"placeholder"`
	Messages    []Message `json:"messages"`
	Draft       string    `json:"draft"`
	Suggestions []string  `json:"suggestions"`
}
