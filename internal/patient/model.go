package patient

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var ErrNotFound = errors.New("patient not found")

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Patient struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Gender          string   `json:"gender"`
	Condition       string   `json:"condition"`
	LastVisit       string   `json:"last_visit"`       // YYYY-MM-DD
	NextAppointment string   `json:"next_appointment"` // YYYY-MM-DD
	Priority        Priority `json:"priority"`
	Avatar          string   `json:"avatar"`
}

// Initials is what the dashboard shows when the avatar fails to load.
func (p Patient) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(p.Name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(r)
	}
	return b.String()
}

// Seed is the fixed patient panel served by every directory.
func Seed() []Patient {
	return []Patient{
		{
			ID: 1, Name: "Emily Rodriguez", Age: 34, Gender: "Female", Condition: "Hypertension",
			LastVisit: "2024-01-15", NextAppointment: "2024-01-22", Priority: PriorityMedium, Avatar: "/placeholder.svg",
		},
		{
			ID: 2, Name: "Michael Chen", Age: 45, Gender: "Male", Condition: "Diabetes Type 2",
			LastVisit: "2024-01-14", NextAppointment: "2024-01-21", Priority: PriorityHigh, Avatar: "/placeholder.svg",
		},
		{
			ID: 3, Name: "Sarah Williams", Age: 28, Gender: "Female", Condition: "Anxiety",
			LastVisit: "2024-01-13", NextAppointment: "2024-01-20", Priority: PriorityLow, Avatar: "/placeholder.svg",
		},
		{
			ID: 4, Name: "David Johnson", Age: 67, Gender: "Male", Condition: "Arthritis",
			LastVisit: "2024-01-12", NextAppointment: "2024-01-25", Priority: PriorityMedium, Avatar: "/placeholder.svg",
		},
	}
}
