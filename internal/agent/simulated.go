package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"clinical-dashboard/internal/patient"
)

const DefaultAttending = "Dr. Sarah Johnson"

// Delays are the artificial latencies of the simulated provider.
type Delays struct {
	SOAP      time.Duration
	Diagnosis time.Duration
	Discharge time.Duration
	Reply     time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		SOAP:      2000 * time.Millisecond,
		Diagnosis: 2500 * time.Millisecond,
		Discharge: 1500 * time.Millisecond,
		Reply:     2000 * time.Millisecond,
	}
}

// Simulated produces canned clinical text after a fixed delay.
type Simulated struct {
	clock     clockwork.Clock
	delays    Delays
	attending string
}

func NewSimulated(clock clockwork.Clock, delays Delays, attending string) *Simulated {
	if attending == "" {
		attending = DefaultAttending
	}
	return &Simulated{clock: clock, delays: delays, attending: attending}
}

func (s *Simulated) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-s.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulated) SOAPNote(ctx context.Context, symptoms string) (string, error) {
	if err := s.wait(ctx, s.delays.SOAP); err != nil {
		return "", err
	}
	return fmt.Sprintf(soapTemplate, symptoms), nil
}

func (s *Simulated) Diagnosis(ctx context.Context, _ string) (string, error) {
	if err := s.wait(ctx, s.delays.Diagnosis); err != nil {
		return "", err
	}
	return diagnosisTemplate, nil
}

func (s *Simulated) DischargeSummary(ctx context.Context, p patient.Patient) (string, error) {
	if err := s.wait(ctx, s.delays.Discharge); err != nil {
		return "", err
	}
	name, condition := p.Name, p.Condition
	if name == "" {
		name = "Patient"
	}
	if condition == "" {
		condition = "Primary condition"
	}
	date := s.clock.Now().Format("1/2/2006")
	return fmt.Sprintf(dischargeTemplate, name, date, s.attending, condition, s.attending), nil
}

// PatientReply ignores what the clinician wrote; the script has one answer.
func (s *Simulated) PatientReply(ctx context.Context, _ patient.Patient, _ string) (string, error) {
	if err := s.wait(ctx, s.delays.Reply); err != nil {
		return "", err
	}
	return ScriptedReply, nil
}

const ScriptedReply = "Thank you for asking. The pain is more of a dull ache, and it sometimes spreads to my left arm."

const soapTemplate = `SUBJECTIVE:
Patient reports: %s
Pain level: 6/10
Duration: 3 days
Associated symptoms: Mild fatigue

OBJECTIVE:
Vital Signs: BP 140/90, HR 78, Temp 98.6°F
Physical Exam: Alert and oriented, no acute distress
Relevant findings noted during examination

ASSESSMENT:
Primary diagnosis consideration based on presented symptoms
Need for further diagnostic evaluation
Risk stratification: Moderate

PLAN:
1. Diagnostic tests as clinically indicated
2. Symptomatic treatment
3. Follow-up in 1 week
4. Patient education provided
5. Return precautions discussed`

const diagnosisTemplate = `AI DIAGNOSIS SUGGESTIONS:

Primary Considerations:
• Hypertensive crisis (High probability)
• Anxiety disorder with somatic symptoms (Moderate)
• Medication side effects (Low-moderate)

Differential Diagnosis:
• Essential hypertension
• Secondary hypertension
• White coat syndrome
• Panic disorder

Recommended Actions:
• Blood pressure monitoring
• ECG evaluation
• Basic metabolic panel
• Consider cardiology referral

Confidence Level: 78%
Risk Assessment: Moderate to High`

const dischargeTemplate = `DISCHARGE SUMMARY

Patient: %s
Date: %s
Attending: %s

ADMISSION DIAGNOSIS: %s

HOSPITAL COURSE:
Patient presented with reported symptoms and underwent comprehensive evaluation. Clinical management included symptomatic treatment and monitoring. Patient showed stable improvement during observation period.

DISCHARGE CONDITION: Stable, improved

DISCHARGE MEDICATIONS:
• Continue current medications as prescribed
• New prescriptions as clinically indicated

FOLLOW-UP:
• Primary care physician in 1-2 weeks
• Return for worsening symptoms
• Lifestyle modifications discussed

PATIENT EDUCATION:
Comprehensive discharge instructions provided and understood.

Electronically signed by: %s, MD`
