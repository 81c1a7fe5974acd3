package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinical-dashboard/internal/patient"
)

const defaultModel = "gpt-4o-mini"

const (
	soapInstruction = "You are a clinical documentation assistant. Write a concise SOAP note " +
		"(SUBJECTIVE, OBJECTIVE, ASSESSMENT, PLAN headings, plain text) for the symptoms the clinician reports. " +
		"Quote the reported symptoms verbatim under SUBJECTIVE."
	diagnosisInstruction = "You are a clinical decision support assistant. List primary considerations, " +
		"a differential diagnosis, recommended actions and a confidence level for the reported symptoms. Plain text only."
	dischargeInstruction = "You are a clinical documentation assistant. Write a plain-text discharge summary " +
		"with headings for admission diagnosis, hospital course, discharge condition, medications, follow-up and patient education."
	replyInstruction = "You are role-playing a patient in a clinic chat. Answer the doctor's question briefly and in the first person."
)

// OpenAI generates documents with a chat completion model.
type OpenAI struct {
	client    *openai.Client
	model     string
	clock     func() time.Time
	attending string
}

func NewOpenAI(apiKey, model, attending string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model, attending)
}

// NewOpenAIWithConfig lets callers point the client at a compatible endpoint.
func NewOpenAIWithConfig(cfg openai.ClientConfig, model, attending string) *OpenAI {
	if model == "" {
		model = defaultModel
	}
	if attending == "" {
		attending = DefaultAttending
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		clock:     time.Now,
		attending: attending,
	}
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	if o.client == nil {
		return "", errors.New("openai client not initialized")
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) SOAPNote(ctx context.Context, symptoms string) (string, error) {
	return o.complete(ctx, soapInstruction, "Reported symptoms: "+symptoms)
}

func (o *OpenAI) Diagnosis(ctx context.Context, symptoms string) (string, error) {
	return o.complete(ctx, diagnosisInstruction, "Reported symptoms: "+symptoms)
}

func (o *OpenAI) DischargeSummary(ctx context.Context, p patient.Patient) (string, error) {
	prompt := fmt.Sprintf("Patient: %s (%d, %s)\nCondition: %s\nDate: %s\nAttending: %s",
		p.Name, p.Age, p.Gender, p.Condition, o.clock().Format("1/2/2006"), o.attending)
	return o.complete(ctx, dischargeInstruction, prompt)
}

func (o *OpenAI) PatientReply(ctx context.Context, p patient.Patient, question string) (string, error) {
	prompt := fmt.Sprintf("You are %s, %d, being seen for %s.\nDoctor: %s", p.Name, p.Age, p.Condition, question)
	return o.complete(ctx, replyInstruction, prompt)
}
