// Package actions turns action markers embedded in assistant replies into
// validated, guarded and optionally confirmed side effects.
package actions

import (
	"time"

	"github.com/gmsas95/myrai-care/internal/capability"
)

// Encoding identifies which marker format a request arrived in
type Encoding string

const (
	EncodingCurrent Encoding = "current"
	EncodingLegacy  Encoding = "legacy"
)

// LegacyDefaultConfidence applies to legacy markers that omit confidence.
const LegacyDefaultConfidence = 0.8

// ActionRequest is a structured request parsed from assistant output
type ActionRequest struct {
	ID         string                 `json:"id"`
	Capability string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	Encoding   Encoding               `json:"encoding"`

	Extractions []ExtractionOutcome `json:"extractions,omitempty"`
}

// ExtractionOutcome records one natural-language field normalized before
// validation.
type ExtractionOutcome struct {
	Field      string  `json:"field"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
}

// Stage is the pipeline step a request stopped at
type Stage string

const (
	StageParse        Stage = "parse"
	StageEnrichment   Stage = "enrichment"
	StageValidation   Stage = "validation"
	StageGuardrail    Stage = "guardrail"
	StageConfirmation Stage = "confirmation"
	StageDispatch     Stage = "dispatch"
)

// ExecutionResult is the record of one request's outcome
type ExecutionResult struct {
	Success              bool                   `json:"success"`
	RequestID            string                 `json:"request_id"`
	Capability           string                 `json:"tool"`
	Stage                Stage                  `json:"stage"`
	Message              string                 `json:"message"`
	Data                 map[string]interface{} `json:"data,omitempty"`
	Error                string                 `json:"error,omitempty"`
	RequiresConfirmation bool                   `json:"requires_confirmation,omitempty"`
	ConfirmationPrompt   string                 `json:"confirmation_prompt,omitempty"`
	Crisis               bool                   `json:"crisis,omitempty"`
}

// PendingConfirmation is a request held until the user confirms or rejects it
type PendingConfirmation struct {
	RequestID   string                 `json:"request_id"`
	UserID      string                 `json:"user_id"`
	Capability  string                 `json:"tool"`
	DisplayName string                 `json:"display_name"`
	Parameters  map[string]interface{} `json:"parameters"`
	Prompt      string                 `json:"prompt"`
	Sensitivity capability.Sensitivity `json:"sensitivity"`
	Confidence  float64                `json:"confidence"`
	Crisis      bool                   `json:"crisis,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// Expired reports whether the entry is past its deadline.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Request rebuilds the held ActionRequest.
func (p *PendingConfirmation) Request() *ActionRequest {
	return &ActionRequest{
		ID:         p.RequestID,
		Capability: p.Capability,
		Parameters: cloneParams(p.Parameters),
		Confidence: p.Confidence,
	}
}

// TurnOutcome is everything the engine produced for one assistant reply
type TurnOutcome struct {
	DisplayText string                 `json:"display_text"`
	Results     []ExecutionResult      `json:"results"`
	Pending     []*PendingConfirmation `json:"pending,omitempty"`
	Crisis      bool                   `json:"crisis,omitempty"`
}

func cloneParams(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// EffectiveConfidence is the lower of the request's confidence and every
// matched extraction's confidence.
func (r *ActionRequest) EffectiveConfidence() float64 {
	c := r.Confidence
	for _, e := range r.Extractions {
		if e.Matched && e.Confidence < c {
			c = e.Confidence
		}
	}
	return c
}
