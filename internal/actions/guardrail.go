package actions

import (
	"fmt"
	"math"
	"strings"

	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/extract"
)

// Denial reasons, also used as metric labels.
const (
	ReasonLowConfidence     = "low_confidence"
	ReasonInvalidConfidence = "invalid_confidence"
	ReasonExplicitIntent    = "missing_explicit_intent"
	ReasonIntentKeywords    = "missing_intent_keywords"
	ReasonPromptInjection   = "prompt_injection"
	ReasonExtractionNoMatch = "extraction_no_match"
)

// DefaultMinConfidence is the universal confidence floor.
const DefaultMinConfidence = 0.7

// InjectionDetector flags user messages that try to steer the assistant
type InjectionDetector interface {
	Detect(input string) bool
}

// Decision is the guardrail verdict for one request
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	// Code is a stable identifier for Reason.
	Code   string `json:"code,omitempty"`
	Crisis bool   `json:"crisis,omitempty"`
}

func deny(code, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Guardrail decides whether a validated request may run. When in doubt it
// denies and the reply asks the user instead.
type Guardrail struct {
	minConfidence    float64
	explicitKeywords []string
	blockOnInjection bool
	detector         InjectionDetector
}

// NewGuardrail builds a guardrail from config. detector may be nil.
func NewGuardrail(cfg config.GuardrailsConfig, detector InjectionDetector) *Guardrail {
	g := &Guardrail{
		minConfidence:    cfg.MinConfidence,
		explicitKeywords: cfg.ExplicitActionKeywords,
		blockOnInjection: cfg.BlockOnInjection,
		detector:         detector,
	}
	if g.minConfidence <= 0 {
		g.minConfidence = DefaultMinConfidence
	}
	if len(g.explicitKeywords) == 0 {
		g.explicitKeywords = config.DefaultExplicitActionKeywords
	}
	return g
}

// MinConfidence returns the configured floor.
func (g *Guardrail) MinConfidence() float64 {
	return g.minConfidence
}

// EvaluateExtraction denies a request whose natural-language fields could
// not be normalized.
func (g *Guardrail) EvaluateExtraction(req *ActionRequest) Decision {
	for _, e := range req.Extractions {
		if !e.Matched {
			return deny(ReasonExtractionNoMatch,
				fmt.Sprintf("could not understand %s; ask the user to clarify instead of guessing", humanField(e.Field)))
		}
	}
	return Decision{Allowed: true}
}

// Evaluate applies the confidence floor, the tier evidence rules and the
// crisis flag.
func (g *Guardrail) Evaluate(req *ActionRequest, def *capability.Definition, userMessage string) Decision {
	crisis := hasCrisisValue(req, def)

	decision := g.evaluate(req, def, userMessage)
	decision.Crisis = crisis
	return decision
}

func (g *Guardrail) evaluate(req *ActionRequest, def *capability.Definition, userMessage string) Decision {
	confidence := req.EffectiveConfidence()
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return deny(ReasonInvalidConfidence, "confidence out of range; ask the user instead of guessing")
	}
	if confidence < g.minConfidence {
		return deny(ReasonLowConfidence, "confidence too low; ask the user instead of guessing")
	}

	elevated := def.Sensitivity == capability.SensitivityHigh || def.Sensitivity == capability.SensitivityCritical
	if elevated && g.blockOnInjection && g.detector != nil && g.detector.Detect(userMessage) {
		return deny(ReasonPromptInjection, "the message looks like an instruction to the assistant; ask the user to restate the request")
	}

	switch def.Sensitivity {
	case capability.SensitivityCritical:
		if !containsAnyWord(userMessage, g.explicitKeywords) {
			return deny(ReasonExplicitIntent,
				fmt.Sprintf("%s needs an explicit request; ask the user whether they want it recorded", strings.ToLower(def.DisplayName)))
		}
	case capability.SensitivityHigh:
		if !containsAnyWord(userMessage, def.IntentKeywords) {
			return deny(ReasonIntentKeywords,
				fmt.Sprintf("the message does not clearly ask to %s; ask the user to confirm what they meant", strings.ToLower(def.DisplayName)))
		}
	}

	return Decision{Allowed: true}
}

func hasCrisisValue(req *ActionRequest, def *capability.Definition) bool {
	for _, p := range def.Parameters {
		if p.CrisisValue == "" {
			continue
		}
		if s, ok := req.Parameters[p.Name].(string); ok && strings.EqualFold(strings.TrimSpace(s), p.CrisisValue) {
			return true
		}
	}
	return false
}

func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if extract.ContainsWord(text, w) {
			return true
		}
	}
	return false
}

func humanField(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
