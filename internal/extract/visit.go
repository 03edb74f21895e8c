package extract

import (
	"regexp"
	"strings"
	"time"
)

// MedicationChange is a start/stop/adjust instruction from a visit.
type MedicationChange struct {
	Action string `json:"action"`
	Name   string `json:"name"`
}

// VisitOutcome is what came out of a clinical visit.
type VisitOutcome struct {
	Provider          string
	FollowUp          *DateResult
	MedicationChanges []MedicationChange
	Recommendations   []*Recommendation
	Summary           string
	Confidence        float64
}

var (
	providerRe  = regexp.MustCompile(`(?i)\b(?:dr\.?|doctor|nurse)\s+([A-Z][a-zA-Z'-]+)`)
	followUpRe  = regexp.MustCompile(`(?i)\b(?:follow[\s-]?up|come\s+back|return|recheck|check\s+back|see\s+(?:me|her|him|them)\s+again)\b(.*)`)
	medChangeRe = regexp.MustCompile(`(?i)\b(start(?:ed|ing)?|stop(?:ped|ping)?|increase(?:d)?|decrease(?:d)?|reduce(?:d)?|switch(?:ed)?\s+to|continue(?:d)?)\s+(?:taking\s+)?(?:my\s+|the\s+|on\s+)?([a-z][a-z-]{2,})`)
	sentenceRe  = regexp.MustCompile(`[^.!?;]+`)

	medActionNames = map[string]string{
		"sta": "start", "sto": "stop", "inc": "increase", "dec": "decrease",
		"red": "decrease", "swi": "switch", "con": "continue",
	}

	// words that follow a change verb but are not medications
	medChangeStopwords = map[string]bool{
		"exercise": true, "exercising": true, "walking": true, "eating": true,
		"drinking": true, "smoking": true, "the": true, "a": true, "an": true,
		"it": true, "them": true, "this": true, "that": true, "your": true,
	}
)

// ExtractVisitOutcome pulls the provider, follow-up date, medication changes
// and recommendations out of a free-text visit description.
func ExtractVisitOutcome(text string, ref time.Time) *VisitOutcome {
	out := &VisitOutcome{Summary: strings.TrimSpace(text)}
	found := 0

	if m := providerRe.FindStringSubmatch(text); m != nil {
		out.Provider = "Dr. " + m[1]
		found++
	}

	if m := followUpRe.FindStringSubmatch(text); m != nil {
		if d, ok := ParseInterval(m[1], ref); ok {
			out.FollowUp = d
			found++
		}
	}

	for _, m := range medChangeRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[2])
		if medChangeStopwords[name] {
			continue
		}
		verb := strings.ToLower(m[1])
		out.MedicationChanges = append(out.MedicationChanges, MedicationChange{
			Action: medActionNames[verb[:3]],
			Name:   name,
		})
		found++
	}

	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		if rec, ok := ExtractRecommendation(sentence); ok {
			out.Recommendations = append(out.Recommendations, rec)
		}
	}

	switch {
	case found >= 2:
		out.Confidence = 0.9
	case found == 1:
		out.Confidence = 0.75
	default:
		out.Confidence = 0.5
	}

	return out
}

// Recommendation is advice given by a clinician.
type Recommendation struct {
	Text       string
	Category   string
	Cadence    *Recurrence
	Confidence float64
}

// Summary describes the recommendation for confirmation prompts.
func (r *Recommendation) Summary() string {
	if r.Cadence != nil {
		return r.Text + " (" + r.Cadence.Summary() + ")"
	}
	return r.Text
}

var (
	adviceCueRe = regexp.MustCompile(`(?i)\b(?:should|recommend(?:s|ed)?|advis(?:e|es|ed)|suggest(?:s|ed)?|told\s+(?:me|her|him|them)\s+to|wants?\s+(?:me|her|him|them)\s+to|try\s+to|make\s+sure)\b`)

	recommendationCategories = []struct {
		category string
		keywords []string
	}{
		{"exercise", []string{"walk", "exercise", "stretch", "swim", "physical therapy", "yoga", "steps"}},
		{"diet", []string{"salt", "sodium", "sugar", "diet", "eat", "food", "meal", "fiber", "vegetables"}},
		{"hydration", []string{"water", "fluids", "hydrate", "drink more"}},
		{"sleep", []string{"sleep", "rest", "nap"}},
		{"monitoring", []string{"blood pressure", "check your", "monitor", "measure", "track", "weigh"}},
		{"medication", []string{"medication", "pill", "dose", "tablet", "prescription"}},
		{"follow_up", []string{"follow up", "follow-up", "appointment", "come back"}},
	}
)

// ExtractRecommendation recognizes advice such as "the doctor said I should
// walk 30 minutes every day". Text without an advice cue is not a
// recommendation.
func ExtractRecommendation(text string) (*Recommendation, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !adviceCueRe.MatchString(text) {
		return nil, false
	}

	lower := strings.ToLower(text)
	rec := &Recommendation{Text: text, Category: "general", Confidence: 0.7}

	for _, c := range recommendationCategories {
		if containsAny(lower, c.keywords) {
			rec.Category = c.category
			rec.Confidence = 0.85
			break
		}
	}

	if cadence, ok := ParseRecurrence(lower); ok {
		rec.Cadence = cadence
	}

	return rec, true
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
