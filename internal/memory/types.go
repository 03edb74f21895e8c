// Package memory assembles the per-turn grounding context from three tiers:
// short-term (recent turns), working (today's state) and long-term (stable
// facts about the user), plus a rolling conversation summary.
package memory

import (
	"time"
)

// Turn is one message of recent conversation
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// MedicationFact is one entry of the user's medication list
type MedicationFact struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// LongTerm holds stable facts, read fresh every turn
type LongTerm struct {
	FirstName         string           `json:"first_name"`
	Personality       string           `json:"personality"`
	Conditions        []string         `json:"conditions"`
	Medications       []MedicationFact `json:"medications"`
	RelationshipStage string           `json:"relationship_stage"`
	InteractionCount  int              `json:"interaction_count"`
}

// MedicationEvent is a compact view of a logged dose
type MedicationEvent struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Working holds today's state, read fresh every turn
type Working struct {
	TodayMood       string           `json:"today_mood,omitempty"`
	LastMedication  *MedicationEvent `json:"last_medication,omitempty"`
	ActiveLocation  string           `json:"active_location,omitempty"`
	LastCheckInDate string           `json:"last_check_in_date,omitempty"`
	EmergencyActive bool             `json:"emergency_active"`
}

// MoodPoint is one day of the mood trend
type MoodPoint struct {
	Day    string `json:"day"`
	Mood   string `json:"mood"`
	Energy int    `json:"energy,omitempty"`
}

// MedicationDetail is loaded only for medication-related messages
type MedicationDetail struct {
	LastTaken *MedicationEvent  `json:"last_taken,omitempty"`
	Recent    []MedicationEvent `json:"recent"`
	Adherence float64           `json:"adherence"`
}

// Context is everything the assistant is grounded on for one turn
type Context struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Now            time.Time `json:"now"`

	ShortTerm []Turn   `json:"short_term"`
	Working   Working  `json:"working"`
	LongTerm  LongTerm `json:"long_term"`

	Summary          string `json:"summary,omitempty"`
	SummaryWatermark int64  `json:"summary_watermark"`
	MessageCount     int64  `json:"message_count"`

	Intents        Intents           `json:"intents"`
	MoodTrend      []MoodPoint       `json:"mood_trend,omitempty"`
	LastMedication *MedicationDetail `json:"last_medication,omitempty"`

	SummaryDecision Decision `json:"summary_decision"`
}
