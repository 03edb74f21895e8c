package memory

import (
	"sort"

	"github.com/gmsas95/myrai-care/internal/extract"
)

// Health topic categories detected by keyword
const (
	TopicMedication  = "medication"
	TopicMood        = "mood"
	TopicVitals      = "vitals"
	TopicHydration   = "hydration"
	TopicSleep       = "sleep"
	TopicPain        = "pain"
	TopicAppointment = "appointment"
	TopicDiet        = "diet"
)

// DefaultTopicKeywords maps each category to the words that signal it
var DefaultTopicKeywords = map[string][]string{
	TopicMedication:  {"medication", "medicine", "meds", "pill", "pills", "dose", "took", "taken", "tablet", "prescription", "refill"},
	TopicMood:        {"mood", "feel", "feeling", "sad", "happy", "anxious", "lonely", "depressed", "stressed", "upset", "down"},
	TopicVitals:      {"blood pressure", "bp", "pulse", "heart rate", "glucose", "sugar", "weight", "temperature"},
	TopicHydration:   {"water", "drink", "drank", "hydration", "thirsty", "tea", "coffee", "juice"},
	TopicSleep:       {"sleep", "slept", "tired", "insomnia", "nap", "awake"},
	TopicPain:        {"pain", "ache", "hurts", "sore", "headache", "dizzy", "nausea"},
	TopicAppointment: {"doctor", "appointment", "visit", "clinic", "hospital", "follow-up", "checkup", "nurse"},
	TopicDiet:        {"ate", "eat", "meal", "breakfast", "lunch", "dinner", "food", "snack"},
}

// Intents is what a message is about
type Intents struct {
	Medication bool     `json:"medication"`
	Mood       bool     `json:"mood"`
	Crisis     bool     `json:"crisis"`
	Topics     []string `json:"topics,omitempty"`
}

// Topics returns the sorted categories whose keywords appear in text
func Topics(text string, keywords map[string][]string) []string {
	var topics []string
	for topic, words := range keywords {
		for _, w := range words {
			if extract.ContainsWord(text, w) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

// ContainsAny reports whether any phrase occurs in text as whole words
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if extract.ContainsWord(text, p) {
			return true
		}
	}
	return false
}

// DetectIntents classifies a user message
func DetectIntents(message string, keywords map[string][]string, crisisKeywords []string) Intents {
	topics := Topics(message, keywords)
	in := Intents{
		Topics: topics,
		Crisis: ContainsAny(message, crisisKeywords),
	}
	for _, t := range topics {
		switch t {
		case TopicMedication:
			in.Medication = true
		case TopicMood, TopicSleep:
			in.Mood = true
		}
	}
	return in
}
