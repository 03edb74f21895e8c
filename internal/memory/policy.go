package memory

import (
	"github.com/gmsas95/myrai-care/internal/config"
)

// Summary refresh triggers
const (
	TriggerMessageCount = "message_count"
	TriggerTopicShift   = "topic_shift"
	TriggerCrisis       = "crisis"
	SkipEmergency       = "emergency"
)

// SummaryPolicy decides when the rolling summary is regenerated. The keyword
// lists are heuristics and are meant to be tuned.
type SummaryPolicy struct {
	RefreshAfterMessages int
	TopicKeywords        map[string][]string
	CrisisKeywords       []string
}

// PolicyFromConfig builds the policy from memory settings
func PolicyFromConfig(cfg config.MemoryConfig) SummaryPolicy {
	p := SummaryPolicy{
		RefreshAfterMessages: cfg.SummaryAfterMessages,
		TopicKeywords:        DefaultTopicKeywords,
		CrisisKeywords:       cfg.CrisisKeywords,
	}
	if p.RefreshAfterMessages <= 0 {
		p.RefreshAfterMessages = 10
	}
	if len(p.CrisisKeywords) == 0 {
		p.CrisisKeywords = config.DefaultCrisisKeywords
	}
	return p
}

// Decision is the outcome of the policy for one turn
type Decision struct {
	Refresh bool   `json:"refresh"`
	Trigger string `json:"trigger,omitempty"`
	// NewTopics lists categories in the message that the summary lacks
	NewTopics []string `json:"new_topics,omitempty"`
}

// SummaryState is what the policy knows about the conversation
type SummaryState struct {
	Summary         string
	Watermark       int64
	MessageCount    int64
	UserMessage     string
	EmergencyActive bool
}

// Decide applies the policy. An active emergency skips the refresh entirely.
// Otherwise it refreshes when enough messages piled up since the watermark,
// when a crisis keyword appears, or when the message brings up a health
// topic the prior summary never mentions.
func (p SummaryPolicy) Decide(st SummaryState) Decision {
	if st.EmergencyActive {
		return Decision{Trigger: SkipEmergency}
	}

	pending := st.MessageCount - st.Watermark
	if pending <= 0 {
		return Decision{}
	}

	if pending >= int64(p.RefreshAfterMessages) {
		return Decision{Refresh: true, Trigger: TriggerMessageCount}
	}

	if ContainsAny(st.UserMessage, p.CrisisKeywords) {
		return Decision{Refresh: true, Trigger: TriggerCrisis}
	}

	current := Topics(st.UserMessage, p.TopicKeywords)
	if len(current) == 0 {
		return Decision{}
	}
	known := make(map[string]bool)
	for _, t := range Topics(st.Summary, p.TopicKeywords) {
		known[t] = true
	}
	var fresh []string
	for _, t := range current {
		if !known[t] {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) > 0 {
		return Decision{Refresh: true, Trigger: TriggerTopicShift, NewTopics: fresh}
	}
	return Decision{}
}
