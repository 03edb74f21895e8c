package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmsas95/myrai-care/internal/config"
)

func TestSummaryPolicy_Decide(t *testing.T) {
	policy := PolicyFromConfig(config.MemoryConfig{SummaryAfterMessages: 10})

	tests := []struct {
		name    string
		state   SummaryState
		refresh bool
		trigger string
	}{
		{
			name:    "emergency skips everything",
			state:   SummaryState{MessageCount: 50, UserMessage: "chest pain", EmergencyActive: true},
			trigger: SkipEmergency,
		},
		{
			name:  "nothing since watermark",
			state: SummaryState{MessageCount: 20, Watermark: 20, UserMessage: "my blood pressure"},
		},
		{
			name:    "ten messages since watermark",
			state:   SummaryState{MessageCount: 15, Watermark: 5, UserMessage: "hi"},
			refresh: true,
			trigger: TriggerMessageCount,
		},
		{
			name:  "nine messages is not enough",
			state: SummaryState{MessageCount: 14, Watermark: 5, UserMessage: "hi"},
		},
		{
			name:    "crisis keyword",
			state:   SummaryState{MessageCount: 3, UserMessage: "I can't breathe"},
			refresh: true,
			trigger: TriggerCrisis,
		},
		{
			name:    "new topic",
			state:   SummaryState{Summary: "Talked about her blood pressure readings.", MessageCount: 3, UserMessage: "I've had a headache all day"},
			refresh: true,
			trigger: TriggerTopicShift,
		},
		{
			name:  "topic already covered",
			state: SummaryState{Summary: "Her blood pressure was 130/85.", MessageCount: 3, UserMessage: "should I check my bp again?"},
		},
		{
			name:  "small talk",
			state: SummaryState{MessageCount: 3, UserMessage: "thanks, see you later"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(tt.state)
			assert.Equal(t, tt.refresh, d.Refresh)
			assert.Equal(t, tt.trigger, d.Trigger)
		})
	}
}

func TestSummaryPolicy_NewTopics(t *testing.T) {
	policy := PolicyFromConfig(config.MemoryConfig{})
	d := policy.Decide(SummaryState{Summary: "She slept badly.", MessageCount: 2, UserMessage: "I slept fine but forgot my pills"})
	assert.True(t, d.Refresh)
	assert.Equal(t, []string{TopicMedication}, d.NewTopics)
}

func TestDetectIntents(t *testing.T) {
	in := DetectIntents("I took my aspirin this morning", DefaultTopicKeywords, config.DefaultCrisisKeywords)
	assert.True(t, in.Medication)
	assert.False(t, in.Mood)
	assert.False(t, in.Crisis)

	in = DetectIntents("Feeling really down today", DefaultTopicKeywords, config.DefaultCrisisKeywords)
	assert.True(t, in.Mood)
	assert.Equal(t, []string{TopicMood}, in.Topics)

	in = DetectIntents("my chest pain is back", DefaultTopicKeywords, config.DefaultCrisisKeywords)
	assert.True(t, in.Crisis)
	assert.Contains(t, in.Topics, TopicPain)

	in = DetectIntents("the weather is nice", DefaultTopicKeywords, config.DefaultCrisisKeywords)
	assert.Empty(t, in.Topics)
}
