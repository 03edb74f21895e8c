package actions

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return NewParser(zap.NewNop(), nil)
}

func TestParse_CurrentEncoding(t *testing.T) {
	reply := `Great job! [TOOL_CALL]{"id":"req-1","tool":"log_medication","parameters":{"medication_name":"aspirin"},"confidence":0.95,"reasoning":"user said took"}[/TOOL_CALL]`

	res := newTestParser().Parse(reply)

	require.Len(t, res.Requests, 1)
	req := res.Requests[0]
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "log_medication", req.Capability)
	assert.Equal(t, "aspirin", req.Parameters["medication_name"])
	assert.Equal(t, 0.95, req.Confidence)
	assert.Equal(t, "user said took", req.Reasoning)
	assert.Equal(t, EncodingCurrent, req.Encoding)
	assert.Equal(t, "Great job!", res.DisplayText)
}

func TestParse_LegacyEncodingDefaultsConfidence(t *testing.T) {
	reply := `Logged. [ACTION]{"type":"log_hydration","data":{"amount_ml":250}}[/ACTION]`

	res := newTestParser().Parse(reply)

	require.Len(t, res.Requests, 1)
	req := res.Requests[0]
	assert.Equal(t, "log_hydration", req.Capability)
	assert.Equal(t, LegacyDefaultConfidence, req.Confidence)
	assert.Equal(t, EncodingLegacy, req.Encoding)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, float64(250), req.Parameters["amount_ml"])
}

func TestParse_LegacyExplicitConfidence(t *testing.T) {
	res := newTestParser().Parse(`[ACTION]{"type":"log_checkin","data":{"mood":"good"},"confidence":0.6}[/ACTION]`)
	require.Len(t, res.Requests, 1)
	assert.Equal(t, 0.6, res.Requests[0].Confidence)
}

func TestParse_CurrentWithoutConfidenceIsZero(t *testing.T) {
	res := newTestParser().Parse(`[TOOL_CALL]{"tool":"log_hydration","parameters":{"amount_ml":250}}[/TOOL_CALL]`)
	require.Len(t, res.Requests, 1)
	assert.Zero(t, res.Requests[0].Confidence)
	assert.NotEmpty(t, res.Requests[0].ID)
}

func TestParse_MixedEncodingsKeepOrder(t *testing.T) {
	reply := "First [ACTION]{\"type\":\"log_hydration\",\"data\":{\"amount_ml\":500}}[/ACTION]\n" +
		"then [TOOL_CALL]{\"id\":\"b\",\"tool\":\"log_checkin\",\"parameters\":{\"mood\":\"good\"},\"confidence\":0.9}[/TOOL_CALL] done."

	res := newTestParser().Parse(reply)

	require.Len(t, res.Requests, 2)
	assert.Equal(t, "log_hydration", res.Requests[0].Capability)
	assert.Equal(t, "log_checkin", res.Requests[1].Capability)
	assert.Equal(t, "First\nthen done.", res.DisplayText)
}

func TestParse_MalformedIsSkipped(t *testing.T) {
	reply := `Okay. [TOOL_CALL]{"tool": "log_medication", "parameters": {oops}[/TOOL_CALL] ` +
		`[TOOL_CALL]{"id":"ok","tool":"log_hydration","parameters":{"amount_ml":250},"confidence":0.9}[/TOOL_CALL] ` +
		`[ACTION]{"data":{}}[/ACTION]`

	res := newTestParser().Parse(reply)

	require.Len(t, res.Requests, 1)
	assert.Equal(t, "ok", res.Requests[0].ID)
	assert.Equal(t, 2, res.Malformed)
	assert.Equal(t, "Okay.", res.DisplayText)
}

func TestParse_RoundTripNMarkers(t *testing.T) {
	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var sb strings.Builder
			sb.WriteString("Here is your update.\n\n")
			for i := 0; i < n; i++ {
				if i%2 == 0 {
					fmt.Fprintf(&sb, "[TOOL_CALL]{\"id\":\"r%d\",\"tool\":\"log_hydration\",\"parameters\":{\"amount_ml\":250},\"confidence\":0.9}[/TOOL_CALL]\n\n", i)
				} else {
					fmt.Fprintf(&sb, "Line %d [ACTION]{\"type\":\"log_checkin\",\"data\":{\"mood\":\"good\"}}[/ACTION]\n\n", i)
				}
			}
			sb.WriteString("Take care!")

			res := newTestParser().Parse(sb.String())

			assert.Len(t, res.Requests, n)
			for _, marker := range []string{"[TOOL_CALL]", "[/TOOL_CALL]", "[ACTION]", "[/ACTION]"} {
				assert.NotContains(t, res.DisplayText, marker)
			}
			assert.NotContains(t, res.DisplayText, "\n\n\n")
			assert.True(t, strings.HasPrefix(res.DisplayText, "Here is your update."))
			assert.True(t, strings.HasSuffix(res.DisplayText, "Take care!"))
		})
	}
}

func TestParse_UnterminatedMarkerStripped(t *testing.T) {
	res := newTestParser().Parse(`Sure thing. [TOOL_CALL]{"tool":"log_hydration","parameters":{"amount_ml":250}`)

	assert.Empty(t, res.Requests)
	assert.Equal(t, 1, res.Malformed)
	assert.Equal(t, "Sure thing.", res.DisplayText)
}

func TestParse_NoMarkers(t *testing.T) {
	res := newTestParser().Parse("  How are you feeling today?  ")
	assert.Empty(t, res.Requests)
	assert.Equal(t, "How are you feeling today?", res.DisplayText)
}

func TestParse_GeneratesDistinctIDs(t *testing.T) {
	res := newTestParser().Parse(`[ACTION]{"type":"log_hydration","data":{}}[/ACTION][ACTION]{"type":"log_hydration","data":{}}[/ACTION]`)
	require.Len(t, res.Requests, 2)
	assert.NotEqual(t, res.Requests[0].ID, res.Requests[1].ID)
	assert.NotNil(t, res.Requests[0].Parameters)
}
