package actions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/skills"
)

var refTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// recorder stands in for the health store and counts writes per capability.
type recorder struct {
	mu    sync.Mutex
	calls []skills.Call
	by    map[string]int
}

func (r *recorder) handler(id string) skills.Handler {
	return func(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call)
		r.by[id]++

		out := &skills.Outcome{Message: "done " + id}
		if id == capability.LogBloodPressure {
			if sys, _ := skills.NumberArg(call.Params, "systolic"); sys > 180 {
				out.Crisis = true
			}
		}
		return out, nil
	}
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.by[id]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() skills.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	catalog := capability.NewDefaultRegistry()
	rec := &recorder{by: make(map[string]int)}

	bindings := skills.NewRegistry()
	for _, id := range catalog.IDs() {
		require.NoError(t, bindings.Bind(skills.Binding{Capability: id, Handler: rec.handler(id)}))
	}

	engine, err := NewEngine(EngineOptions{
		Catalog:  catalog,
		Bindings: bindings,
		Guardrail: NewGuardrail(config.GuardrailsConfig{
			MinConfidence:          0.7,
			ExplicitActionKeywords: config.DefaultExplicitActionKeywords,
			BlockOnInjection:       true,
		}, fakeDetector{hit: "ignore previous instructions"}),
		Confirmations: NewConfirmationManager(NewMemoryPendingStore(), 0, zap.NewNop(), nil),
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	return engine, rec
}

func toolCall(id, tool string, confidence float64, params string) string {
	return fmt.Sprintf(`[TOOL_CALL]{"id":%q,"tool":%q,"parameters":%s,"confidence":%v}[/TOOL_CALL]`, id, tool, params, confidence)
}

func process(t *testing.T, e *Engine, message, reply string) *TurnOutcome {
	t.Helper()
	out, err := e.Process(context.Background(), Turn{UserID: "u1", UserMessage: message, Reply: reply, Now: refTime})
	require.NoError(t, err)
	return out
}

func TestEngine_AspirinScenario(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e, rec := newTestEngine(t)

	out := process(t, e, "I took my aspirin this morning",
		"Nice work staying on track! "+toolCall("m1", "log_medication", 0.95, `{"medication_name":"aspirin","taken_at":"this morning"}`))

	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, 1, rec.count(capability.LogMedication))
	assert.Equal(t, "aspirin", rec.last().Params["medication_name"])
	assert.Equal(t, "Nice work staying on track!\n\ndone log_medication", out.DisplayText)
}

func TestEngine_RepeatedRequestIDRunsOnce(t *testing.T) {
	e, rec := newTestEngine(t)
	marker := toolCall("r1", "log_medication", 0.95, `{"medication_name":"aspirin"}`)

	out := process(t, e, "I took my aspirin", "Logged it. "+marker+" "+marker)

	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, StageDispatch, out.Results[0].Stage)

	dup := out.Results[1]
	assert.False(t, dup.Success)
	assert.Equal(t, "r1", dup.RequestID)
	assert.Equal(t, StageParse, dup.Stage)
	assert.Contains(t, dup.Error, "duplicate request id")

	assert.Equal(t, 1, rec.count(capability.LogMedication))
	assert.Equal(t, "Logged it.\n\ndone log_medication", out.DisplayText)
}

func TestEngine_HeadacheScenario(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "I have a headache",
		"I'm sorry to hear that. "+toolCall("m2", "log_medication", 0.5, `{"medication_name":"ibuprofen"}`))

	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.False(t, res.Success)
	assert.Equal(t, StageGuardrail, res.Stage)
	assert.Contains(t, res.Error, "confidence too low")
	assert.Zero(t, rec.total())
	assert.Contains(t, out.DisplayText, "I'm sorry to hear that.")
	assert.Contains(t, out.DisplayText, "?")

	// confident but still no medication wording from the user
	out = process(t, e, "I have a headache",
		toolCall("m3", "log_medication", 0.85, `{"medication_name":"ibuprofen"}`))
	assert.False(t, out.Results[0].Success)
	assert.Equal(t, StageGuardrail, out.Results[0].Stage)
	assert.Zero(t, rec.total())
}

func TestEngine_ReversedBloodPressureAsksInstead(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "my blood pressure was diastolic 130 systolic 120",
		toolCall("bp1", "log_blood_pressure", 0.9, `{"reading":"diastolic 130 systolic 120","systolic":120,"diastolic":130}`))

	res := out.Results[0]
	assert.False(t, res.Success)
	assert.Equal(t, StageEnrichment, res.Stage)
	assert.Contains(t, res.Message, "reading")
	assert.Zero(t, rec.total())
}

func TestEngine_BloodPressureCanonicalized(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "bp 190 over 100 sitting",
		toolCall("bp2", "log_blood_pressure", 0.9, `{"reading":"190 over 100 sitting","systolic":0,"diastolic":0}`))

	require.True(t, out.Results[0].Success, out.Results[0].Error)
	call := rec.last()
	assert.Equal(t, 190.0, call.Params["systolic"])
	assert.Equal(t, 100.0, call.Params["diastolic"])
	assert.Equal(t, "sitting", call.Params["position"])
	assert.True(t, out.Crisis)
	assert.Contains(t, out.DisplayText, CrisisNotice)
}

func TestEngine_HydrationQuantityEnriched(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "I drank two bottles of water",
		`[ACTION]{"type":"log_hydration","data":{"quantity":"two bottles","amount_ml":250}}[/ACTION]`)

	require.True(t, out.Results[0].Success)
	assert.Equal(t, 1000.0, rec.last().Params["amount_ml"])
}

func TestEngine_NoWriteBeforeConfirm(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	out := process(t, e, "remind me to take metformin in 2 weeks",
		toolCall("rem1", "create_reminder", 0.9, `{"title":"Take metformin","schedule":"in 2 weeks"}`))

	res := out.Results[0]
	assert.False(t, res.Success)
	assert.True(t, res.RequiresConfirmation)
	assert.Equal(t, StageConfirmation, res.Stage)
	assert.NotEmpty(t, res.ConfirmationPrompt)
	require.Len(t, out.Pending, 1)
	assert.Zero(t, rec.total())

	pending, err := e.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2024-01-29T09:00:00Z", pending[0].Parameters["remind_at"])

	confirmed, err := e.Confirm(ctx, "u1", "rem1", nil, refTime)
	require.NoError(t, err)
	assert.True(t, confirmed.Success)
	assert.Equal(t, 1, rec.count(capability.CreateReminder))

	_, err = e.Confirm(ctx, "u1", "rem1", nil, refTime)
	assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)
	assert.Equal(t, 1, rec.total())
}

func TestEngine_ConfirmWithAmendmentsReenriches(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	process(t, e, "remind me about metformin every day",
		toolCall("rem2", "create_reminder", 0.9, `{"title":"Take metformin","schedule":"every day"}`))

	res, err := e.Confirm(ctx, "u1", "rem2", map[string]interface{}{"schedule": "every weekday at 8am"}, refTime)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "08:00", rec.last().Params["time"])
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.last().Params["days"])
}

func TestEngine_ConfirmAmendmentThatCannotBeRead(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	process(t, e, "remind me about metformin every day",
		toolCall("rem3", "create_reminder", 0.9, `{"title":"Take metformin","schedule":"every day"}`))

	res, err := e.Confirm(ctx, "u1", "rem3", map[string]interface{}{"schedule": "whenever"}, refTime)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StageEnrichment, res.Stage)
	assert.Zero(t, rec.total())
}

func TestEngine_RejectThenConfirm(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	process(t, e, "please add lisinopril 10mg to my medications",
		toolCall("med1", "add_medication", 0.9, `{"name":"lisinopril","dosage":"10mg"}`))

	require.NoError(t, e.Reject(ctx, "u1", "med1"))
	_, err := e.Confirm(ctx, "u1", "med1", nil, refTime)
	assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)
	assert.Zero(t, rec.total())
}

func TestEngine_UnknownConfirmation(t *testing.T) {
	e, rec := newTestEngine(t)
	_, err := e.Confirm(context.Background(), "u1", "never-proposed", nil, refTime)
	assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)
	assert.Zero(t, rec.total())
}

func TestEngine_UnknownCapability(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "order me a pizza", toolCall("x", "order_pizza", 0.99, `{}`))

	res := out.Results[0]
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "ACTION_UNKNOWN_CAPABILITY")
	assert.Zero(t, rec.total())
}

func TestEngine_ValidationFailure(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "I took my pill", toolCall("v", "log_medication", 0.9, `{"dose":"1"}`))

	res := out.Results[0]
	assert.Equal(t, StageValidation, res.Stage)
	assert.Contains(t, res.Error, "medication_name")
	assert.Zero(t, rec.total())
}

func TestEngine_CrisisCheckIn(t *testing.T) {
	e, rec := newTestEngine(t)

	out := process(t, e, "I feel hopeless today",
		toolCall("c1", "log_checkin", 0.9, `{"mood":"very_low"}`))

	assert.True(t, out.Results[0].Success)
	assert.True(t, out.Results[0].Crisis)
	assert.True(t, out.Crisis)
	assert.Contains(t, out.DisplayText, CrisisNotice)
	assert.Equal(t, 1, rec.count(capability.LogCheckIn))
}

func TestEngine_ManyRequestsKeepOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e, rec := newTestEngine(t)

	reply := "Here you go. " +
		toolCall("a", "log_hydration", 0.9, `{"amount_ml":250}`) +
		toolCall("b", "log_medication", 0.3, `{"medication_name":"aspirin"}`) +
		toolCall("c", "update_location", 0.9, `{"location":"home"}`) +
		`[ACTION]{"type":"get_hydration_today","data":{}}[/ACTION]`

	out := process(t, e, "I took aspirin, had water, and I'm home", reply)

	require.Len(t, out.Results, 4)
	ids := []string{out.Results[0].RequestID, out.Results[1].RequestID, out.Results[2].RequestID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, capability.GetHydrationToday, out.Results[3].Capability)
	assert.False(t, out.Results[1].Success)
	assert.Equal(t, 3, rec.total())
	assert.Equal(t, "Here you go.", out.DisplayText[:len("Here you go.")])
}

func TestNewEngine_RejectsBindingMismatch(t *testing.T) {
	catalog := capability.NewDefaultRegistry()
	bindings := skills.NewRegistry()
	require.NoError(t, bindings.Bind(skills.Binding{Capability: capability.LogHydration, Handler: (&recorder{by: map[string]int{}}).handler("x")}))

	_, err := NewEngine(EngineOptions{
		Catalog:       catalog,
		Bindings:      bindings,
		Guardrail:     NewGuardrail(config.GuardrailsConfig{}, nil),
		Confirmations: NewConfirmationManager(NewMemoryPendingStore(), 0, zap.NewNop(), nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound capabilities")
}
