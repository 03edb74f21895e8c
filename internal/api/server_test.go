package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/agent"
	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/security"
)

type fakeAgent struct {
	chatErr   error
	lastChat  agent.ChatRequest
	pending   map[string][]*actions.PendingConfirmation
	confirmed []string
	rejected  []string
	resolved  []string
	amended   map[string]interface{}
}

func (f *fakeAgent) Chat(_ context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	f.lastChat = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &agent.ChatResponse{ConversationID: "conv-1", Reply: "echo: " + req.Message}, nil
}

func (f *fakeAgent) Confirm(_ context.Context, userID, requestID string, amendments map[string]interface{}) (actions.ExecutionResult, error) {
	for _, p := range f.pending[userID] {
		if p.RequestID == requestID {
			f.confirmed = append(f.confirmed, requestID)
			f.amended = amendments
			return actions.ExecutionResult{Success: true, RequestID: requestID, Capability: p.Capability, Stage: actions.StageDispatch}, nil
		}
	}
	return actions.ExecutionResult{}, apperrors.ErrUnknownConfirmation
}

func (f *fakeAgent) Reject(_ context.Context, userID, requestID string) error {
	for _, p := range f.pending[userID] {
		if p.RequestID == requestID {
			f.rejected = append(f.rejected, requestID)
			return nil
		}
	}
	return apperrors.ErrUnknownConfirmation
}

func (f *fakeAgent) Pending(_ context.Context, userID string) ([]*actions.PendingConfirmation, error) {
	return f.pending[userID], nil
}

func (f *fakeAgent) ResolveEmergency(_ context.Context, userID string) error {
	f.resolved = append(f.resolved, userID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeAgent) {
	t.Helper()
	fa := &fakeAgent{pending: map[string][]*actions.PendingConfirmation{
		"margaret": {{RequestID: "req-1", UserID: "margaret", Capability: capability.AddMedication, Prompt: "Add lisinopril 10mg?"}},
	}}
	s := New(Options{
		Config:  &config.Config{},
		Agent:   fa,
		Catalog: capability.NewDefaultRegistry(),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Logger:  zap.NewNop(),
		Version: "test",
	})
	return s, fa
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	resp, body := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "test", h.Version)
}

func TestChat(t *testing.T) {
	s, fa := newTestServer(t)
	resp, body := do(t, s, http.MethodPost, "/api/chat", `{"user_id":"margaret","message":"I took my aspirin"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out agent.ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "echo: I took my aspirin", out.Reply)
	assert.Equal(t, "margaret", fa.lastChat.UserID)
}

func TestChat_DefaultsUser(t *testing.T) {
	s, fa := newTestServer(t)
	resp, _ := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "default", fa.lastChat.UserID)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{"message":`, nil, http.StatusBadRequest, apperrors.ErrBadRequest.Code},
		{"empty message", `{"message":"  "}`, nil, http.StatusBadRequest, apperrors.ErrBadRequest.Code},
		{"rejected input", `{"message":"x"}`, apperrors.WithCause(apperrors.ErrInputRejected, security.ErrPromptInjection), http.StatusBadRequest, apperrors.ErrInputRejected.Code},
		{"rate limited", `{"message":"x"}`, apperrors.ErrRateLimited, http.StatusTooManyRequests, apperrors.ErrRateLimited.Code},
		{"provider down", `{"message":"x"}`, apperrors.WithCause(apperrors.ErrProviderUnavailable, io.EOF), http.StatusServiceUnavailable, apperrors.ErrProviderUnavailable.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fa := newTestServer(t)
			fa.chatErr = tt.err
			resp, body := do(t, s, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var e ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestChat_RejectionCarriesReason(t *testing.T) {
	s, fa := newTestServer(t)
	fa.chatErr = apperrors.WithCause(apperrors.ErrInputRejected, security.ErrPromptInjection)
	_, body := do(t, s, http.MethodPost, "/api/chat", `{"message":"x"}`)

	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, security.ErrPromptInjection.Error(), e.Detail)
}

func TestConfirmations(t *testing.T) {
	s, fa := newTestServer(t)

	resp, body := do(t, s, http.MethodGet, "/api/confirmations?user_id=margaret", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ConfirmationsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Pending, 1)
	assert.Equal(t, "req-1", list.Pending[0].RequestID)

	resp, body = do(t, s, http.MethodPost, "/api/confirmations/req-1/confirm", `{"user_id":"margaret","amendments":{"dosage":"20mg"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result actions.ExecutionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)
	assert.Equal(t, []string{"req-1"}, fa.confirmed)
	assert.Equal(t, "20mg", fa.amended["dosage"])

	resp, _ = do(t, s, http.MethodPost, "/api/confirmations/req-1/reject", `{"user_id":"margaret"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"req-1"}, fa.rejected)
}

func TestConfirmations_Unknown(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := do(t, s, http.MethodPost, "/api/confirmations/nope/confirm", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, apperrors.ErrUnknownConfirmation.Code, e.Code)

	resp, _ = do(t, s, http.MethodPost, "/api/confirmations/req-1/reject", `{"user_id":"someone-else"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "another user's confirmation is not visible")
}

func TestCapabilities(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := do(t, s, http.MethodGet, "/api/capabilities", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all CapabilitiesResponse
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Equal(t, len(capability.NewDefaultRegistry().IDs()), all.Count)

	_, body = do(t, s, http.MethodGet, "/api/capabilities?category="+string(capability.CategoryMedication), "")
	var meds CapabilitiesResponse
	require.NoError(t, json.Unmarshal(body, &meds))
	require.NotZero(t, meds.Count)
	assert.Less(t, meds.Count, all.Count)
	for _, d := range meds.Capabilities {
		assert.Equal(t, capability.CategoryMedication, d.Category)
	}
}

func TestResolveEmergency(t *testing.T) {
	s, fa := newTestServer(t)
	resp, _ := do(t, s, http.MethodPost, "/api/users/margaret/emergency/resolve", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"margaret"}, fa.resolved)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.metrics.RecordActionOutcome(capability.LogMedication, string(actions.StageDispatch), true)

	resp, body := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "log_medication")
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := do(t, s, http.MethodGet, "/api/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
