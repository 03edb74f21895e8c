package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/capability"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/metrics"
)

// DefaultConfirmationTTL is how long a proposal waits for an answer.
const DefaultConfirmationTTL = 30 * time.Minute

// ConfirmationManager moves requests through proposed, confirmed and
// rejected. Confirmed and rejected entries leave the pending set.
type ConfirmationManager struct {
	store   PendingStore
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewConfirmationManager creates a manager over store. A non-positive ttl
// uses DefaultConfirmationTTL.
func NewConfirmationManager(store PendingStore, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *ConfirmationManager {
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &ConfirmationManager{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Propose stores req until the user answers. A second proposal with the same
// request id fails with ErrDuplicateConfirmation.
func (m *ConfirmationManager) Propose(ctx context.Context, userID string, req *ActionRequest, def *capability.Definition, crisis bool) (*PendingConfirmation, error) {
	now := m.now()
	p := &PendingConfirmation{
		RequestID:   req.ID,
		UserID:      userID,
		Capability:  def.ID,
		DisplayName: def.DisplayName,
		Parameters:  cloneParams(req.Parameters),
		Prompt:      BuildPrompt(def, req),
		Sensitivity: def.Sensitivity,
		Confidence:  req.EffectiveConfidence(),
		Crisis:      crisis,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, p); err != nil {
		return nil, err
	}

	m.metrics.RecordConfirmation("proposed")
	m.logger.Info("Action awaiting confirmation",
		zap.String("request_id", p.RequestID),
		zap.String("user_id", userID),
		zap.String("tool", p.Capability))
	return p, nil
}

// Confirm removes the entry and returns the request with amendments applied.
// An amendment with a nil value removes that parameter.
func (m *ConfirmationManager) Confirm(ctx context.Context, requestID, userID string, amendments map[string]interface{}) (*ActionRequest, *PendingConfirmation, error) {
	p, err := m.store.Take(ctx, requestID, userID, m.now())
	if err != nil {
		return nil, nil, err
	}

	req := p.Request()
	for k, v := range amendments {
		if v == nil {
			delete(req.Parameters, k)
			continue
		}
		req.Parameters[k] = v
	}

	m.metrics.RecordConfirmation("confirmed")
	m.logger.Info("Action confirmed",
		zap.String("request_id", requestID),
		zap.String("user_id", userID),
		zap.Int("amendments", len(amendments)))
	return req, p, nil
}

// Reject discards the entry.
func (m *ConfirmationManager) Reject(ctx context.Context, requestID, userID string) error {
	if _, err := m.store.Take(ctx, requestID, userID, m.now()); err != nil {
		return err
	}
	m.metrics.RecordConfirmation("rejected")
	m.logger.Info("Action rejected", zap.String("request_id", requestID), zap.String("user_id", userID))
	return nil
}

// Pending lists the user's live proposals, oldest first.
func (m *ConfirmationManager) Pending(ctx context.Context, userID string) ([]*PendingConfirmation, error) {
	return m.store.List(ctx, userID, m.now())
}

// Sweep deletes expired proposals and returns how many went.
func (m *ConfirmationManager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.Sweep(ctx, m.now())
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		m.metrics.RecordConfirmation("expired")
	}
	if n > 0 {
		m.logger.Debug("Swept expired confirmations", zap.Int("count", n))
	}
	return n, nil
}

// IsUnknown reports whether err means the confirmation id is not pending.
func IsUnknown(err error) bool {
	return apperrors.GetCode(err) == apperrors.ErrUnknownConfirmation.Code
}

// BuildPrompt renders a plain-language summary of what will be written.
func BuildPrompt(def *capability.Definition, req *ActionRequest) string {
	summaries := make(map[string]string, len(req.Extractions))
	for _, e := range req.Extractions {
		if e.Matched && e.Summary != "" {
			summaries[e.Field] = e.Summary
		}
	}

	var parts []string
	seen := make(map[string]bool)
	for _, p := range def.Parameters {
		if p.Derived {
			continue
		}
		v, ok := req.Parameters[p.Name]
		if !ok || v == nil {
			continue
		}
		seen[p.Name] = true
		text := formatValue(v)
		if s, ok := summaries[p.Name]; ok {
			text = s
		}
		if text == "" {
			continue
		}
		parts = append(parts, humanField(p.Name)+": "+text)
	}

	// summaries for fields that are not parameters of their own
	var extra []string
	for field, s := range summaries {
		if !seen[field] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	parts = append(parts, extra...)

	prompt := def.DisplayName
	if len(parts) > 0 {
		prompt += ": " + strings.Join(parts, ", ")
	}
	return prompt + ". Shall I save this?"
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, formatValue(item))
		}
		return strings.Join(items, ", ")
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
