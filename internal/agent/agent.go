// Package agent runs one conversation turn end to end: screen the message,
// assemble memory, ask the model, run the action pipeline over its reply and
// persist the exchange.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/actions"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/keyed"
	"github.com/gmsas95/myrai-care/internal/llm"
	"github.com/gmsas95/myrai-care/internal/memory"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/security"
	"github.com/gmsas95/myrai-care/internal/store"
)

// ContextAssembler builds the per-turn memory context
type ContextAssembler interface {
	Assemble(ctx context.Context, userID, message string) (*memory.Context, error)
	SystemPrompt(mc *memory.Context) string
}

// ActionEngine is the action pipeline
type ActionEngine interface {
	Process(ctx context.Context, turn actions.Turn) (*actions.TurnOutcome, error)
	Confirm(ctx context.Context, userID, requestID string, amendments map[string]interface{}, now time.Time) (actions.ExecutionResult, error)
	Reject(ctx context.Context, userID, requestID string) error
	Pending(ctx context.Context, userID string) ([]*actions.PendingConfirmation, error)
}

// ConversationStore persists turns and the profile counters they move
type ConversationStore interface {
	ActiveConversation(ctx context.Context, userID string) (*store.Conversation, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
	RecordInteraction(ctx context.Context, userID string) (string, error)
	SetEmergency(ctx context.Context, userID string, active bool) error
}

// Options wires an Agent
type Options struct {
	Memory    ContextAssembler
	Completer llm.Completer
	Engine    ActionEngine
	Store     ConversationStore
	Guard     *security.SecurityGuard
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// MaxTokens caps the reply; zero leaves it to the provider
	MaxTokens int
	Now       func() time.Time
}

// Agent handles conversation turns. Turns for the same user never overlap.
type Agent struct {
	memory    ContextAssembler
	completer llm.Completer
	engine    ActionEngine
	store     ConversationStore
	guard     *security.SecurityGuard
	logger    *zap.Logger
	metrics   *metrics.Metrics
	maxTokens int
	now       func() time.Time
	users     *keyed.Mutex
}

// New creates a new Agent
func New(opts Options) (*Agent, error) {
	if opts.Memory == nil || opts.Completer == nil || opts.Engine == nil || opts.Store == nil {
		return nil, apperrors.New(apperrors.ErrConfigInvalid.Code, "agent needs memory, completer, engine and store")
	}
	a := &Agent{
		memory:    opts.Memory,
		completer: opts.Completer,
		engine:    opts.Engine,
		store:     opts.Store,
		guard:     opts.Guard,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		maxTokens: opts.MaxTokens,
		now:       opts.Now,
		users:     keyed.New(),
	}
	if a.guard == nil {
		a.guard = security.NewSecurityGuard(0, true)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// ChatRequest is one user message
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is what the user sees for a turn plus the action records
type ChatResponse struct {
	ConversationID string                         `json:"conversation_id"`
	Reply          string                         `json:"reply"`
	Results        []actions.ExecutionResult      `json:"results,omitempty"`
	Pending        []*actions.PendingConfirmation `json:"pending,omitempty"`
	Crisis         bool                           `json:"crisis,omitempty"`
	Flags          []string                       `json:"flags,omitempty"`
	Stage          string                         `json:"relationship_stage,omitempty"`
	SummaryTrigger string                         `json:"summary_trigger,omitempty"`
	ResponseTime   time.Duration                  `json:"response_time"`
}

// Chat handles a single turn
func (a *Agent) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := a.now()
	userID := req.UserID
	if userID == "" {
		userID = store.DefaultUserID
	}

	check := a.guard.Check(req.Message)
	if !check.Allowed {
		if check.HasFlag(security.FlagPromptInjection) {
			a.metrics.RecordInjectionBlocked()
		}
		a.logger.Warn("Message rejected",
			zap.String("user_id", userID),
			zap.Strings("flags", check.Flags),
			zap.Error(check.Err))
		return nil, apperrors.WithCause(apperrors.ErrInputRejected, check.Err)
	}
	if len(check.Flags) > 0 {
		a.logger.Info("Message flagged",
			zap.String("user_id", userID),
			zap.Strings("flags", check.Flags),
			zap.String("message", check.Redacted))
	}
	message := check.Message

	unlock := a.users.Lock(userID)
	defer unlock()

	resp, err := a.turn(ctx, userID, message, start)
	a.metrics.RecordTurn(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	resp.Flags = check.Flags
	return resp, nil
}

func (a *Agent) turn(ctx context.Context, userID, message string, start time.Time) (*ChatResponse, error) {
	mc, err := a.memory.Assemble(ctx, userID, message)
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, fmt.Errorf("assemble context: %w", err))
	}

	reply, err := a.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: a.memory.SystemPrompt(mc),
		History:      mc.History(),
		UserMessage:  message,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		if !mc.Intents.Crisis {
			return nil, err
		}
		// a crisis message still gets the safety notice
		a.logger.Error("Completion failed during crisis", zap.String("user_id", userID), zap.Error(err))
		reply = ""
	}

	outcome, err := a.engine.Process(ctx, actions.Turn{
		UserID:      userID,
		UserMessage: message,
		Reply:       reply,
		Now:         a.now(),
	})
	if err != nil {
		return nil, err
	}

	crisis := outcome.Crisis || mc.Intents.Crisis
	display := outcome.DisplayText
	if crisis && !strings.Contains(display, actions.CrisisNotice) {
		display = strings.TrimSpace(display + "\n\n" + actions.CrisisNotice)
	}

	resp := &ChatResponse{
		ConversationID: mc.ConversationID,
		Reply:          display,
		Results:        outcome.Results,
		Pending:        outcome.Pending,
		Crisis:         crisis,
		SummaryTrigger: mc.SummaryDecision.Trigger,
	}
	resp.ResponseTime = a.now().Sub(start)

	if err := a.persist(ctx, mc.ConversationID, message, resp); err != nil {
		return nil, err
	}

	stage, err := a.store.RecordInteraction(ctx, userID)
	if err != nil {
		a.logger.Warn("Failed to record interaction", zap.String("user_id", userID), zap.Error(err))
	}
	resp.Stage = stage

	if crisis && !mc.Working.EmergencyActive {
		if err := a.store.SetEmergency(ctx, userID, true); err != nil {
			a.logger.Error("Failed to raise emergency flag", zap.String("user_id", userID), zap.Error(err))
		}
	}

	a.logger.Debug("Turn complete",
		zap.String("user_id", userID),
		zap.Int("actions", len(outcome.Results)),
		zap.Int("pending", len(outcome.Pending)),
		zap.Bool("crisis", crisis),
		zap.Duration("elapsed", resp.ResponseTime))

	return resp, nil
}

func (a *Agent) persist(ctx context.Context, conversationID, message string, resp *ChatResponse) error {
	userMsg := &store.Message{
		ConversationID: conversationID,
		Role:           llm.RoleUser,
		Content:        message,
	}
	if err := a.store.AppendMessage(ctx, userMsg); err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, fmt.Errorf("save user message: %w", err))
	}

	assistantMsg := &store.Message{
		ConversationID: conversationID,
		Role:           llm.RoleAssistant,
		Content:        resp.Reply,
		LatencyMs:      int(resp.ResponseTime / time.Millisecond),
	}
	if len(resp.Results) > 0 {
		raw, err := json.Marshal(resp.Results)
		if err != nil {
			return fmt.Errorf("encode action results: %w", err)
		}
		assistantMsg.ToolResults = raw
	}
	if err := a.store.AppendMessage(ctx, assistantMsg); err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, fmt.Errorf("save assistant message: %w", err))
	}
	return nil
}

// Confirm approves a held action, optionally amending its parameters.
func (a *Agent) Confirm(ctx context.Context, userID, requestID string, amendments map[string]interface{}) (actions.ExecutionResult, error) {
	unlock := a.users.Lock(userID)
	defer unlock()
	return a.engine.Confirm(ctx, userID, requestID, amendments, a.now())
}

// Reject drops a held action without running it.
func (a *Agent) Reject(ctx context.Context, userID, requestID string) error {
	unlock := a.users.Lock(userID)
	defer unlock()
	return a.engine.Reject(ctx, userID, requestID)
}

// Pending lists the user's held actions.
func (a *Agent) Pending(ctx context.Context, userID string) ([]*actions.PendingConfirmation, error) {
	return a.engine.Pending(ctx, userID)
}

// ResolveEmergency clears the emergency flag once the person is safe.
func (a *Agent) ResolveEmergency(ctx context.Context, userID string) error {
	unlock := a.users.Lock(userID)
	defer unlock()
	if err := a.store.SetEmergency(ctx, userID, false); err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	a.logger.Info("Emergency resolved", zap.String("user_id", userID))
	return nil
}
