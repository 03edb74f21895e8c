package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gmsas95/myrai-care/internal/capability"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/skills"
)

// CrisisNotice is appended to any reply that carried a crisis signal.
const CrisisNotice = "If you feel unsafe or think this may be an emergency, please call your local emergency number or go to the nearest emergency room now."

// Turn is one assistant reply to run through the pipeline
type Turn struct {
	UserID      string
	UserMessage string
	Reply       string
	Now         time.Time
}

// EngineOptions wires the engine's collaborators
type EngineOptions struct {
	Catalog       *capability.Registry
	Bindings      *skills.Registry
	Enrichers     Enrichers
	Guardrail     *Guardrail
	Confirmations *ConfirmationManager
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Engine runs parse, enrich, validate, guard, confirm and dispatch for every
// action marker in an assistant reply.
type Engine struct {
	catalog       *capability.Registry
	parser        *Parser
	enrichers     Enrichers
	guardrail     *Guardrail
	confirmations *ConfirmationManager
	dispatcher    *Dispatcher
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewEngine fails when the binding table does not match the catalog.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Catalog == nil || opts.Bindings == nil || opts.Guardrail == nil || opts.Confirmations == nil {
		return nil, apperrors.New(apperrors.ErrConfigInvalid.Code, "engine needs a catalog, bindings, guardrail and confirmation manager")
	}
	if err := opts.Bindings.Validate(opts.Catalog.IDs()); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrConfigInvalid, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	enrichers := opts.Enrichers
	if enrichers == nil {
		enrichers = DefaultEnrichers()
	}

	return &Engine{
		catalog:       opts.Catalog,
		parser:        NewParser(logger, opts.Metrics),
		enrichers:     enrichers,
		guardrail:     opts.Guardrail,
		confirmations: opts.Confirmations,
		dispatcher:    NewDispatcher(opts.Bindings, logger, opts.Metrics),
		logger:        logger,
		metrics:       opts.Metrics,
	}, nil
}

// Catalog returns the capability registry the engine validates against.
func (e *Engine) Catalog() *capability.Registry {
	return e.catalog
}

// Process parses turn.Reply and evaluates every request concurrently.
// Results keep reply order. A failed or denied request never hides the
// reply text.
func (e *Engine) Process(ctx context.Context, turn Turn) (*TurnOutcome, error) {
	if turn.Now.IsZero() {
		turn.Now = time.Now()
	}

	parsed := e.parser.Parse(turn.Reply)
	results := make([]ExecutionResult, len(parsed.Requests))
	pending := make([]*PendingConfirmation, len(parsed.Requests))

	// a request id is consumed once per reply; repeats never dispatch
	seen := make(map[string]bool, len(parsed.Requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range parsed.Requests {
		if seen[req.ID] {
			e.logger.Warn("Duplicate action request dropped", zap.String("request_id", req.ID), zap.String("tool", req.Capability))
			results[i] = failed(req, StageParse, "",
				apperrors.WithCause(apperrors.ErrDuplicateRequest, fmt.Errorf("request %q already in this reply", req.ID)))
			e.metrics.RecordActionOutcome(req.Capability, string(StageParse), false)
			continue
		}
		seen[req.ID] = true
		i, req := i, req
		g.Go(func() error {
			results[i], pending[i] = e.evaluate(gctx, turn, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &TurnOutcome{Results: results}
	for _, p := range pending {
		if p != nil {
			outcome.Pending = append(outcome.Pending, p)
		}
	}
	for _, r := range results {
		if r.Crisis {
			outcome.Crisis = true
		}
	}
	outcome.DisplayText = fold(parsed.DisplayText, results, outcome.Crisis)

	return outcome, nil
}

func (e *Engine) evaluate(ctx context.Context, turn Turn, req *ActionRequest) (ExecutionResult, *PendingConfirmation) {
	result, p := e.run(ctx, turn, req)
	e.metrics.RecordActionOutcome(req.Capability, string(result.Stage), result.Success)
	return result, p
}

func (e *Engine) run(ctx context.Context, turn Turn, req *ActionRequest) (ExecutionResult, *PendingConfirmation) {
	def, ok := e.catalog.Get(req.Capability)
	if !ok {
		e.logger.Warn("Unknown capability requested", zap.String("tool", req.Capability), zap.String("request_id", req.ID))
		return failed(req, StageValidation, "I'm not able to do that.",
			apperrors.WithCause(apperrors.ErrUnknownCapability, fmt.Errorf("capability %q", req.Capability))), nil
	}

	if res, ok := e.prepare(req, def, turn.Now); !ok {
		return res, nil
	}

	decision := e.guardrail.Evaluate(req, def, turn.UserMessage)
	if !decision.Allowed {
		e.metrics.RecordGuardrailDenial(decision.Code)
		e.logger.Info("Guardrail denied action",
			zap.String("request_id", req.ID),
			zap.String("tool", req.Capability),
			zap.String("reason", decision.Code),
			zap.Float64("confidence", req.EffectiveConfidence()))
		res := failed(req, StageGuardrail, clarify(def, decision.Code),
			apperrors.New(apperrors.ErrActionGuardrail.Code, decision.Reason))
		res.Crisis = decision.Crisis
		if decision.Crisis {
			e.metrics.RecordCrisis(req.Capability)
		}
		return res, nil
	}

	if def.RequiresConfirmation {
		p, err := e.confirmations.Propose(ctx, turn.UserID, req, def, decision.Crisis)
		if err != nil {
			e.logger.Warn("Could not hold action for confirmation", zap.String("request_id", req.ID), zap.Error(err))
			return failed(req, StageConfirmation, "I couldn't set that up for confirmation. Could you ask me again?", err), nil
		}
		return ExecutionResult{
			RequestID:            req.ID,
			Capability:           req.Capability,
			Stage:                StageConfirmation,
			Message:              p.Prompt,
			RequiresConfirmation: true,
			ConfirmationPrompt:   p.Prompt,
			Crisis:               decision.Crisis,
		}, p
	}

	res := e.dispatcher.Dispatch(ctx, turn.UserID, req, turn.Now)
	if decision.Crisis && !res.Crisis {
		res.Crisis = true
		e.metrics.RecordCrisis(req.Capability)
	}
	return res, nil
}

// prepare enriches and validates req. It reports false with the failed
// result when the request must stop.
func (e *Engine) prepare(req *ActionRequest, def *capability.Definition, now time.Time) (ExecutionResult, bool) {
	e.enrichers.Enrich(req, now)

	if decision := e.guardrail.EvaluateExtraction(req); !decision.Allowed {
		e.metrics.RecordGuardrailDenial(decision.Code)
		return failed(req, StageEnrichment, clarifyExtraction(req),
			apperrors.New(apperrors.ErrActionGuardrail.Code, decision.Reason)), false
	}

	validation := Validate(req, def)
	for _, w := range validation.Warnings {
		e.logger.Debug("Action parameter warning", zap.String("request_id", req.ID), zap.String("warning", w))
	}
	if !validation.Valid {
		e.logger.Info("Action failed validation",
			zap.String("request_id", req.ID),
			zap.String("tool", req.Capability),
			zap.Strings("violations", validation.Violations))
		return failed(req, StageValidation,
			fmt.Sprintf("I need a little more detail to %s. Could you tell me more?", strings.ToLower(def.DisplayName)),
			apperrors.New(apperrors.ErrActionValidation.Code, validation.Message())), false
	}

	return ExecutionResult{}, true
}

// Confirm executes a pending request after the user approved it, with
// optional parameter amendments.
func (e *Engine) Confirm(ctx context.Context, userID, requestID string, amendments map[string]interface{}, now time.Time) (ExecutionResult, error) {
	req, p, err := e.confirmations.Confirm(ctx, requestID, userID, amendments)
	if err != nil {
		return ExecutionResult{}, err
	}
	if now.IsZero() {
		now = time.Now()
	}

	def, ok := e.catalog.Get(req.Capability)
	if !ok {
		return ExecutionResult{}, apperrors.WithCause(apperrors.ErrUnknownCapability, fmt.Errorf("capability %q", req.Capability))
	}

	if len(amendments) > 0 {
		// derived values came from the old wording
		for _, param := range def.Parameters {
			if _, amended := amendments[param.Name]; param.Derived && !amended {
				delete(req.Parameters, param.Name)
			}
		}
		if res, ok := e.prepare(req, def, now); !ok {
			e.metrics.RecordActionOutcome(req.Capability, string(res.Stage), false)
			return res, nil
		}
	}

	res := e.dispatcher.Dispatch(ctx, userID, req, now)
	if p.Crisis {
		res.Crisis = true
	}
	e.metrics.RecordActionOutcome(req.Capability, string(res.Stage), res.Success)
	return res, nil
}

// Reject discards a pending request.
func (e *Engine) Reject(ctx context.Context, userID, requestID string) error {
	return e.confirmations.Reject(ctx, requestID, userID)
}

// Pending lists the user's open confirmations.
func (e *Engine) Pending(ctx context.Context, userID string) ([]*PendingConfirmation, error) {
	return e.confirmations.Pending(ctx, userID)
}

// SweepExpired drops expired confirmations.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	return e.confirmations.Sweep(ctx)
}

func failed(req *ActionRequest, stage Stage, message string, err error) ExecutionResult {
	return ExecutionResult{
		RequestID:  req.ID,
		Capability: req.Capability,
		Stage:      stage,
		Message:    message,
		Error:      err.Error(),
	}
}

func clarify(def *capability.Definition, code string) string {
	action := strings.ToLower(def.DisplayName)
	switch code {
	case ReasonExplicitIntent:
		return fmt.Sprintf("Would you like me to %s for you?", action)
	case ReasonPromptInjection:
		return "I can't act on that as written. Could you tell me again what you'd like me to do?"
	default:
		return fmt.Sprintf("Just to check, did you want me to %s?", action)
	}
}

func clarifyExtraction(req *ActionRequest) string {
	for _, x := range req.Extractions {
		if !x.Matched {
			return fmt.Sprintf("I couldn't quite make out the %s. Could you say it another way?", humanField(x.Field))
		}
	}
	return "Could you say that another way?"
}

// fold appends each result's message to the reply text.
func fold(text string, results []ExecutionResult, crisis bool) string {
	parts := make([]string, 0, len(results)+2)
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	for _, r := range results {
		if m := strings.TrimSpace(r.Message); m != "" {
			parts = append(parts, m)
		}
	}
	if crisis {
		parts = append(parts, CrisisNotice)
	}
	return strings.Join(parts, "\n\n")
}
