package actions

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/keyed"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/skills"
)

// Dispatcher routes approved requests to their executor binding. It never
// retries; failures come back as failed results.
type Dispatcher struct {
	bindings *skills.Registry
	locks    *keyed.Mutex
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher over a validated binding registry.
func NewDispatcher(bindings *skills.Registry, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		bindings: bindings,
		locks:    keyed.New(),
		logger:   logger,
		metrics:  m,
	}
}

// Dispatch runs req for userID.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, req *ActionRequest, now time.Time) ExecutionResult {
	result := ExecutionResult{
		RequestID:  req.ID,
		Capability: req.Capability,
		Stage:      StageDispatch,
	}

	binding, ok := d.bindings.Get(req.Capability)
	if !ok {
		err := apperrors.WithCause(apperrors.ErrMissingBinding, fmt.Errorf("capability %s", req.Capability))
		result.Message = "I can't do that yet."
		result.Error = err.Error()
		d.logger.Error("No binding for capability", zap.String("tool", req.Capability))
		return result
	}

	call := skills.Call{
		UserID:    userID,
		RequestID: req.ID,
		Params:    cloneParams(req.Parameters),
		Now:       now,
	}

	if binding.LockKey != nil {
		if key := binding.LockKey(call); key != "" {
			unlock := d.locks.Lock(key)
			defer unlock()
		}
	}

	start := time.Now()
	outcome, err := d.invoke(ctx, binding, call)
	d.metrics.RecordDispatch(req.Capability, time.Since(start))

	if err != nil {
		d.logger.Warn("Action failed",
			zap.String("request_id", req.ID),
			zap.String("tool", req.Capability),
			zap.Error(err))
		result.Message = "Sorry, I couldn't save that just now. Please try again in a moment."
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrActionValidation.Code {
			result.Message = appErr.Message
		}
		result.Error = err.Error()
		return result
	}

	result.Success = true
	if outcome != nil {
		result.Message = outcome.Message
		result.Data = outcome.Data
		result.Crisis = outcome.Crisis
	}
	if result.Crisis {
		d.metrics.RecordCrisis(req.Capability)
	}

	d.logger.Info("Action executed",
		zap.String("request_id", req.ID),
		zap.String("tool", req.Capability),
		zap.Bool("crisis", result.Crisis))
	return result
}

// invoke calls the handler and turns a panic into an execution error.
func (d *Dispatcher) invoke(ctx context.Context, binding skills.Binding, call skills.Call) (outcome *skills.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Binding panicked",
				zap.String("tool", binding.Capability),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			outcome = nil
			err = apperrors.WithCause(apperrors.ErrActionExecution, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrActionExecution, err)
	}

	outcome, err = binding.Handler(ctx, call)
	if err != nil && !apperrors.IsAppError(err) {
		err = apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	return outcome, err
}
