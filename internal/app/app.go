// Package app wires the store, action engine, memory assembler and agent into
// a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/agent"
	"github.com/gmsas95/myrai-care/internal/api"
	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/cron"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/llm"
	"github.com/gmsas95/myrai-care/internal/memory"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/persona"
	"github.com/gmsas95/myrai-care/internal/security"
	"github.com/gmsas95/myrai-care/internal/skills"
	"github.com/gmsas95/myrai-care/internal/skills/health"
	"github.com/gmsas95/myrai-care/internal/store"
)

type App struct {
	Config  *config.Config
	Store   *store.Store
	Health  *health.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Catalog *capability.Registry
	Engine  *actions.Engine
	Agent   *agent.Agent
	Version string

	closers []func() error
}

// Options tunes construction
type Options struct {
	// Offline answers with the echo completer instead of a provider
	Offline bool
	Metrics *metrics.Metrics
}

// New opens the store and builds every component. Close releases them.
func New(cfg *config.Config, logger *zap.Logger, version string, opts Options) (*App, error) {
	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	a, err := build(cfg, st, logger, version, opts)
	if err != nil {
		st.Close()
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	return a, nil
}

func build(cfg *config.Config, st *store.Store, logger *zap.Logger, version string, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}

	a := &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Metrics: m,
		Catalog: capability.NewDefaultRegistry(),
		Version: version,
	}

	hs, err := health.NewStore(st.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize health store: %w", err)
	}
	a.Health = hs

	bindings := skills.NewRegistry()
	if err := RegisterSkills(bindings, hs, st, logger); err != nil {
		return nil, err
	}

	pending, closePending, err := NewPendingStore(cfg, st)
	if err != nil {
		return nil, err
	}
	if closePending != nil {
		a.closers = append(a.closers, closePending)
	}

	detector := security.NewPromptInjectionDetector()
	engine, err := actions.NewEngine(actions.EngineOptions{
		Catalog:       a.Catalog,
		Bindings:      bindings,
		Guardrail:     actions.NewGuardrail(cfg.Guardrails, detector),
		Confirmations: actions.NewConfirmationManager(pending, time.Duration(cfg.Confirmations.TTLMinutes)*time.Minute, logger, m),
		Logger:        logger,
		Metrics:       m,
	})
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	completer, err := NewCompleter(cfg.LLM, opts.Offline, logger, m)
	if err != nil {
		return nil, err
	}

	loc, err := location(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}
	identity := persona.DefaultIdentity
	memOpts := memory.OptionsFromConfig(cfg.Memory)
	if _, live := completer.(*llm.ProviderManager); live {
		// echo replies make no useful summary
		memOpts.Summarizer = completer
	}
	memOpts.Catalog = a.Catalog
	memOpts.Identity = &identity
	memOpts.Location = loc
	memOpts.Logger = logger
	memOpts.Metrics = m

	maxTokens := 0
	if p, ok := cfg.GetProvider(cfg.LLM.DefaultProvider); ok {
		maxTokens = p.MaxTokens
	}

	a.Agent, err = agent.New(agent.Options{
		Memory:    memory.New(memory.StoreSources{Store: st, Repository: hs}, memOpts),
		Completer: completer,
		Engine:    engine,
		Store:     st,
		Guard:     security.NewSecurityGuard(cfg.Security.MaxInputLength, cfg.Guardrails.BlockOnInjection),
		Logger:    logger,
		Metrics:   m,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func location(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrConfigInvalid, fmt.Errorf("timezone %q: %w", tz, err))
	}
	return loc, nil
}

// NewCompleter builds the failover provider manager. With no usable
// provider, or when offline, it falls back to the echo completer.
func NewCompleter(cfg config.LLMConfig, offline bool, logger *zap.Logger, m *metrics.Metrics) (llm.Completer, error) {
	if offline {
		logger.Info("Running offline with the echo completer")
		return llm.Echo, nil
	}
	pm, err := llm.NewProviderManagerFromConfig(cfg, logger, m)
	if errors.Is(err, apperrors.ErrProviderNotConfigured) {
		logger.Warn("No LLM provider configured, replies will echo the user")
		return llm.Echo, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("LLM providers ready", zap.Int("count", pm.Len()), zap.String("default", cfg.DefaultProvider))
	return pm, nil
}

// NewRunner builds the background scheduler
func (a *App) NewRunner() (*cron.Runner, error) {
	cfg, err := cron.ConfigFrom(a.Config.Scheduler)
	if err != nil {
		return nil, err
	}
	return cron.NewRunner(cfg, a.Engine, a.Health, a.Logger), nil
}

// RunServer serves HTTP until ctx is cancelled or the process is signalled.
func (a *App) RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runner *cron.Runner
	if a.Config.Scheduler.Enabled {
		r, err := a.NewRunner()
		if err != nil {
			return err
		}
		if err := r.Start(); err != nil {
			return err
		}
		runner = r
	}

	server := api.New(api.Options{
		Config:  a.Config,
		Agent:   a.Agent,
		Catalog: a.Catalog,
		Metrics: a.Metrics,
		Logger:  a.Logger,
		Version: a.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	a.Logger.Info("Server started",
		zap.String("address", a.Config.Server.Address),
		zap.Int("port", a.Config.Server.Port),
		zap.Int("capabilities", len(a.Catalog.IDs())),
		zap.String("confirmations", a.Config.Confirmations.Backend))

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutting down...")
	case serveErr = <-errCh:
	}

	if runner != nil {
		runner.Stop()
	}
	if err := server.Shutdown(); err != nil {
		a.Logger.Error("Server shutdown error", zap.Error(err))
	}
	return serveErr
}

// Close releases the store and any pending-confirmation backend.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
