package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gmsas95/myrai-care/internal/config"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProviderManager manages multiple LLM providers with failover. Each provider
// sits behind its own circuit breaker; a shared limiter caps request rate.
type ProviderManager struct {
	mu        sync.RWMutex
	providers []*ProviderConfig
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// ProviderConfig holds provider state with priority
type ProviderConfig struct {
	Name      string
	Completer Completer
	Priority  int // Lower = higher priority
	Enabled   bool
	LastErr   error
	LastUsed  time.Time

	breaker *gobreaker.CircuitBreaker[string]
}

// BreakerSettings tunes the per-provider circuit breaker
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings trips after three straight failures and probes again
// after thirty seconds.
var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}

// NewProviderManager creates a new provider manager. rpm <= 0 disables rate limiting.
func NewProviderManager(logger *zap.Logger, m *metrics.Metrics, rpm int) *ProviderManager {
	pm := &ProviderManager{
		logger:  logger,
		metrics: m,
	}
	if rpm > 0 {
		burst := rpm / 10
		if burst < 1 {
			burst = 1
		}
		pm.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	}
	return pm
}

// NewProviderManagerFromConfig registers the default provider followed by the
// fallbacks in order. Providers without a base URL are skipped.
func NewProviderManagerFromConfig(cfg config.LLMConfig, logger *zap.Logger, m *metrics.Metrics) (*ProviderManager, error) {
	pm := NewProviderManager(logger, m, cfg.RequestsPerMinute)

	names := append([]string{cfg.DefaultProvider}, cfg.FallbackProviders...)
	seen := make(map[string]bool)
	for i, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, ok := cfg.Providers[name]
		if !ok || p.BaseURL == "" {
			logger.Warn("Skipping unconfigured provider", zap.String("provider", name))
			continue
		}
		pm.AddProvider(name, NewClient(p), i, DefaultBreakerSettings)
	}

	if pm.Len() == 0 {
		return nil, apperrors.ErrProviderNotConfigured
	}
	return pm, nil
}

// AddProvider adds a provider to the manager
func (pm *ProviderManager) AddProvider(name string, c Completer, priority int, bs BreakerSettings) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p := &ProviderConfig{
		Name:      name,
		Completer: c,
		Priority:  priority,
		Enabled:   true,
	}
	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    name,
		Timeout: bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			pm.logger.Warn("Provider circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	pm.providers = append(pm.providers, p)
	sort.SliceStable(pm.providers, func(i, j int) bool {
		return pm.providers[i].Priority < pm.providers[j].Priority
	})
}

// Len returns the number of registered providers
func (pm *ProviderManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.providers)
}

// Complete sends a request with automatic failover, in priority order
func (pm *ProviderManager) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if pm.limiter != nil {
		if err := pm.limiter.Wait(ctx); err != nil {
			return "", apperrors.WithCause(apperrors.ErrRateLimited, err)
		}
	}

	pm.mu.RLock()
	providers := append([]*ProviderConfig(nil), pm.providers...)
	pm.mu.RUnlock()

	if len(providers) == 0 {
		return "", apperrors.ErrProviderNotConfigured
	}

	var lastErr error
	attempt := 0
	for _, p := range providers {
		pm.mu.RLock()
		enabled := p.Enabled
		pm.mu.RUnlock()
		if !enabled {
			continue
		}
		attempt++

		text, err := p.breaker.Execute(func() (string, error) {
			return p.Completer.Complete(ctx, req)
		})
		if err == nil {
			pm.mu.Lock()
			p.LastUsed = time.Now()
			p.LastErr = nil
			pm.mu.Unlock()
			pm.metrics.RecordProviderRequest(p.Name, true)

			if attempt > 1 {
				pm.logger.Info("Failover successful",
					zap.String("provider", p.Name),
					zap.Int("attempt", attempt),
				)
			}
			return text, nil
		}

		pm.mu.Lock()
		p.LastErr = err
		pm.mu.Unlock()
		pm.metrics.RecordProviderRequest(p.Name, false)
		lastErr = err

		if ctx.Err() != nil {
			return "", apperrors.WithCause(apperrors.ErrProviderUnavailable, ctx.Err())
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			pm.logger.Debug("Provider circuit open, skipping", zap.String("provider", p.Name))
			continue
		}
		pm.logger.Warn("Provider failed, trying next",
			zap.String("provider", p.Name),
			zap.Error(err),
		)
	}

	if lastErr == nil {
		return "", apperrors.New(apperrors.ErrProviderUnavailable.Code, "all providers disabled")
	}
	return "", apperrors.WithCause(apperrors.ErrProviderUnavailable, fmt.Errorf("all providers failed: %w", lastErr))
}

// ProviderStatus is a snapshot of one provider
type ProviderStatus struct {
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	Priority int       `json:"priority"`
	State    string    `json:"state"`
	Healthy  bool      `json:"healthy"`
	LastUsed time.Time `json:"last_used"`
}

// GetProviderStatus returns status of all providers
func (pm *ProviderManager) GetProviderStatus() []ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	status := make([]ProviderStatus, 0, len(pm.providers))
	for _, p := range pm.providers {
		state := p.breaker.State()
		status = append(status, ProviderStatus{
			Name:     p.Name,
			Enabled:  p.Enabled,
			Priority: p.Priority,
			State:    state.String(),
			Healthy:  p.LastErr == nil && state == gobreaker.StateClosed,
			LastUsed: p.LastUsed,
		})
	}
	return status
}

// DisableProvider disables a provider by name
func (pm *ProviderManager) DisableProvider(name string) {
	pm.setEnabled(name, false)
}

// EnableProvider enables a provider by name
func (pm *ProviderManager) EnableProvider(name string) {
	pm.setEnabled(name, true)
}

func (pm *ProviderManager) setEnabled(name string, enabled bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.providers {
		if p.Name == name {
			p.Enabled = enabled
			if enabled {
				p.LastErr = nil
			}
			return
		}
	}
}
