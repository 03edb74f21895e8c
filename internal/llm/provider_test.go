package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/config"
	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

type countingCompleter struct {
	reply string
	err   error
	calls int
}

func (c *countingCompleter) Complete(context.Context, CompletionRequest) (string, error) {
	c.calls++
	return c.reply, c.err
}

func TestProviderManager_Failover(t *testing.T) {
	primary := &countingCompleter{err: errors.New("503")}
	backup := &countingCompleter{reply: "from backup"}

	pm := NewProviderManager(zap.NewNop(), nil, 0)
	pm.AddProvider("backup", backup, 1, DefaultBreakerSettings)
	pm.AddProvider("primary", primary, 0, DefaultBreakerSettings)

	out, err := pm.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", out)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)

	status := pm.GetProviderStatus()
	require.Len(t, status, 2)
	assert.Equal(t, "primary", status[0].Name)
	assert.False(t, status[0].Healthy)
	assert.True(t, status[1].Healthy)
}

func TestProviderManager_BreakerOpens(t *testing.T) {
	primary := &countingCompleter{err: errors.New("down")}
	backup := &countingCompleter{reply: "ok"}

	pm := NewProviderManager(zap.NewNop(), nil, 0)
	pm.AddProvider("primary", primary, 0, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour})
	pm.AddProvider("backup", backup, 1, DefaultBreakerSettings)

	for i := 0; i < 5; i++ {
		_, err := pm.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, primary.calls, "open circuit stops calls to the failing provider")
	assert.Equal(t, 5, backup.calls)
	assert.Equal(t, "open", pm.GetProviderStatus()[0].State)
}

func TestProviderManager_AllFail(t *testing.T) {
	pm := NewProviderManager(zap.NewNop(), nil, 0)
	_, err := pm.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrProviderNotConfigured)

	pm.AddProvider("only", &countingCompleter{err: errors.New("nope")}, 0, DefaultBreakerSettings)
	_, err = pm.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)

	pm.DisableProvider("only")
	_, err = pm.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestProviderManager_RateLimitHonorsContext(t *testing.T) {
	pm := NewProviderManager(zap.NewNop(), nil, 1)
	pm.AddProvider("p", &countingCompleter{reply: "ok"}, 0, DefaultBreakerSettings)

	_, err := pm.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pm.Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestNewProviderManagerFromConfig(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider:   "openai",
		FallbackProviders: []string{"deepseek", "openai", "missing"},
		Providers: map[string]config.Provider{
			"openai":   {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
			"deepseek": {BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat"},
		},
	}

	pm, err := NewProviderManagerFromConfig(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, pm.Len())

	_, err = NewProviderManagerFromConfig(config.LLMConfig{DefaultProvider: "none"}, zap.NewNop(), nil)
	assert.ErrorIs(t, err, apperrors.ErrProviderNotConfigured)
}
