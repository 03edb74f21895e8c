package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/skills"
	"github.com/gmsas95/myrai-care/internal/skills/health"
	"github.com/gmsas95/myrai-care/internal/store"
)

// RegisterSkills binds every executor the catalog needs.
func RegisterSkills(registry *skills.Registry, hs health.Repository, profiles health.ProfileUpdater, logger *zap.Logger) error {
	healthSkill := health.NewSkill(hs, profiles, logger)
	if err := registry.Register(healthSkill); err != nil {
		return fmt.Errorf("register %s skill: %w", healthSkill.Name(), err)
	}
	return nil
}

// NewPendingStore picks the confirmation backend from config. The returned
// close function is nil when the backend shares the main store.
func NewPendingStore(cfg *config.Config, st *store.Store) (actions.PendingStore, func() error, error) {
	switch cfg.Confirmations.Backend {
	case "", "memory":
		return actions.NewMemoryPendingStore(), nil, nil

	case "badger":
		if st.Badger() == nil {
			return nil, nil, fmt.Errorf("badger confirmation backend selected but badger is not open")
		}
		return actions.NewBadgerPendingStore(st.Badger()), nil, nil

	case "sql":
		ps, err := actions.NewSQLPendingStore(st.DB())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sql confirmation store: %w", err)
		}
		return ps, nil, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Storage.RedisAddr,
			DB:   cfg.Storage.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		return actions.NewRedisPendingStore(rdb), rdb.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown confirmations.backend %q", cfg.Confirmations.Backend)
}
