package actions

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

type storeFactory func(t *testing.T) PendingStore

func pendingStores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) PendingStore {
			return NewMemoryPendingStore()
		},
		"badger": func(t *testing.T) PendingStore {
			db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return NewBadgerPendingStore(db)
		},
		"sql": func(t *testing.T) PendingStore {
			return newTestSQLPendingStore(t)
		},
		"redis": func(t *testing.T) PendingStore {
			addr := os.Getenv("MYRAI_TEST_REDIS_ADDR")
			if addr == "" {
				t.Skip("MYRAI_TEST_REDIS_ADDR not set")
			}
			rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
			t.Cleanup(func() {
				rdb.FlushDB(context.Background())
				rdb.Close()
			})
			return NewRedisPendingStore(rdb)
		},
	}
}

func newTestSQLPendingStore(t *testing.T) *SQLPendingStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := NewSQLPendingStore(db)
	require.NoError(t, err)
	return s
}

func samplePending(id, user string, created time.Time) *PendingConfirmation {
	return &PendingConfirmation{
		RequestID:   id,
		UserID:      user,
		Capability:  "create_reminder",
		DisplayName: "Create reminder",
		Parameters:  map[string]interface{}{"title": "Take metformin", "schedule": "every day"},
		Prompt:      "Create reminder: title: Take metformin. Shall I save this?",
		Sensitivity: "medium",
		Confidence:  0.9,
		CreatedAt:   created,
		ExpiresAt:   created.Add(30 * time.Minute),
	}
}

func TestPendingStores(t *testing.T) {
	for name, factory := range pendingStores() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			t.Run("put take", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Put(ctx, samplePending("a", "u1", now)))

				got, err := s.Take(ctx, "a", "u1", now.Add(time.Minute))
				require.NoError(t, err)
				assert.Equal(t, "create_reminder", got.Capability)
				assert.Equal(t, "Take metformin", got.Parameters["title"])

				_, err = s.Take(ctx, "a", "u1", now.Add(time.Minute))
				assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)
			})

			t.Run("duplicate", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Put(ctx, samplePending("dup", "u1", now)))
				err := s.Put(ctx, samplePending("dup", "u1", now))
				assert.ErrorIs(t, err, apperrors.ErrDuplicateConfirmation)
			})

			t.Run("wrong user leaves entry", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Put(ctx, samplePending("b", "u1", now)))

				_, err := s.Take(ctx, "b", "intruder", now)
				assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)

				_, err = s.Take(ctx, "b", "u1", now)
				assert.NoError(t, err)
			})

			t.Run("expired is unknown", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Put(ctx, samplePending("c", "u1", now)))

				_, err := s.Take(ctx, "c", "u1", now.Add(31*time.Minute))
				assert.ErrorIs(t, err, apperrors.ErrUnknownConfirmation)
			})

			t.Run("list per user", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Put(ctx, samplePending("l2", "u1", now.Add(time.Second))))
				require.NoError(t, s.Put(ctx, samplePending("l1", "u1", now)))
				require.NoError(t, s.Put(ctx, samplePending("other", "u2", now)))

				list, err := s.List(ctx, "u1", now.Add(time.Minute))
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, "l1", list[0].RequestID)
				assert.Equal(t, "l2", list[1].RequestID)

				list, err = s.List(ctx, "u1", now.Add(time.Hour))
				require.NoError(t, err)
				assert.Empty(t, list)
			})
		})
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, name := range []string{"memory", "sql"} {
		t.Run(name, func(t *testing.T) {
			s := pendingStores()[name](t)
			require.NoError(t, s.Put(ctx, samplePending("old", "u1", now.Add(-time.Hour))))
			require.NoError(t, s.Put(ctx, samplePending("new", "u1", now)))

			n, err := s.Sweep(ctx, now.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = s.Take(ctx, "new", "u1", now.Add(time.Minute))
			assert.NoError(t, err)
		})
	}
}
