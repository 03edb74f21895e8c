package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"github.com/gmsas95/myrai-care/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultUserID is the profile used when a caller does not name a user
const DefaultUserID = "default"

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	badger *badger.DB
}

// New creates a new Store instance
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "myrai-care.db")
	}

	// Open SQLite with optimizations
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Configure connection pool
	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	store, err := Open(db)
	if err != nil {
		return nil, err
	}
	store.sqlDB = sqliteDB

	if cfg.Confirmations.Backend == "badger" {
		badgerPath := cfg.Storage.BadgerPath
		if badgerPath == "" {
			badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
		}

		badgerOpts := badger.DefaultOptions(badgerPath).
			WithLogger(nil).
			WithNumVersionsToKeep(1).
			WithCompactL0OnClose(true).
			WithValueLogFileSize(16 << 20). // 16MB value log files
			WithMemTableSize(16 << 20)      // 16MB memtable

		badgerDB, err := badger.Open(badgerOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
		store.badger = badgerDB
	}

	return store, nil
}

// Open wraps an existing gorm connection, migrating the conversation and
// profile tables.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
		&ConversationSummary{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	store := &Store{db: db}
	if err := store.createDefaultUser(); err != nil {
		return nil, fmt.Errorf("failed to create default user: %w", err)
	}
	return store, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if s.badger != nil {
		errs = append(errs, s.badger.Close())
	}
	if s.sqlDB != nil {
		errs = append(errs, s.sqlDB.Close())
	}
	return errors.Join(errs...)
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance, nil unless the badger confirmation
// backend is configured.
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// createDefaultUser creates a default user if the database is empty
func (s *Store) createDefaultUser() error {
	var count int64
	if err := s.db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		return s.db.Create(&User{ID: DefaultUserID, DisplayName: "User"}).Error
	}
	return nil
}

// ==================== Profile Methods ====================

// EnsureUser returns the user's profile, creating an empty one on first contact
func (s *Store) EnsureUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = User{ID: userID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves the long-term fields of a profile
func (s *Store) UpdateProfile(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// SetActiveLocation records where the user currently is
func (s *Store) SetActiveLocation(ctx context.Context, userID, location string) error {
	if _, err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("active_location", location).Error
}

// SetEmergency raises or clears the user's emergency flag
func (s *Store) SetEmergency(ctx context.Context, userID string, active bool) error {
	if _, err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("emergency_active", active).Error
}

// RecordInteraction counts a completed turn and moves the relationship stage
// forward when a threshold is crossed.
func (s *Store) RecordInteraction(ctx context.Context, userID string) (string, error) {
	var stage string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		user.InteractionCount++
		stage = StageFor(user.InteractionCount)
		return tx.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"interaction_count":  user.InteractionCount,
			"relationship_stage": stage,
		}).Error
	})
	return stage, err
}

// ==================== Conversation Methods ====================

// ActiveConversation returns the user's current conversation, starting one
// if there is none.
func (s *Store) ActiveConversation(ctx context.Context, userID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_archived = ?", userID, false).
		Order("created_at DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = Conversation{UserID: userID, Title: "Care conversation"}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ArchiveConversation closes a conversation so the next turn starts a new one
func (s *Store) ArchiveConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Update("is_archived", true).Error
}

// ==================== Message Methods ====================

// AppendMessage stores a message at the end of its conversation and bumps
// the conversation's message count.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, err)
		}

		msg.Seq = conv.MessageCount + 1
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"message_count": msg.Seq,
			"updated_at":    time.Now(),
		}).Error
	})
}

// RecentMessages returns the last limit messages of a conversation, oldest first
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessagesSince returns messages after the given sequence number, oldest first
func (s *Store) MessagesSince(ctx context.Context, conversationID string, seq int64) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, seq).
		Order("seq ASC").
		Find(&msgs).Error
	return msgs, err
}

// ==================== Summary Methods ====================

// GetSummary returns the conversation's rolling summary, or nil
func (s *Store) GetSummary(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	var summary ConversationSummary
	err := s.db.WithContext(ctx).First(&summary, "conversation_id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// SaveSummary replaces the conversation's rolling summary
func (s *Store) SaveSummary(ctx context.Context, summary *ConversationSummary) error {
	return s.db.WithContext(ctx).Save(summary).Error
}
