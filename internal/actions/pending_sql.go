package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

// PendingRow is the SQL row backing a pending confirmation
type PendingRow struct {
	RequestID string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index"`
	Tool      string
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// TableName overrides the table name for PendingRow
func (PendingRow) TableName() string {
	return "pending_confirmations"
}

// SQLPendingStore keeps pending confirmations in the relational store, keyed by
// request id and user id
type SQLPendingStore struct {
	db *gorm.DB
}

// NewSQLPendingStore migrates the pending table and returns the store.
func NewSQLPendingStore(db *gorm.DB) (*SQLPendingStore, error) {
	if err := db.AutoMigrate(&PendingRow{}); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}
	return &SQLPendingStore{db: db}, nil
}

func (s *SQLPendingStore) Put(ctx context.Context, p *PendingConfirmation) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing PendingRow
		err := tx.First(&existing, "request_id = ?", p.RequestID).Error
		switch {
		case err == nil:
			if !existing.ExpiresAt.IsZero() && p.CreatedAt.After(existing.ExpiresAt) {
				if err := tx.Delete(&PendingRow{}, "request_id = ?", p.RequestID).Error; err != nil {
					return err
				}
				break
			}
			return apperrors.ErrDuplicateConfirmation
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Create(&PendingRow{
			RequestID: p.RequestID,
			UserID:    p.UserID,
			Tool:      p.Capability,
			Payload:   string(payload),
			CreatedAt: p.CreatedAt.UTC(),
			ExpiresAt: p.ExpiresAt.UTC(),
		}).Error
	})
	return storeErr(err)
}

func (s *SQLPendingStore) Take(ctx context.Context, requestID, userID string, now time.Time) (*PendingConfirmation, error) {
	var taken *PendingConfirmation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PendingRow
		err := tx.First(&row, "request_id = ? AND user_id = ?", requestID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUnknownConfirmation
		}
		if err != nil {
			return err
		}

		res := tx.Delete(&PendingRow{}, "request_id = ? AND user_id = ?", requestID, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUnknownConfirmation
		}

		p, err := decodeRow(&row)
		if err != nil {
			return err
		}
		if p.Expired(now) {
			// commit the delete of the stale row but report it as unknown
			return nil
		}
		taken = p
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if taken == nil {
		return nil, apperrors.ErrUnknownConfirmation
	}
	return taken, nil
}

func (s *SQLPendingStore) List(ctx context.Context, userID string, now time.Time) ([]*PendingConfirmation, error) {
	var rows []PendingRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]*PendingConfirmation, 0, len(rows))
	for i := range rows {
		p, err := decodeRow(&rows[i])
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, p)
	}
	sortPending(out)
	return out, nil
}

func (s *SQLPendingStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&PendingRow{})
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}
	return int(res.RowsAffected), nil
}

func decodeRow(row *PendingRow) (*PendingConfirmation, error) {
	var p PendingConfirmation
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
