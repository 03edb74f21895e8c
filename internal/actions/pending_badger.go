package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

const pendingKeyPrefix = "pending:"

// BadgerPendingStore keeps pending confirmations in badger with a TTL so a
// restart does not drop them
type BadgerPendingStore struct {
	db *badger.DB
}

// NewBadgerPendingStore wraps an open badger database.
func NewBadgerPendingStore(db *badger.DB) *BadgerPendingStore {
	return &BadgerPendingStore{db: db}
}

func pendingKey(id string) []byte {
	return []byte(pendingKeyPrefix + id)
}

func (s *BadgerPendingStore) Put(_ context.Context, p *PendingConfirmation) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.WithCause(apperrors.ErrStoreFailure, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(pendingKey(p.RequestID))
		switch {
		case err == nil:
			return apperrors.ErrDuplicateConfirmation
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		e := badger.NewEntry(pendingKey(p.RequestID), data)
		if ttl := time.Until(p.ExpiresAt); !p.ExpiresAt.IsZero() && ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	return storeErr(err)
}

func (s *BadgerPendingStore) Take(_ context.Context, requestID, userID string, now time.Time) (*PendingConfirmation, error) {
	var taken *PendingConfirmation

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey(requestID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrUnknownConfirmation
		}
		if err != nil {
			return err
		}

		p, err := decodePending(item)
		if err != nil {
			return err
		}
		// expired entries are left to the badger TTL and the sweeper
		if p.UserID != userID || p.Expired(now) {
			return apperrors.ErrUnknownConfirmation
		}
		if err := txn.Delete(pendingKey(requestID)); err != nil {
			return err
		}
		taken = p
		return nil
	})

	// a conflicting commit means another caller took the entry first
	if errors.Is(err, apperrors.ErrUnknownConfirmation) || errors.Is(err, badger.ErrConflict) {
		return nil, apperrors.ErrUnknownConfirmation
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return taken, nil
}

func (s *BadgerPendingStore) List(_ context.Context, userID string, now time.Time) ([]*PendingConfirmation, error) {
	var out []*PendingConfirmation

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			p, err := decodePending(it.Item())
			if err != nil {
				return err
			}
			if p.UserID == userID && !p.Expired(now) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	sortPending(out)
	return out, nil
}

func (s *BadgerPendingStore) Sweep(_ context.Context, now time.Time) (int, error) {
	var expired [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			p, err := decodePending(it.Item())
			if err != nil {
				return err
			}
			if p.Expired(now) {
				expired = append(expired, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeErr(err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range expired {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return len(expired), nil
}

func decodePending(item *badger.Item) (*PendingConfirmation, error) {
	var p PendingConfirmation
	err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// storeErr keeps confirmation errors as they are and wraps the rest.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrDuplicateConfirmation) || errors.Is(err, apperrors.ErrUnknownConfirmation) {
		return err
	}
	return apperrors.WithCause(apperrors.ErrStoreFailure, err)
}
