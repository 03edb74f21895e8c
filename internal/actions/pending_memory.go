package actions

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

// MemoryPendingStore keeps pending confirmations in process memory
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]*PendingConfirmation
}

// NewMemoryPendingStore creates an empty in-memory store.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{entries: make(map[string]*PendingConfirmation)}
}

func (s *MemoryPendingStore) Put(_ context.Context, p *PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[p.RequestID]; ok && !existing.Expired(p.CreatedAt) {
		return apperrors.ErrDuplicateConfirmation
	}
	cp := *p
	cp.Parameters = cloneParams(p.Parameters)
	s.entries[p.RequestID] = &cp
	return nil
}

func (s *MemoryPendingStore) Take(_ context.Context, requestID, userID string, now time.Time) (*PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[requestID]
	if !ok || p.UserID != userID {
		return nil, apperrors.ErrUnknownConfirmation
	}
	if p.Expired(now) {
		delete(s.entries, requestID)
		return nil, apperrors.ErrUnknownConfirmation
	}
	delete(s.entries, requestID)
	return p, nil
}

func (s *MemoryPendingStore) List(_ context.Context, userID string, now time.Time) ([]*PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*PendingConfirmation
	for _, p := range s.entries {
		if p.UserID == userID && !p.Expired(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortPending(out)
	return out, nil
}

func (s *MemoryPendingStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, p := range s.entries {
		if p.Expired(now) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func sortPending(list []*PendingConfirmation) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].RequestID < list[j].RequestID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
