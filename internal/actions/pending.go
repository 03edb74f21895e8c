package actions

import (
	"context"
	"time"
)

// PendingStore holds proposed requests between proposal and the user's answer.
//
// Take removes and returns the entry atomically; a missing, expired or
// foreign entry yields ErrUnknownConfirmation and leaves the store unchanged.
type PendingStore interface {
	Put(ctx context.Context, p *PendingConfirmation) error
	Take(ctx context.Context, requestID, userID string, now time.Time) (*PendingConfirmation, error)
	List(ctx context.Context, userID string, now time.Time) ([]*PendingConfirmation, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}
