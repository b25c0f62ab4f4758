// Package store holds the balance and history backends used by the point
// service. None of the implementations serialize read-modify-write cycles
// per user; that is the service's job.
package store

import (
	"context"

	"github.com/Aidin1998/pincex_points/pkg/models"
)

// BalanceStore keeps the current point total per user.
type BalanceStore interface {
	// Get returns the snapshot for userID, or a zero snapshot if the user was
	// never written. A missing user is not an error.
	Get(ctx context.Context, userID uint64) (*models.UserPoint, error)
	// Upsert overwrites the balance unconditionally and returns the committed
	// snapshot, including its write timestamp.
	Upsert(ctx context.Context, userID uint64, point int64) (*models.UserPoint, error)
}

// HistoryStore is an append-only log of committed mutations.
type HistoryStore interface {
	Append(ctx context.Context, userID uint64, amount int64, kind models.TransactionType, updateMillis int64) (*models.PointHistory, error)
	// ListByUser returns the user's records oldest first.
	ListByUser(ctx context.Context, userID uint64) ([]*models.PointHistory, error)
}
