package store

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_points/pkg/models"
)

// MemoryOption configures the in-memory stores
type MemoryOption func(*latency)

// WithLatency makes every store access sleep for a random duration in
// [min, max], imitating a remote table.
func WithLatency(min, max time.Duration) MemoryOption {
	return func(l *latency) {
		if max < min {
			max = min
		}
		l.min, l.max = min, max
	}
}

type latency struct {
	min, max time.Duration
}

// wait sleeps for the configured latency or until ctx is done.
func (l latency) wait(ctx context.Context) error {
	if l.max <= 0 {
		return ctx.Err()
	}
	d := l.min
	if span := l.max - l.min; span > 0 {
		d += rand.N(span + 1)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newLatency(opts []MemoryOption) latency {
	var l latency
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// MemoryBalanceStore implements BalanceStore in memory.
// Thread-safe via RWMutex.
type MemoryBalanceStore struct {
	mu      sync.RWMutex
	points  map[uint64]models.UserPoint
	latency latency
	now     func() time.Time
}

func NewMemoryBalanceStore(opts ...MemoryOption) *MemoryBalanceStore {
	return &MemoryBalanceStore{
		points:  make(map[uint64]models.UserPoint),
		latency: newLatency(opts),
		now:     time.Now,
	}
}

func (s *MemoryBalanceStore) Get(ctx context.Context, userID uint64) (*models.UserPoint, error) {
	if err := s.latency.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.points[userID]; ok {
		// return copy to avoid race on mutation outside lock
		return &p, nil
	}
	return models.EmptyUserPoint(userID), nil
}

func (s *MemoryBalanceStore) Upsert(ctx context.Context, userID uint64, point int64) (*models.UserPoint, error) {
	if err := s.latency.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.UserPoint{ID: userID, Point: point, UpdateMillis: s.now().UnixMilli()}
	s.points[userID] = p
	return &p, nil
}

// MemoryHistoryStore implements HistoryStore in memory.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	cursor  uint64
	records []models.PointHistory
	latency latency
}

func NewMemoryHistoryStore(opts ...MemoryOption) *MemoryHistoryStore {
	return &MemoryHistoryStore{latency: newLatency(opts)}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, userID uint64, amount int64, kind models.TransactionType, updateMillis int64) (*models.PointHistory, error) {
	if err := s.latency.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor++
	h := models.PointHistory{
		ID:           s.cursor,
		UserID:       userID,
		Amount:       amount,
		Type:         kind,
		UpdateMillis: updateMillis,
	}
	s.records = append(s.records, h)
	return &h, nil
}

func (s *MemoryHistoryStore) ListByUser(ctx context.Context, userID uint64) ([]*models.PointHistory, error) {
	if err := s.latency.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PointHistory, 0)
	for i := range s.records {
		if s.records[i].UserID == userID {
			h := s.records[i]
			out = append(out, &h)
		}
	}
	return out, nil
}
