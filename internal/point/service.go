// Package point implements the point service: per-user balances that are
// charged and used by concurrent callers, with every committed mutation
// recorded in an append-only history.
//
// Mutations for one user are serialized through a per-user lock from the
// lock registry; mutations for different users never wait on each other.
package point

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/pincex_points/common/errors"
	"github.com/Aidin1998/pincex_points/internal/point/lockregistry"
	"github.com/Aidin1998/pincex_points/internal/point/store"
	"github.com/Aidin1998/pincex_points/pkg/metrics"
	"github.com/Aidin1998/pincex_points/pkg/models"
)

// DefaultLockTimeout bounds how long a mutation waits for its user's lock.
const DefaultLockTimeout = time.Second

// DefaultPublishTimeout bounds how long a committed mutation waits on its event.
const DefaultPublishTimeout = 2 * time.Second

// PointService defines the operations exposed to the API layer
type PointService interface {
	Charge(ctx context.Context, userID uint64, amount int64) (*models.UserPoint, error)
	Use(ctx context.Context, userID uint64, amount int64) (*models.UserPoint, error)
	GetBalance(ctx context.Context, userID uint64) (*models.UserPoint, error)
	GetHistory(ctx context.Context, userID uint64) ([]*models.PointHistory, error)
}

// EventPublisher receives committed mutations. Failures are logged only.
type EventPublisher interface {
	PublishPointEvent(ctx context.Context, kind models.TransactionType, amount int64, snapshot *models.UserPoint) error
}

// Service implements PointService
type Service struct {
	logger    *zap.Logger
	balances  store.BalanceStore
	histories store.HistoryStore
	locks     *lockregistry.Registry
	publisher EventPublisher

	lockTimeout    time.Duration
	publishTimeout time.Duration
	precheck       bool
}

var _ PointService = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

// WithLockTimeout sets the maximum wait for a user's lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithPublishTimeout sets the maximum time spent publishing one event.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithPreCheck toggles the unlocked balance check done before a use waits
// for the lock.
func WithPreCheck(enabled bool) Option {
	return func(s *Service) {
		s.precheck = enabled
	}
}

// WithPublisher sets where committed mutations are announced.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates a new point service
func NewService(
	logger *zap.Logger,
	balances store.BalanceStore,
	histories store.HistoryStore,
	locks *lockregistry.Registry,
	opts ...Option,
) *Service {
	s := &Service{
		logger:      logger,
		balances:    balances,
		histories:   histories,
		locks:       locks,
		lockTimeout:    DefaultLockTimeout,
		publishTimeout: DefaultPublishTimeout,
		precheck:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Charge adds amount points to the user's balance.
func (s *Service) Charge(ctx context.Context, userID uint64, amount int64) (*models.UserPoint, error) {
	return s.apply(ctx, userID, amount, chargeMutation)
}

// Use subtracts amount points from the user's balance. The balance never
// goes below zero.
func (s *Service) Use(ctx context.Context, userID uint64, amount int64) (*models.UserPoint, error) {
	return s.apply(ctx, userID, amount, useMutation)
}

// GetBalance reads the current balance without taking the user's lock.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (*models.UserPoint, error) {
	p, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, errors.ErrStore.Explain("failed to read balance of user %d", userID).Wrap(err)
	}
	return p, nil
}

// GetHistory lists the user's committed mutations, oldest first.
func (s *Service) GetHistory(ctx context.Context, userID uint64) ([]*models.PointHistory, error) {
	histories, err := s.histories.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.ErrStore.Explain("failed to read history of user %d", userID).Wrap(err)
	}
	return histories, nil
}

// apply runs the shared charge/use protocol. When the history append fails
// after the balance was written, both the committed snapshot and an
// ErrHistoryAppend error are returned.
func (s *Service) apply(ctx context.Context, userID uint64, amount int64, m mutation) (snapshot *models.UserPoint, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = errors.KindOf(err)
		}
		metrics.PointMutations.WithLabelValues(string(m.kind), outcome).Inc()
	}()

	if amount <= 0 {
		return nil, errors.ErrValidation.
			Explain("amount must be positive").
			WithField("gt", "amount", "must be greater than 0")
	}

	if s.precheck && m.precheck != nil {
		current, err := s.balances.Get(ctx, userID)
		if err != nil {
			return nil, errors.ErrStore.Explain("failed to read balance of user %d", userID).Wrap(err)
		}
		if err := m.precheck(current.Point, amount); err != nil {
			return nil, err
		}
	}

	snapshot, err = s.mutate(ctx, userID, amount, m)
	if s.locks.Compact() {
		s.logger.Info("point lock registry purged")
	}
	if err != nil {
		return nil, err
	}

	// The balance is committed; a caller going away must not lose the record.
	recordCtx := context.WithoutCancel(ctx)
	if _, err := s.histories.Append(recordCtx, userID, amount, m.kind, snapshot.UpdateMillis); err != nil {
		s.logger.Error("point history append failed after balance commit",
			zap.Uint64("user_id", userID),
			zap.String("type", string(m.kind)),
			zap.Int64("amount", amount),
			zap.Int64("point", snapshot.Point),
			zap.Int64("update_millis", snapshot.UpdateMillis),
			zap.Error(err),
		)
		return snapshot, errors.ErrHistoryAppend.
			Explain("balance of user %d updated but history was not recorded", userID).
			Wrap(err)
	}

	s.publish(recordCtx, m.kind, amount, snapshot)

	s.logger.Debug("point mutation committed",
		zap.Uint64("user_id", userID),
		zap.String("type", string(m.kind)),
		zap.Int64("amount", amount),
		zap.Int64("point", snapshot.Point),
	)
	return snapshot, nil
}

// publish announces a committed mutation. It never fails the mutation and
// returns within publishTimeout.
func (s *Service) publish(ctx context.Context, kind models.TransactionType, amount int64, snapshot *models.UserPoint) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.publisher.PublishPointEvent(ctx, kind, amount, snapshot)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Warn("failed to publish point event",
			zap.Uint64("user_id", snapshot.ID),
			zap.String("type", string(kind)),
			zap.Duration("timeout", s.publishTimeout),
			zap.Error(err),
		)
	}
}

// mutate is the critical section: authoritative read, compute, write.
func (s *Service) mutate(ctx context.Context, userID uint64, amount int64, m mutation) (*models.UserPoint, error) {
	handle := s.locks.Acquire(userID)
	defer s.locks.Release(userID, handle)

	if err := s.lock(ctx, userID, handle); err != nil {
		return nil, err
	}
	defer handle.Unlock()

	// Once the lock is held the read-modify-write runs to completion.
	ctx = context.WithoutCancel(ctx)

	current, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, errors.ErrStore.Explain("failed to read balance of user %d", userID).Wrap(err)
	}

	next, err := m.apply(current.Point, amount)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.balances.Upsert(ctx, userID, next)
	if err != nil {
		return nil, errors.ErrStore.Explain("failed to write balance of user %d", userID).Wrap(err)
	}
	return snapshot, nil
}

func (s *Service) lock(ctx context.Context, userID uint64, handle *lockregistry.Handle) error {
	if ctx.Err() != nil {
		metrics.LockWait.WithLabelValues("interrupted").Observe(0)
		return errors.ErrLockInterrupted.Explain("request for user %d cancelled before waiting", userID).Wrap(ctx.Err())
	}

	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	err := handle.Lock(lockCtx)
	waited := time.Since(start)
	switch {
	case err == nil:
		metrics.LockWait.WithLabelValues("acquired").Observe(waited.Seconds())
		return nil
	case ctx.Err() != nil:
		metrics.LockWait.WithLabelValues("interrupted").Observe(waited.Seconds())
		s.logger.Warn("point lock wait interrupted",
			zap.Uint64("user_id", userID),
			zap.Duration("waited", waited),
			zap.Error(ctx.Err()),
		)
		return errors.ErrLockInterrupted.Explain("wait for lock of user %d was interrupted", userID).Wrap(ctx.Err())
	default:
		metrics.LockWait.WithLabelValues("timeout").Observe(waited.Seconds())
		s.logger.Warn("point lock wait timed out",
			zap.Uint64("user_id", userID),
			zap.Duration("timeout", s.lockTimeout),
		)
		return errors.ErrLockTimeout.Explain("could not lock user %d within %s", userID, s.lockTimeout)
	}
}
