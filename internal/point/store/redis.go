package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Aidin1998/pincex_points/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisPointKeyPrefix   = "point:user:"
	redisHistoryKeyPrefix = "point:history:"
	redisHistorySeqKey    = "point:history:seq"
)

func redisPointKey(userID uint64) string {
	return redisPointKeyPrefix + strconv.FormatUint(userID, 10)
}

func redisHistoryKey(userID uint64) string {
	return redisHistoryKeyPrefix + strconv.FormatUint(userID, 10)
}

// RedisBalanceStore implements BalanceStore as one hash per user.
type RedisBalanceStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisBalanceStore(client redis.UniversalClient) *RedisBalanceStore {
	return &RedisBalanceStore{client: client, now: time.Now}
}

func (s *RedisBalanceStore) Get(ctx context.Context, userID uint64) (*models.UserPoint, error) {
	fields, err := s.client.HGetAll(ctx, redisPointKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user point: %w", err)
	}
	if len(fields) == 0 {
		return models.EmptyUserPoint(userID), nil
	}

	point, err := strconv.ParseInt(fields["point"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid point value %q: %w", fields["point"], err)
	}
	updateMillis, err := strconv.ParseInt(fields["update_millis"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid update_millis value %q: %w", fields["update_millis"], err)
	}

	return &models.UserPoint{ID: userID, Point: point, UpdateMillis: updateMillis}, nil
}

func (s *RedisBalanceStore) Upsert(ctx context.Context, userID uint64, point int64) (*models.UserPoint, error) {
	p := &models.UserPoint{ID: userID, Point: point, UpdateMillis: s.now().UnixMilli()}
	err := s.client.HSet(ctx, redisPointKey(userID),
		"point", p.Point,
		"update_millis", p.UpdateMillis,
	).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to write user point: %w", err)
	}
	return p, nil
}

// RedisHistoryStore implements HistoryStore as one JSON list per user.
// Record ids come from a global counter so they grow in insertion order.
type RedisHistoryStore struct {
	client redis.UniversalClient
}

func NewRedisHistoryStore(client redis.UniversalClient) *RedisHistoryStore {
	return &RedisHistoryStore{client: client}
}

func (s *RedisHistoryStore) Append(ctx context.Context, userID uint64, amount int64, kind models.TransactionType, updateMillis int64) (*models.PointHistory, error) {
	id, err := s.client.Incr(ctx, redisHistorySeqKey).Uint64()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate history id: %w", err)
	}

	h := &models.PointHistory{
		ID:           id,
		UserID:       userID,
		Amount:       amount,
		Type:         kind,
		UpdateMillis: updateMillis,
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point history: %w", err)
	}
	if err := s.client.RPush(ctx, redisHistoryKey(userID), data).Err(); err != nil {
		return nil, fmt.Errorf("failed to append point history: %w", err)
	}
	return h, nil
}

func (s *RedisHistoryStore) ListByUser(ctx context.Context, userID uint64) ([]*models.PointHistory, error) {
	raw, err := s.client.LRange(ctx, redisHistoryKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read point histories: %w", err)
	}

	histories := make([]*models.PointHistory, 0, len(raw))
	for _, item := range raw {
		var h models.PointHistory
		if err := json.Unmarshal([]byte(item), &h); err != nil {
			return nil, fmt.Errorf("failed to unmarshal point history: %w", err)
		}
		histories = append(histories, &h)
	}
	return histories, nil
}
