package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_points/common/dbutil"
	"github.com/Aidin1998/pincex_points/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate creates the point tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.UserPoint{}, &models.PointHistory{}); err != nil {
		return fmt.Errorf("failed to migrate point tables: %w", err)
	}
	return nil
}

// GormBalanceStore implements BalanceStore on top of gorm
type GormBalanceStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormBalanceStore(db *gorm.DB) *GormBalanceStore {
	return &GormBalanceStore{db: db, now: time.Now}
}

func (s *GormBalanceStore) Get(ctx context.Context, userID uint64) (*models.UserPoint, error) {
	p, err := dbutil.FindOne[models.UserPoint](s.db.WithContext(ctx).Where("id = ?", userID))
	if dbutil.IsNotFound(err) {
		return models.EmptyUserPoint(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user point: %w", err)
	}
	return p, nil
}

func (s *GormBalanceStore) Upsert(ctx context.Context, userID uint64, point int64) (*models.UserPoint, error) {
	p := &models.UserPoint{
		ID:           userID,
		Point:        point,
		UpdateMillis: s.now().UnixMilli(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"point", "update_millis"}),
	}).Create(p).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user point: %w", dbutil.WrapError(err))
	}
	return p, nil
}

// GormHistoryStore implements HistoryStore on top of gorm
type GormHistoryStore struct {
	db *gorm.DB
}

func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

func (s *GormHistoryStore) Append(ctx context.Context, userID uint64, amount int64, kind models.TransactionType, updateMillis int64) (*models.PointHistory, error) {
	h := &models.PointHistory{
		UserID:       userID,
		Amount:       amount,
		Type:         kind,
		UpdateMillis: updateMillis,
	}
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, fmt.Errorf("failed to create point history: %w", dbutil.WrapError(err))
	}
	return h, nil
}

func (s *GormHistoryStore) ListByUser(ctx context.Context, userID uint64) ([]*models.PointHistory, error) {
	histories := make([]*models.PointHistory, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&histories).Error; err != nil {
		return nil, fmt.Errorf("failed to find point histories: %w", dbutil.WrapError(err))
	}
	return histories, nil
}
