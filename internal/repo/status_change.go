package repo

import (
	"context"

	"github.com/KNICEX/coin-status-watcher/internal/entity"
	"gorm.io/gorm"
)

type StatusChangeRepo interface {
	Create(ctx context.Context, change entity.StatusChange) (int64, error)
	FindRecent(ctx context.Context, coin string, limit int) ([]entity.StatusChange, error)
}

type statusChangeRepo struct {
	db *gorm.DB
}

func NewStatusChangeRepo(db *gorm.DB) StatusChangeRepo {
	return &statusChangeRepo{
		db: db,
	}
}

func (r *statusChangeRepo) Create(ctx context.Context, change entity.StatusChange) (int64, error) {
	err := r.db.WithContext(ctx).Create(&change).Error
	if err != nil {
		return 0, err
	}
	return change.Id, nil
}

// FindRecent 按时间倒序返回最近的通知
func (r *statusChangeRepo) FindRecent(ctx context.Context, coin string, limit int) ([]entity.StatusChange, error) {
	var changes []entity.StatusChange
	err := r.db.WithContext(ctx).
		Where("coin = ?", coin).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}
