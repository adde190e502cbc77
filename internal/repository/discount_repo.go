package repository

import (
	"context"
	"errors"

	"eventpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDiscountNotFound = errors.New("折扣码不存在")

type DiscountRepository struct {
	db *gorm.DB
}

func NewDiscountRepository(db *gorm.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	var discount model.DiscountCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&discount).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscountNotFound
		}
		return nil, err
	}
	return &discount, nil
}

func (r *DiscountRepository) GetByID(ctx context.Context, id int64) (*model.DiscountCode, error) {
	var discount model.DiscountCode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&discount).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscountNotFound
		}
		return nil, err
	}
	return &discount, nil
}

// CountUsageByUser 统计某用户对某折扣码的历史核销次数
func (r *DiscountRepository) CountUsageByUser(ctx context.Context, discountCodeID, userID int64) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DiscountUsage{}).
		Where("discount_code_id = ? AND user_id = ?", discountCodeID, userID).
		Count(&count).Error
	return int(count), err
}

// CreateUsageIfAbsent 幂等写入核销记录
//
// join_request_id 上有唯一索引，重复写入直接忽略。返回本次是否真正插入，
// 调用方只在真正插入时递增 UsedCount，重试不会重复计数。
func (r *DiscountRepository) CreateUsageIfAbsent(ctx context.Context, tx *gorm.DB, usage *model.DiscountUsage) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "join_request_id"}},
			DoNothing: true,
		}).
		Create(usage)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *DiscountRepository) IncrementUsedCount(ctx context.Context, tx *gorm.DB, discountCodeID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.DiscountCode{}).
		Where("id = ?", discountCodeID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}

func (r *DiscountRepository) GetUsageByJoinRequest(ctx context.Context, joinRequestID int64) (*model.DiscountUsage, error) {
	var usage model.DiscountUsage
	err := r.db.WithContext(ctx).Where("join_request_id = ?", joinRequestID).First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}
