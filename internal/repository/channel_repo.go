package repository

import (
	"context"
	"errors"

	"eventpay/internal/model"

	"gorm.io/gorm"
)

var ErrChannelNotFound = errors.New("支付渠道不存在")

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*model.PaymentChannel, error) {
	var channel model.PaymentChannel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

func (r *ChannelRepository) GetByCode(ctx context.Context, code string) (*model.PaymentChannel, error) {
	var channel model.PaymentChannel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}
