package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eventpay/internal/model"
	"eventpay/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newUsageTestDB 每个测试独立的内存库，避免用例之间互相干扰
func newUsageTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DiscountCode{}, &model.DiscountUsage{}))
	return db
}

func seedDiscountCode(t *testing.T, db *gorm.DB) *model.DiscountCode {
	t.Helper()
	discount := &model.DiscountCode{
		Code:                  "SPRING20",
		DiscountType:          model.DiscountTypePercentage,
		Value:                 20,
		CommissionCalculation: model.CommissionAfterDiscount,
		ValidFrom:             time.Now().Add(-time.Hour),
		ValidUntil:            time.Now().Add(time.Hour),
		IsActive:              true,
	}
	require.NoError(t, db.Create(discount).Error)
	return discount
}

func TestRecordUsageIdempotent(t *testing.T) {
	db := newUsageTestDB(t)
	svc := NewDiscountService(db)
	discount := seedDiscountCode(t, db)
	ctx := context.Background()

	// 同一报名重复核销：只落一条记录，UsedCount 只加一次
	require.NoError(t, svc.RecordUsageTx(ctx, nil, discount, 7, 1, 100, 1000, 200, 800))
	require.NoError(t, svc.RecordUsageTx(ctx, nil, discount, 7, 1, 100, 1000, 200, 800))

	var reloaded model.DiscountCode
	require.NoError(t, db.First(&reloaded, discount.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount)

	var usageCount int64
	require.NoError(t, db.Model(&model.DiscountUsage{}).Count(&usageCount).Error)
	require.EqualValues(t, 1, usageCount)
}

func TestRecordUsageDistinctJoinRequests(t *testing.T) {
	db := newUsageTestDB(t)
	svc := NewDiscountService(db)
	discount := seedDiscountCode(t, db)
	ctx := context.Background()

	require.NoError(t, svc.RecordUsageTx(ctx, nil, discount, 7, 1, 100, 1000, 200, 800))
	require.NoError(t, svc.RecordUsageTx(ctx, nil, discount, 7, 2, 101, 1000, 200, 800))

	var reloaded model.DiscountCode
	require.NoError(t, db.First(&reloaded, discount.ID).Error)
	require.Equal(t, 2, reloaded.UsedCount)

	repo := repository.NewDiscountRepository(db)
	count, err := repo.CountUsageByUser(ctx, discount.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
