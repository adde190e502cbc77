package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validDiscount() *DiscountCode {
	return &DiscountCode{
		ID:                    1,
		Code:                  "SPRING20",
		DiscountType:          DiscountTypePercentage,
		Value:                 20,
		CommissionCalculation: CommissionAfterDiscount,
		IsActive:              true,
		ValidFrom:             time.Now().Add(-time.Hour),
		ValidUntil:            time.Now().Add(time.Hour),
	}
}

func TestCheckApplicableOrder(t *testing.T) {
	now := time.Now()

	d := validDiscount()
	d.IsActive = false
	// 停用排在最前，即使时间窗口也不满足
	d.ValidFrom = now.Add(time.Hour)
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountInactive)

	d = validDiscount()
	d.ValidFrom = now.Add(time.Minute)
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountNotStarted)

	d = validDiscount()
	d.ValidUntil = now.Add(-time.Minute)
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountExpired)

	d = validDiscount()
	d.MaxUsage = 10
	d.UsedCount = 10
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountUsedUp)

	d = validDiscount()
	d.MaxUsagePerUser = 1
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 1), ErrDiscountUserUsedUp)

	d = validDiscount()
	d.MinPurchaseAmount = 2000
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountAmountTooLow)

	d = validDiscount()
	d.MaxPurchaseAmount = 500
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountAmountTooBig)

	d = validDiscount()
	d.SpecificEvents = "2, 3"
	assert.ErrorIs(t, d.CheckApplicable(now, 1000, 1, 0), ErrDiscountWrongEvent)
	assert.NoError(t, d.CheckApplicable(now, 1000, 3, 0))

	d = validDiscount()
	assert.NoError(t, d.CheckApplicable(now, 1000, 1, 0))
}

func TestCheckApplicableZeroMeansUnlimited(t *testing.T) {
	now := time.Now()
	d := validDiscount()
	d.MaxUsage = 0
	d.UsedCount = 99999
	d.MaxUsagePerUser = 0
	d.MaxPurchaseAmount = 0

	assert.NoError(t, d.CheckApplicable(now, 1_000_000, 1, 42))
}

func TestComputeDiscountPercentage(t *testing.T) {
	d := validDiscount() // 20%

	discountAmount, finalAmount := d.ComputeDiscount(1000)
	assert.Equal(t, int64(200), discountAmount)
	assert.Equal(t, int64(800), finalAmount)

	// 向下取整
	discountAmount, finalAmount = d.ComputeDiscount(999)
	assert.Equal(t, int64(199), discountAmount)
	assert.Equal(t, int64(800), finalAmount)
}

func TestComputeDiscountPercentageCapped(t *testing.T) {
	d := validDiscount()
	d.MaxAmount = 100

	// 20% of 1000 = 200，被封顶到100
	discountAmount, finalAmount := d.ComputeDiscount(1000)
	assert.Equal(t, int64(100), discountAmount)
	assert.Equal(t, int64(900), finalAmount)
}

func TestComputeDiscountFixed(t *testing.T) {
	d := validDiscount()
	d.DiscountType = DiscountTypeFixed
	d.Value = 300

	discountAmount, finalAmount := d.ComputeDiscount(1000)
	assert.Equal(t, int64(300), discountAmount)
	assert.Equal(t, int64(700), finalAmount)

	// 固定折扣不超过票面价，实付不为负
	discountAmount, finalAmount = d.ComputeDiscount(200)
	assert.Equal(t, int64(200), discountAmount)
	assert.Equal(t, int64(0), finalAmount)
}

func TestAppliesToEvent(t *testing.T) {
	d := validDiscount()

	d.SpecificEvents = ""
	assert.True(t, d.AppliesToEvent(7))

	d.SpecificEvents = "  "
	assert.True(t, d.AppliesToEvent(7))

	d.SpecificEvents = "1,2,3"
	assert.True(t, d.AppliesToEvent(2))
	assert.False(t, d.AppliesToEvent(7))

	// 容忍空格和坏条目
	d.SpecificEvents = " 1 , x , 7 "
	assert.True(t, d.AppliesToEvent(7))
	assert.False(t, d.AppliesToEvent(2))
}
