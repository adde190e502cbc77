package service

import (
	"testing"

	"eventpay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenPercentChannel() *model.PaymentChannel {
	return &model.PaymentChannel{
		ID:                   1,
		Code:                 "WALLET",
		IsActive:             true,
		AllowEventJoin:       true,
		CommissionPercentage: 10,
	}
}

func TestComputeCommissionAfterDiscount(t *testing.T) {
	// 票面价1000，折扣200，实付800：按实付计佣 800*10% = 80
	result := ComputeCommission(tenPercentChannel(), 1000, 800, model.CommissionAfterDiscount)

	assert.Equal(t, int64(80), result.CommissionAmount)
	assert.Equal(t, int64(720), result.OwnerAmount)
	assert.Equal(t, int64(800), result.Basis)
	assert.False(t, result.Inconsistent)
}

func TestComputeCommissionBeforeDiscount(t *testing.T) {
	// 按票面价计佣 1000*10% = 100，主办方得 800-100 = 700
	result := ComputeCommission(tenPercentChannel(), 1000, 800, model.CommissionBeforeDiscount)

	assert.Equal(t, int64(100), result.CommissionAmount)
	assert.Equal(t, int64(700), result.OwnerAmount)
	assert.Equal(t, int64(1000), result.Basis)
	assert.False(t, result.Inconsistent)
}

func TestComputeCommissionRounding(t *testing.T) {
	channel := tenPercentChannel()
	channel.CommissionPercentage = 2.5

	// 333*2.5% = 8.325，四舍五入为8
	result := ComputeCommission(channel, 333, 333, model.CommissionAfterDiscount)
	assert.Equal(t, int64(8), result.CommissionAmount)

	// 340*2.5% = 8.5，四舍五入为9
	result = ComputeCommission(channel, 340, 340, model.CommissionAfterDiscount)
	assert.Equal(t, int64(9), result.CommissionAmount)
}

func TestComputeCommissionClampedToZero(t *testing.T) {
	// 大折扣加折扣前计佣：佣金100超过实付50，主办方钳到0并标记异常
	result := ComputeCommission(tenPercentChannel(), 1000, 50, model.CommissionBeforeDiscount)

	assert.Equal(t, int64(100), result.CommissionAmount)
	assert.Equal(t, int64(0), result.OwnerAmount)
	assert.True(t, result.Inconsistent)
}

func TestComputeCommissionFreeTicket(t *testing.T) {
	result := ComputeCommission(tenPercentChannel(), 0, 0, model.CommissionAfterDiscount)

	assert.Equal(t, int64(0), result.CommissionAmount)
	assert.Equal(t, int64(0), result.OwnerAmount)
	assert.False(t, result.Inconsistent)
}

// TestDeferredJoinMoneyFlow 审批票从报名到退款的完整资金流转（纯内存推演）
//
// 用户钱包1000报名，折扣20%封顶100、渠道佣金10%：实付900、佣金90、主办方得810。
// 审批通过后结算并给主办方入账冻结，退款时用户拿回810（佣金不退），
// 主办方冻结的810被全额追回。全程两个钱包的恒等式都保持成立。
func TestDeferredJoinMoneyFlow(t *testing.T) {
	user := &model.Wallet{UserID: 100, Status: model.WalletStatusActive}
	owner := &model.Wallet{UserID: 200, Status: model.WalletStatusActive}

	require.NoError(t, user.ApplyDeposit(1000))

	discount := &model.DiscountCode{
		DiscountType:          model.DiscountTypePercentage,
		Value:                 20,
		MaxAmount:             100,
		CommissionCalculation: model.CommissionAfterDiscount,
		IsActive:              true,
	}
	discountAmount, finalAmount := discount.ComputeDiscount(1000)
	require.Equal(t, int64(100), discountAmount)
	require.Equal(t, int64(900), finalAmount)

	com := ComputeCommission(tenPercentChannel(), 1000, finalAmount, discount.CommissionCalculation)
	require.Equal(t, int64(90), com.CommissionAmount)
	require.Equal(t, int64(810), com.OwnerAmount)

	// 报名：预留实付金额
	require.NoError(t, user.ApplyReserve(finalAmount))
	assert.Equal(t, int64(100), user.AvailableBalance)
	assert.Equal(t, int64(900), user.ReservedBalance)
	assert.True(t, user.CheckInvariant())

	// 审批通过：结算预留，主办方入账并冻结
	fromReserved, fromAvailable, err := user.ApplySettle(finalAmount)
	require.NoError(t, err)
	assert.Equal(t, int64(900), fromReserved)
	assert.Equal(t, int64(0), fromAvailable)
	assert.Equal(t, int64(100), user.Balance)

	require.NoError(t, owner.ApplyDeposit(com.OwnerAmount))
	require.NoError(t, owner.ApplyFreeze(com.OwnerAmount))
	assert.Equal(t, int64(810), owner.FrozenBalance)
	assert.True(t, owner.CheckInvariant())

	// 退款：用户拿回主办方应得部分，佣金不退
	require.NoError(t, user.ApplyDeposit(com.OwnerAmount))
	assert.Equal(t, int64(910), user.Balance)

	// 追回：优先走冻结余额
	require.NoError(t, owner.ApplyClawback(com.OwnerAmount))
	assert.Equal(t, int64(0), owner.Balance)
	assert.True(t, user.CheckInvariant())
	assert.True(t, owner.CheckInvariant())
}

// TestDeferredJoinWithoutDiscount 无折扣审批票：报名、审批、退款后各项余额归零
func TestDeferredJoinWithoutDiscount(t *testing.T) {
	user := &model.Wallet{UserID: 100, Status: model.WalletStatusActive}
	owner := &model.Wallet{UserID: 200, Status: model.WalletStatusActive}

	require.NoError(t, user.ApplyDeposit(1000))

	com := ComputeCommission(tenPercentChannel(), 1000, 1000, model.CommissionAfterDiscount)
	require.Equal(t, int64(100), com.CommissionAmount)
	require.Equal(t, int64(900), com.OwnerAmount)

	// 报名预留全额票款
	require.NoError(t, user.ApplyReserve(1000))
	assert.Equal(t, int64(0), user.AvailableBalance)
	assert.Equal(t, int64(1000), user.ReservedBalance)

	// 审批通过：结算1000，主办方入账900并冻结
	_, _, err := user.ApplySettle(1000)
	require.NoError(t, err)
	require.NoError(t, owner.ApplyDeposit(900))
	require.NoError(t, owner.ApplyFreeze(900))
	assert.Equal(t, int64(0), user.Balance)
	assert.Equal(t, int64(900), owner.FrozenBalance)

	// 退款：用户拿回900（佣金不退），主办方冻结的900被追回
	require.NoError(t, user.ApplyDeposit(900))
	require.NoError(t, owner.ApplyClawback(900))

	assert.Equal(t, int64(900), user.Balance)
	assert.Equal(t, int64(900), user.AvailableBalance)
	assert.Equal(t, int64(0), user.ReservedBalance)
	assert.Equal(t, int64(0), owner.Balance)
	assert.Equal(t, int64(0), owner.FrozenBalance)
	assert.True(t, user.CheckInvariant())
	assert.True(t, owner.CheckInvariant())
}

// TestClawbackFallbackToAvailable 冻结不足时的追回降级路径
func TestClawbackFallbackToAvailable(t *testing.T) {
	owner := &model.Wallet{UserID: 200, Status: model.WalletStatusActive}
	require.NoError(t, owner.ApplyDeposit(810))

	// 收入已解冻：冻结余额为0，直接追冻结会失败
	err := owner.ApplyClawback(810)
	require.ErrorIs(t, err, model.ErrInsufficientFrozen)

	// 降级从可用余额扣
	require.NoError(t, owner.ApplyDeduct(810))
	assert.Equal(t, int64(0), owner.Balance)
	assert.True(t, owner.CheckInvariant())
}
