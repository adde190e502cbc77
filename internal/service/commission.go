package service

import (
	"eventpay/internal/model"
)

// ============================================================================
// 佣金计算
// ============================================================================

// CommissionResult 佣金计算结果
type CommissionResult struct {
	CommissionAmount int64 `json:"commission_amount"`
	OwnerAmount      int64 `json:"owner_amount"` // 主办方应得 = 实付金额 - 佣金
	Basis            int64 `json:"basis"`        // 计算基数
	// Inconsistent 佣金超过实付金额，OwnerAmount 被钳到 0。
	// 属于渠道配置与折扣组合不合理，需要运营介入，计算本身不报错。
	Inconsistent bool `json:"inconsistent,omitempty"`
}

// ComputeCommission 按渠道配置计算平台佣金
//
// 基数由折扣码的 CommissionCalculation 决定：
// BEFORE_DISCOUNT 按票面价计，AFTER_DISCOUNT 按实付金额计。
// 纯计算，无副作用，可在任意时刻安全取消。
func ComputeCommission(channel *model.PaymentChannel, originalAmount, finalAmount int64, commissionCalculation string) CommissionResult {
	basis := finalAmount
	if commissionCalculation == model.CommissionBeforeDiscount {
		basis = originalAmount
	}

	commission := channel.CommissionOf(basis)
	ownerAmount := finalAmount - commission

	result := CommissionResult{
		CommissionAmount: commission,
		OwnerAmount:      ownerAmount,
		Basis:            basis,
	}
	if ownerAmount < 0 {
		result.OwnerAmount = 0
		result.Inconsistent = true
	}
	return result
}
