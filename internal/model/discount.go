package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// 折扣码
// ============================================================================

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// 佣金计算基数：折扣前按票面价计，折扣后按实付金额计
const (
	CommissionBeforeDiscount = "BEFORE_DISCOUNT"
	CommissionAfterDiscount  = "AFTER_DISCOUNT"
)

var (
	ErrDiscountInactive     = errors.New("折扣码不存在或已停用")
	ErrDiscountNotStarted   = errors.New("折扣码尚未生效")
	ErrDiscountExpired      = errors.New("折扣码已过期")
	ErrDiscountUsedUp       = errors.New("折扣码已达到使用上限")
	ErrDiscountUserUsedUp   = errors.New("您使用该折扣码的次数已达上限")
	ErrDiscountAmountTooLow = errors.New("订单金额未达到折扣码使用门槛")
	ErrDiscountAmountTooBig = errors.New("订单金额超出折扣码适用范围")
	ErrDiscountWrongEvent   = errors.New("折扣码不适用于该活动")
)

// DiscountCode 折扣码表
// 只停用不删除；UsedCount 在每次成功核销时递增
type DiscountCode struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code                  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountType          string    `gorm:"type:varchar(20);not null" json:"discount_type"`
	Value                 int64     `gorm:"not null" json:"value"`                               // 百分比或固定金额
	MaxAmount             int64     `gorm:"not null;default:0" json:"max_amount"`                // 百分比折扣上限，0 为不限
	CommissionCalculation string    `gorm:"type:varchar(20);not null" json:"commission_calculation"`
	UsedCount             int       `gorm:"not null;default:0" json:"used_count"`
	MaxUsage              int       `gorm:"not null;default:0" json:"max_usage"`          // 全局使用上限，0 为不限
	MaxUsagePerUser       int       `gorm:"not null;default:0" json:"max_usage_per_user"` // 单用户上限，0 为不限
	MinPurchaseAmount     int64     `gorm:"not null;default:0" json:"min_purchase_amount"`
	MaxPurchaseAmount     int64     `gorm:"not null;default:0" json:"max_purchase_amount"` // 0 为不限
	ValidFrom             time.Time `gorm:"not null" json:"valid_from"`
	ValidUntil            time.Time `gorm:"not null" json:"valid_until"`
	SpecificEvents        string    `gorm:"type:varchar(512)" json:"specific_events"` // 逗号分隔的活动ID白名单，空为全部适用
	IsActive              bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DiscountCode) TableName() string {
	return "discount_code"
}

// AppliesToEvent 活动限制检查，白名单为空时对所有活动生效
func (d *DiscountCode) AppliesToEvent(eventID int64) bool {
	if strings.TrimSpace(d.SpecificEvents) == "" {
		return true
	}
	for _, part := range strings.Split(d.SpecificEvents, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id == eventID {
			return true
		}
	}
	return false
}

// CheckApplicable 适用性校验，按固定顺序返回第一个失败原因，不改变任何状态。
// userUsed 是该用户的历史核销次数，由调用方从 DiscountUsage 统计后传入。
func (d *DiscountCode) CheckApplicable(now time.Time, baseAmount, eventID int64, userUsed int) error {
	if !d.IsActive {
		return ErrDiscountInactive
	}
	if now.Before(d.ValidFrom) {
		return ErrDiscountNotStarted
	}
	if now.After(d.ValidUntil) {
		return ErrDiscountExpired
	}
	if d.MaxUsage > 0 && d.UsedCount >= d.MaxUsage {
		return ErrDiscountUsedUp
	}
	if d.MaxUsagePerUser > 0 && userUsed >= d.MaxUsagePerUser {
		return ErrDiscountUserUsedUp
	}
	if baseAmount < d.MinPurchaseAmount {
		return ErrDiscountAmountTooLow
	}
	if d.MaxPurchaseAmount > 0 && baseAmount > d.MaxPurchaseAmount {
		return ErrDiscountAmountTooBig
	}
	if !d.AppliesToEvent(eventID) {
		return ErrDiscountWrongEvent
	}
	return nil
}

// ComputeDiscount 折扣计算
// 百分比折扣向下取整并受 MaxAmount 封顶，固定折扣不超过票面价，实付金额不为负
func (d *DiscountCode) ComputeDiscount(baseAmount int64) (discountAmount, finalAmount int64) {
	switch d.DiscountType {
	case DiscountTypePercentage:
		discountAmount = baseAmount * d.Value / 100
		if d.MaxAmount > 0 && discountAmount > d.MaxAmount {
			discountAmount = d.MaxAmount
		}
	case DiscountTypeFixed:
		discountAmount = d.Value
		if discountAmount > baseAmount {
			discountAmount = baseAmount
		}
	}
	finalAmount = baseAmount - discountAmount
	if finalAmount < 0 {
		finalAmount = 0
	}
	return discountAmount, finalAmount
}

// DiscountUsage 折扣码核销记录表
// 以 JoinRequestID 作为唯一键，重试不会重复核销。只追加。
type DiscountUsage struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscountCodeID int64     `gorm:"index;not null" json:"discount_code_id"`
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	EventID        int64     `gorm:"not null" json:"event_id"`
	JoinRequestID  int64     `gorm:"uniqueIndex;not null" json:"join_request_id"`
	OriginalAmount int64     `gorm:"not null" json:"original_amount"`
	DiscountAmount int64     `gorm:"not null" json:"discount_amount"`
	FinalAmount    int64     `gorm:"not null" json:"final_amount"`
	UsedAt         time.Time `gorm:"autoCreateTime" json:"used_at"`
}

func (DiscountUsage) TableName() string {
	return "discount_usage"
}
