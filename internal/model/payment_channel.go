package model

import (
	"math"
	"time"
)

// PaymentChannel 支付渠道配置表
// 渠道缺失或停用属于运营配置错误，不是用户错误
type PaymentChannel struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code                 string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Name                 string    `gorm:"type:varchar(128);not null" json:"name"`
	IsActive             bool      `gorm:"not null;default:true" json:"is_active"`
	AllowEventJoin       bool      `gorm:"not null;default:true" json:"allow_event_join"`
	CommissionPercentage float64   `gorm:"not null;default:0" json:"commission_percentage"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentChannel) TableName() string {
	return "payment_channel"
}

// Usable 渠道是否可用于活动报名
func (c *PaymentChannel) Usable() bool {
	return c.IsActive && c.AllowEventJoin
}

// CommissionOf 按渠道佣金比例计算佣金，四舍五入
func (c *PaymentChannel) CommissionOf(basis int64) int64 {
	return int64(math.Round(float64(basis) * c.CommissionPercentage / 100))
}
