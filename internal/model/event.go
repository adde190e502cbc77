package model

import (
	"time"
)

// ============================================================================
// 活动（外部协作方数据，本服务只读取并维护报名计数）
// ============================================================================

const (
	EventStatusOpen     = "OPEN"     // 开放报名
	EventStatusClosed   = "CLOSED"   // 停止报名
	EventStatusFinished = "FINISHED" // 已结束，冻结收入可解冻
)

// Event 活动表
// 内容管理在活动服务中完成，本服务只消费报名所需的字段。
// RegisteredCount 不是独立维护的计数器：只允许在触发它的状态转移
// 所在的事务内通过条件更新变更。
type Event struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID           int64     `gorm:"index;not null" json:"owner_id"`
	Title             string    `gorm:"type:varchar(128);not null" json:"title"`
	Status            string    `gorm:"type:varchar(20);index;not null" json:"status"`
	TicketPrice       int64     `gorm:"not null;default:0" json:"ticket_price"` // 最小货币单位
	ParticipationType string    `gorm:"type:varchar(20);not null" json:"participation_type"`
	Capacity          int       `gorm:"not null;default:0" json:"capacity"` // 0 为不限
	RegisteredCount   int       `gorm:"not null;default:0" json:"registered_count"`
	PaymentChannelID  int64     `gorm:"not null" json:"payment_channel_id"`
	StartAt           time.Time `gorm:"not null" json:"start_at"`
	EndAt             time.Time `gorm:"not null;index" json:"end_at"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Event) TableName() string {
	return "event"
}

// Joinable 活动是否开放报名
func (e *Event) Joinable() bool {
	return e.Status == EventStatusOpen
}
