package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 事务性 outbox 表
// 报名、退款等结果消息与业务变更在同一事务中写入，由后台任务投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// JoinResultPayload 报名/退款结果消息体
//
// 消息键是报名单号，同一条报名的所有状态变更进同一分区，消费方按序消费。
// 金额字段带出当前支付子记录的快照，下游无需回查。
type JoinResultPayload struct {
	JoinNo         string `json:"join_no"`
	EventID        int64  `json:"event_id"`
	UserID         int64  `json:"user_id"`
	Status         string `json:"status"`
	OriginalAmount int64  `json:"original_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	PaidAmount     int64  `json:"paid_amount"`
	ReservedAmount int64  `json:"reserved_amount"`
	RefundAmount   int64  `json:"refund_amount"`
	ChangedAt      string `json:"changed_at"`
}
