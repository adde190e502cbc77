package model

import (
	"time"
)

// JoinStatusHistory 报名状态变更审计表
// 每次状态转移追加一行，与对应的资金变更在同一事务中落库。
// 只追加，不修改，不删除。
type JoinStatusHistory struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JoinRequestID  int64     `gorm:"index;not null" json:"join_request_id"`
	PreviousStatus string    `gorm:"type:varchar(20);not null" json:"previous_status"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	ChangedBy      int64     `gorm:"not null" json:"changed_by"` // 操作者用户ID
	ActorRole      string    `gorm:"type:varchar(20);not null" json:"actor_role"`
	Reason         string    `gorm:"type:varchar(256)" json:"reason"`
	ChangedAt      time.Time `gorm:"autoCreateTime" json:"changed_at"`
}

func (JoinStatusHistory) TableName() string {
	return "join_status_history"
}
