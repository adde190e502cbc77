package model

import (
	"time"
)

// ============================================================================
// 账本流水
// ============================================================================

const (
	EntryTypeRecharge       = "RECHARGE"        // 充值
	EntryTypeTicketPurchase = "TICKET_PURCHASE" // 购票扣款
	EntryTypeTicketIncome   = "TICKET_INCOME"   // 票款收入
	EntryTypeCommission     = "COMMISSION"      // 平台佣金
	EntryTypeRefund         = "REFUND"          // 退款
	EntryTypeReserve        = "RESERVE"         // 预留票款
	EntryTypeRelease        = "RELEASE"         // 释放预留
	EntryTypeSettle         = "SETTLE"          // 预留结算
	EntryTypeFreeze         = "FREEZE"          // 收入冻结
	EntryTypeUnfreeze       = "UNFREEZE"        // 收入解冻
	EntryTypeClawback       = "CLAWBACK"        // 冻结资金追回
)

// 流水方向，按对可用余额的影响记：资金流入记 IN，流出记 OUT
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// LedgerEntry 账本流水表
// 记录钱包的每一次余额变动，是对账和交易历史查询的唯一依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 流水与余额变更必须在同一事务中落库 —— 不允许只有流水没有余额变更，反之亦然
// 3. 记录变更后的四项余额快照 —— 便于校验恒等式
type LedgerEntry struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	WalletID       int64     `gorm:"index;not null" json:"wallet_id"`
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	Type           string    `gorm:"type:varchar(20);not null" json:"type"`
	Direction      string    `gorm:"type:varchar(4);not null" json:"direction"`
	Amount         int64     `gorm:"not null" json:"amount"`
	BalanceAfter   int64     `gorm:"not null" json:"balance_after"`   // 变更后总余额
	AvailableAfter int64     `gorm:"not null" json:"available_after"` // 变更后可用余额
	ReservedAfter  int64     `gorm:"not null" json:"reserved_after"`  // 变更后预留余额
	FrozenAfter    int64     `gorm:"not null" json:"frozen_after"`    // 变更后冻结余额
	EventID        *int64    `gorm:"index" json:"event_id"`           // 关联活动
	JoinRequestID  *int64    `gorm:"index" json:"join_request_id"`    // 关联报名记录
	Remark         string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
