package model

import (
	"time"
)

// ============================================================================
// 报名记录与状态机
// ============================================================================

const (
	JoinStatusPendingApproval = "PENDING_APPROVAL" // 等待审批（免费票）
	JoinStatusPaymentReserved = "PAYMENT_RESERVED" // 票款已预留，等待审批
	JoinStatusConfirmed       = "CONFIRMED"        // 即时票已确认
	JoinStatusApproved        = "APPROVED"         // 审批通过并完成结算
	JoinStatusRejected        = "REJECTED"         // 审批拒绝，票款已退回
	JoinStatusRefunded        = "REFUNDED"         // 已退款
	JoinStatusCanceled        = "CANCELED"         // 参与者取消，记录可复用
	JoinStatusRevoked         = "REVOKED"          // 主办方撤销资格
)

// 历史数据中存在 CANCELLED 的旧拼写，读取时统一归一化为 CANCELED
const legacyStatusCancelled = "CANCELLED"

// NormalizeJoinStatus 在数据访问边界归一化状态拼写
func NormalizeJoinStatus(status string) string {
	if status == legacyStatusCancelled {
		return JoinStatusCanceled
	}
	return status
}

// 参与方式：即时票付款即确认；审批票需要主办方确认后才结算
const (
	ParticipationTypeInstant  = "INSTANT"
	ParticipationTypeApproval = "APPROVAL"
)

// 操作者角色
const (
	ActorParticipant = "participant"
	ActorOwner       = "owner"
)

// 退款资金追回路径
const (
	ClawbackPathFrozen    = "FROZEN"
	ClawbackPathAvailable = "AVAILABLE"
)

// 状态转移表，按 参与方式 -> 角色 -> 当前状态 分层。
// 同一个状态对不同角色开放的目标状态不同，比如只有主办方能把
// PAYMENT_RESERVED 推进到 APPROVED，参与者只能取消自己的预留。
// CANCELED 不是严格终态：参与者重新报名时复用同一条记录。
var joinTransitions = map[string]map[string]map[string][]string{
	ParticipationTypeInstant: {
		ActorParticipant: {
			JoinStatusCanceled: {JoinStatusConfirmed},
		},
		ActorOwner: {
			JoinStatusConfirmed: {JoinStatusRefunded, JoinStatusRevoked},
		},
	},
	ParticipationTypeApproval: {
		ActorParticipant: {
			JoinStatusPendingApproval: {JoinStatusCanceled},
			JoinStatusPaymentReserved: {JoinStatusCanceled},
			JoinStatusCanceled:        {JoinStatusPendingApproval, JoinStatusPaymentReserved},
		},
		ActorOwner: {
			JoinStatusPendingApproval: {JoinStatusApproved, JoinStatusRejected},
			JoinStatusPaymentReserved: {JoinStatusApproved, JoinStatusRejected},
			JoinStatusApproved:        {JoinStatusRefunded, JoinStatusRevoked},
		},
	},
}

// CanTransition 状态转移授权检查
// 任何资金变更之前都必须先通过这里，资金状态再正确也不能绕过角色限制
func CanTransition(participationType, currentStatus, targetStatus, actorRole string) bool {
	currentStatus = NormalizeJoinStatus(currentStatus)
	byRole, ok := joinTransitions[participationType]
	if !ok {
		return false
	}
	byStatus, ok := byRole[actorRole]
	if !ok {
		return false
	}
	for _, s := range byStatus[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalJoinStatus 严格终态判断（CANCELED 可复用，不算终态）
func IsTerminalJoinStatus(status string) bool {
	switch NormalizeJoinStatus(status) {
	case JoinStatusRejected, JoinStatusRefunded, JoinStatusRevoked:
		return true
	}
	return false
}

// PaymentDetail 报名的支付子记录
//
// 即时票走 PaidAmount/PaidAt，审批票在结算前走 ReservedAmount/ReservedAt，
// 两组字段由 saga 的转移函数互斥维护，不允许同时有效。
// OwnerCreditedAt / ClawbackAt 是跨钱包第二步的完成标记：
// 进程在两次写之间崩溃时，重放同一转移只补齐缺失的一半，不会重复执行。
type PaymentDetail struct {
	OriginalAmount   int64      `json:"original_amount"`            // 票面价
	DiscountAmount   int64      `json:"discount_amount"`            // 折扣金额
	DiscountCodeID   *int64     `json:"discount_code_id"`           // 使用的折扣码
	Commission       int64      `json:"commission"`                 // 平台佣金
	OwnerAmount      int64      `json:"owner_amount"`               // 主办方应得
	PaidAmount       int64      `json:"paid_amount"`                // 实付金额（已结算）
	ReservedAmount   int64      `json:"reserved_amount"`            // 预留金额（未结算）
	PaymentChannelID int64      `json:"payment_channel_id"`         // 支付渠道
	PaidAt           *time.Time `json:"paid_at"`                    // 结算时间
	ReservedAt       *time.Time `json:"reserved_at"`                // 预留时间
	RefundedAt       *time.Time `json:"refunded_at"`                // 退款时间
	RefundAmount     int64      `json:"refund_amount"`              // 退款金额
	OwnerCreditedAt  *time.Time `json:"owner_credited_at"`          // 主办方入账完成标记
	ClawbackAt       *time.Time `json:"clawback_at"`                // 退款追回完成标记
	ClawbackPath     string     `json:"clawback_path,omitempty"`    // 追回走了冻结还是可用
	IncomeReleasedAt *time.Time `json:"income_released_at"`         // 收入解冻标记
}

// Settled 票款是否已完成结算
func (p *PaymentDetail) Settled() bool {
	return p.PaidAt != nil
}

// HasReservation 是否还有未结算的预留
func (p *PaymentDetail) HasReservation() bool {
	return p.ReservedAt != nil && p.ReservedAmount > 0
}

// JoinRequest 报名记录表
// 每个 (活动, 用户) 组合只有一条记录，取消后重新报名复用原记录，
// 复合唯一索引在应用层和存储层同时保证。
type JoinRequest struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	JoinNo      string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"join_no"`
	EventID     int64         `gorm:"uniqueIndex:uk_event_user;not null" json:"event_id"`
	UserID      int64         `gorm:"uniqueIndex:uk_event_user;not null" json:"user_id"`
	Status      string        `gorm:"type:varchar(20);index;not null" json:"status"`
	RequestedAt time.Time     `gorm:"not null" json:"requested_at"`
	Payment     PaymentDetail `gorm:"embedded;embeddedPrefix:pay_" json:"payment"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JoinRequest) TableName() string {
	return "join_request"
}
