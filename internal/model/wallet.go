package model

import (
	"errors"
	"time"
)

// ============================================================================
// 钱包实体
// ============================================================================

const (
	WalletStatusActive      = "ACTIVE"       // 正常，可执行所有资金操作
	WalletStatusFrozenAdmin = "FROZEN_ADMIN" // 管理员冻结，拒绝一切变更
	WalletStatusSuspended   = "SUSPENDED"    // 停用
)

var (
	ErrInvalidAmount        = errors.New("金额必须大于0")
	ErrWalletInactive       = errors.New("钱包状态异常，禁止资金操作")
	ErrInsufficientBalance  = errors.New("可用余额不足")
	ErrInsufficientReserved = errors.New("预留余额不足")
	ErrInsufficientFrozen   = errors.New("冻结余额不足")
)

// Wallet 用户钱包表
// 记录用户的资金状态，是整个账本的核心数据
//
// 【恒等式】任何时刻必须满足：
//
//	Balance == AvailableBalance + ReservedBalance + FrozenBalance
//
// 四项余额都不允许为负。余额只能通过账本操作变更（见 service.WalletService），
// 每次变更通过 version 乐观锁保证同一钱包上的操作可线性化。
type Wallet struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Status           string    `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	Balance          int64     `gorm:"not null;default:0" json:"balance"`           // 总余额
	AvailableBalance int64     `gorm:"not null;default:0" json:"available_balance"` // 可自由支配
	ReservedBalance  int64     `gorm:"not null;default:0" json:"reserved_balance"`  // 预留（等待审批）
	FrozenBalance    int64     `gorm:"not null;default:0" json:"frozen_balance"`    // 冻结（活动结束前的收入）
	Version          int       `gorm:"not null;default:0" json:"version"`           // 乐观锁版本号
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

// CheckInvariant 校验余额恒等式
func (w *Wallet) CheckInvariant() bool {
	if w.AvailableBalance < 0 || w.ReservedBalance < 0 || w.FrozenBalance < 0 || w.Balance < 0 {
		return false
	}
	return w.Balance == w.AvailableBalance+w.ReservedBalance+w.FrozenBalance
}

// ============================================================================
// 余额变更计算
// ============================================================================
//
// Apply* 系列只在内存中计算变更后的余额，不落库。
// 落库由 repository.WalletRepository.UpdateBalances 以 version CAS 的方式完成，
// 计算与写入之间如果有并发修改，CAS 会失败并触发重试。

// ApplyDeposit 入账：可用余额与总余额同时增加
func (w *Wallet) ApplyDeposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	w.AvailableBalance += amount
	w.Balance += amount
	return nil
}

// ApplyDeduct 扣款：从可用余额中扣除
func (w *Wallet) ApplyDeduct(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.AvailableBalance < amount {
		return ErrInsufficientBalance
	}
	w.AvailableBalance -= amount
	w.Balance -= amount
	return nil
}

// ApplyReserve 预留：资金从可用划转到预留，总余额不变
func (w *Wallet) ApplyReserve(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.AvailableBalance < amount {
		return ErrInsufficientBalance
	}
	w.AvailableBalance -= amount
	w.ReservedBalance += amount
	return nil
}

// ApplyRelease 释放预留：资金从预留划回可用，总余额不变
func (w *Wallet) ApplyRelease(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.ReservedBalance < amount {
		return ErrInsufficientReserved
	}
	w.ReservedBalance -= amount
	w.AvailableBalance += amount
	return nil
}

// ApplySettle 结算预留：把预留资金确认为已消费，总余额减少
//
// 预留不足时允许一种例外：先扣光预留，差额从可用余额中补足。
// 返回实际从预留和可用两部分各扣了多少，调用方据此分别记账。
// 预留加可用仍不够时整体失败，不产生任何变更。
func (w *Wallet) ApplySettle(amount int64) (fromReserved, fromAvailable int64, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return 0, 0, ErrWalletInactive
	}
	if w.ReservedBalance+w.AvailableBalance < amount {
		return 0, 0, ErrInsufficientBalance
	}
	fromReserved = amount
	if fromReserved > w.ReservedBalance {
		fromReserved = w.ReservedBalance
	}
	fromAvailable = amount - fromReserved
	w.ReservedBalance -= fromReserved
	w.AvailableBalance -= fromAvailable
	w.Balance -= amount
	return fromReserved, fromAvailable, nil
}

// ApplyFreeze 冻结：资金从可用划转到冻结，总余额不变
func (w *Wallet) ApplyFreeze(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.AvailableBalance < amount {
		return ErrInsufficientBalance
	}
	w.AvailableBalance -= amount
	w.FrozenBalance += amount
	return nil
}

// ApplyUnfreeze 解冻：资金从冻结划回可用，总余额不变
func (w *Wallet) ApplyUnfreeze(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.FrozenBalance < amount {
		return ErrInsufficientFrozen
	}
	w.FrozenBalance -= amount
	w.AvailableBalance += amount
	return nil
}

// ApplyClawback 追回冻结资金：冻结余额与总余额同时减少
//
// 冻结不足时由调用方（saga）改走可用余额扣款，并记录实际走的路径。
func (w *Wallet) ApplyClawback(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Status != WalletStatusActive {
		return ErrWalletInactive
	}
	if w.FrozenBalance < amount {
		return ErrInsufficientFrozen
	}
	w.FrozenBalance -= amount
	w.Balance -= amount
	return nil
}
