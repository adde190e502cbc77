package service

import (
	"context"
	"errors"

	"eventpay/internal/config"
	"eventpay/internal/model"
	"eventpay/internal/repository"
	"eventpay/pkg/idgen"

	"gorm.io/gorm"
)

var (
	// ErrConcurrentModification 乐观锁重试次数耗尽后对外暴露的错误
	ErrConcurrentModification = errors.New("系统繁忙，请稍后重试")
	ErrInvalidWalletStatus    = errors.New("不支持的钱包状态")
)

const defaultWalletRetryCount = 3

// EntryRef 流水关联的业务上下文
type EntryRef struct {
	EventID       *int64
	JoinRequestID *int64
}

// WalletService 钱包账本
//
// 八个账本操作是修改余额的唯一入口，其他组件一律不得直接写余额字段。
// 每个操作在一个事务内完成 version CAS 写入和流水落库；CAS 冲突时
// 重试整个事务，次数有限，耗尽后返回 ErrConcurrentModification。
//
// *Tx 系列在调用方给定的事务内执行，供 saga 把余额变更、状态转移、
// 审计记录组合进同一个事务；不带 Tx 的版本自己开事务并处理重试。
type WalletService struct {
	db         *gorm.DB
	cfg        *config.Config
	walletRepo *repository.WalletRepository
	ledgerRepo *repository.LedgerRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:         db,
		cfg:        cfg,
		walletRepo: repository.NewWalletRepository(db),
		ledgerRepo: repository.NewLedgerRepository(db),
	}
}

// RetryOnConflict 乐观锁冲突重试
func (s *WalletService) RetryOnConflict(fn func() error) error {
	attempts := s.cfg.Business.WalletRetryCount
	if attempts <= 0 {
		attempts = defaultWalletRetryCount
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !errors.Is(err, repository.ErrOptimisticLock) {
			return err
		}
	}
	return ErrConcurrentModification
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, nil, userID)
}

func (s *WalletService) ListEntries(ctx context.Context, userID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListByUserID(ctx, userID, page, pageSize)
}

// SetStatus 管理员变更钱包状态（冻结/恢复）
// 只改状态不动余额，非 ACTIVE 状态下所有资金操作都会被拒绝
func (s *WalletService) SetStatus(ctx context.Context, userID int64, status string) error {
	switch status {
	case model.WalletStatusActive, model.WalletStatusFrozenAdmin, model.WalletStatusSuspended:
	default:
		return ErrInvalidWalletStatus
	}
	return s.walletRepo.UpdateStatus(ctx, userID, status)
}

// ============================================================================
// 账本操作（独立事务版）
// ============================================================================

// Deposit 入账
func (s *WalletService) Deposit(ctx context.Context, userID, amount int64, entryType, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			e, err := s.DepositTx(ctx, tx, userID, amount, entryType, remark, ref)
			entry = e
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Deduct 扣款
func (s *WalletService) Deduct(ctx context.Context, userID, amount int64, entryType, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			e, err := s.DeductTx(ctx, tx, userID, amount, entryType, remark, ref)
			entry = e
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ============================================================================
// 账本操作（事务内版，供 saga 组合）
// ============================================================================

// DepositTx 入账：可用余额与总余额同时增加
func (s *WalletService) DepositTx(ctx context.Context, tx *gorm.DB, userID, amount int64, entryType, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, entryType, model.DirectionIn, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyDeposit(amount)
	})
}

// DeductTx 扣款：从可用余额中扣除
func (s *WalletService) DeductTx(ctx context.Context, tx *gorm.DB, userID, amount int64, entryType, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, entryType, model.DirectionOut, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyDeduct(amount)
	})
}

// ReserveTx 预留票款
func (s *WalletService) ReserveTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, model.EntryTypeReserve, model.DirectionOut, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyReserve(amount)
	})
}

// ReleaseTx 释放预留
func (s *WalletService) ReleaseTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, model.EntryTypeRelease, model.DirectionIn, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyRelease(amount)
	})
}

// FreezeTx 冻结收入
func (s *WalletService) FreezeTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, model.EntryTypeFreeze, model.DirectionOut, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyFreeze(amount)
	})
}

// UnfreezeTx 解冻收入
func (s *WalletService) UnfreezeTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, model.EntryTypeUnfreeze, model.DirectionIn, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyUnfreeze(amount)
	})
}

// ClawbackTx 追回冻结资金
func (s *WalletService) ClawbackTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) (*model.LedgerEntry, error) {
	return s.mutateTx(ctx, tx, userID, model.EntryTypeClawback, model.DirectionOut, amount, remark, ref, func(w *model.Wallet) error {
		return w.ApplyClawback(amount)
	})
}

// SettleTx 结算预留资金
//
// 预留不足但预留加可用够时，先扣光预留、差额从可用补足，两笔流水
// 在同一事务内落库，不允许拆成两次可独立失败的调用。
func (s *WalletService) SettleTx(ctx context.Context, tx *gorm.DB, userID, amount int64, remark string, ref *EntryRef) ([]*model.LedgerEntry, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	fromReserved, fromAvailable, err := wallet.ApplySettle(amount)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, err
	}

	entries := make([]*model.LedgerEntry, 0, 2)

	first := s.newEntry(wallet, model.EntryTypeSettle, model.DirectionOut, fromReserved, remark, ref)
	if fromAvailable > 0 {
		// 第一笔流水的快照对应"只扣了预留"的中间状态
		first.BalanceAfter += fromAvailable
		first.AvailableAfter += fromAvailable
	}
	entries = append(entries, first)

	if fromAvailable > 0 {
		second := s.newEntry(wallet, model.EntryTypeSettle, model.DirectionOut, fromAvailable, remark+"（预留不足，可用余额补足）", ref)
		entries = append(entries, second)
	}

	for _, entry := range entries {
		if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *WalletService) mutateTx(ctx context.Context, tx *gorm.DB, userID int64, entryType, direction string, amount int64, remark string, ref *EntryRef, apply func(*model.Wallet) error) (*model.LedgerEntry, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := apply(wallet); err != nil {
		return nil, err
	}

	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, err
	}

	entry := s.newEntry(wallet, entryType, direction, amount, remark, ref)
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *WalletService) newEntry(wallet *model.Wallet, entryType, direction string, amount int64, remark string, ref *EntryRef) *model.LedgerEntry {
	entry := &model.LedgerEntry{
		EntryNo:        idgen.GenerateEntryNo(),
		WalletID:       wallet.ID,
		UserID:         wallet.UserID,
		Type:           entryType,
		Direction:      direction,
		Amount:         amount,
		BalanceAfter:   wallet.Balance,
		AvailableAfter: wallet.AvailableBalance,
		ReservedAfter:  wallet.ReservedBalance,
		FrozenAfter:    wallet.FrozenBalance,
		Remark:         remark,
	}
	if ref != nil {
		entry.EventID = ref.EventID
		entry.JoinRequestID = ref.JoinRequestID
	}
	return entry
}
