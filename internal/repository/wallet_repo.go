package repository

import (
	"context"
	"errors"

	"eventpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound = errors.New("钱包不存在")
	ErrOptimisticLock = errors.New("乐观锁冲突，请重试")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 钱包懒创建：第一次需要动钱时才建，冲突时读回已有记录
func (r *WalletRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, tx, userID)
	if err == nil {
		return wallet, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	if tx == nil {
		tx = r.db
	}

	newWallet := &model.Wallet{
		UserID: userID,
		Status: model.WalletStatusActive,
	}

	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, tx, userID)
}

// UpdateBalances 以 version CAS 的方式写入四项余额
//
// 余额计算在内存中完成（model.Wallet 的 Apply* 系列），这里只负责
// "版本没变才允许写入"。RowsAffected == 0 说明读到写之间有并发修改，
// 返回 ErrOptimisticLock 由上层重试整个事务。
func (r *WalletRepository) UpdateBalances(ctx context.Context, tx *gorm.DB, wallet *model.Wallet) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":           wallet.Balance,
			"available_balance": wallet.AvailableBalance,
			"reserved_balance":  wallet.ReservedBalance,
			"frozen_balance":    wallet.FrozenBalance,
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	wallet.Version++
	return nil
}

func (r *WalletRepository) UpdateStatus(ctx context.Context, userID int64, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Update("status", status)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
