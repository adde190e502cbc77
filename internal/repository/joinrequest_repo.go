package repository

import (
	"context"
	"errors"
	"time"

	"eventpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrJoinRequestNotFound = errors.New("报名记录不存在")
	ErrStatusConflict      = errors.New("报名状态已变更，请刷新后重试")
)

type JoinRequestRepository struct {
	db *gorm.DB
}

func NewJoinRequestRepository(db *gorm.DB) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

func (r *JoinRequestRepository) Create(ctx context.Context, tx *gorm.DB, jr *model.JoinRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(jr).Error
}

func (r *JoinRequestRepository) GetByID(ctx context.Context, id int64) (*model.JoinRequest, error) {
	var jr model.JoinRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&jr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJoinRequestNotFound
		}
		return nil, err
	}
	jr.Status = model.NormalizeJoinStatus(jr.Status)
	return &jr, nil
}

func (r *JoinRequestRepository) GetByJoinNo(ctx context.Context, joinNo string) (*model.JoinRequest, error) {
	var jr model.JoinRequest
	err := r.db.WithContext(ctx).Where("join_no = ?", joinNo).First(&jr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJoinRequestNotFound
		}
		return nil, err
	}
	jr.Status = model.NormalizeJoinStatus(jr.Status)
	return &jr, nil
}

// GetByEventAndUser 查找 (活动, 用户) 的报名记录，不存在时返回 nil
func (r *JoinRequestRepository) GetByEventAndUser(ctx context.Context, eventID, userID int64) (*model.JoinRequest, error) {
	var jr model.JoinRequest
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&jr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	jr.Status = model.NormalizeJoinStatus(jr.Status)
	return &jr, nil
}

// UpdateWithStatus 在状态守卫下整体更新报名记录
//
// WHERE 条件带上转移前的状态（旧拼写一并兼容），并发下只有一个事务能
// 完成转移，落败方拿到 ErrStatusConflict。支付子记录与状态一起写入，
// 保证两者不会出现只改了一半的中间态。
func (r *JoinRequestRepository) UpdateWithStatus(ctx context.Context, tx *gorm.DB, jr *model.JoinRequest, fromStatus string) error {
	if tx == nil {
		tx = r.db
	}

	fromStatuses := []string{fromStatus}
	if fromStatus == model.JoinStatusCanceled {
		fromStatuses = append(fromStatuses, "CANCELLED")
	}

	result := tx.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("id = ? AND status IN ?", jr.ID, fromStatuses).
		Updates(map[string]interface{}{
			"status":                 jr.Status,
			"requested_at":           jr.RequestedAt,
			"pay_original_amount":    jr.Payment.OriginalAmount,
			"pay_discount_amount":    jr.Payment.DiscountAmount,
			"pay_discount_code_id":   jr.Payment.DiscountCodeID,
			"pay_commission":         jr.Payment.Commission,
			"pay_owner_amount":       jr.Payment.OwnerAmount,
			"pay_paid_amount":        jr.Payment.PaidAmount,
			"pay_reserved_amount":    jr.Payment.ReservedAmount,
			"pay_payment_channel_id": jr.Payment.PaymentChannelID,
			"pay_paid_at":            jr.Payment.PaidAt,
			"pay_reserved_at":        jr.Payment.ReservedAt,
			"pay_refunded_at":        jr.Payment.RefundedAt,
			"pay_refund_amount":      jr.Payment.RefundAmount,
			"pay_owner_credited_at":  jr.Payment.OwnerCreditedAt,
			"pay_clawback_at":        jr.Payment.ClawbackAt,
			"pay_clawback_path":      jr.Payment.ClawbackPath,
			"pay_income_released_at": jr.Payment.IncomeReleasedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkOwnerCredited 跨钱包第二步（主办方入账）的完成标记，只允许从空置位
func (r *JoinRequestRepository) MarkOwnerCredited(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("id = ? AND pay_owner_credited_at IS NULL", id).
		Update("pay_owner_credited_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkClawback 退款追回完成标记，同时记录走了哪条追回路径
func (r *JoinRequestRepository) MarkClawback(ctx context.Context, tx *gorm.DB, id int64, at time.Time, path string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("id = ? AND pay_clawback_at IS NULL", id).
		Updates(map[string]interface{}{
			"pay_clawback_at":   at,
			"pay_clawback_path": path,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkIncomeReleased 收入解冻完成标记
func (r *JoinRequestRepository) MarkIncomeReleased(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("id = ? AND pay_income_released_at IS NULL", id).
		Update("pay_income_released_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *JoinRequestRepository) AppendHistory(ctx context.Context, tx *gorm.DB, h *model.JoinStatusHistory) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(h).Error
}

func (r *JoinRequestRepository) ListHistory(ctx context.Context, joinRequestID int64) ([]*model.JoinStatusHistory, error) {
	var history []*model.JoinStatusHistory
	err := r.db.WithContext(ctx).
		Where("join_request_id = ?", joinRequestID).
		Order("changed_at ASC, id ASC").
		Find(&history).Error
	return history, err
}

func (r *JoinRequestRepository) ListByEventID(ctx context.Context, eventID int64, page, pageSize int) ([]*model.JoinRequest, int64, error) {
	return r.list(ctx, "event_id = ?", eventID, page, pageSize)
}

func (r *JoinRequestRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.JoinRequest, int64, error) {
	return r.list(ctx, "user_id = ?", userID, page, pageSize)
}

func (r *JoinRequestRepository) list(ctx context.Context, cond string, arg int64, page, pageSize int) ([]*model.JoinRequest, int64, error) {
	var requests []*model.JoinRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.JoinRequest{}).Where(cond, arg)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	for _, jr := range requests {
		jr.Status = model.NormalizeJoinStatus(jr.Status)
	}
	return requests, total, nil
}

// ListReleasableIncome 查找活动已结束、主办方已入账但收入尚未解冻的报名记录
func (r *JoinRequestRepository) ListReleasableIncome(ctx context.Context, before time.Time, limit int) ([]*model.JoinRequest, error) {
	var requests []*model.JoinRequest
	err := r.db.WithContext(ctx).
		Joins("JOIN event ON event.id = join_request.event_id").
		Where("event.end_at < ?", before).
		Where("join_request.status IN ?", []string{model.JoinStatusConfirmed, model.JoinStatusApproved}).
		Where("join_request.pay_owner_credited_at IS NOT NULL").
		Where("join_request.pay_income_released_at IS NULL").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}
