package service

import (
	"context"
	"errors"
	"time"

	"eventpay/internal/model"
	"eventpay/internal/repository"

	"gorm.io/gorm"
)

// DiscountService 折扣码评估
// Validate 与折扣计算均为只读，核销（RecordUsageTx）才会改状态
type DiscountService struct {
	db           *gorm.DB
	discountRepo *repository.DiscountRepository
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{
		db:           db,
		discountRepo: repository.NewDiscountRepository(db),
	}
}

// ValidateResult 折扣码校验结果
// 校验失败不是系统错误：Valid=false 时 Message 给出第一个失败原因
type ValidateResult struct {
	Valid    bool
	Discount *model.DiscountCode
	Message  string
}

// Validate 折扣码适用性校验，按固定顺序检查，不改变任何状态
func (s *DiscountService) Validate(ctx context.Context, code string, userID, eventID, baseAmount int64) (*ValidateResult, error) {
	discount, err := s.discountRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrDiscountNotFound) {
			return &ValidateResult{Valid: false, Message: model.ErrDiscountInactive.Error()}, nil
		}
		return nil, err
	}

	userUsed, err := s.discountRepo.CountUsageByUser(ctx, discount.ID, userID)
	if err != nil {
		return nil, err
	}

	if err := discount.CheckApplicable(time.Now(), baseAmount, eventID, userUsed); err != nil {
		return &ValidateResult{Valid: false, Discount: discount, Message: err.Error()}, nil
	}

	return &ValidateResult{Valid: true, Discount: discount}, nil
}

// RecordUsageTx 核销折扣码
//
// 以报名记录ID为幂等键：重复调用只有第一次会插入核销记录并递增
// UsedCount，重试不会重复计数。必须和触发核销的资金变更同一个事务。
func (s *DiscountService) RecordUsageTx(ctx context.Context, tx *gorm.DB, discount *model.DiscountCode, userID, eventID, joinRequestID, originalAmount, discountAmount, finalAmount int64) error {
	usage := &model.DiscountUsage{
		DiscountCodeID: discount.ID,
		UserID:         userID,
		EventID:        eventID,
		JoinRequestID:  joinRequestID,
		OriginalAmount: originalAmount,
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
	}

	inserted, err := s.discountRepo.CreateUsageIfAbsent(ctx, tx, usage)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	return s.discountRepo.IncrementUsedCount(ctx, tx, discount.ID)
}
