package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"eventpay/internal/config"
	"eventpay/internal/infrastructure/lock"
	"eventpay/internal/model"
	"eventpay/internal/repository"
	"eventpay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrEventNotJoinable       = errors.New("活动当前不可报名")
	ErrAlreadyJoined          = errors.New("已报名该活动，请勿重复报名")
	ErrInvalidDiscount        = errors.New("折扣码不可用")
	ErrInvalidTransition      = errors.New("当前状态不允许该操作")
	ErrNotOwner               = errors.New("只有活动主办方可以执行该操作")
	ErrInsufficientOwnerFunds = errors.New("主办方账户资金不足，无法退款")
	ErrChannelUnavailable     = errors.New("支付渠道不可用")
)

// 主办方决定
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionRefund  = "refund"
	DecisionRevoke  = "revoke"
)

// JoinService 报名 saga
//
// 报名、审批、退款都是由多个原子步骤组成的业务事务。单钱包内的
// 余额变更、状态转移、审计记录、计数变更放在同一个数据库事务里；
// 跨钱包的两步（参与者侧 / 主办方侧）拆成两个事务，用支付子记录上
// 的完成标记衔接：进程在两步之间崩溃时，对同一条报名的下一次操作
// 会先补齐缺失的一半，已完成的步骤绝不重复执行。
type JoinService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	walletSvc   *WalletService
	discountSvc *DiscountService
	joinRepo    *repository.JoinRequestRepository
	eventRepo   *repository.EventRepository
	channelRepo *repository.ChannelRepository
	outboxRepo  *repository.OutboxRepository
}

func NewJoinService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *JoinService {
	return &JoinService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		walletSvc:   NewWalletService(db, cfg),
		discountSvc: NewDiscountService(db),
		joinRepo:    repository.NewJoinRequestRepository(db),
		eventRepo:   repository.NewEventRepository(db),
		channelRepo: repository.NewChannelRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// JoinInput 报名请求
type JoinInput struct {
	EventID      int64  `json:"event_id" binding:"required"`
	UserID       int64  `json:"user_id" binding:"required"`
	DiscountCode string `json:"discount_code"`
}

// JoinResult 报名/审批结果摘要
type JoinResult struct {
	JoinNo  string              `json:"join_no"`
	Status  string              `json:"status"`
	Payment model.PaymentDetail `json:"payment"`
	Message string              `json:"message,omitempty"`
}

// DecisionInput 主办方决定
type DecisionInput struct {
	EventID       int64  `json:"event_id" binding:"required"`
	JoinRequestID int64  `json:"join_request_id" binding:"required"`
	OwnerID       int64  `json:"owner_id" binding:"required"`
	Decision      string `json:"decision" binding:"required"`
	Reason        string `json:"reason"`
}

// ============================================================================
// 报名
// ============================================================================

// Join 参与者报名
//
// 即时票：扣款、确认、计数一个事务完成，主办方入账随后单独一个事务。
// 审批票：只预留票款，等主办方决定。免费审批票不动钱，直接等审批。
func (s *JoinService) Join(ctx context.Context, in *JoinInput) (*JoinResult, error) {
	event, err := s.eventRepo.GetByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotJoinable
		}
		return nil, err
	}
	if !event.Joinable() {
		return nil, ErrEventNotJoinable
	}

	channel, err := s.channelRepo.GetByID(ctx, event.PaymentChannelID)
	if err != nil {
		// 渠道缺失是配置问题而不是用户问题，记运营日志
		log.Printf("[JoinService] 活动支付渠道缺失: eventID=%d, channelID=%d, err=%v", event.ID, event.PaymentChannelID, err)
		return nil, ErrChannelUnavailable
	}
	if !channel.Usable() {
		log.Printf("[JoinService] 活动支付渠道不可用: eventID=%d, channelID=%d", event.ID, channel.ID)
		return nil, ErrChannelUnavailable
	}

	joinLock := lock.NewJoinLock(s.redisClient, in.EventID, in.UserID)
	if err := joinLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer joinLock.Unlock(ctx)

	existing, err := s.joinRepo.GetByEventAndUser(ctx, in.EventID, in.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != model.JoinStatusCanceled {
		// 上次报名的主办方入账没做完的，先补齐再拒绝重复报名
		if s.needOwnerCredit(existing) {
			if err := s.creditOwner(ctx, event, existing); err != nil {
				log.Printf("[JoinService] 补偿主办方入账失败: joinNo=%s, err=%v", existing.JoinNo, err)
			}
		}
		return nil, ErrAlreadyJoined
	}

	// 定价：折扣 -> 佣金
	originalAmount := event.TicketPrice
	finalAmount := originalAmount
	var discountAmount int64
	var discount *model.DiscountCode
	commissionCalc := model.CommissionAfterDiscount

	if in.DiscountCode != "" {
		result, err := s.discountSvc.Validate(ctx, in.DiscountCode, in.UserID, in.EventID, originalAmount)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDiscount, result.Message)
		}
		discount = result.Discount
		discountAmount, finalAmount = discount.ComputeDiscount(originalAmount)
		commissionCalc = discount.CommissionCalculation
	}

	com := ComputeCommission(channel, originalAmount, finalAmount, commissionCalc)
	if com.Inconsistent {
		log.Printf("[JoinService] 佣金超过实付金额，已钳到0: eventID=%d, channelID=%d, final=%d, commission=%d",
			event.ID, channel.ID, finalAmount, com.CommissionAmount)
	}

	payment := model.PaymentDetail{
		OriginalAmount:   originalAmount,
		DiscountAmount:   discountAmount,
		Commission:       com.CommissionAmount,
		OwnerAmount:      com.OwnerAmount,
		PaymentChannelID: channel.ID,
	}
	if discount != nil {
		payment.DiscountCodeID = &discount.ID
	}

	previous := ""
	if existing != nil {
		previous = existing.Status
	}

	switch event.ParticipationType {
	case model.ParticipationTypeInstant:
		return s.joinInstant(ctx, event, in.UserID, existing, previous, payment, discount, finalAmount)
	case model.ParticipationTypeApproval:
		return s.joinApproval(ctx, event, in.UserID, existing, previous, payment, discount, finalAmount)
	default:
		log.Printf("[JoinService] 未知参与方式: eventID=%d, type=%s", event.ID, event.ParticipationType)
		return nil, ErrEventNotJoinable
	}
}

// joinInstant 即时票：扣款即确认
func (s *JoinService) joinInstant(ctx context.Context, event *model.Event, userID int64, existing *model.JoinRequest, previous string, payment model.PaymentDetail, discount *model.DiscountCode, finalAmount int64) (*JoinResult, error) {
	now := time.Now()
	payment.PaidAmount = finalAmount
	payment.PaidAt = &now

	var jr *model.JoinRequest
	err := s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			jr, err = s.upsertRequest(ctx, tx, event, userID, existing, previous, model.JoinStatusConfirmed, payment, now)
			if err != nil {
				return err
			}

			ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
			if finalAmount > 0 {
				remark := fmt.Sprintf("购票-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.DeductTx(ctx, tx, userID, finalAmount, model.EntryTypeTicketPurchase, remark, ref); err != nil {
					return err
				}
			}

			if discount != nil {
				if err := s.discountSvc.RecordUsageTx(ctx, tx, discount, userID, event.ID, jr.ID,
					payment.OriginalAmount, payment.DiscountAmount, finalAmount); err != nil {
					return err
				}
			}

			if err := s.eventRepo.IncrementRegistered(ctx, tx, event.ID, 1); err != nil {
				return err
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 即时报名成功: joinNo=%s, eventID=%d, userID=%d, paid=%d", jr.JoinNo, event.ID, userID, finalAmount)

	if err := s.creditOwner(ctx, event, jr); err != nil {
		// 参与者侧已提交，主办方入账失败不回滚，等下一次操作补偿
		log.Printf("[JoinService] 主办方入账待补偿: joinNo=%s, err=%v", jr.JoinNo, err)
	}

	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "报名成功"}, nil
}

// joinApproval 审批票：预留票款等主办方决定，免费票直接等审批
func (s *JoinService) joinApproval(ctx context.Context, event *model.Event, userID int64, existing *model.JoinRequest, previous string, payment model.PaymentDetail, discount *model.DiscountCode, finalAmount int64) (*JoinResult, error) {
	now := time.Now()
	target := model.JoinStatusPendingApproval
	if finalAmount > 0 {
		target = model.JoinStatusPaymentReserved
		payment.ReservedAmount = finalAmount
		payment.ReservedAt = &now
	}

	var jr *model.JoinRequest
	err := s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			jr, err = s.upsertRequest(ctx, tx, event, userID, existing, previous, target, payment, now)
			if err != nil {
				return err
			}

			if finalAmount > 0 {
				ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
				remark := fmt.Sprintf("预留票款-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.ReserveTx(ctx, tx, userID, finalAmount, remark, ref); err != nil {
					return err
				}
			}

			if discount != nil {
				if err := s.discountSvc.RecordUsageTx(ctx, tx, discount, userID, event.ID, jr.ID,
					payment.OriginalAmount, payment.DiscountAmount, finalAmount); err != nil {
					return err
				}
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 报名待审批: joinNo=%s, eventID=%d, userID=%d, reserved=%d", jr.JoinNo, event.ID, userID, finalAmount)
	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "报名成功，等待主办方审批"}, nil
}

// upsertRequest 创建报名记录，或复用同一 (活动, 用户) 的已取消记录
//
// previous 是重试循环外捕获的转移前状态：乐观锁重试会重进整个闭包，
// 不能从已被上一次尝试改写的内存对象上再读取。
func (s *JoinService) upsertRequest(ctx context.Context, tx *gorm.DB, event *model.Event, userID int64, existing *model.JoinRequest, previous, target string, payment model.PaymentDetail, now time.Time) (*model.JoinRequest, error) {
	if existing == nil {
		jr := &model.JoinRequest{
			JoinNo:      idgen.GenerateJoinNo(),
			EventID:     event.ID,
			UserID:      userID,
			Status:      target,
			RequestedAt: now,
			Payment:     payment,
		}
		if err := s.joinRepo.Create(ctx, tx, jr); err != nil {
			return nil, err
		}
		if err := s.appendHistory(ctx, tx, jr, "", userID, model.ActorParticipant, "报名"); err != nil {
			return nil, err
		}
		return jr, nil
	}

	// 复用已取消的记录：重新报名也要走转移授权检查
	if !model.CanTransition(event.ParticipationType, previous, target, model.ActorParticipant) {
		return nil, ErrInvalidTransition
	}

	existing.Status = target
	existing.RequestedAt = now
	existing.Payment = payment
	if err := s.joinRepo.UpdateWithStatus(ctx, tx, existing, previous); err != nil {
		return nil, err
	}
	if err := s.appendHistory(ctx, tx, existing, previous, userID, model.ActorParticipant, "重新报名"); err != nil {
		return nil, err
	}
	return existing, nil
}

// ============================================================================
// 主办方决定
// ============================================================================

// OwnerDecision 主办方审批/拒绝/退款/撤销
func (s *JoinService) OwnerDecision(ctx context.Context, in *DecisionInput) (*JoinResult, error) {
	event, err := s.eventRepo.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != in.OwnerID {
		return nil, ErrNotOwner
	}

	target, ok := decisionTarget(in.Decision)
	if !ok {
		return nil, fmt.Errorf("%w: 未知决定 %s", ErrInvalidTransition, in.Decision)
	}

	decisionLock := lock.NewDecisionLock(s.redisClient, in.JoinRequestID)
	if err := decisionLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer decisionLock.Unlock(ctx)

	// 拿到锁之后再读，避免基于过期状态做决定
	jr, err := s.joinRepo.GetByID(ctx, in.JoinRequestID)
	if err != nil {
		return nil, err
	}
	if jr.EventID != in.EventID {
		return nil, repository.ErrJoinRequestNotFound
	}

	// 断点续作：目标状态已达成时只补齐缺失的主办方侧步骤，幂等返回
	if jr.Status == target {
		if err := s.resumeOwnerSide(ctx, event, jr, target); err != nil {
			return nil, err
		}
		return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "已处理，请勿重复操作"}, nil
	}

	if !model.CanTransition(event.ParticipationType, jr.Status, target, model.ActorOwner) {
		return nil, ErrInvalidTransition
	}

	// 上一步转移的主办方入账还没做完的，先补齐再继续往下走：
	// 退款的追回必须指向一个确实已经入账的主办方钱包
	if s.needOwnerCredit(jr) {
		if err := s.creditOwner(ctx, event, jr); err != nil {
			return nil, fmt.Errorf("补偿主办方入账失败: %w", err)
		}
	}

	switch target {
	case model.JoinStatusApproved:
		return s.approve(ctx, event, jr, in)
	case model.JoinStatusRejected:
		return s.reject(ctx, event, jr, in)
	case model.JoinStatusRefunded:
		return s.refund(ctx, event, jr, in)
	case model.JoinStatusRevoked:
		return s.revoke(ctx, event, jr, in)
	}
	return nil, ErrInvalidTransition
}

func decisionTarget(decision string) (string, bool) {
	switch decision {
	case DecisionApprove:
		return model.JoinStatusApproved, true
	case DecisionReject:
		return model.JoinStatusRejected, true
	case DecisionRefund:
		return model.JoinStatusRefunded, true
	case DecisionRevoke:
		return model.JoinStatusRevoked, true
	}
	return "", false
}

// approve 审批通过：结算预留，然后主办方入账
func (s *JoinService) approve(ctx context.Context, event *model.Event, jr *model.JoinRequest, in *DecisionInput) (*JoinResult, error) {
	now := time.Now()
	amount := jr.Payment.ReservedAmount
	previous := jr.Status

	err := s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
			if amount > 0 {
				remark := fmt.Sprintf("审批通过结算-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.SettleTx(ctx, tx, jr.UserID, amount, remark, ref); err != nil {
					return err
				}
			}

			jr.Status = model.JoinStatusApproved
			jr.Payment.PaidAmount = amount
			jr.Payment.PaidAt = &now
			jr.Payment.ReservedAmount = 0
			if err := s.joinRepo.UpdateWithStatus(ctx, tx, jr, previous); err != nil {
				return err
			}
			if err := s.appendHistory(ctx, tx, jr, previous, in.OwnerID, model.ActorOwner, in.Reason); err != nil {
				return err
			}

			if err := s.eventRepo.IncrementRegistered(ctx, tx, event.ID, 1); err != nil {
				return err
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 审批通过: joinNo=%s, settled=%d", jr.JoinNo, amount)

	if err := s.creditOwner(ctx, event, jr); err != nil {
		log.Printf("[JoinService] 主办方入账待补偿: joinNo=%s, err=%v", jr.JoinNo, err)
	}

	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "审批通过"}, nil
}

// reject 审批拒绝：释放预留票款
func (s *JoinService) reject(ctx context.Context, event *model.Event, jr *model.JoinRequest, in *DecisionInput) (*JoinResult, error) {
	reserved := jr.Payment.ReservedAmount
	hasReservation := jr.Payment.HasReservation()
	previous := jr.Status

	err := s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if hasReservation {
				ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
				remark := fmt.Sprintf("审批拒绝释放-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.ReleaseTx(ctx, tx, jr.UserID, reserved, remark, ref); err != nil {
					return err
				}
			}

			jr.Status = model.JoinStatusRejected
			jr.Payment.ReservedAmount = 0
			if err := s.joinRepo.UpdateWithStatus(ctx, tx, jr, previous); err != nil {
				return err
			}
			if err := s.appendHistory(ctx, tx, jr, previous, in.OwnerID, model.ActorOwner, in.Reason); err != nil {
				return err
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 审批拒绝: joinNo=%s", jr.JoinNo)
	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "已拒绝"}, nil
}

// refund 退款：退给参与者（佣金不退），再从主办方追回
//
// 追回优先走冻结余额，冻结不足时从可用余额扣，实际走的路径落在
// 支付子记录上。单边都覆盖不了时在任何写入之前就拒绝。
func (s *JoinService) refund(ctx context.Context, event *model.Event, jr *model.JoinRequest, in *DecisionInput) (*JoinResult, error) {
	now := time.Now()
	refundAmount := jr.Payment.OwnerAmount

	if refundAmount > 0 {
		ownerWallet, err := s.walletSvc.GetWallet(ctx, event.OwnerID)
		if err != nil {
			return nil, err
		}
		if !ownerCanCoverClawback(ownerWallet, refundAmount) {
			return nil, ErrInsufficientOwnerFunds
		}
	}

	previous := jr.Status
	err := s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if refundAmount > 0 {
				ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
				remark := fmt.Sprintf("退款-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.DepositTx(ctx, tx, jr.UserID, refundAmount, model.EntryTypeRefund, remark, ref); err != nil {
					return err
				}
			}

			jr.Status = model.JoinStatusRefunded
			jr.Payment.RefundAmount = refundAmount
			jr.Payment.RefundedAt = &now
			if err := s.joinRepo.UpdateWithStatus(ctx, tx, jr, previous); err != nil {
				return err
			}
			if err := s.appendHistory(ctx, tx, jr, previous, in.OwnerID, model.ActorOwner, in.Reason); err != nil {
				return err
			}

			if err := s.eventRepo.IncrementRegistered(ctx, tx, event.ID, -1); err != nil {
				return err
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.RefundResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 退款成功: joinNo=%s, refund=%d", jr.JoinNo, refundAmount)

	if err := s.clawbackOwner(ctx, event, jr); err != nil {
		log.Printf("[JoinService] 主办方追回待补偿: joinNo=%s, err=%v", jr.JoinNo, err)
	}

	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "退款成功"}, nil
}

// revoke 撤销资格：只减计数，不自动退款
func (s *JoinService) revoke(ctx context.Context, event *model.Event, jr *model.JoinRequest, in *DecisionInput) (*JoinResult, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		previous := jr.Status
		jr.Status = model.JoinStatusRevoked
		if err := s.joinRepo.UpdateWithStatus(ctx, tx, jr, previous); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, tx, jr, previous, in.OwnerID, model.ActorOwner, in.Reason); err != nil {
			return err
		}

		if err := s.eventRepo.IncrementRegistered(ctx, tx, event.ID, -1); err != nil {
			return err
		}

		return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 撤销资格: joinNo=%s", jr.JoinNo)
	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "已撤销"}, nil
}

// ============================================================================
// 取消
// ============================================================================

// Cancel 参与者取消报名
// 释放未结算的预留票款，记录转为可复用的 CANCELED
func (s *JoinService) Cancel(ctx context.Context, eventID, userID int64) (*JoinResult, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	joinLock := lock.NewJoinLock(s.redisClient, eventID, userID)
	if err := joinLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer joinLock.Unlock(ctx)

	jr, err := s.joinRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if jr == nil {
		return nil, repository.ErrJoinRequestNotFound
	}

	if !model.CanTransition(event.ParticipationType, jr.Status, model.JoinStatusCanceled, model.ActorParticipant) {
		return nil, ErrInvalidTransition
	}

	reserved := jr.Payment.ReservedAmount
	hasReservation := jr.Payment.HasReservation()
	previous := jr.Status

	err = s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if hasReservation {
				ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
				remark := fmt.Sprintf("取消报名释放-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.ReleaseTx(ctx, tx, userID, reserved, remark, ref); err != nil {
					return err
				}
			}

			jr.Status = model.JoinStatusCanceled
			jr.Payment.ReservedAmount = 0
			if err := s.joinRepo.UpdateWithStatus(ctx, tx, jr, previous); err != nil {
				return err
			}
			if err := s.appendHistory(ctx, tx, jr, previous, userID, model.ActorParticipant, "取消报名"); err != nil {
				return err
			}

			return s.enqueueOutbox(ctx, tx, s.cfg.Kafka.Topic.JoinResult, jr)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[JoinService] 取消报名: joinNo=%s", jr.JoinNo)
	return &JoinResult{JoinNo: jr.JoinNo, Status: jr.Status, Payment: jr.Payment, Message: "已取消"}, nil
}

// ============================================================================
// 跨钱包第二步与补偿
// ============================================================================

func (s *JoinService) needOwnerCredit(jr *model.JoinRequest) bool {
	switch jr.Status {
	case model.JoinStatusConfirmed, model.JoinStatusApproved:
		return jr.Payment.OwnerCreditedAt == nil
	}
	return false
}

// resumeOwnerSide 重放已达成的转移时补齐缺失的主办方侧步骤
func (s *JoinService) resumeOwnerSide(ctx context.Context, event *model.Event, jr *model.JoinRequest, target string) error {
	switch target {
	case model.JoinStatusApproved:
		if jr.Payment.OwnerCreditedAt == nil {
			return s.creditOwner(ctx, event, jr)
		}
	case model.JoinStatusRefunded:
		if jr.Payment.ClawbackAt == nil {
			return s.clawbackOwner(ctx, event, jr)
		}
	}
	return nil
}

// creditOwner 主办方入账：票款收入入账后立即冻结，佣金划入平台账户
//
// 完成标记的条件更新放在同一事务里：并发补偿时只有一个事务能标记
// 成功，落败方整体回滚，不会重复入账。
func (s *JoinService) creditOwner(ctx context.Context, event *model.Event, jr *model.JoinRequest) error {
	now := time.Now()
	return s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}

			if jr.Payment.OwnerAmount > 0 {
				remark := fmt.Sprintf("票款收入-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.DepositTx(ctx, tx, event.OwnerID, jr.Payment.OwnerAmount, model.EntryTypeTicketIncome, remark, ref); err != nil {
					return err
				}
				if _, err := s.walletSvc.FreezeTx(ctx, tx, event.OwnerID, jr.Payment.OwnerAmount, remark, ref); err != nil {
					return err
				}
			}

			// 实际留存的佣金按 实付-主办方应得 计，Inconsistent 钳位后也守恒
			withheld := jr.Payment.PaidAmount - jr.Payment.OwnerAmount
			if withheld > 0 && s.cfg.Business.CommissionUserID > 0 {
				remark := fmt.Sprintf("平台佣金-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.DepositTx(ctx, tx, s.cfg.Business.CommissionUserID, withheld, model.EntryTypeCommission, remark, ref); err != nil {
					return err
				}
			}

			if err := s.joinRepo.MarkOwnerCredited(ctx, tx, jr.ID, now); err != nil {
				return err
			}
			jr.Payment.OwnerCreditedAt = &now
			return nil
		})
	})
}

// ownerCanCoverClawback 退款前置检查
//
// 追回是按单一路径全额执行的：冻结余额够就整笔走冻结，否则整笔走可用，
// 不做跨路径拆分。两边合计够但单边都不够时追回注定失败，必须在给
// 参与者打款之前拒绝。
func ownerCanCoverClawback(w *model.Wallet, amount int64) bool {
	return w.FrozenBalance >= amount || w.AvailableBalance >= amount
}

// clawbackOwner 退款追回：优先追冻结余额，不足时从可用余额扣
func (s *JoinService) clawbackOwner(ctx context.Context, event *model.Event, jr *model.JoinRequest) error {
	now := time.Now()
	amount := jr.Payment.OwnerAmount
	if amount <= 0 {
		return s.joinRepo.MarkClawback(ctx, nil, jr.ID, now, model.ClawbackPathFrozen)
	}

	return s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
			remark := fmt.Sprintf("退款追回-%s-%s", event.Title, jr.JoinNo)

			path := model.ClawbackPathFrozen
			_, err := s.walletSvc.ClawbackTx(ctx, tx, event.OwnerID, amount, remark, ref)
			if errors.Is(err, model.ErrInsufficientFrozen) {
				path = model.ClawbackPathAvailable
				_, err = s.walletSvc.DeductTx(ctx, tx, event.OwnerID, amount, model.EntryTypeClawback, remark+"（冻结不足，走可用余额）", ref)
			}
			if err != nil {
				return err
			}

			if err := s.joinRepo.MarkClawback(ctx, tx, jr.ID, now, path); err != nil {
				return err
			}
			jr.Payment.ClawbackAt = &now
			jr.Payment.ClawbackPath = path
			return nil
		})
	})
}

// ReleaseIncome 活动结束后解冻主办方的一笔票款收入，由后台任务驱动
func (s *JoinService) ReleaseIncome(ctx context.Context, jr *model.JoinRequest) error {
	event, err := s.eventRepo.GetByID(ctx, jr.EventID)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.walletSvc.RetryOnConflict(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if jr.Payment.OwnerAmount > 0 {
				ref := &EntryRef{EventID: &event.ID, JoinRequestID: &jr.ID}
				remark := fmt.Sprintf("活动结束收入解冻-%s-%s", event.Title, jr.JoinNo)
				if _, err := s.walletSvc.UnfreezeTx(ctx, tx, event.OwnerID, jr.Payment.OwnerAmount, remark, ref); err != nil {
					return err
				}
			}
			if err := s.joinRepo.MarkIncomeReleased(ctx, tx, jr.ID, now); err != nil {
				return err
			}
			jr.Payment.IncomeReleasedAt = &now
			return nil
		})
	})
}

// ============================================================================
// 查询
// ============================================================================

func (s *JoinService) GetByJoinNo(ctx context.Context, joinNo string) (*model.JoinRequest, error) {
	return s.joinRepo.GetByJoinNo(ctx, joinNo)
}

func (s *JoinService) ListHistory(ctx context.Context, joinRequestID int64) ([]*model.JoinStatusHistory, error) {
	return s.joinRepo.ListHistory(ctx, joinRequestID)
}

func (s *JoinService) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.JoinRequest, int64, error) {
	return s.joinRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *JoinService) ListByEvent(ctx context.Context, eventID, ownerID int64, page, pageSize int) ([]*model.JoinRequest, int64, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if event.OwnerID != ownerID {
		return nil, 0, ErrNotOwner
	}
	return s.joinRepo.ListByEventID(ctx, eventID, page, pageSize)
}

// ============================================================================
// 内部辅助
// ============================================================================

func (s *JoinService) appendHistory(ctx context.Context, tx *gorm.DB, jr *model.JoinRequest, previous string, changedBy int64, actorRole, reason string) error {
	return s.joinRepo.AppendHistory(ctx, tx, &model.JoinStatusHistory{
		JoinRequestID:  jr.ID,
		PreviousStatus: previous,
		Status:         jr.Status,
		ChangedBy:      changedBy,
		ActorRole:      actorRole,
		Reason:         reason,
	})
}

func (s *JoinService) enqueueOutbox(ctx context.Context, tx *gorm.DB, topic string, jr *model.JoinRequest) error {
	payload := model.JoinResultPayload{
		JoinNo:         jr.JoinNo,
		EventID:        jr.EventID,
		UserID:         jr.UserID,
		Status:         jr.Status,
		OriginalAmount: jr.Payment.OriginalAmount,
		DiscountAmount: jr.Payment.DiscountAmount,
		PaidAmount:     jr.Payment.PaidAmount,
		ReservedAmount: jr.Payment.ReservedAmount,
		RefundAmount:   jr.Payment.RefundAmount,
		ChangedAt:      time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: jr.JoinNo,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}
