package handler

import (
	"errors"
	"strconv"

	"eventpay/internal/config"
	"eventpay/internal/model"
	"eventpay/internal/repository"
	"eventpay/internal/service"
	"eventpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	walletService *service.WalletService
	joinService   *service.JoinService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		walletService: service.NewWalletService(db, cfg),
		joinService:   service.NewJoinService(db, rdb, cfg),
	}
}

// renderError 把业务错误映射到响应码，未识别的错误按系统错误处理
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidWalletStatus):
		response.ParamError(c, err.Error())
	case errors.Is(err, model.ErrWalletInactive):
		response.BusinessError(c, response.CodeWalletInactive, err.Error())
	case errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrInsufficientReserved),
		errors.Is(err, model.ErrInsufficientFrozen):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrInsufficientOwnerFunds):
		response.BusinessError(c, response.CodeOwnerBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrEventNotJoinable):
		response.BusinessError(c, response.CodeEventNotJoinable, err.Error())
	case errors.Is(err, repository.ErrEventFull):
		response.BusinessError(c, response.CodeEventFull, err.Error())
	case errors.Is(err, service.ErrAlreadyJoined):
		response.BusinessError(c, response.CodeAlreadyJoined, err.Error())
	case errors.Is(err, service.ErrInvalidDiscount):
		response.BusinessError(c, response.CodeInvalidDiscount, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrStatusConflict):
		response.BusinessError(c, response.CodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		response.BusinessError(c, response.CodeNotOwner, err.Error())
	case errors.Is(err, service.ErrChannelUnavailable):
		response.BusinessError(c, response.CodeChannelUnavailable, err.Error())
	case errors.Is(err, service.ErrConcurrentModification):
		response.BusinessError(c, response.CodeConcurrentModification, err.Error())
	case errors.Is(err, repository.ErrJoinRequestNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeJoinRequestNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询钱包余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	wallet, err := h.walletService.GetWallet(c.Request.Context(), actorID(c))
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":           wallet.UserID,
		"status":            wallet.Status,
		"balance":           wallet.Balance,
		"available_balance": wallet.AvailableBalance,
		"reserved_balance":  wallet.ReservedBalance,
		"frozen_balance":    wallet.FrozenBalance,
	})
}

// RechargeRequest 充值请求
type RechargeRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Recharge 充值接口（简化版，实际应该走支付渠道）
// POST /api/v1/wallet/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	entry, err := h.walletService.Deposit(c.Request.Context(), actorID(c), req.Amount,
		model.EntryTypeRecharge, "余额充值", nil)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"entry_no":          entry.EntryNo,
		"balance":           entry.BalanceAfter,
		"available_balance": entry.AvailableAfter,
	})
}

// ListEntries 查询账本流水
// GET /api/v1/wallet/entries?page=1&page_size=10
func (h *Handler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	entries, total, err := h.walletService.ListEntries(c.Request.Context(), actorID(c), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SetWalletStatusRequest 管理员变更钱包状态请求
type SetWalletStatusRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Status string `json:"status" binding:"required"` // ACTIVE / FROZEN_ADMIN / SUSPENDED
}

// SetWalletStatus 管理员冻结/恢复钱包
// POST /api/v1/admin/wallet/status
func (h *Handler) SetWalletStatus(c *gin.Context) {
	var req SetWalletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.walletService.SetStatus(c.Request.Context(), req.UserID, req.Status); err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": req.UserID,
		"status":  req.Status,
	})
}

// ============================================================
// 报名相关接口
// ============================================================

// JoinRequest 报名请求
type JoinRequest struct {
	EventID      int64  `json:"event_id" binding:"required"`
	DiscountCode string `json:"discount_code"`
}

// Join 报名活动
// POST /api/v1/event/join
//
// 即时票扣款即确认，审批票预留票款等主办方决定。
// 同一 (活动, 用户) 的并发提交由分布式锁串行化。
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.joinService.Join(c.Request.Context(), &service.JoinInput{
		EventID:      req.EventID,
		UserID:       actorID(c),
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, result)
}

// CancelRequest 取消报名请求
type CancelRequest struct {
	EventID int64 `json:"event_id" binding:"required"`
}

// Cancel 取消报名
// POST /api/v1/event/cancel
func (h *Handler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.joinService.Cancel(c.Request.Context(), req.EventID, actorID(c))
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, result)
}

// DecisionRequest 主办方决定请求
type DecisionRequest struct {
	EventID       int64  `json:"event_id" binding:"required"`
	JoinRequestID int64  `json:"join_request_id" binding:"required"`
	Decision      string `json:"decision" binding:"required"` // approve / reject / refund / revoke
	Reason        string `json:"reason"`
}

// Decision 主办方审批/拒绝/退款/撤销
// POST /api/v1/event/decision
func (h *Handler) Decision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.joinService.OwnerDecision(c.Request.Context(), &service.DecisionInput{
		EventID:       req.EventID,
		JoinRequestID: req.JoinRequestID,
		OwnerID:       actorID(c),
		Decision:      req.Decision,
		Reason:        req.Reason,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, result)
}

// GetJoinDetail 查询报名详情（含状态历史）
// GET /api/v1/join/detail?join_no=xxx
func (h *Handler) GetJoinDetail(c *gin.Context) {
	joinNo := c.Query("join_no")
	if joinNo == "" {
		response.ParamError(c, "join_no 参数不能为空")
		return
	}

	jr, err := h.joinService.GetByJoinNo(c.Request.Context(), joinNo)
	if err != nil {
		renderError(c, err)
		return
	}

	history, err := h.joinService.ListHistory(c.Request.Context(), jr.ID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"join_request": jr,
		"history":      history,
	})
}

// ListJoins 查询当前用户的报名列表
// GET /api/v1/join/list?page=1&page_size=10
func (h *Handler) ListJoins(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	requests, total, err := h.joinService.ListByUser(c.Request.Context(), actorID(c), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListEventJoins 主办方查询活动的报名列表
// GET /api/v1/event/joins?event_id=xxx&page=1&page_size=10
func (h *Handler) ListEventJoins(c *gin.Context) {
	eventIDStr := c.Query("event_id")
	eventID, err := strconv.ParseInt(eventIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "event_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	requests, total, err := h.joinService.ListByEvent(c.Request.Context(), eventID, actorID(c), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
