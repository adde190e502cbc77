package service

import (
	"testing"
	"time"

	"eventpay/internal/model"

	"github.com/stretchr/testify/require"
)

func TestOwnerCanCoverClawbackSinglePath(t *testing.T) {
	// 追回不做跨路径拆分：冻结和可用合计够但单边都不够时，
	// 两条路径都会失败，退款必须在打款前拒绝
	w := &model.Wallet{FrozenBalance: 500, AvailableBalance: 600}
	require.False(t, ownerCanCoverClawback(w, 900))

	require.True(t, ownerCanCoverClawback(&model.Wallet{FrozenBalance: 900}, 900))
	require.True(t, ownerCanCoverClawback(&model.Wallet{FrozenBalance: 0, AvailableBalance: 1000}, 900))
	require.True(t, ownerCanCoverClawback(&model.Wallet{FrozenBalance: 900, AvailableBalance: 100}, 900))
	require.False(t, ownerCanCoverClawback(&model.Wallet{}, 1))
}

func TestNeedOwnerCredit(t *testing.T) {
	s := &JoinService{}
	now := time.Now()

	// 参与者侧已提交、主办方入账标记未落库的记录需要补偿
	jr := &model.JoinRequest{Status: model.JoinStatusConfirmed}
	require.True(t, s.needOwnerCredit(jr))
	jr.Status = model.JoinStatusApproved
	require.True(t, s.needOwnerCredit(jr))

	// 标记已落库的不再补偿
	jr.Payment.OwnerCreditedAt = &now
	require.False(t, s.needOwnerCredit(jr))

	// 其余状态不存在未完成的入账
	for _, status := range []string{
		model.JoinStatusPendingApproval,
		model.JoinStatusPaymentReserved,
		model.JoinStatusRejected,
		model.JoinStatusRefunded,
		model.JoinStatusCanceled,
		model.JoinStatusRevoked,
	} {
		require.False(t, s.needOwnerCredit(&model.JoinRequest{Status: status}), status)
	}
}
