package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionApprovalFlow(t *testing.T) {
	// 主办方推进审批
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusPaymentReserved, JoinStatusApproved, ActorOwner))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusPaymentReserved, JoinStatusRejected, ActorOwner))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusPendingApproval, JoinStatusApproved, ActorOwner))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusApproved, JoinStatusRefunded, ActorOwner))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusApproved, JoinStatusRevoked, ActorOwner))

	// 参与者取消与重新报名
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusPaymentReserved, JoinStatusCanceled, ActorParticipant))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusPendingApproval, JoinStatusCanceled, ActorParticipant))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusCanceled, JoinStatusPaymentReserved, ActorParticipant))
	assert.True(t, CanTransition(ParticipationTypeApproval, JoinStatusCanceled, JoinStatusPendingApproval, ActorParticipant))
}

func TestCanTransitionRoleAuthorization(t *testing.T) {
	// 资金状态再正确，参与者也不能替主办方审批
	assert.False(t, CanTransition(ParticipationTypeApproval, JoinStatusPaymentReserved, JoinStatusApproved, ActorParticipant))
	assert.False(t, CanTransition(ParticipationTypeApproval, JoinStatusApproved, JoinStatusRefunded, ActorParticipant))

	// 主办方也不能替参与者取消
	assert.False(t, CanTransition(ParticipationTypeApproval, JoinStatusPaymentReserved, JoinStatusCanceled, ActorOwner))
}

func TestCanTransitionInstantFlow(t *testing.T) {
	assert.True(t, CanTransition(ParticipationTypeInstant, JoinStatusCanceled, JoinStatusConfirmed, ActorParticipant))
	assert.True(t, CanTransition(ParticipationTypeInstant, JoinStatusConfirmed, JoinStatusRefunded, ActorOwner))
	assert.True(t, CanTransition(ParticipationTypeInstant, JoinStatusConfirmed, JoinStatusRevoked, ActorOwner))

	// 即时票没有审批环节
	assert.False(t, CanTransition(ParticipationTypeInstant, JoinStatusConfirmed, JoinStatusApproved, ActorOwner))
	// 已确认的即时票不允许参与者自行取消
	assert.False(t, CanTransition(ParticipationTypeInstant, JoinStatusConfirmed, JoinStatusCanceled, ActorParticipant))
}

func TestCanTransitionTerminalStates(t *testing.T) {
	for _, status := range []string{JoinStatusRejected, JoinStatusRefunded, JoinStatusRevoked} {
		assert.False(t, CanTransition(ParticipationTypeApproval, status, JoinStatusApproved, ActorOwner), status)
		assert.False(t, CanTransition(ParticipationTypeApproval, status, JoinStatusPaymentReserved, ActorParticipant), status)
		assert.True(t, IsTerminalJoinStatus(status), status)
	}
	assert.False(t, IsTerminalJoinStatus(JoinStatusCanceled))
}

func TestNormalizeJoinStatus(t *testing.T) {
	// 历史数据中的旧拼写
	assert.Equal(t, JoinStatusCanceled, NormalizeJoinStatus("CANCELLED"))
	assert.Equal(t, JoinStatusCanceled, NormalizeJoinStatus(JoinStatusCanceled))
	assert.Equal(t, JoinStatusApproved, NormalizeJoinStatus(JoinStatusApproved))

	// 旧拼写同样参与转移检查
	assert.True(t, CanTransition(ParticipationTypeApproval, "CANCELLED", JoinStatusPaymentReserved, ActorParticipant))
}

func TestCanTransitionUnknownInputs(t *testing.T) {
	assert.False(t, CanTransition("UNKNOWN", JoinStatusCanceled, JoinStatusConfirmed, ActorParticipant))
	assert.False(t, CanTransition(ParticipationTypeInstant, JoinStatusCanceled, JoinStatusConfirmed, "admin"))
}

func TestPaymentDetailFlags(t *testing.T) {
	now := time.Now()

	p := &PaymentDetail{}
	assert.False(t, p.Settled())
	assert.False(t, p.HasReservation())

	p = &PaymentDetail{ReservedAmount: 500, ReservedAt: &now}
	assert.True(t, p.HasReservation())
	assert.False(t, p.Settled())

	// 结算后预留归零
	p = &PaymentDetail{PaidAmount: 500, PaidAt: &now, ReservedAt: &now, ReservedAmount: 0}
	assert.True(t, p.Settled())
	assert.False(t, p.HasReservation())
}
