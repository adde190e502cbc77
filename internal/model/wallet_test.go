package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActiveWallet(available, reserved, frozen int64) *Wallet {
	return &Wallet{
		UserID:           1,
		Status:           WalletStatusActive,
		Balance:          available + reserved + frozen,
		AvailableBalance: available,
		ReservedBalance:  reserved,
		FrozenBalance:    frozen,
	}
}

func TestApplyDeposit(t *testing.T) {
	w := newActiveWallet(100, 0, 0)

	require.NoError(t, w.ApplyDeposit(50))
	assert.Equal(t, int64(150), w.AvailableBalance)
	assert.Equal(t, int64(150), w.Balance)
	assert.True(t, w.CheckInvariant())

	assert.ErrorIs(t, w.ApplyDeposit(0), ErrInvalidAmount)
	assert.ErrorIs(t, w.ApplyDeposit(-10), ErrInvalidAmount)
}

func TestApplyDeductInsufficient(t *testing.T) {
	w := newActiveWallet(100, 0, 0)

	assert.ErrorIs(t, w.ApplyDeduct(101), ErrInsufficientBalance)
	// 失败时不产生任何变更
	assert.Equal(t, int64(100), w.AvailableBalance)
	assert.Equal(t, int64(100), w.Balance)

	require.NoError(t, w.ApplyDeduct(100))
	assert.Equal(t, int64(0), w.AvailableBalance)
	assert.True(t, w.CheckInvariant())
}

func TestInactiveWalletRejectsAllMutations(t *testing.T) {
	w := newActiveWallet(100, 50, 50)
	w.Status = WalletStatusFrozenAdmin

	assert.ErrorIs(t, w.ApplyDeposit(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyDeduct(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyReserve(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyRelease(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyFreeze(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyUnfreeze(10), ErrWalletInactive)
	assert.ErrorIs(t, w.ApplyClawback(10), ErrWalletInactive)
	_, _, err := w.ApplySettle(10)
	assert.ErrorIs(t, err, ErrWalletInactive)
}

func TestReserveReleaseSymmetry(t *testing.T) {
	w := newActiveWallet(1000, 0, 0)

	require.NoError(t, w.ApplyReserve(300))
	assert.Equal(t, int64(700), w.AvailableBalance)
	assert.Equal(t, int64(300), w.ReservedBalance)
	assert.Equal(t, int64(1000), w.Balance) // 预留不改变总余额
	assert.True(t, w.CheckInvariant())

	require.NoError(t, w.ApplyRelease(300))
	assert.Equal(t, int64(1000), w.AvailableBalance)
	assert.Equal(t, int64(0), w.ReservedBalance)
	assert.True(t, w.CheckInvariant())

	assert.ErrorIs(t, w.ApplyRelease(1), ErrInsufficientReserved)
}

func TestFreezeUnfreezeSymmetry(t *testing.T) {
	w := newActiveWallet(500, 0, 0)

	require.NoError(t, w.ApplyFreeze(500))
	assert.Equal(t, int64(0), w.AvailableBalance)
	assert.Equal(t, int64(500), w.FrozenBalance)
	assert.Equal(t, int64(500), w.Balance)
	assert.True(t, w.CheckInvariant())

	require.NoError(t, w.ApplyUnfreeze(200))
	assert.Equal(t, int64(200), w.AvailableBalance)
	assert.Equal(t, int64(300), w.FrozenBalance)
	assert.True(t, w.CheckInvariant())

	assert.ErrorIs(t, w.ApplyUnfreeze(301), ErrInsufficientFrozen)
}

func TestApplySettleFullyFromReserved(t *testing.T) {
	w := newActiveWallet(100, 300, 0)

	fromReserved, fromAvailable, err := w.ApplySettle(300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), fromReserved)
	assert.Equal(t, int64(0), fromAvailable)
	assert.Equal(t, int64(0), w.ReservedBalance)
	assert.Equal(t, int64(100), w.AvailableBalance)
	assert.Equal(t, int64(100), w.Balance)
	assert.True(t, w.CheckInvariant())
}

func TestApplySettleShortfallFromAvailable(t *testing.T) {
	// 预留30不够结算50，差额20从可用余额补足
	w := newActiveWallet(100, 30, 0)

	fromReserved, fromAvailable, err := w.ApplySettle(50)
	require.NoError(t, err)
	assert.Equal(t, int64(30), fromReserved)
	assert.Equal(t, int64(20), fromAvailable)
	assert.Equal(t, int64(0), w.ReservedBalance)
	assert.Equal(t, int64(80), w.AvailableBalance)
	assert.Equal(t, int64(80), w.Balance)
	assert.True(t, w.CheckInvariant())
}

func TestApplySettleInsufficientFailsWhole(t *testing.T) {
	w := newActiveWallet(10, 30, 0)

	_, _, err := w.ApplySettle(50)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	// 整体失败，不允许只扣一半
	assert.Equal(t, int64(30), w.ReservedBalance)
	assert.Equal(t, int64(10), w.AvailableBalance)
	assert.Equal(t, int64(40), w.Balance)
}

func TestApplyClawback(t *testing.T) {
	w := newActiveWallet(100, 0, 900)

	require.NoError(t, w.ApplyClawback(900))
	assert.Equal(t, int64(0), w.FrozenBalance)
	assert.Equal(t, int64(100), w.Balance)
	assert.True(t, w.CheckInvariant())

	assert.ErrorIs(t, w.ApplyClawback(1), ErrInsufficientFrozen)
}

func TestCheckInvariantRejectsNegative(t *testing.T) {
	w := &Wallet{Balance: 0, AvailableBalance: -1, ReservedBalance: 1, FrozenBalance: 0}
	assert.False(t, w.CheckInvariant())

	w = &Wallet{Balance: 10, AvailableBalance: 5, ReservedBalance: 0, FrozenBalance: 0}
	assert.False(t, w.CheckInvariant())
}
