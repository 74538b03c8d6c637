package pool_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/farmd/internal/ledger"
	"github.com/elys-network/farmd/internal/pool"
	"github.com/elys-network/farmd/internal/types"
)

const (
	depositDenom = "ulp"
	rewardDenom  = "ueden"
	poolAcct     = "pool/test"
	ownerAddr    = "owner"
	feeAddr      = "collector"
	recoveryAddr = "recovery"
	userA        = "alice"
	userB        = "bob"

	startTime = int64(1_700_000_000)
	endTime   = startTime + 86_400
)

var ctx = context.Background()

func e18(n int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, 18)
}

type testClock struct {
	now int64
}

func (c *testClock) Now() time.Time {
	return time.Unix(c.now, 0)
}

type stubDirectory struct {
	fee       uint64
	notifyErr error
	moves     [][3]string
}

func (d *stubDirectory) FeeBps(poolID, owner string) uint64 {
	return d.fee
}

func (d *stubDirectory) NotifyOwnerChanged(poolID, oldOwner, newOwner string) error {
	if d.notifyErr != nil {
		return d.notifyErr
	}
	d.moves = append(d.moves, [3]string{poolID, oldOwner, newOwner})
	return nil
}

type memorySink struct {
	events []types.PoolEvent
}

func (s *memorySink) Emit(ev types.PoolEvent) {
	s.events = append(s.events, ev)
}

func (s *memorySink) lastOfType(typ types.PoolEventType) (types.PoolEvent, bool) {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == typ {
			return s.events[i], true
		}
	}
	return types.PoolEvent{}, false
}

type fixture struct {
	clock  *testClock
	ledger *ledger.MemoryLedger
	dir    *stubDirectory
	sink   *memorySink
	pool   *pool.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: startTime - 3600}
	led := ledger.NewMemoryLedger()
	dir := &stubDirectory{}
	sink := &memorySink{}

	p, err := pool.New(pool.Config{
		ID:           "test-pool",
		Owner:        ownerAddr,
		Account:      poolAcct,
		DepositDenom: depositDenom,
		RewardDenom:  rewardDenom,
		StartTime:    startTime,
		EndTime:      endTime,
		Ledger:       led,
		Directory:    dir,
		Sink:         sink,
		FeeCollector: feeAddr,
		Recovery:     recoveryAddr,
		Now:          clock.Now,
	})
	require.NoError(t, err)

	led.Mint(rewardDenom, ownerAddr, e18(1_000_000))
	led.Mint(depositDenom, userA, e18(1_000_000))
	led.Mint(depositDenom, userB, e18(1_000_000))

	return &fixture{clock: clock, ledger: led, dir: dir, sink: sink, pool: p}
}

func (f *fixture) fund(t *testing.T, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.pool.AddRewards(ctx, ownerAddr, amount))
}

func (f *fixture) balance(t *testing.T, denom, holder string) sdkmath.Int {
	t.Helper()
	bal, err := f.ledger.BalanceOf(ctx, denom, holder)
	require.NoError(t, err)
	return bal
}

// requireWithinOnePercent asserts actual is within 1% of expected.
func requireWithinOnePercent(t *testing.T, expected, actual sdkmath.Int) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	require.True(t, diff.LTE(expected.QuoRaw(100)),
		"expected %s within 1%% of %s", actual.String(), expected.String())
}

func TestNewPoolValidatesSchedule(t *testing.T) {
	clock := &testClock{now: startTime}
	led := ledger.NewMemoryLedger()
	base := pool.Config{
		ID:           "p",
		Owner:        ownerAddr,
		Account:      poolAcct,
		DepositDenom: depositDenom,
		RewardDenom:  rewardDenom,
		Ledger:       led,
		Directory:    &stubDirectory{},
		FeeCollector: feeAddr,
		Recovery:     recoveryAddr,
		Now:          clock.Now,
	}

	cfg := base
	cfg.StartTime = startTime // not in the future
	cfg.EndTime = endTime
	_, err := pool.New(cfg)
	require.ErrorIs(t, err, pool.ErrInvalidSchedule)

	cfg = base
	cfg.StartTime = startTime + 100
	cfg.EndTime = startTime + 100 // end must be after start
	_, err = pool.New(cfg)
	require.ErrorIs(t, err, pool.ErrInvalidSchedule)

	cfg = base
	cfg.StartTime = startTime + 100
	cfg.EndTime = startTime + 200
	_, err = pool.New(cfg)
	require.NoError(t, err)
}

func TestDepositLifecycleGuards(t *testing.T) {
	f := newFixture(t)

	// Before the window opens.
	err := f.pool.Deposit(ctx, userA, e18(10))
	require.ErrorIs(t, err, pool.ErrNotAllowed)

	// Active.
	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(10)))

	// After the window closes.
	f.clock.now = endTime
	err = f.pool.Deposit(ctx, userA, e18(10))
	require.ErrorIs(t, err, pool.ErrNotAllowed)
}

func TestDepositZeroIsSettlingNoOp(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	f.clock.now = startTime + 43_200
	balBefore := f.balance(t, rewardDenom, userA)
	totalBefore := f.pool.Record().TotalStaked

	require.NoError(t, f.pool.Deposit(ctx, userA, sdkmath.ZeroInt()))

	rec := f.pool.Record()
	assert.True(t, rec.TotalStaked.Equal(totalBefore), "total staked must be unchanged")

	// The no-op deposit still settled the accrued reward.
	paid := f.balance(t, rewardDenom, userA).Sub(balBefore)
	requireWithinOnePercent(t, e18(50_000), paid)
	assert.True(t, f.pool.PendingReward(userA).IsZero())
}

func TestTwoStakerSplit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	// Halfway: A alone has earned half the budget.
	f.clock.now = startTime + 43_200
	requireWithinOnePercent(t, e18(50_000), f.pool.PendingReward(userA))

	require.NoError(t, f.pool.Deposit(ctx, userB, e18(1000)))

	// End of window: the second half was split evenly.
	f.clock.now = endTime
	requireWithinOnePercent(t, e18(75_000), f.pool.PendingReward(userA))
	requireWithinOnePercent(t, e18(25_000), f.pool.PendingReward(userB))

	// Equal stakes over equal overlapping intervals accrue equally.
	secondHalfA := f.pool.PendingReward(userA).Sub(e18(50_000))
	requireWithinOnePercent(t, f.pool.PendingReward(userB), secondHalfA)
}

func TestWithdrawPaysRewardAndPrincipal(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	f.clock.now = endTime + 1000
	lpBefore := f.balance(t, depositDenom, userA)
	rewardBefore := f.balance(t, rewardDenom, userA)

	require.NoError(t, f.pool.Withdraw(ctx, userA, e18(1000)))

	assert.True(t, f.balance(t, depositDenom, userA).Sub(lpBefore).Equal(e18(1000)))
	requireWithinOnePercent(t, e18(100_000), f.balance(t, rewardDenom, userA).Sub(rewardBefore))

	rec := f.pool.Record()
	assert.True(t, rec.TotalStaked.IsZero())
	assert.True(t, f.pool.PendingReward(userA).IsZero())
}

func TestWithdrawInsufficientStake(t *testing.T) {
	f := newFixture(t)

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(100)))

	before := f.pool.Record()
	err := f.pool.Withdraw(ctx, userA, e18(101))
	require.ErrorIs(t, err, pool.ErrInsufficientStake)

	after := f.pool.Record()
	assert.True(t, before.TotalStaked.Equal(after.TotalStaked))
	pos, ok := f.pool.PositionOf(userA)
	require.True(t, ok)
	assert.True(t, pos.Staked.Equal(e18(100)))

	// No position at all.
	err = f.pool.Withdraw(ctx, userB, e18(1))
	require.ErrorIs(t, err, pool.ErrInsufficientStake)
}

func TestHarvestSettlesWithoutStakeChange(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	f.clock.now = startTime + 21_600 // 6h = quarter of the window
	before := f.balance(t, rewardDenom, userA)
	require.NoError(t, f.pool.Harvest(ctx, userA))

	requireWithinOnePercent(t, e18(25_000), f.balance(t, rewardDenom, userA).Sub(before))
	pos, ok := f.pool.PositionOf(userA)
	require.True(t, ok)
	assert.True(t, pos.Staked.Equal(e18(1000)))
	assert.True(t, f.pool.PendingReward(userA).IsZero())
}

func TestEmergencyWithdrawForfeitsReward(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	f.clock.now = startTime + 43_200
	require.True(t, f.pool.PendingReward(userA).IsPositive())

	lpBefore := f.balance(t, depositDenom, userA)
	rewardBefore := f.balance(t, rewardDenom, userA)
	require.NoError(t, f.pool.EmergencyWithdraw(ctx, userA))

	// Exactly the principal back, not a single reward token.
	assert.True(t, f.balance(t, depositDenom, userA).Sub(lpBefore).Equal(e18(1000)))
	assert.True(t, f.balance(t, rewardDenom, userA).Equal(rewardBefore))
	assert.True(t, f.pool.PendingReward(userA).IsZero())

	_, ok := f.pool.PositionOf(userA)
	assert.False(t, ok)
	assert.True(t, f.pool.Record().TotalStaked.IsZero())
}

func TestFeeOnTransferDepositUsesMeasuredDelta(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetTransferFee(depositDenom, 200) // 2% taken in flight

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	pos, ok := f.pool.PositionOf(userA)
	require.True(t, ok)
	assert.True(t, pos.Staked.Equal(e18(980)), "staked %s", pos.Staked.String())
	assert.True(t, f.pool.Record().TotalStaked.Equal(e18(980)))
}

func TestAddRewardsRoutesFee(t *testing.T) {
	f := newFixture(t)
	f.dir.fee = 500 // 5%

	require.NoError(t, f.pool.AddRewards(ctx, ownerAddr, e18(100_000)))

	assert.True(t, f.balance(t, rewardDenom, feeAddr).Equal(e18(5000)))
	rec := f.pool.Record()
	assert.True(t, rec.TotalRewardsDeposited.Equal(e18(95_000)))
	assert.True(t, rec.RemainingRewards.Equal(e18(95_000)))

	ev, ok := f.sink.lastOfType(types.EventRewardsAdded)
	require.True(t, ok)
	assert.True(t, ev.Amount.Equal(e18(95_000)))
	assert.True(t, ev.Fee.Equal(e18(5000)))
}

func TestAddRewardsGuards(t *testing.T) {
	f := newFixture(t)

	err := f.pool.AddRewards(ctx, userA, e18(10))
	require.ErrorIs(t, err, pool.ErrNotOwner)

	f.clock.now = endTime
	err = f.pool.AddRewards(ctx, ownerAddr, e18(10))
	require.ErrorIs(t, err, pool.ErrPoolEnded)
}

func TestWithdrawRewardsCannotClawBackAccrued(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	// Half the budget has accrued to the per-share accumulator by now, so
	// only the other half is still withdrawable.
	f.clock.now = startTime + 43_200
	err := f.pool.WithdrawRewards(ctx, ownerAddr, e18(60_000))
	require.ErrorIs(t, err, pool.ErrInsufficientRewards)

	require.NoError(t, f.pool.WithdrawRewards(ctx, ownerAddr, e18(50_000)))
	requireWithinOnePercent(t, e18(50_000), f.pool.PendingReward(userA))

	err = f.pool.WithdrawRewards(ctx, userA, e18(1))
	require.ErrorIs(t, err, pool.ErrNotOwner)
}

func TestSetScheduleRules(t *testing.T) {
	f := newFixture(t)

	f.clock.now = startTime + 100

	err := f.pool.SetSchedule(userA, endTime+1000)
	require.ErrorIs(t, err, pool.ErrNotOwner)

	err = f.pool.SetSchedule(ownerAddr, startTime+50) // not forward-looking
	require.ErrorIs(t, err, pool.ErrInvalidSchedule)

	require.NoError(t, f.pool.SetSchedule(ownerAddr, endTime+86_400))
	assert.Equal(t, endTime+86_400, f.pool.Record().EndTime)

	// An elapsed window can never be resurrected.
	f.clock.now = endTime + 86_400
	err = f.pool.SetSchedule(ownerAddr, f.clock.now+1000)
	require.ErrorIs(t, err, pool.ErrPoolEnded)
}

func TestScheduleExtensionRebasesRate(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	// Double the remaining duration mid-window: the remaining budget is
	// spread over twice the time, so the second half-day yields half of
	// what it would have.
	f.clock.now = startTime + 43_200
	require.NoError(t, f.pool.Harvest(ctx, userA))
	require.NoError(t, f.pool.SetSchedule(ownerAddr, endTime+43_200))

	f.clock.now = endTime
	requireWithinOnePercent(t, e18(25_000), f.pool.PendingReward(userA))
}

func TestEmergencyClose(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	f.clock.now = startTime + 43_200
	err := f.pool.ActivateEmergencyClose(ctx, userA)
	require.ErrorIs(t, err, pool.ErrNotOwner)

	require.NoError(t, f.pool.ActivateEmergencyClose(ctx, ownerAddr))

	// Undistributed budget went to the recovery account, accrued rewards
	// stayed claimable.
	requireWithinOnePercent(t, e18(50_000), f.balance(t, rewardDenom, recoveryAddr))
	rec := f.pool.Record()
	assert.True(t, rec.EmergencyClosed)
	assert.True(t, rec.RemainingRewards.IsZero())
	assert.Equal(t, types.PoolStatusEmergencyClosed, rec.Status)

	// The latch is one-way and freezes the accumulator.
	err = f.pool.ActivateEmergencyClose(ctx, ownerAddr)
	require.ErrorIs(t, err, pool.ErrNotAllowed)

	accAtClose := rec.AccRewardPerShare
	f.clock.now = endTime
	assert.True(t, f.pool.Record().AccRewardPerShare.Equal(accAtClose))

	// No new deposits, but principal stays withdrawable.
	err = f.pool.Deposit(ctx, userB, e18(10))
	require.ErrorIs(t, err, pool.ErrNotAllowed)
	require.NoError(t, f.pool.Withdraw(ctx, userA, e18(1000)))
	requireWithinOnePercent(t, e18(50_000), f.balance(t, rewardDenom, userA))
}

func TestRewardPayoutCappedAtPoolBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))

	// Drain the pool's reward balance out from under the ledger.
	f.clock.now = startTime + 43_200
	drained := f.balance(t, rewardDenom, poolAcct)
	_, err := f.ledger.TransferOut(ctx, rewardDenom, poolAcct, "elsewhere", drained)
	require.NoError(t, err)

	// Harvest pays what is available instead of failing, and the shortfall
	// is not carried forward.
	before := f.balance(t, rewardDenom, userA)
	require.NoError(t, f.pool.Harvest(ctx, userA))
	assert.True(t, f.balance(t, rewardDenom, userA).Equal(before))
	assert.True(t, f.pool.PendingReward(userA).IsZero())
}

func TestUpstreamTransferFailureIsAtomic(t *testing.T) {
	f := newFixture(t)

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(100)))

	f.ledger.SetHalted(depositDenom, true)
	before := f.pool.Record()

	err := f.pool.Deposit(ctx, userA, e18(50))
	require.Error(t, err)
	err = f.pool.Withdraw(ctx, userA, e18(50))
	require.Error(t, err)
	err = f.pool.EmergencyWithdraw(ctx, userA)
	require.Error(t, err)

	after := f.pool.Record()
	assert.True(t, before.TotalStaked.Equal(after.TotalStaked))
	pos, ok := f.pool.PositionOf(userA)
	require.True(t, ok)
	assert.True(t, pos.Staked.Equal(e18(100)))
}

func TestOwnershipTransferAndRenounce(t *testing.T) {
	f := newFixture(t)

	err := f.pool.TransferOwnership(userA, userB)
	require.ErrorIs(t, err, pool.ErrNotOwner)

	require.NoError(t, f.pool.TransferOwnership(ownerAddr, userB))
	assert.Equal(t, userB, f.pool.Owner())
	require.Len(t, f.dir.moves, 1)
	assert.Equal(t, [3]string{"test-pool", ownerAddr, userB}, f.dir.moves[0])

	// Old owner lost its privileges.
	err = f.pool.SetSchedule(ownerAddr, endTime+1000)
	require.ErrorIs(t, err, pool.ErrNotOwner)

	// Renounce: every owner-restricted call fails thereafter.
	require.NoError(t, f.pool.TransferOwnership(userB, ""))
	assert.Equal(t, "", f.pool.Owner())
	err = f.pool.AddRewards(ctx, userB, e18(10))
	require.ErrorIs(t, err, pool.ErrNotOwner)
	err = f.pool.AddRewards(ctx, "", e18(10))
	require.ErrorIs(t, err, pool.ErrNotOwner)
}

func TestOwnershipTransferRollsBackOnIndexFailure(t *testing.T) {
	f := newFixture(t)
	f.dir.notifyErr = assert.AnError

	err := f.pool.TransferOwnership(ownerAddr, userB)
	require.Error(t, err)
	assert.Equal(t, ownerAddr, f.pool.Owner())
}

func TestConservationAcrossOperations(t *testing.T) {
	f := newFixture(t)
	f.fund(t, e18(100_000))

	check := func() {
		total := sdkmath.ZeroInt()
		for _, pos := range f.pool.Positions() {
			total = total.Add(pos.Staked)
		}
		require.True(t, f.pool.Record().TotalStaked.Equal(total),
			"total staked %s != sum of positions %s", f.pool.Record().TotalStaked.String(), total.String())
	}

	f.clock.now = startTime
	require.NoError(t, f.pool.Deposit(ctx, userA, e18(1000)))
	check()
	require.NoError(t, f.pool.Deposit(ctx, userB, e18(500)))
	check()

	f.clock.now = startTime + 10_000
	require.NoError(t, f.pool.Withdraw(ctx, userA, e18(300)))
	check()
	require.NoError(t, f.pool.Deposit(ctx, userB, e18(250)))
	check()

	f.clock.now = startTime + 50_000
	require.NoError(t, f.pool.EmergencyWithdraw(ctx, userB))
	check()
	require.NoError(t, f.pool.Withdraw(ctx, userA, e18(700)))
	check()
}
