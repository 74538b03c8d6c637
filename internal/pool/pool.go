/*

This file contains the pool accounting engine: a time-bounded staking pool
that distributes a fixed reward budget to stakers proportionally to stake
amount and duration, using a scaled reward-per-share accumulator and a
per-user reward-debt ledger.

Every mutating operation synchronizes the accumulator against wall-clock
time first, applies its own effect, and performs token movements last so a
reentrant token callback can never observe half-updated state.

*/

package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/farmd/internal/ledger"
	"github.com/elys-network/farmd/internal/logger"
	"github.com/elys-network/farmd/internal/types"
)

// AccScale is the fixed-point scale applied to the reward-per-share
// accumulator to preserve precision under integer-only arithmetic.
var AccScale = sdkmath.NewInt(1_000_000_000_000) // 1e12

// Directory is the registry-side interface a pool needs: the fee lookup
// applied on reward top-ups and the notification hook that keeps the
// per-owner pool index consistent across ownership transfers.
type Directory interface {
	FeeBps(poolID, owner string) uint64
	NotifyOwnerChanged(poolID, oldOwner, newOwner string) error
}

// Sink receives one event per pool state transition.
type Sink interface {
	Emit(ev types.PoolEvent)
}

// Config holds the dependencies and creation parameters for a pool.
type Config struct {
	ID           string
	Owner        string
	Account      string // the pool's holding account in the token ledger
	DepositDenom string
	RewardDenom  string
	StartTime    int64
	EndTime      int64

	Ledger       ledger.TokenLedger
	Directory    Directory
	Sink         Sink
	FeeCollector string // receives the protocol fee on reward top-ups
	Recovery     string // receives the swept budget on emergency close

	// Now overrides the clock, mainly for tests. Defaults to time.Now.
	Now func() time.Time
}

// Pool is a single staking pool. All operations on one pool are serialized
// by its mutex; independent pools share no mutable state and run in
// parallel.
type Pool struct {
	mu sync.Mutex

	id      string
	owner   string // empty once ownership is renounced
	account string

	schedule  types.PoolSchedule
	track     types.RewardTrack
	state     types.PoolState
	positions map[string]*types.UserPosition

	ledger       ledger.TokenLedger
	directory    Directory
	sink         Sink
	feeCollector string
	recovery     string

	logger zerolog.Logger
	nowFn  func() time.Time
}

// New validates the configuration and creates a pool with a zeroed
// accumulator and ledger. The schedule must start in the future and end
// after it starts.
func New(cfg Config) (*Pool, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	if cfg.StartTime <= nowFn().Unix() {
		return nil, fmt.Errorf("%w: start time %d is not in the future", ErrInvalidSchedule, cfg.StartTime)
	}
	if cfg.EndTime <= cfg.StartTime {
		return nil, fmt.Errorf("%w: end time %d is not after start time %d", ErrInvalidSchedule, cfg.EndTime, cfg.StartTime)
	}

	p := &Pool{
		id:      cfg.ID,
		owner:   cfg.Owner,
		account: cfg.Account,
		schedule: types.PoolSchedule{
			StartTime: cfg.StartTime,
			EndTime:   cfg.EndTime,
		},
		track: types.RewardTrack{
			DepositDenom:          cfg.DepositDenom,
			RewardDenom:           cfg.RewardDenom,
			TotalRewardsDeposited: sdkmath.ZeroInt(),
			RemainingRewards:      sdkmath.ZeroInt(),
			AccRewardPerShare:     sdkmath.ZeroInt(),
		},
		state: types.PoolState{
			TotalStaked:     sdkmath.ZeroInt(),
			LastAccrualTime: cfg.StartTime,
		},
		positions:    make(map[string]*types.UserPosition),
		ledger:       cfg.Ledger,
		directory:    cfg.Directory,
		sink:         cfg.Sink,
		feeCollector: cfg.FeeCollector,
		recovery:     cfg.Recovery,
		logger:       logger.GetForComponent("pool").With().Str("pool_id", cfg.ID).Logger(),
		nowFn:        nowFn,
	}
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.ID == "" {
		return fmt.Errorf("pool id cannot be empty")
	}
	if cfg.Owner == "" {
		return fmt.Errorf("%w: owner cannot be empty", ErrInvalidAddress)
	}
	if cfg.Account == "" {
		return fmt.Errorf("%w: pool account cannot be empty", ErrInvalidAddress)
	}
	if cfg.DepositDenom == "" || cfg.RewardDenom == "" {
		return fmt.Errorf("deposit and reward denoms cannot be empty")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.Directory == nil {
		return fmt.Errorf("directory cannot be nil")
	}
	if cfg.FeeCollector == "" || cfg.Recovery == "" {
		return fmt.Errorf("%w: fee collector and recovery accounts cannot be empty", ErrInvalidAddress)
	}
	return nil
}

// ID returns the pool identifier.
func (p *Pool) ID() string { return p.id }

// Owner returns the current owner, or empty if ownership was renounced.
func (p *Pool) Owner() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner
}

// Account returns the pool's holding account in the token ledger.
func (p *Pool) Account() string { return p.account }

// syncAccumulator advances the reward-per-share accumulator up to
// min(now, endTime). The rate is recomputed on every call from the current
// remaining budget and remaining duration, so reward top-ups and schedule
// edits re-base the rate going forward without a separate rebase step.
// Rewards for a period with no stakers are permanently skipped.
// Caller must hold the lock.
func (p *Pool) syncAccumulator(now int64) {
	if p.state.EmergencyClosed {
		return
	}
	effective := now
	if effective > p.schedule.EndTime {
		effective = p.schedule.EndTime
	}
	if effective <= p.state.LastAccrualTime {
		return
	}

	if p.state.TotalStaked.IsZero() {
		p.state.LastAccrualTime = effective
		return
	}

	window := p.schedule.EndTime - p.state.LastAccrualTime
	elapsed := effective - p.state.LastAccrualTime

	// Multiply before divide: distributed = remaining * elapsed / window.
	distributed := p.track.RemainingRewards.MulRaw(elapsed).QuoRaw(window)
	if distributed.GT(p.track.RemainingRewards) {
		distributed = p.track.RemainingRewards
	}

	p.track.AccRewardPerShare = p.track.AccRewardPerShare.
		Add(distributed.Mul(AccScale).Quo(p.state.TotalStaked))
	p.track.RemainingRewards = p.track.RemainingRewards.Sub(distributed)
	p.state.LastAccrualTime = effective

	p.emit(types.EventAccrual, "", func(ev *types.PoolEvent) {
		ev.Amount = distributed
	})
}

// pendingLocked computes the user's pending reward against a simulated
// up-to-date accumulator without mutating state. Caller must hold the lock.
func (p *Pool) pendingLocked(pos *types.UserPosition, now int64) sdkmath.Int {
	acc := p.track.AccRewardPerShare
	if !p.state.EmergencyClosed {
		effective := now
		if effective > p.schedule.EndTime {
			effective = p.schedule.EndTime
		}
		if effective > p.state.LastAccrualTime && !p.state.TotalStaked.IsZero() {
			window := p.schedule.EndTime - p.state.LastAccrualTime
			elapsed := effective - p.state.LastAccrualTime
			distributed := p.track.RemainingRewards.MulRaw(elapsed).QuoRaw(window)
			acc = acc.Add(distributed.Mul(AccScale).Quo(p.state.TotalStaked))
		}
	}
	pending := pos.Staked.Mul(acc).Quo(AccScale).Sub(pos.RewardDebt)
	if pending.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return pending
}

// payReward sends up to pending of the reward asset to the recipient,
// capped at the pool account's current balance. A shortfall is not carried
// forward: once paid, the reward is considered settled. Caller must hold
// the lock.
func (p *Pool) payReward(ctx context.Context, to string, pending sdkmath.Int) (sdkmath.Int, error) {
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	bal, err := p.ledger.BalanceOf(ctx, p.track.RewardDenom, p.account)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read pool reward balance: %w", err)
	}
	payout := pending
	if bal.LT(payout) {
		p.logger.Warn().
			Str("pending", pending.String()).
			Str("balance", bal.String()).
			Msg("Reward balance below computed pending, paying available amount")
		payout = bal
	}
	if payout.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if _, err := p.ledger.TransferOut(ctx, p.track.RewardDenom, p.account, to, payout); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("reward payout failed: %w", err)
	}
	return payout, nil
}

// settle pays out the user's pending reward and refreshes the reward debt
// so the payout cannot be claimed again. Caller must hold the lock.
func (p *Pool) settle(ctx context.Context, user string, pos *types.UserPosition) (sdkmath.Int, error) {
	pending := pos.Staked.Mul(p.track.AccRewardPerShare).Quo(AccScale).Sub(pos.RewardDebt)
	if pending.IsNegative() {
		pending = sdkmath.ZeroInt()
	}
	paid, err := p.payReward(ctx, user, pending)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	pos.RewardDebt = pos.Staked.Mul(p.track.AccRewardPerShare).Quo(AccScale)
	return paid, nil
}

// Deposit stakes amount of the deposit asset for user. A zero amount is a
// valid no-op deposit that still settles any pending reward. The staked
// amount credited is the measured balance delta, not the requested amount,
// so fee-on-transfer deposit assets are accounted exactly.
func (p *Pool) Deposit(ctx context.Context, user string, amount sdkmath.Int) error {
	if user == "" {
		return ErrInvalidAddress
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn().Unix()
	if now < p.schedule.StartTime || now >= p.schedule.EndTime || p.state.EmergencyClosed {
		return fmt.Errorf("%w: deposits are only accepted while the pool is active", ErrNotAllowed)
	}

	p.syncAccumulator(now)

	pos, ok := p.positions[user]
	if !ok {
		pos = &types.UserPosition{Staked: sdkmath.ZeroInt(), RewardDebt: sdkmath.ZeroInt()}
		p.positions[user] = pos
	}

	paid, err := p.settle(ctx, user, pos)
	if err != nil {
		return err
	}

	received := sdkmath.ZeroInt()
	if amount.IsPositive() {
		before, err := p.ledger.BalanceOf(ctx, p.track.DepositDenom, p.account)
		if err != nil {
			return fmt.Errorf("failed to read pool deposit balance: %w", err)
		}
		if _, err := p.ledger.TransferIn(ctx, p.track.DepositDenom, user, p.account, amount); err != nil {
			return fmt.Errorf("deposit transfer failed: %w", err)
		}
		after, err := p.ledger.BalanceOf(ctx, p.track.DepositDenom, p.account)
		if err != nil {
			return fmt.Errorf("failed to read pool deposit balance: %w", err)
		}
		received = after.Sub(before)

		pos.Staked = pos.Staked.Add(received)
		p.state.TotalStaked = p.state.TotalStaked.Add(received)
		pos.RewardDebt = pos.Staked.Mul(p.track.AccRewardPerShare).Quo(AccScale)
	}

	p.logger.Debug().
		Str("user", user).
		Str("requested", amount.String()).
		Str("received", received.String()).
		Str("reward_paid", paid.String()).
		Msg("Deposit processed")

	p.emit(types.EventDeposit, user, func(ev *types.PoolEvent) {
		ev.Amount = received
		ev.RewardPaid = paid
	})
	return nil
}

// Withdraw unstakes amount of the deposit asset for user, settling any
// pending reward first.
func (p *Pool) Withdraw(ctx context.Context, user string, amount sdkmath.Int) error {
	if user == "" {
		return ErrInvalidAddress
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[user]
	if !ok || pos.Staked.LT(amount) {
		return fmt.Errorf("%w: requested %s", ErrInsufficientStake, amount.String())
	}

	now := p.nowFn().Unix()
	p.syncAccumulator(now)

	paid, err := p.settle(ctx, user, pos)
	if err != nil {
		return err
	}

	if amount.IsPositive() {
		pos.Staked = pos.Staked.Sub(amount)
		p.state.TotalStaked = p.state.TotalStaked.Sub(amount)
		pos.RewardDebt = pos.Staked.Mul(p.track.AccRewardPerShare).Quo(AccScale)

		if _, err := p.ledger.TransferOut(ctx, p.track.DepositDenom, p.account, user, amount); err != nil {
			// Roll the stake back so the ledger stays consistent with the
			// actual token balances.
			pos.Staked = pos.Staked.Add(amount)
			p.state.TotalStaked = p.state.TotalStaked.Add(amount)
			pos.RewardDebt = pos.Staked.Mul(p.track.AccRewardPerShare).Quo(AccScale)
			return fmt.Errorf("withdraw transfer failed: %w", err)
		}
	}

	p.logger.Debug().
		Str("user", user).
		Str("amount", amount.String()).
		Str("reward_paid", paid.String()).
		Msg("Withdraw processed")

	p.emit(types.EventWithdraw, user, func(ev *types.PoolEvent) {
		ev.Amount = amount
		ev.RewardPaid = paid
	})
	return nil
}

// Harvest settles the user's pending reward without changing the stake.
func (p *Pool) Harvest(ctx context.Context, user string) error {
	if user == "" {
		return ErrInvalidAddress
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[user]
	if !ok {
		return fmt.Errorf("%w: no position for %s", ErrInsufficientStake, user)
	}

	now := p.nowFn().Unix()
	p.syncAccumulator(now)

	paid, err := p.settle(ctx, user, pos)
	if err != nil {
		return err
	}

	p.emit(types.EventHarvest, user, func(ev *types.PoolEvent) {
		ev.RewardPaid = paid
	})
	return nil
}

// EmergencyWithdraw returns the user's full staked principal and forfeits
// any pending reward. It is the last-resort exit and works in every
// lifecycle state, including after an emergency close.
func (p *Pool) EmergencyWithdraw(ctx context.Context, user string) error {
	if user == "" {
		return ErrInvalidAddress
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[user]
	if !ok || !pos.Staked.IsPositive() {
		return fmt.Errorf("%w: no position for %s", ErrInsufficientStake, user)
	}

	now := p.nowFn().Unix()
	p.syncAccumulator(now)

	amount := pos.Staked
	p.state.TotalStaked = p.state.TotalStaked.Sub(amount)
	delete(p.positions, user)

	if _, err := p.ledger.TransferOut(ctx, p.track.DepositDenom, p.account, user, amount); err != nil {
		p.positions[user] = pos
		p.state.TotalStaked = p.state.TotalStaked.Add(amount)
		return fmt.Errorf("emergency withdraw transfer failed: %w", err)
	}

	p.logger.Info().
		Str("user", user).
		Str("amount", amount.String()).
		Msg("Emergency withdraw, pending reward forfeited")

	p.emit(types.EventEmergencyWithdraw, user, func(ev *types.PoolEvent) {
		ev.Amount = amount
	})
	return nil
}

// AddRewards tops up the pool's reward budget. A protocol fee, looked up
// from the registry and bounded by its ceiling, is routed to the fee
// collector; the pool is credited with the measured balance delta of the
// remainder.
func (p *Pool) AddRewards(ctx context.Context, caller string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOwner(caller); err != nil {
		return err
	}

	now := p.nowFn().Unix()
	if now >= p.schedule.EndTime || p.state.EmergencyClosed {
		return fmt.Errorf("%w: cannot add rewards", ErrPoolEnded)
	}

	p.syncAccumulator(now)

	feeBps := p.directory.FeeBps(p.id, p.owner)
	fee := amount.MulRaw(int64(feeBps)).QuoRaw(10_000)
	rest := amount.Sub(fee)

	if fee.IsPositive() {
		if _, err := p.ledger.TransferIn(ctx, p.track.RewardDenom, caller, p.feeCollector, fee); err != nil {
			return fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	before, err := p.ledger.BalanceOf(ctx, p.track.RewardDenom, p.account)
	if err != nil {
		return fmt.Errorf("failed to read pool reward balance: %w", err)
	}
	if _, err := p.ledger.TransferIn(ctx, p.track.RewardDenom, caller, p.account, rest); err != nil {
		return fmt.Errorf("reward transfer failed: %w", err)
	}
	after, err := p.ledger.BalanceOf(ctx, p.track.RewardDenom, p.account)
	if err != nil {
		return fmt.Errorf("failed to read pool reward balance: %w", err)
	}
	net := after.Sub(before)

	p.track.TotalRewardsDeposited = p.track.TotalRewardsDeposited.Add(net)
	p.track.RemainingRewards = p.track.RemainingRewards.Add(net)

	p.logger.Info().
		Str("caller", caller).
		Str("requested", amount.String()).
		Str("fee", fee.String()).
		Str("net", net.String()).
		Msg("Rewards added")

	p.emit(types.EventRewardsAdded, caller, func(ev *types.PoolEvent) {
		ev.Amount = net
		ev.Fee = fee
	})
	return nil
}

// WithdrawRewards removes undistributed reward budget and returns it to
// the owner. The accumulator is synced first so the withdrawal can never
// claw back rewards already accrued to stakers.
func (p *Pool) WithdrawRewards(ctx context.Context, caller string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOwner(caller); err != nil {
		return err
	}

	now := p.nowFn().Unix()
	p.syncAccumulator(now)

	if p.track.RemainingRewards.LT(amount) {
		return fmt.Errorf("%w: remaining %s, requested %s",
			ErrInsufficientRewards, p.track.RemainingRewards.String(), amount.String())
	}

	p.track.RemainingRewards = p.track.RemainingRewards.Sub(amount)
	p.track.TotalRewardsDeposited = p.track.TotalRewardsDeposited.Sub(amount)

	if _, err := p.ledger.TransferOut(ctx, p.track.RewardDenom, p.account, caller, amount); err != nil {
		p.track.RemainingRewards = p.track.RemainingRewards.Add(amount)
		p.track.TotalRewardsDeposited = p.track.TotalRewardsDeposited.Add(amount)
		return fmt.Errorf("reward withdrawal transfer failed: %w", err)
	}

	p.emit(types.EventRewardsWithdrawn, caller, func(ev *types.PoolEvent) {
		ev.Amount = amount
	})
	return nil
}

// SetSchedule replaces the pool's end time. The start time is immutable.
// The existing window must not have elapsed, and the new end must leave a
// positive forward duration; the next accrual automatically re-bases the
// rate against the new window.
func (p *Pool) SetSchedule(caller string, newEndTime int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOwner(caller); err != nil {
		return err
	}

	now := p.nowFn().Unix()
	if now >= p.schedule.EndTime {
		return fmt.Errorf("%w: cannot edit the schedule of an ended pool", ErrPoolEnded)
	}
	if p.state.EmergencyClosed {
		return fmt.Errorf("%w: pool is emergency closed", ErrNotAllowed)
	}

	p.syncAccumulator(now)

	if newEndTime <= p.schedule.StartTime || newEndTime <= now || newEndTime <= p.state.LastAccrualTime {
		return fmt.Errorf("%w: new end time %d must leave a positive forward duration", ErrInvalidSchedule, newEndTime)
	}

	p.schedule.EndTime = newEndTime

	p.logger.Info().Int64("end_time", newEndTime).Msg("Schedule updated")

	p.emit(types.EventScheduleChanged, caller, nil)
	return nil
}

// ActivateEmergencyClose latches the pool shut: the remaining undistributed
// budget is swept to the protocol recovery account and no further reward
// accrual occurs. Staked principal remains fully withdrawable. One-way.
func (p *Pool) ActivateEmergencyClose(ctx context.Context, caller string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if p.state.EmergencyClosed {
		return fmt.Errorf("%w: pool already emergency closed", ErrNotAllowed)
	}

	now := p.nowFn().Unix()
	p.syncAccumulator(now)

	swept := p.track.RemainingRewards
	p.track.RemainingRewards = sdkmath.ZeroInt()
	p.state.EmergencyClosed = true

	if swept.IsPositive() {
		if _, err := p.ledger.TransferOut(ctx, p.track.RewardDenom, p.account, p.recovery, swept); err != nil {
			p.track.RemainingRewards = swept
			p.state.EmergencyClosed = false
			return fmt.Errorf("emergency sweep transfer failed: %w", err)
		}
	}

	p.logger.Warn().
		Str("swept", swept.String()).
		Str("recovery", p.recovery).
		Msg("Emergency close activated")

	p.emit(types.EventEmergencyClose, caller, func(ev *types.PoolEvent) {
		ev.Amount = swept
		ev.Counterparty = p.recovery
	})
	return nil
}

// TransferOwnership moves the pool to a new owner and notifies the
// registry so its per-owner index stays consistent. An empty new owner
// renounces ownership: the pool is removed from the old owner's list and
// every owner-restricted call fails thereafter.
func (p *Pool) TransferOwnership(caller, newOwner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == p.owner {
		return fmt.Errorf("%w: new owner equals current owner", ErrInvalidAddress)
	}

	oldOwner := p.owner
	p.owner = newOwner
	if err := p.directory.NotifyOwnerChanged(p.id, oldOwner, newOwner); err != nil {
		p.owner = oldOwner
		return fmt.Errorf("failed to update registry index: %w", err)
	}

	p.logger.Info().
		Str("old_owner", oldOwner).
		Str("new_owner", newOwner).
		Msg("Ownership transferred")

	p.emit(types.EventOwnerChanged, oldOwner, func(ev *types.PoolEvent) {
		ev.Counterparty = newOwner
	})
	return nil
}

func (p *Pool) requireOwner(caller string) error {
	if p.owner == "" || caller != p.owner {
		return ErrNotOwner
	}
	return nil
}

// PendingReward returns the user's currently claimable reward without
// mutating any state.
func (p *Pool) PendingReward(user string) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[user]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return p.pendingLocked(pos, p.nowFn().Unix())
}

// Record returns a flat snapshot of the pool for persistence and the API.
func (p *Pool) Record() types.PoolRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordLocked()
}

func (p *Pool) recordLocked() types.PoolRecord {
	return types.PoolRecord{
		ID:                    p.id,
		Owner:                 p.owner,
		DepositDenom:          p.track.DepositDenom,
		RewardDenom:           p.track.RewardDenom,
		StartTime:             p.schedule.StartTime,
		EndTime:               p.schedule.EndTime,
		TotalRewardsDeposited: p.track.TotalRewardsDeposited,
		RemainingRewards:      p.track.RemainingRewards,
		AccRewardPerShare:     p.track.AccRewardPerShare,
		TotalStaked:           p.state.TotalStaked,
		LastAccrualTime:       p.state.LastAccrualTime,
		EmergencyClosed:       p.state.EmergencyClosed,
		Status:                p.statusLocked(),
	}
}

func (p *Pool) statusLocked() types.PoolStatus {
	if p.state.EmergencyClosed {
		return types.PoolStatusEmergencyClosed
	}
	now := p.nowFn().Unix()
	switch {
	case now < p.schedule.StartTime:
		return types.PoolStatusPending
	case now < p.schedule.EndTime:
		return types.PoolStatusActive
	default:
		return types.PoolStatusEnded
	}
}

// PositionOf returns the user's position snapshot, including the pending
// reward, or false if the user has no position.
func (p *Pool) PositionOf(user string) (types.PositionRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[user]
	if !ok {
		return types.PositionRecord{}, false
	}
	return types.PositionRecord{
		PoolID:     p.id,
		Address:    user,
		Staked:     pos.Staked,
		RewardDebt: pos.RewardDebt,
		Pending:    p.pendingLocked(pos, p.nowFn().Unix()),
	}, true
}

// Positions returns snapshots of every current position.
func (p *Pool) Positions() []types.PositionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn().Unix()
	records := make([]types.PositionRecord, 0, len(p.positions))
	for addr, pos := range p.positions {
		records = append(records, types.PositionRecord{
			PoolID:     p.id,
			Address:    addr,
			Staked:     pos.Staked,
			RewardDebt: pos.RewardDebt,
			Pending:    p.pendingLocked(pos, now),
		})
	}
	return records
}

// emit builds the post-transition snapshot event and hands it to the sink.
// Caller must hold the lock.
func (p *Pool) emit(typ types.PoolEventType, actor string, mutate func(*types.PoolEvent)) {
	if p.sink == nil {
		return
	}
	ev := types.PoolEvent{
		PoolID:            p.id,
		Type:              typ,
		Actor:             actor,
		Amount:            sdkmath.ZeroInt(),
		Fee:               sdkmath.ZeroInt(),
		RewardPaid:        sdkmath.ZeroInt(),
		TotalStaked:       p.state.TotalStaked,
		RemainingRewards:  p.track.RemainingRewards,
		AccRewardPerShare: p.track.AccRewardPerShare,
		StartTime:         p.schedule.StartTime,
		EndTime:           p.schedule.EndTime,
		Timestamp:         p.nowFn().UTC(),
	}
	if mutate != nil {
		mutate(&ev)
	}
	p.sink.Emit(ev)
}
