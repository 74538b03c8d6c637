/*

This file contains the core ledger types for staking pools: the schedule,
the reward track, the aggregate pool state and per-user positions.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// PoolSchedule defines the time window during which a pool distributes
// rewards. StartTime is immutable after creation; EndTime may be edited by
// the pool owner while the pool is still running.
type PoolSchedule struct {
	StartTime int64 `json:"start_time"` // unix seconds
	EndTime   int64 `json:"end_time"`   // unix seconds, always > StartTime
}

// RewardTrack holds the reward-side accounting for a pool.
type RewardTrack struct {
	DepositDenom string `json:"deposit_denom"` // asset users stake
	RewardDenom  string `json:"reward_denom"`  // asset paid out as reward

	// TotalRewardsDeposited is the cumulative net (post-fee) reward budget
	// ever added, reduced only by explicit owner withdrawal.
	TotalRewardsDeposited sdkmath.Int `json:"total_rewards_deposited"`

	// RemainingRewards is the budget not yet attributed to the accumulator.
	RemainingRewards sdkmath.Int `json:"remaining_rewards"`

	// AccRewardPerShare is the cumulative reward earned per unit of stake
	// since inception, scaled by AccScale for integer-only precision.
	AccRewardPerShare sdkmath.Int `json:"acc_reward_per_share"`
}

// PoolState is the aggregate mutable state of a pool.
type PoolState struct {
	TotalStaked     sdkmath.Int `json:"total_staked"`
	LastAccrualTime int64       `json:"last_accrual_time"` // never exceeds min(now, EndTime)
	EmergencyClosed bool        `json:"emergency_closed"`  // one-way latch
}

// UserPosition tracks a single staker inside one pool. RewardDebt equals
// Staked * AccRewardPerShare / AccScale at the moment of the user's last
// stake change, so rewards earned before that stake existed are never
// counted twice.
type UserPosition struct {
	Staked     sdkmath.Int `json:"staked"`
	RewardDebt sdkmath.Int `json:"reward_debt"`
}

// PoolStatus is the derived lifecycle phase of a pool.
type PoolStatus string

const (
	PoolStatusPending         PoolStatus = "PENDING"
	PoolStatusActive          PoolStatus = "ACTIVE"
	PoolStatusEnded           PoolStatus = "ENDED"
	PoolStatusEmergencyClosed PoolStatus = "EMERGENCY_CLOSED"
)

// PoolParams are the creation parameters handed to the registry.
type PoolParams struct {
	Owner        string `json:"owner"`
	DepositDenom string `json:"deposit_denom"`
	RewardDenom  string `json:"reward_denom"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	FeeBps       uint64 `json:"fee_bps"` // clamped to the protocol ceiling
}

// PoolRecord is the flat snapshot of a pool used by the persistence layer
// and the web API. One record per pool.
type PoolRecord struct {
	ID                    string      `json:"pool_id"`
	Owner                 string      `json:"owner"`
	DepositDenom          string      `json:"deposit_denom"`
	RewardDenom           string      `json:"reward_denom"`
	StartTime             int64       `json:"start_time"`
	EndTime               int64       `json:"end_time"`
	TotalRewardsDeposited sdkmath.Int `json:"total_rewards_deposited"`
	RemainingRewards      sdkmath.Int `json:"remaining_rewards"`
	AccRewardPerShare     sdkmath.Int `json:"acc_reward_per_share"`
	TotalStaked           sdkmath.Int `json:"total_staked"`
	LastAccrualTime       int64       `json:"last_accrual_time"`
	EmergencyClosed       bool        `json:"emergency_closed"`
	Status                PoolStatus  `json:"status"`
}

// PositionRecord is the flat snapshot of one (pool, user) pair.
type PositionRecord struct {
	PoolID     string      `json:"pool_id"`
	Address    string      `json:"address"`
	Staked     sdkmath.Int `json:"staked"`
	RewardDebt sdkmath.Int `json:"reward_debt"`
	Pending    sdkmath.Int `json:"pending_reward"`
}
