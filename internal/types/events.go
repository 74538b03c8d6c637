package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolEventType identifies the state transition an event records.
type PoolEventType string

const (
	EventDeposit           PoolEventType = "DEPOSIT"
	EventWithdraw          PoolEventType = "WITHDRAW"
	EventHarvest           PoolEventType = "HARVEST"
	EventEmergencyWithdraw PoolEventType = "EMERGENCY_WITHDRAW"
	EventRewardsAdded      PoolEventType = "REWARDS_ADDED"
	EventRewardsWithdrawn  PoolEventType = "REWARDS_WITHDRAWN"
	EventScheduleChanged   PoolEventType = "SCHEDULE_CHANGED"
	EventEmergencyClose    PoolEventType = "EMERGENCY_CLOSE"
	EventAccrual           PoolEventType = "ACCUMULATOR_SYNC"
	EventOwnerChanged      PoolEventType = "OWNERSHIP_TRANSFERRED"
)

// PoolEvent is the audit-trail record emitted on every pool state
// transition. It carries the post-transition snapshot fields needed to
// reconstruct the ledger change it represents.
type PoolEvent struct {
	EventID int64         `json:"event_id,omitempty"` // assigned by the journal
	PoolID  string        `json:"pool_id"`
	Type    PoolEventType `json:"type"`

	// Actor is the account that triggered the transition. For ownership
	// transfers it is the previous owner and Counterparty the new one.
	Actor        string `json:"actor,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`

	// Amount is the primary amount of the transition (stake moved, rewards
	// added net of fee, budget withdrawn or swept).
	Amount     sdkmath.Int `json:"amount"`
	Fee        sdkmath.Int `json:"fee"`
	RewardPaid sdkmath.Int `json:"reward_paid"`

	// Post-transition snapshot.
	TotalStaked       sdkmath.Int `json:"total_staked"`
	RemainingRewards  sdkmath.Int `json:"remaining_rewards"`
	AccRewardPerShare sdkmath.Int `json:"acc_reward_per_share"`
	StartTime         int64       `json:"start_time"`
	EndTime           int64       `json:"end_time"`

	Timestamp time.Time `json:"timestamp"`
}
