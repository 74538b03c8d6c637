package pool

import "errors"

var (
	ErrNotAllowed          = errors.New("pool: operation not allowed in current lifecycle state")
	ErrPoolEnded           = errors.New("pool: reward window already ended")
	ErrInsufficientStake   = errors.New("pool: insufficient staked amount")
	ErrInsufficientRewards = errors.New("pool: insufficient undistributed rewards")
	ErrInvalidSchedule     = errors.New("pool: invalid schedule")
	ErrInvalidAddress      = errors.New("pool: invalid address")
	ErrInvalidAmount       = errors.New("pool: invalid amount")
	ErrNotOwner            = errors.New("pool: caller is not the owner")
)
