/*

This file contains the pool registry: the factory that creates pool
instances, tracks the per-owner pool index and supplies the protocol fee
percentage applied to reward top-ups. The registry is the single writer of
the owner index; pools never mutate it directly, they only call
NotifyOwnerChanged through the pool-side Directory interface.

*/

package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/farmd/internal/ledger"
	"github.com/elys-network/farmd/internal/logger"
	"github.com/elys-network/farmd/internal/pool"
	"github.com/elys-network/farmd/internal/types"
)

// MaxFeeBps is the protocol-wide ceiling on the reward top-up fee.
const MaxFeeBps uint64 = 500

var (
	ErrPoolNotFound = errors.New("registry: pool not found")
	ErrOwnerIndex   = errors.New("registry: owner index out of sync")
)

// Config holds the dependencies for a registry instance.
type Config struct {
	Ledger       ledger.TokenLedger
	Sink         pool.Sink
	FeeCollector string
	Recovery     string
	DefaultFee   uint64 // bps, clamped to MaxFeeBps

	// Now overrides the clock handed to created pools, mainly for tests.
	Now func() time.Time
}

// Registry creates and tracks staking pools.
type Registry struct {
	mu      sync.RWMutex
	pools   map[string]*pool.Pool
	byOwner map[string][]string
	fees    map[string]uint64

	ledger       ledger.TokenLedger
	sink         pool.Sink
	feeCollector string
	recovery     string
	defaultFee   uint64
	nowFn        func() time.Time

	logger zerolog.Logger
}

// New creates an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.FeeCollector == "" || cfg.Recovery == "" {
		return nil, fmt.Errorf("fee collector and recovery accounts cannot be empty")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	defaultFee := cfg.DefaultFee
	if defaultFee > MaxFeeBps {
		defaultFee = MaxFeeBps
	}
	return &Registry{
		pools:        make(map[string]*pool.Pool),
		byOwner:      make(map[string][]string),
		fees:         make(map[string]uint64),
		ledger:       cfg.Ledger,
		sink:         cfg.Sink,
		feeCollector: cfg.FeeCollector,
		recovery:     cfg.Recovery,
		defaultFee:   defaultFee,
		nowFn:        nowFn,
		logger:       logger.GetForComponent("registry"),
	}, nil
}

// CreatePool validates the parameters, constructs a new pool and indexes it
// under its owner. The pool's holding account in the token ledger is
// derived from its identifier.
func (r *Registry) CreatePool(params types.PoolParams) (*pool.Pool, error) {
	id := uuid.NewString()

	feeBps := params.FeeBps
	if feeBps == 0 {
		feeBps = r.defaultFee
	}
	if feeBps > MaxFeeBps {
		feeBps = MaxFeeBps
	}

	p, err := pool.New(pool.Config{
		ID:           id,
		Owner:        params.Owner,
		Account:      "pool/" + id,
		DepositDenom: params.DepositDenom,
		RewardDenom:  params.RewardDenom,
		StartTime:    params.StartTime,
		EndTime:      params.EndTime,
		Ledger:       r.ledger,
		Directory:    r,
		Sink:         r.sink,
		FeeCollector: r.feeCollector,
		Recovery:     r.recovery,
		Now:          r.nowFn,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pools[id] = p
	r.byOwner[params.Owner] = append(r.byOwner[params.Owner], id)
	r.fees[id] = feeBps
	r.mu.Unlock()

	r.logger.Info().
		Str("pool_id", id).
		Str("owner", params.Owner).
		Str("deposit_denom", params.DepositDenom).
		Str("reward_denom", params.RewardDenom).
		Int64("start_time", params.StartTime).
		Int64("end_time", params.EndTime).
		Uint64("fee_bps", feeBps).
		Msg("Pool created")

	return p, nil
}

// FeeBps returns the top-up fee for a pool in basis points, never above the
// protocol ceiling.
func (r *Registry) FeeBps(poolID, owner string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fee, ok := r.fees[poolID]
	if !ok {
		fee = r.defaultFee
	}
	if fee > MaxFeeBps {
		fee = MaxFeeBps
	}
	return fee
}

// NotifyOwnerChanged moves a pool between per-owner lists. It is called by
// the pool itself during an ownership transfer and is the only mutation
// path for the owner index. An empty new owner leaves the pool unindexed.
func (r *Registry) NotifyOwnerChanged(poolID, oldOwner, newOwner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[poolID]; !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}

	list := r.byOwner[oldOwner]
	idx := -1
	for i, id := range list {
		if id == poolID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: pool %s not listed under %s", ErrOwnerIndex, poolID, oldOwner)
	}

	list = append(list[:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(r.byOwner, oldOwner)
	} else {
		r.byOwner[oldOwner] = list
	}
	if newOwner != "" {
		r.byOwner[newOwner] = append(r.byOwner[newOwner], poolID)
	}

	r.logger.Info().
		Str("pool_id", poolID).
		Str("old_owner", oldOwner).
		Str("new_owner", newOwner).
		Msg("Owner index updated")
	return nil
}

// Get returns the pool with the given identifier.
func (r *Registry) Get(poolID string) (*pool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	return p, nil
}

// PoolsByOwner returns the identifiers of every pool owned by owner.
func (r *Registry) PoolsByOwner(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byOwner[owner]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Records returns snapshots of every registered pool.
func (r *Registry) Records() []types.PoolRecord {
	r.mu.RLock()
	pools := make([]*pool.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()

	records := make([]types.PoolRecord, 0, len(pools))
	for _, p := range pools {
		records = append(records, p.Record())
	}
	return records
}
