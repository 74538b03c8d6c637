// ./internal/state/pool_store.go
package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/farmd/internal/types"
)

// UpsertPoolSnapshot persists the current snapshot of a pool, one row per
// pool.
func UpsertPoolSnapshot(rec types.PoolRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO pools (
			pool_id, owner_address, deposit_denom, reward_denom,
			start_time, end_time,
			total_rewards_deposited, remaining_rewards, acc_reward_per_share,
			total_staked, last_accrual_time, emergency_closed, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP)
		ON CONFLICT (pool_id) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			end_time = EXCLUDED.end_time,
			total_rewards_deposited = EXCLUDED.total_rewards_deposited,
			remaining_rewards = EXCLUDED.remaining_rewards,
			acc_reward_per_share = EXCLUDED.acc_reward_per_share,
			total_staked = EXCLUDED.total_staked,
			last_accrual_time = EXCLUDED.last_accrual_time,
			emergency_closed = EXCLUDED.emergency_closed,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP;
	`
	_, err := DB.Exec(stmt,
		rec.ID, rec.Owner, rec.DepositDenom, rec.RewardDenom,
		rec.StartTime, rec.EndTime,
		rec.TotalRewardsDeposited.String(), rec.RemainingRewards.String(), rec.AccRewardPerShare.String(),
		rec.TotalStaked.String(), rec.LastAccrualTime, rec.EmergencyClosed, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool snapshot: %w", err)
	}
	return nil
}

// UpsertUserPosition persists one (pool, user) position row.
func UpsertUserPosition(rec types.PositionRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO user_positions (pool_id, user_address, staked, reward_debt, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (pool_id, user_address) DO UPDATE SET
			staked = EXCLUDED.staked,
			reward_debt = EXCLUDED.reward_debt,
			updated_at = CURRENT_TIMESTAMP;
	`
	_, err := DB.Exec(stmt, rec.PoolID, rec.Address, rec.Staked.String(), rec.RewardDebt.String())
	if err != nil {
		return fmt.Errorf("failed to upsert user position: %w", err)
	}
	return nil
}

// GetPoolRecord loads the persisted snapshot of a pool.
func GetPoolRecord(poolID string) (*types.PoolRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pool_id, owner_address, deposit_denom, reward_denom,
			start_time, end_time,
			total_rewards_deposited, remaining_rewards, acc_reward_per_share,
			total_staked, last_accrual_time, emergency_closed, status
		FROM pools
		WHERE pool_id = $1
	`
	rec, err := scanPoolRecord(DB.QueryRow(query, poolID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("pool %s not found", poolID)
		}
		return nil, fmt.Errorf("failed to query pool: %w", err)
	}
	return rec, nil
}

// ListPoolRecords loads the persisted snapshots of every pool.
func ListPoolRecords() ([]types.PoolRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pool_id, owner_address, deposit_denom, reward_denom,
			start_time, end_time,
			total_rewards_deposited, remaining_rewards, acc_reward_per_share,
			total_staked, last_accrual_time, emergency_closed, status
		FROM pools
		ORDER BY start_time DESC
	`
	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var records []types.PoolRecord
	for rows.Next() {
		rec, err := scanPoolRecord(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan pool row")
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPoolRecord(row rowScanner) (*types.PoolRecord, error) {
	var rec types.PoolRecord
	var totalDeposited, remaining, accPerShare, totalStaked, status string

	err := row.Scan(
		&rec.ID, &rec.Owner, &rec.DepositDenom, &rec.RewardDenom,
		&rec.StartTime, &rec.EndTime,
		&totalDeposited, &remaining, &accPerShare,
		&totalStaked, &rec.LastAccrualTime, &rec.EmergencyClosed, &status,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = types.PoolStatus(status)
	if rec.TotalRewardsDeposited, err = parseInt(totalDeposited); err != nil {
		return nil, err
	}
	if rec.RemainingRewards, err = parseInt(remaining); err != nil {
		return nil, err
	}
	if rec.AccRewardPerShare, err = parseInt(accPerShare); err != nil {
		return nil, err
	}
	if rec.TotalStaked, err = parseInt(totalStaked); err != nil {
		return nil, err
	}
	return &rec, nil
}

// parseInt converts a NUMERIC column value back into an sdkmath.Int.
func parseInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid integer amount in database: %q", s)
	}
	return v, nil
}
