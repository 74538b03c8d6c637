// ./internal/state/journal.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/farmd/internal/types"
)

// Journal is the append-only persistence sink for pool events. It
// implements the pool engine's Sink interface; insert failures are logged
// and never propagated back into the engine, the audit trail is
// best-effort relative to the in-memory ledger.
type Journal struct{}

// NewJournal creates a journal backed by the global database connection.
func NewJournal() *Journal {
	return &Journal{}
}

// Emit appends one pool event row.
func (j *Journal) Emit(ev types.PoolEvent) {
	if err := AppendPoolEvent(ev); err != nil {
		log.Error().Err(err).
			Str("pool_id", ev.PoolID).
			Str("type", string(ev.Type)).
			Msg("Failed to persist pool event")
	}
}

// AppendPoolEvent inserts a pool event into the journal.
func AppendPoolEvent(ev types.PoolEvent) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO pool_events (
			pool_id, event_type, actor, counterparty,
			amount, fee, reward_paid,
			total_staked, remaining_rewards, acc_reward_per_share,
			start_time, end_time, event_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := DB.Exec(stmt,
		ev.PoolID, string(ev.Type), ev.Actor, ev.Counterparty,
		ev.Amount.String(), ev.Fee.String(), ev.RewardPaid.String(),
		ev.TotalStaked.String(), ev.RemainingRewards.String(), ev.AccRewardPerShare.String(),
		ev.StartTime, ev.EndTime, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool event: %w", err)
	}
	return nil
}

// GetPoolEvents retrieves the most recent events for a pool, newest first.
func GetPoolEvents(poolID string, limit int) ([]types.PoolEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT event_id, pool_id, event_type, actor, counterparty,
			amount, fee, reward_paid,
			total_staked, remaining_rewards, acc_reward_per_share,
			start_time, end_time, event_timestamp
		FROM pool_events
		WHERE pool_id = $1
		ORDER BY event_id DESC
		LIMIT $2
	`
	rows, err := DB.Query(query, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool events: %w", err)
	}
	defer rows.Close()

	var events []types.PoolEvent
	for rows.Next() {
		var ev types.PoolEvent
		var typ string
		var amount, fee, rewardPaid, totalStaked, remaining, accPerShare string

		err := rows.Scan(
			&ev.EventID, &ev.PoolID, &typ, &ev.Actor, &ev.Counterparty,
			&amount, &fee, &rewardPaid,
			&totalStaked, &remaining, &accPerShare,
			&ev.StartTime, &ev.EndTime, &ev.Timestamp,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan pool event row")
			continue
		}

		ev.Type = types.PoolEventType(typ)
		if ev.Amount, err = parseInt(amount); err != nil {
			return nil, err
		}
		if ev.Fee, err = parseInt(fee); err != nil {
			return nil, err
		}
		if ev.RewardPaid, err = parseInt(rewardPaid); err != nil {
			return nil, err
		}
		if ev.TotalStaked, err = parseInt(totalStaked); err != nil {
			return nil, err
		}
		if ev.RemainingRewards, err = parseInt(remaining); err != nil {
			return nil, err
		}
		if ev.AccRewardPerShare, err = parseInt(accPerShare); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return events, nil
}
