// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Amounts are stored as NUMERIC(78, 0): wide enough for any 256-bit
	// integer without precision loss.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pools (
			pool_id TEXT PRIMARY KEY,
			owner_address TEXT NOT NULL,
			deposit_denom TEXT NOT NULL,
			reward_denom TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			total_rewards_deposited NUMERIC(78, 0) NOT NULL DEFAULT 0,
			remaining_rewards NUMERIC(78, 0) NOT NULL DEFAULT 0,
			acc_reward_per_share NUMERIC(78, 0) NOT NULL DEFAULT 0,
			total_staked NUMERIC(78, 0) NOT NULL DEFAULT 0,
			last_accrual_time BIGINT NOT NULL,
			emergency_closed BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(32) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pools_owner ON pools(owner_address);

		CREATE TABLE IF NOT EXISTS user_positions (
			pool_id TEXT NOT NULL REFERENCES pools(pool_id),
			user_address TEXT NOT NULL,
			staked NUMERIC(78, 0) NOT NULL DEFAULT 0,
			reward_debt NUMERIC(78, 0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (pool_id, user_address)
		);

		CREATE TABLE IF NOT EXISTS pool_events (
			event_id SERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL,
			event_type VARCHAR(50) NOT NULL,
			actor TEXT,
			counterparty TEXT,
			amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
			fee NUMERIC(78, 0) NOT NULL DEFAULT 0,
			reward_paid NUMERIC(78, 0) NOT NULL DEFAULT 0,
			total_staked NUMERIC(78, 0) NOT NULL DEFAULT 0,
			remaining_rewards NUMERIC(78, 0) NOT NULL DEFAULT 0,
			acc_reward_per_share NUMERIC(78, 0) NOT NULL DEFAULT 0,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pool_events_pool_id ON pool_events(pool_id);
		CREATE INDEX IF NOT EXISTS idx_pool_events_timestamp ON pool_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_events_type ON pool_events(event_type);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
