package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// FeeCollectorAddress receives the protocol fee taken from reward top-ups.
	FeeCollectorAddress string
	// RecoveryAddress receives swept budgets on emergency close. It is a
	// protocol-level safety net distinct from any pool owner and from the
	// fee collector.
	RecoveryAddress string
	// DefaultFeeBps is the reward top-up fee applied to pools that do not
	// specify one, in basis points.
	DefaultFeeBps uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	FeeCollectorAddress, err = getEnv("FEE_COLLECTOR_ADDRESS")
	if err != nil {
		return err
	}

	RecoveryAddress, err = getEnv("RECOVERY_ADDRESS")
	if err != nil {
		return err
	}

	DefaultFeeBps, err = getEnvAsUint64("DEFAULT_FEE_BPS")
	if err != nil {
		return err
	}

	if FeeCollectorAddress == RecoveryAddress {
		return errors.New("FEE_COLLECTOR_ADDRESS and RECOVERY_ADDRESS must be distinct accounts")
	}

	log.Debug().
		Str("FeeCollectorAddress", FeeCollectorAddress).
		Str("RecoveryAddress", RecoveryAddress).
		Uint64("DefaultFeeBps", DefaultFeeBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
