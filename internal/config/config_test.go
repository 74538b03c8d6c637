package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("FEE_COLLECTOR_ADDRESS", "collector")
	t.Setenv("RECOVERY_ADDRESS", "recovery")
	t.Setenv("DEFAULT_FEE_BPS", "100")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	require.NoError(t, LoadConfig())
	assert.Equal(t, "collector", FeeCollectorAddress)
	assert.Equal(t, "recovery", RecoveryAddress)
	assert.Equal(t, uint64(100), DefaultFeeBps)
}

func TestLoadConfigInvalidFee(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_FEE_BPS", "not-a-number")

	require.Error(t, LoadConfig())
}

func TestLoadConfigRejectsSharedAccounts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECOVERY_ADDRESS", "collector")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}
