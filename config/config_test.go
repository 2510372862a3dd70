package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GUILD_ID", "guild-1")
	t.Setenv("BOT_ID", "bot-1")
	t.Setenv("PRIMARY_CHANNEL_ID", "chan-1")
	t.Setenv("WALLET_CLI_PASSWORD", "hunter2")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.CycleInterval)
	assert.Equal(t, 2*time.Second, cfg.CommandDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.SessionSettle)
	assert.Equal(t, "accounts.json", cfg.AccountsFile)
	assert.Equal(t, "key_store.json", cfg.KeyStoreFile)
	assert.Equal(t, "https://queens.soundness.network", cfg.GameBaseURL)
	assert.False(t, cfg.HasFallbackChannel())
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CYCLE_INTERVAL_MS", "60000")
	t.Setenv("FALLBACK_CHANNEL_ID", "chan-2")
	t.Setenv("GAME_BASE_URL", "https://staging.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CycleInterval)
	assert.True(t, cfg.HasFallbackChannel())
	assert.Equal(t, "chan-2", cfg.FallbackChannelID)
	assert.Equal(t, "https://staging.example.com", cfg.GameBaseURL, "trailing slash must be trimmed")
}

func TestLoadParsesRoleLists(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REQUIRED_ROLE_IDS", "1, 2 ,3,")
	t.Setenv("SPECIAL_ROLE_IDS", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, cfg.RequiredRoleIDs)
	assert.Equal(t, []string{"9"}, cfg.SpecialRoleIDs)
}

func TestLoadRejectsMissingDiscordIDs(t *testing.T) {
	t.Setenv("GUILD_ID", "")
	t.Setenv("BOT_ID", "")
	t.Setenv("PRIMARY_CHANNEL_ID", "")
	t.Setenv("WALLET_CLI_PASSWORD", "hunter2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required environment variables")
}

func TestLoadRejectsMissingWalletPassword(t *testing.T) {
	t.Setenv("GUILD_ID", "guild-1")
	t.Setenv("BOT_ID", "bot-1")
	t.Setenv("PRIMARY_CHANNEL_ID", "chan-1")
	t.Setenv("WALLET_CLI_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_CLI_PASSWORD")
}

func TestSplitIDList(t *testing.T) {
	assert.Nil(t, splitIDList(""))
	assert.Equal(t, []string{"a"}, splitIDList("a"))
	assert.Equal(t, []string{"a", "b"}, splitIDList(" a , b "))
}
