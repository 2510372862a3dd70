package config

import (
	"fmt"
	"strings"
	"time"

	"QueensProofBot/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries every tunable the automation needs. It is built once in
// main and handed by pointer to each component constructor.
type Config struct {
	// Discord settings
	GuildID           string
	BotID             string
	PrimaryChannelID  string
	FallbackChannelID string
	RequiredRoleIDs   []string
	SpecialRoleIDs    []string

	// Timing
	CycleInterval time.Duration
	CommandDelay  time.Duration
	SessionSettle time.Duration

	// Game backend
	GameBaseURL string

	// Wallet CLI
	KeyStoreFile      string
	WalletCLIPassword string

	// Persistence
	AccountsFile string
}

func Load() (*Config, error) {
	logger.Log.Info("Loading configuration...")

	if err := godotenv.Load(); err != nil {
		logger.Log.WithError(err).Debug("No .env file loaded")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("CYCLE_INTERVAL_MS", 3600000)
	v.SetDefault("COMMAND_DELAY_MS", 2000)
	v.SetDefault("SESSION_SETTLE_MS", 2500)
	v.SetDefault("ACCOUNTS_FILE", "accounts.json")
	v.SetDefault("KEY_STORE_FILE", "key_store.json")
	v.SetDefault("GAME_BASE_URL", "https://queens.soundness.network")

	cfg := &Config{
		GuildID:           v.GetString("GUILD_ID"),
		BotID:             v.GetString("BOT_ID"),
		PrimaryChannelID:  v.GetString("PRIMARY_CHANNEL_ID"),
		FallbackChannelID: v.GetString("FALLBACK_CHANNEL_ID"),
		RequiredRoleIDs:   splitIDList(v.GetString("REQUIRED_ROLE_IDS")),
		SpecialRoleIDs:    splitIDList(v.GetString("SPECIAL_ROLE_IDS")),

		CycleInterval: time.Duration(v.GetInt("CYCLE_INTERVAL_MS")) * time.Millisecond,
		CommandDelay:  time.Duration(v.GetInt("COMMAND_DELAY_MS")) * time.Millisecond,
		SessionSettle: time.Duration(v.GetInt("SESSION_SETTLE_MS")) * time.Millisecond,

		GameBaseURL: strings.TrimRight(v.GetString("GAME_BASE_URL"), "/"),

		KeyStoreFile:      v.GetString("KEY_STORE_FILE"),
		WalletCLIPassword: v.GetString("WALLET_CLI_PASSWORD"),

		AccountsFile: v.GetString("ACCOUNTS_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Log.Info("Configuration loaded successfully")
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"GUILD_ID":           c.GuildID,
		"BOT_ID":             c.BotID,
		"PRIMARY_CHANNEL_ID": c.PrimaryChannelID,
	}

	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if c.WalletCLIPassword == "" {
		return fmt.Errorf("WALLET_CLI_PASSWORD is not set; the wallet CLI cannot decrypt the secret key without it")
	}

	return nil
}

// HasFallbackChannel reports whether a secondary command channel is configured.
func (c *Config) HasFallbackChannel() bool {
	return c.FallbackChannelID != ""
}

func splitIDList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
