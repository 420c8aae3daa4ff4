package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DiscordToken string

	// Empty DatabaseURL selects the in-memory store (optionally persisted
	// to LedgerFile as JSON).
	DatabaseURL string
	LedgerFile  string

	JWTSecret         string
	AdminPasswordHash string

	// XP system
	BaseXPPerMessage int
	MaxLengthBonus   int
	RandomXPBonus    int
	XPCooldown       time.Duration
	XPPerLevelBase   int64

	// Currency
	BaseCoinsPerLevel int64
	MinTransaction    int64

	// Leaderboard
	LeaderboardMaxEntries int

	// Role rewards: role name -> coins, with a fallback for unlisted roles.
	RoleRewards       map[string]int64
	DefaultRoleReward int64
}

func Load() Config {
	cfg := Config{
		Env:          get("APP_ENV", "dev"),
		HTTPPort:     get("HTTP_PORT", "8080"),
		DiscordToken: get("DISCORD_TOKEN", ""),
		DatabaseURL:  get("DATABASE_URL", ""),
		LedgerFile:   get("LEDGER_FILE", ""),

		JWTSecret:         get("JWT_SECRET", "changeme-secret"),
		AdminPasswordHash: get("ADMIN_PASSWORD_HASH", ""),

		BaseXPPerMessage: getInt("BASE_XP_PER_MESSAGE", 15),
		MaxLengthBonus:   getInt("MAX_LENGTH_BONUS", 10),
		RandomXPBonus:    getInt("RANDOM_XP_BONUS", 5),
		XPCooldown:       time.Duration(getInt("XP_COOLDOWN_SECONDS", 60)) * time.Second,
		XPPerLevelBase:   getInt64("XP_PER_LEVEL_BASE", 100),

		BaseCoinsPerLevel: getInt64("BASE_COINS_PER_LEVEL", 50),
		MinTransaction:    getInt64("MIN_TRANSACTION_AMOUNT", 1),

		LeaderboardMaxEntries: getInt("LEADERBOARD_MAX_ENTRIES", 10),

		RoleRewards:       parseRoleRewards(get("ROLE_REWARDS", defaultRoleRewards)),
		DefaultRoleReward: getInt64("DEFAULT_ROLE_REWARD", 25),
	}
	return cfg
}

const defaultRoleRewards = "VIP:100,Supporter:75,Active Member:50,Member:25,Verified:10"

// parseRoleRewards reads "Name:amount,Name:amount". Malformed entries are
// skipped rather than failing startup.
func parseRoleRewards(s string) map[string]int64 {
	out := map[string]int64{}
	for _, pair := range strings.Split(s, ",") {
		i := strings.LastIndex(pair, ":")
		if i <= 0 {
			continue
		}
		name := strings.TrimSpace(pair[:i])
		amount, err := strconv.ParseInt(strings.TrimSpace(pair[i+1:]), 10, 64)
		if err != nil || name == "" {
			continue
		}
		out[name] = amount
	}
	return out
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
