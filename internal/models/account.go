package models

import "time"

// Account is the per-user economy record, keyed by the Discord user ID
// (snowflake, 64-bit). Created lazily on first interaction, never deleted.
type Account struct {
	UserID        int64      `json:"user_id"`
	Coins         int64      `json:"coins"`
	XP            int64      `json:"xp"`
	Level         int        `json:"level"`
	TotalMessages int64      `json:"total_messages"`
	LastXPGain    *time.Time `json:"last_xp_gain"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// XPGrant is the result of a cooldown-gated XP grant.
type XPGrant struct {
	Granted  bool
	OldXP    int64
	NewXP    int64
	OldLevel int
	NewLevel int
}
