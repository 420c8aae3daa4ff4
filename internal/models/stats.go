package models

import "time"

type LeaderboardSort string

const (
	SortByCoins LeaderboardSort = "coins"
	SortByLevel LeaderboardSort = "level"
)

type LeaderboardEntry struct {
	UserID        int64 `json:"user_id"`
	Coins         int64 `json:"coins"`
	Level         int   `json:"level"`
	XP            int64 `json:"xp"`
	TotalMessages int64 `json:"total_messages"`
}

// UserStats is the balance-command view: the account plus the leveling
// derivations around it.
type UserStats struct {
	Coins              int64   `json:"coins"`
	XP                 int64   `json:"xp"`
	Level              int     `json:"level"`
	XPProgress         int64   `json:"xp_progress"`
	XPNeeded           int64   `json:"xp_needed"`
	XPForNextLevel     int64   `json:"xp_for_next_level"`
	TotalMessages      int64   `json:"total_messages"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// Snapshot is the full-state export used for backups.
type Snapshot struct {
	Timestamp    time.Time     `json:"timestamp"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}
