package repository

import (
	"context"
	"errors"
	"time"

	"github.com/coinbot-dev/coinbot/internal/models"
)

// ErrInsufficientFunds is returned by Debit and Transfer when the source
// account cannot cover the amount. The store guarantees no mutation
// happened in that case.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the durable economy store. Implementations must serialize
// mutations per account (no lost updates) and must write exactly one
// transaction record in the same atomic unit as every balance change.
type Ledger interface {
	// GetAccount returns the account, creating it with zeroed defaults on
	// first access. Concurrent first access for the same user yields
	// exactly one account.
	GetAccount(ctx context.Context, userID int64) (models.Account, error)

	// Credit adds amount (> 0) to the balance and logs a system credit.
	// Returns the new balance.
	Credit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error)

	// Debit removes amount (> 0) if the balance covers it and logs a
	// system debit. Returns ErrInsufficientFunds without mutation
	// otherwise. Check-and-decrement is atomic per account.
	Debit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error)

	// Transfer moves amount between two distinct users as one atomic
	// unit, auto-creating the receiver. No partial transfer is ever
	// observable.
	Transfer(ctx context.Context, fromID, toID, amount int64, description string) error

	// SetBalance forces the balance to amount and logs the signed delta.
	SetBalance(ctx context.Context, userID, amount int64) (int64, error)

	// AddXP grants amount XP unless the cooldown window since the last
	// grant is still open; the cooldown recheck, the XP/message-count
	// increment and the level re-derivation all commit atomically.
	AddXP(ctx context.Context, userID, amount int64, cooldown time.Duration) (models.XPGrant, error)

	// SetLevel is the administrative override: sets level and forces
	// xp to the exact requirement for that level.
	SetLevel(ctx context.Context, userID int64, level int) (models.Account, error)

	// CanGainXP reports whether the cooldown window has elapsed. Pure read.
	CanGainXP(ctx context.Context, userID int64, cooldown time.Duration) (bool, error)

	Leaderboard(ctx context.Context, limit int, sortBy models.LeaderboardSort) ([]models.LeaderboardEntry, error)
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error)
	UserCount(ctx context.Context) (int64, error)

	// Snapshot exports all accounts and transactions. Fails with an
	// explicit error rather than returning partial data.
	Snapshot(ctx context.Context) (models.Snapshot, error)
}
