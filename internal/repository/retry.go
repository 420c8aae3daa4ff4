package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coinbot-dev/coinbot/internal/models"
)

const maxAttempts = 3

// WithRetry wraps a Ledger so every operation is retried with bounded
// exponential backoff on storage faults. Domain outcomes (insufficient
// funds) and context cancellation are permanent and never retried. Every
// underlying mutation is a single all-or-nothing unit, so re-running a
// failed call cannot apply a partial effect twice.
func WithRetry(l Ledger) Ledger { return &retryLedger{next: l} }

type retryLedger struct{ next Ledger }

func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
	), maxAttempts-1), ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := fn()
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, bo)
}

func permanent(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *retryLedger) GetAccount(ctx context.Context, userID int64) (models.Account, error) {
	return run(ctx, func() (models.Account, error) { return r.next.GetAccount(ctx, userID) })
}

func (r *retryLedger) Credit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	return run(ctx, func() (int64, error) { return r.next.Credit(ctx, userID, amount, kind, description) })
}

func (r *retryLedger) Debit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	return run(ctx, func() (int64, error) { return r.next.Debit(ctx, userID, amount, kind, description) })
}

func (r *retryLedger) Transfer(ctx context.Context, fromID, toID, amount int64, description string) error {
	_, err := run(ctx, func() (struct{}, error) { return struct{}{}, r.next.Transfer(ctx, fromID, toID, amount, description) })
	return err
}

func (r *retryLedger) SetBalance(ctx context.Context, userID, amount int64) (int64, error) {
	return run(ctx, func() (int64, error) { return r.next.SetBalance(ctx, userID, amount) })
}

func (r *retryLedger) AddXP(ctx context.Context, userID, amount int64, cooldown time.Duration) (models.XPGrant, error) {
	return run(ctx, func() (models.XPGrant, error) { return r.next.AddXP(ctx, userID, amount, cooldown) })
}

func (r *retryLedger) SetLevel(ctx context.Context, userID int64, level int) (models.Account, error) {
	return run(ctx, func() (models.Account, error) { return r.next.SetLevel(ctx, userID, level) })
}

func (r *retryLedger) CanGainXP(ctx context.Context, userID int64, cooldown time.Duration) (bool, error) {
	return run(ctx, func() (bool, error) { return r.next.CanGainXP(ctx, userID, cooldown) })
}

func (r *retryLedger) Leaderboard(ctx context.Context, limit int, sortBy models.LeaderboardSort) ([]models.LeaderboardEntry, error) {
	return run(ctx, func() ([]models.LeaderboardEntry, error) { return r.next.Leaderboard(ctx, limit, sortBy) })
}

func (r *retryLedger) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	return run(ctx, func() ([]models.Transaction, error) { return r.next.ListTransactions(ctx, userID, limit, offset) })
}

func (r *retryLedger) UserCount(ctx context.Context) (int64, error) {
	return run(ctx, func() (int64, error) { return r.next.UserCount(ctx) })
}

func (r *retryLedger) Snapshot(ctx context.Context) (models.Snapshot, error) {
	return run(ctx, func() (models.Snapshot, error) { return r.next.Snapshot(ctx) })
}
