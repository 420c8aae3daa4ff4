package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/models"
	"github.com/coinbot-dev/coinbot/internal/repository"
)

// Store is the pgx-backed Ledger. Every mutation runs in a single
// database transaction with row-level locks, so the balance change and
// its transaction-log record commit or roll back as one unit.
type Store struct {
	pool    *pgxpool.Pool
	formula leveling.Formula
}

var _ repository.Ledger = (*Store)(nil)

func New(pool *pgxpool.Pool, formula leveling.Formula) *Store {
	return &Store{pool: pool, formula: formula}
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ensure creates the account row if it does not exist yet. ON CONFLICT
// makes concurrent first access idempotent.
func ensure(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO accounts(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	return err
}

// lockAccount takes a row lock and returns the current balance.
func lockAccount(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var coins int64
	err := tx.QueryRow(ctx,
		`SELECT coins FROM accounts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&coins)
	return coins, err
}

// record appends the audit entry inside the caller's transaction.
func record(ctx context.Context, tx pgx.Tx, from, to *int64, amount int64, kind models.TransactionKind, desc string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions(id, from_user_id, to_user_id, amount, kind, description)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), from, to, amount, kind, desc)
	if err == nil {
		metrics.TransactionsTotal.WithLabelValues(string(kind)).Inc()
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, userID int64) (models.Account, error) {
	var a models.Account
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		return scanAccount(tx.QueryRow(ctx, selectAccount+` WHERE user_id=$1`, userID), &a)
	})
	return a, err
}

func (s *Store) Credit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("credit amount must be > 0")
	}
	var balance int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`UPDATE accounts SET coins = coins + $2, updated_at = now()
			  WHERE user_id = $1 RETURNING coins`,
			userID, amount).Scan(&balance); err != nil {
			return err
		}
		return record(ctx, tx, nil, &userID, amount, kind, description)
	})
	return balance, err
}

func (s *Store) Debit(ctx context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("debit amount must be > 0")
	}
	var balance int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		// Conditional update: the balance check and the decrement are one
		// statement, so concurrent debits can never overdraw.
		err := tx.QueryRow(ctx,
			`UPDATE accounts SET coins = coins - $2, updated_at = now()
			  WHERE user_id = $1 AND coins >= $2 RETURNING coins`,
			userID, amount).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		return record(ctx, tx, &userID, nil, -amount, kind, description)
	})
	return balance, err
}

func (s *Store) Transfer(ctx context.Context, fromID, toID, amount int64, description string) error {
	if amount <= 0 {
		return errors.New("transfer amount must be > 0")
	}
	if fromID == toID {
		return errors.New("transfer endpoints must differ")
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, fromID); err != nil {
			return err
		}
		if err := ensure(ctx, tx, toID); err != nil {
			return err
		}
		// Lock in ascending user-id order so crossing transfers cannot
		// deadlock.
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		if _, err := lockAccount(ctx, tx, first); err != nil {
			return err
		}
		if _, err := lockAccount(ctx, tx, second); err != nil {
			return err
		}
		var fromCoins int64
		if err := tx.QueryRow(ctx, `SELECT coins FROM accounts WHERE user_id=$1`, fromID).Scan(&fromCoins); err != nil {
			return err
		}
		if fromCoins < amount {
			return repository.ErrInsufficientFunds
		}
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET coins = coins - $2, updated_at = now() WHERE user_id = $1`,
			fromID, amount); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET coins = coins + $2, updated_at = now() WHERE user_id = $1`,
			toID, amount); err != nil {
			return err
		}
		return record(ctx, tx, &fromID, &toID, amount, models.KindPeerTransfer, description)
	})
}

func (s *Store) SetBalance(ctx context.Context, userID, amount int64) (int64, error) {
	var delta int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		old, err := lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET coins = $2, updated_at = now() WHERE user_id = $1`,
			userID, amount); err != nil {
			return err
		}
		delta = amount - old
		desc := descSetBalance(old, amount)
		if delta >= 0 {
			return record(ctx, tx, nil, &userID, delta, models.KindAdminSet, desc)
		}
		return record(ctx, tx, &userID, nil, delta, models.KindAdminSet, desc)
	})
	return delta, err
}

func (s *Store) AddXP(ctx context.Context, userID, amount int64, cooldown time.Duration) (models.XPGrant, error) {
	if amount <= 0 {
		return models.XPGrant{}, errors.New("xp amount must be > 0")
	}
	var res models.XPGrant
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		var (
			xp    int64
			level int
			last  *time.Time
		)
		if err := tx.QueryRow(ctx,
			`SELECT xp, level, last_xp_gain FROM accounts WHERE user_id=$1 FOR UPDATE`,
			userID).Scan(&xp, &level, &last); err != nil {
			return err
		}
		now := time.Now().UTC()
		res = models.XPGrant{OldXP: xp, NewXP: xp, OldLevel: level, NewLevel: level}
		if last != nil && now.Sub(*last) < cooldown {
			return nil
		}
		res.OldLevel = s.formula.LevelForXP(xp)
		res.NewXP = xp + amount
		res.NewLevel = s.formula.LevelForXP(res.NewXP)
		res.Granted = true
		_, err := tx.Exec(ctx,
			`UPDATE accounts
			    SET xp = $2, level = $3, total_messages = total_messages + 1,
			        last_xp_gain = $4, updated_at = now()
			  WHERE user_id = $1`,
			userID, res.NewXP, res.NewLevel, now)
		return err
	})
	if err != nil {
		return models.XPGrant{}, err
	}
	return res, nil
}

func (s *Store) SetLevel(ctx context.Context, userID int64, level int) (models.Account, error) {
	if level < 1 {
		return models.Account{}, errors.New("level must be >= 1")
	}
	var a models.Account
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensure(ctx, tx, userID); err != nil {
			return err
		}
		return scanAccount(tx.QueryRow(ctx,
			`UPDATE accounts SET level = $2, xp = $3, updated_at = now()
			  WHERE user_id = $1
			  RETURNING user_id, coins, xp, level, total_messages, last_xp_gain, created_at, updated_at`,
			userID, level, s.formula.XPForLevel(level)), &a)
	})
	return a, err
}

func (s *Store) CanGainXP(ctx context.Context, userID int64, cooldown time.Duration) (bool, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_xp_gain FROM accounts WHERE user_id=$1`, userID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return last == nil || time.Since(*last) >= cooldown, nil
}

func descSetBalance(old, amount int64) string {
	return fmt.Sprintf("Balance set from %d to %d", old, amount)
}
