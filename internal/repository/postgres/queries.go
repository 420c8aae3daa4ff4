package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coinbot-dev/coinbot/internal/models"
)

const selectAccount = `SELECT user_id, coins, xp, level, total_messages, last_xp_gain, created_at, updated_at FROM accounts`

func scanAccount(row pgx.Row, a *models.Account) error {
	return row.Scan(&a.UserID, &a.Coins, &a.XP, &a.Level, &a.TotalMessages, &a.LastXPGain, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) Leaderboard(ctx context.Context, limit int, sortBy models.LeaderboardSort) ([]models.LeaderboardEntry, error) {
	order := `coins DESC, user_id ASC`
	if sortBy == models.SortByLevel {
		order = `level DESC, xp DESC, user_id ASC`
	}
	// limit 0 means unlimited
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, coins, level, xp, total_messages FROM accounts ORDER BY `+order+` LIMIT NULLIF($1, 0)`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Coins, &e.Level, &e.XP, &e.TotalMessages); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, from_user_id, to_user_id, amount, kind, description, created_at
		   FROM transactions
		  WHERE from_user_id=$1 OR to_user_id=$1
		  ORDER BY created_at DESC
		  LIMIT NULLIF($2, 0) OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UserCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n)
	return n, err
}

// Snapshot reads accounts and transactions inside one repeatable-read
// transaction so the export is internally consistent.
func (s *Store) Snapshot(ctx context.Context) (models.Snapshot, error) {
	snap := models.Snapshot{Timestamp: time.Now().UTC()}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return models.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, selectAccount+` ORDER BY user_id ASC`)
	if err != nil {
		return models.Snapshot{}, err
	}
	for rows.Next() {
		var a models.Account
		if err := scanAccount(rows, &a); err != nil {
			rows.Close()
			return models.Snapshot{}, err
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, err
	}

	rows, err = tx.Query(ctx,
		`SELECT id, from_user_id, to_user_id, amount, kind, description, created_at
		   FROM transactions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return models.Snapshot{}, err
		}
		snap.Transactions = append(snap.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, err
	}
	return snap, tx.Commit(ctx)
}
