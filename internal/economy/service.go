package economy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/coinbot-dev/coinbot/internal/config"
	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/models"
	"github.com/coinbot-dev/coinbot/internal/repository"
)

// Actor is the invoking user as the platform adapter sees them. Admin is
// the platform's authorization predicate, already evaluated.
type Actor struct {
	ID    int64
	Admin bool
}

// Service orchestrates the economy commands on top of the ledger and the
// leveling formulas. It owns request validation and the error taxonomy;
// atomicity lives in the store.
type Service struct {
	store   repository.Ledger
	formula leveling.Formula
	cfg     config.Config
	log     *slog.Logger
}

func NewService(store repository.Ledger, formula leveling.Formula, cfg config.Config, log *slog.Logger) *Service {
	return &Service{store: store, formula: formula, cfg: cfg, log: log}
}

// Stats assembles the balance-command view for a user.
func (s *Service) Stats(ctx context.Context, userID int64) (models.UserStats, error) {
	a, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	levelStart := s.formula.XPForLevel(a.Level)
	nextStart := s.formula.XPForLevel(a.Level + 1)
	span := nextStart - levelStart
	progress := a.XP - levelStart
	return models.UserStats{
		Coins:              a.Coins,
		XP:                 a.XP,
		Level:              a.Level,
		XPProgress:         progress,
		XPNeeded:           nextStart - a.XP,
		XPForNextLevel:     span,
		TotalMessages:      a.TotalMessages,
		ProgressPercentage: float64(progress) / float64(span) * 100,
	}, nil
}

// Leaderboard returns the top accounts. An empty slice with a nil error
// means "no data yet", distinct from a storage failure.
func (s *Service) Leaderboard(ctx context.Context, sortBy models.LeaderboardSort) ([]models.LeaderboardEntry, error) {
	if sortBy != models.SortByLevel {
		sortBy = models.SortByCoins
	}
	return s.store.Leaderboard(ctx, s.cfg.LeaderboardMaxEntries, sortBy)
}

func (s *Service) UserCount(ctx context.Context) (int64, error) {
	return s.store.UserCount(ctx)
}

// PayReceipt reports both post-transfer balances for rendering.
type PayReceipt struct {
	SenderBalance   int64
	ReceiverBalance int64
}

// Pay moves coins between two users. Validation failures, insufficient
// funds and storage faults surface as distinct errors.
func (s *Service) Pay(ctx context.Context, sender Actor, receiverID int64, receiverIsBot bool, amount int64) (PayReceipt, error) {
	if sender.ID == receiverID {
		return PayReceipt{}, validationErr(ReasonSelfPayment, "you cannot send coins to yourself")
	}
	if receiverIsBot {
		return PayReceipt{}, validationErr(ReasonBotTarget, "you cannot send coins to bots")
	}
	if amount < s.cfg.MinTransaction {
		return PayReceipt{}, validationErr(ReasonBelowMinimum, "minimum transaction amount is %d coins", s.cfg.MinTransaction)
	}

	desc := fmt.Sprintf("Payment from user %d to user %d", sender.ID, receiverID)
	err := s.store.Transfer(ctx, sender.ID, receiverID, amount, desc)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		a, gerr := s.store.GetAccount(ctx, sender.ID)
		if gerr != nil {
			a.Coins = 0
		}
		return PayReceipt{}, &InsufficientFundsError{UserID: sender.ID, Balance: a.Coins, Needed: amount}
	}
	if err != nil {
		metrics.TransactionsFailed.Inc()
		return PayReceipt{}, err
	}

	var rcpt PayReceipt
	if a, err := s.store.GetAccount(ctx, sender.ID); err == nil {
		rcpt.SenderBalance = a.Coins
	}
	if a, err := s.store.GetAccount(ctx, receiverID); err == nil {
		rcpt.ReceiverBalance = a.Coins
	}
	return rcpt, nil
}

// BalanceChange reports an administrative balance mutation.
type BalanceChange struct {
	OldBalance int64
	NewBalance int64
}

// Grant credits coins to a user. Admin only.
func (s *Service) Grant(ctx context.Context, actor Actor, targetID, amount int64) (BalanceChange, error) {
	if !actor.Admin {
		return BalanceChange{}, ErrUnauthorized
	}
	if amount <= 0 {
		return BalanceChange{}, validationErr(ReasonInvalidAmount, "amount must be positive")
	}
	old, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		return BalanceChange{}, err
	}
	desc := fmt.Sprintf("Admin %d gave %d coins", actor.ID, amount)
	bal, err := s.store.Credit(ctx, targetID, amount, models.KindAdminGrant, desc)
	if err != nil {
		metrics.TransactionsFailed.Inc()
		return BalanceChange{}, err
	}
	s.log.Info("admin grant", "admin_id", actor.ID, "user_id", targetID, "amount", amount)
	return BalanceChange{OldBalance: old.Coins, NewBalance: bal}, nil
}

// Revoke debits coins from a user. Admin only; insufficient funds is a
// distinct outcome, not a validation failure.
func (s *Service) Revoke(ctx context.Context, actor Actor, targetID, amount int64) (BalanceChange, error) {
	if !actor.Admin {
		return BalanceChange{}, ErrUnauthorized
	}
	if amount <= 0 {
		return BalanceChange{}, validationErr(ReasonInvalidAmount, "amount must be positive")
	}
	old, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		return BalanceChange{}, err
	}
	desc := fmt.Sprintf("Admin %d removed %d coins", actor.ID, amount)
	bal, err := s.store.Debit(ctx, targetID, amount, models.KindAdminRevoke, desc)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return BalanceChange{}, &InsufficientFundsError{UserID: targetID, Balance: old.Coins, Needed: amount}
	}
	if err != nil {
		metrics.TransactionsFailed.Inc()
		return BalanceChange{}, err
	}
	s.log.Info("admin revoke", "admin_id", actor.ID, "user_id", targetID, "amount", amount)
	return BalanceChange{OldBalance: old.Coins, NewBalance: bal}, nil
}

// SetBalance forces an absolute balance. Admin only.
func (s *Service) SetBalance(ctx context.Context, actor Actor, targetID, amount int64) (int64, error) {
	if !actor.Admin {
		return 0, ErrUnauthorized
	}
	if amount < 0 {
		return 0, validationErr(ReasonInvalidAmount, "balance cannot be negative")
	}
	delta, err := s.store.SetBalance(ctx, targetID, amount)
	if err != nil {
		metrics.TransactionsFailed.Inc()
		return 0, err
	}
	s.log.Info("admin set balance", "admin_id", actor.ID, "user_id", targetID, "amount", amount, "delta", delta)
	return delta, nil
}

// LevelChange reports an administrative level override.
type LevelChange struct {
	OldLevel int
	NewLevel int
	XPSet    int64
}

// SetLevel overrides a user's level and forces xp to the level's exact
// requirement, keeping the derived-field invariant intact. Admin only.
func (s *Service) SetLevel(ctx context.Context, actor Actor, targetID int64, level int) (LevelChange, error) {
	if !actor.Admin {
		return LevelChange{}, ErrUnauthorized
	}
	if level < 1 {
		return LevelChange{}, validationErr(ReasonInvalidLevel, "level must be at least 1")
	}
	old, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		return LevelChange{}, err
	}
	a, err := s.store.SetLevel(ctx, targetID, level)
	if err != nil {
		return LevelChange{}, err
	}
	s.log.Info("admin set level", "admin_id", actor.ID, "user_id", targetID, "level", level)
	return LevelChange{OldLevel: old.Level, NewLevel: a.Level, XPSet: a.XP}, nil
}

// RoleReward credits the configured payout for each newly gained role and
// returns the total plus the role names that paid out. Every (re-)addition
// pays again; only the transaction log remembers past payouts.
func (s *Service) RoleReward(ctx context.Context, userID int64, roleNames []string) (int64, []string, error) {
	var total int64
	var rewarded []string
	for _, name := range roleNames {
		reward, ok := s.cfg.RoleRewards[name]
		if !ok {
			reward = s.cfg.DefaultRoleReward
		}
		if reward <= 0 {
			continue
		}
		desc := fmt.Sprintf("Role reward for %s", name)
		if _, err := s.store.Credit(ctx, userID, reward, models.KindRoleReward, desc); err != nil {
			return total, rewarded, err
		}
		total += reward
		rewarded = append(rewarded, name)
	}
	return total, rewarded, nil
}

// Backup exports the full ledger state to a timestamped JSON file and
// returns its name. Admin only. Failure is reported to the caller, never
// fatal to the process.
func (s *Service) Backup(ctx context.Context, actor Actor) (string, error) {
	if !actor.Admin {
		return "", ErrUnauthorized
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	s.log.Info("backup created", "file", name, "accounts", len(snap.Accounts))
	return name, nil
}
