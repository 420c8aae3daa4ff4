package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/models"
	"github.com/coinbot-dev/coinbot/internal/repository"
)

// Store is the in-process Ledger: a single mutex serializes every
// mutation, which trivially gives the per-account atomicity the contract
// demands. With a non-empty file path the full state is persisted as a
// JSON snapshot after each mutation, so a restart picks up where it left
// off. It backs deployments without a database and the test suite.
type Store struct {
	mu      sync.Mutex
	acc     map[int64]*models.Account
	txns    []models.Transaction
	formula leveling.Formula
	path    string
	log     *slog.Logger
	now     func() time.Time
}

var _ repository.Ledger = (*Store)(nil)

func New(formula leveling.Formula, path string, log *slog.Logger) *Store {
	s := &Store{
		acc:     map[int64]*models.Account{},
		formula: formula,
		path:    path,
		log:     log,
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Error("ledger file load", "path", s.path, "err", err)
		}
		return
	}
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		s.log.Error("ledger file parse", "path", s.path, "err", err)
		return
	}
	for i := range snap.Accounts {
		a := snap.Accounts[i]
		s.acc[a.UserID] = &a
	}
	s.txns = snap.Transactions
	s.log.Info("ledger file loaded", "path", s.path, "accounts", len(s.acc))
}

// persist writes the current state to disk. Best-effort: a write failure
// is logged, the in-memory state stays authoritative.
func (s *Store) persist() {
	if s.path == "" {
		return
	}
	b, err := json.MarshalIndent(s.snapshotLocked(), "", "  ")
	if err == nil {
		err = os.WriteFile(s.path, b, 0o644)
	}
	if err != nil {
		s.log.Error("ledger file save", "path", s.path, "err", err)
	}
}

// getOrCreate must be called with the lock held.
func (s *Store) getOrCreate(userID int64) *models.Account {
	if a, ok := s.acc[userID]; ok {
		return a
	}
	now := s.now()
	a := &models.Account{UserID: userID, Level: 1, CreatedAt: now, UpdatedAt: now}
	s.acc[userID] = a
	return a
}

// record must be called with the lock held, inside the same critical
// section as the balance change it describes.
func (s *Store) record(from, to *int64, amount int64, kind models.TransactionKind, desc string) {
	s.txns = append(s.txns, models.Transaction{
		ID:          uuid.NewString(),
		FromUserID:  from,
		ToUserID:    to,
		Amount:      amount,
		Kind:        kind,
		Description: desc,
		CreatedAt:   s.now(),
	})
	metrics.TransactionsTotal.WithLabelValues(string(kind)).Inc()
}

func (s *Store) GetAccount(_ context.Context, userID int64) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	return *a, nil
}

func (s *Store) Credit(_ context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be > 0, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	a.Coins += amount
	a.UpdatedAt = s.now()
	s.record(nil, &userID, amount, kind, description)
	s.persist()
	return a.Coins, nil
}

func (s *Store) Debit(_ context.Context, userID, amount int64, kind models.TransactionKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be > 0, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	if a.Coins < amount {
		return a.Coins, repository.ErrInsufficientFunds
	}
	a.Coins -= amount
	a.UpdatedAt = s.now()
	s.record(&userID, nil, -amount, kind, description)
	s.persist()
	return a.Coins, nil
}

func (s *Store) Transfer(_ context.Context, fromID, toID, amount int64, description string) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be > 0, got %d", amount)
	}
	if fromID == toID {
		return fmt.Errorf("transfer endpoints must differ")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.getOrCreate(fromID)
	to := s.getOrCreate(toID)
	if from.Coins < amount {
		return repository.ErrInsufficientFunds
	}
	now := s.now()
	from.Coins -= amount
	to.Coins += amount
	from.UpdatedAt = now
	to.UpdatedAt = now
	s.record(&fromID, &toID, amount, models.KindPeerTransfer, description)
	s.persist()
	return nil
}

func (s *Store) SetBalance(_ context.Context, userID, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	old := a.Coins
	a.Coins = amount
	a.UpdatedAt = s.now()
	delta := amount - old
	desc := fmt.Sprintf("Balance set from %d to %d", old, amount)
	if delta >= 0 {
		s.record(nil, &userID, delta, models.KindAdminSet, desc)
	} else {
		s.record(&userID, nil, delta, models.KindAdminSet, desc)
	}
	s.persist()
	return delta, nil
}

func (s *Store) AddXP(_ context.Context, userID, amount int64, cooldown time.Duration) (models.XPGrant, error) {
	if amount <= 0 {
		return models.XPGrant{}, fmt.Errorf("xp amount must be > 0, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	now := s.now()
	res := models.XPGrant{OldXP: a.XP, NewXP: a.XP, OldLevel: a.Level, NewLevel: a.Level}
	if a.LastXPGain != nil && now.Sub(*a.LastXPGain) < cooldown {
		return res, nil
	}
	res.OldLevel = s.formula.LevelForXP(a.XP)
	a.XP += amount
	a.TotalMessages++
	a.LastXPGain = &now
	a.Level = s.formula.LevelForXP(a.XP)
	a.UpdatedAt = now
	res.Granted = true
	res.NewXP = a.XP
	res.NewLevel = a.Level
	s.persist()
	return res, nil
}

func (s *Store) SetLevel(_ context.Context, userID int64, level int) (models.Account, error) {
	if level < 1 {
		return models.Account{}, fmt.Errorf("level must be >= 1, got %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getOrCreate(userID)
	a.Level = level
	a.XP = s.formula.XPForLevel(level)
	a.UpdatedAt = s.now()
	s.persist()
	return *a, nil
}

func (s *Store) CanGainXP(_ context.Context, userID int64, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.acc[userID]
	if !ok || a.LastXPGain == nil {
		return true, nil
	}
	return s.now().Sub(*a.LastXPGain) >= cooldown, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int, sortBy models.LeaderboardSort) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LeaderboardEntry, 0, len(s.acc))
	for _, a := range s.acc {
		out = append(out, models.LeaderboardEntry{
			UserID:        a.UserID,
			Coins:         a.Coins,
			Level:         a.Level,
			XP:            a.XP,
			TotalMessages: a.TotalMessages,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sortBy == models.SortByLevel {
			if a.Level != b.Level {
				return a.Level > b.Level
			}
			if a.XP != b.XP {
				return a.XP > b.XP
			}
		} else if a.Coins != b.Coins {
			return a.Coins > b.Coins
		}
		// user id ascending keeps identical-state calls deterministic
		return a.UserID < b.UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Transaction
	for i := len(s.txns) - 1; i >= 0; i-- {
		t := s.txns[i]
		if (t.FromUserID != nil && *t.FromUserID == userID) || (t.ToUserID != nil && *t.ToUserID == userID) {
			matched = append(matched, t)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) UserCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.acc)), nil
}

func (s *Store) Snapshot(_ context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

func (s *Store) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Timestamp:    s.now(),
		Accounts:     make([]models.Account, 0, len(s.acc)),
		Transactions: append([]models.Transaction(nil), s.txns...),
	}
	for _, a := range s.acc {
		snap.Accounts = append(snap.Accounts, *a)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].UserID < snap.Accounts[j].UserID })
	return snap
}
