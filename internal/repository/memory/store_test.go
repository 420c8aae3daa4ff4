package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/models"
	"github.com/coinbot-dev/coinbot/internal/repository"
)

var testFormula = leveling.Formula{XPPerLevelBase: 100, BaseCoinsPerLevel: 50}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testFormula, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Credit(ctx, 1, 100, models.KindAdminGrant, "seed"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Debit(ctx, 1, 10, models.KindPeerTransfer, "drain")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, repository.ErrInsufficientFunds) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("%d debits succeeded, want exactly 10", succeeded)
	}
	a, _ := s.GetAccount(ctx, 1)
	if a.Coins != 0 {
		t.Fatalf("final balance = %d, want 0", a.Coins)
	}
}

func TestConcurrentGetAccountCreatesOne(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetAccount(ctx, 42); err != nil {
				t.Errorf("GetAccount: %v", err)
			}
		}()
	}
	wg.Wait()

	n, _ := s.UserCount(ctx)
	if n != 1 {
		t.Fatalf("user count = %d, want 1", n)
	}
}

func TestTransferConservesCoins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 1, 80, models.KindAdminGrant, "seed")
	s.Credit(ctx, 2, 20, models.KindAdminGrant, "seed")

	if err := s.Transfer(ctx, 1, 2, 30, "payment"); err != nil {
		t.Fatal(err)
	}
	a, _ := s.GetAccount(ctx, 1)
	b, _ := s.GetAccount(ctx, 2)
	if a.Coins != 50 || b.Coins != 50 {
		t.Fatalf("balances = %d/%d, want 50/50", a.Coins, b.Coins)
	}

	txns, err := s.ListTransactions(ctx, 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// newest first
	got := txns[0]
	if got.Kind != models.KindPeerTransfer || got.Amount != 30 {
		t.Fatalf("unexpected transfer record: %+v", got)
	}
	if got.FromUserID == nil || *got.FromUserID != 1 || got.ToUserID == nil || *got.ToUserID != 2 {
		t.Fatalf("unexpected endpoints: %+v", got)
	}
}

func TestTransferInsufficientLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 1, 10, models.KindAdminGrant, "seed")

	err := s.Transfer(ctx, 1, 2, 25, "too much")
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	a, _ := s.GetAccount(ctx, 1)
	b, _ := s.GetAccount(ctx, 2)
	if a.Coins != 10 || b.Coins != 0 {
		t.Fatalf("balances mutated on failed transfer: %d/%d", a.Coins, b.Coins)
	}
	if txns, _ := s.ListTransactions(ctx, 2, 0, 0); len(txns) != 0 {
		t.Fatalf("failed transfer recorded a transaction: %+v", txns)
	}
}

func TestSetBalanceRecordsSignedDelta(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 1, 100, models.KindAdminGrant, "seed")

	delta, err := s.SetBalance(ctx, 1, 40)
	if err != nil {
		t.Fatal(err)
	}
	if delta != -60 {
		t.Fatalf("delta = %d, want -60", delta)
	}
	txns, _ := s.ListTransactions(ctx, 1, 1, 0)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	rec := txns[0]
	if rec.Kind != models.KindAdminSet || rec.Amount != -60 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FromUserID == nil || *rec.FromUserID != 1 || rec.ToUserID != nil {
		t.Fatalf("negative delta should debit the user: %+v", rec)
	}

	delta, err = s.SetBalance(ctx, 1, 90)
	if err != nil {
		t.Fatal(err)
	}
	if delta != 50 {
		t.Fatalf("delta = %d, want 50", delta)
	}
	txns, _ = s.ListTransactions(ctx, 1, 1, 0)
	if rec := txns[0]; rec.ToUserID == nil || *rec.ToUserID != 1 || rec.FromUserID != nil {
		t.Fatalf("positive delta should credit the user: %+v", rec)
	}
}

func TestAddXPCooldownWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	res, err := s.AddXP(ctx, 1, 20, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Granted || res.NewXP != 20 {
		t.Fatalf("first grant: %+v", res)
	}

	clock = clock.Add(30 * time.Second)
	res, _ = s.AddXP(ctx, 1, 20, time.Minute)
	if res.Granted {
		t.Fatalf("grant inside cooldown: %+v", res)
	}
	if ok, _ := s.CanGainXP(ctx, 1, time.Minute); ok {
		t.Fatal("CanGainXP true inside cooldown")
	}

	clock = clock.Add(30 * time.Second)
	if ok, _ := s.CanGainXP(ctx, 1, time.Minute); !ok {
		t.Fatal("CanGainXP false at cooldown boundary")
	}
	res, _ = s.AddXP(ctx, 1, 20, time.Minute)
	if !res.Granted || res.NewXP != 40 {
		t.Fatalf("grant after cooldown: %+v", res)
	}

	a, _ := s.GetAccount(ctx, 1)
	if a.TotalMessages != 2 {
		t.Fatalf("total_messages = %d, want 2", a.TotalMessages)
	}
}

func TestAddXPReconcilesLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.AddXP(ctx, 1, 450, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.OldLevel != 1 || res.NewLevel != 3 {
		t.Fatalf("levels = %d -> %d, want 1 -> 3", res.OldLevel, res.NewLevel)
	}
	a, _ := s.GetAccount(ctx, 1)
	if a.Level != 3 {
		t.Fatalf("persisted level = %d, want 3", a.Level)
	}
}

func TestSetLevelAlignsXP(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.SetLevel(ctx, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if a.Level != 5 || a.XP != 1600 {
		t.Fatalf("got level=%d xp=%d, want level=5 xp=1600", a.Level, a.XP)
	}
	if _, err := s.SetLevel(ctx, 1, 0); err == nil {
		t.Fatal("SetLevel(0) accepted")
	}
}

func TestLeaderboardOrderingAndTruncation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 1, 50, models.KindAdminGrant, "")
	s.Credit(ctx, 2, 200, models.KindAdminGrant, "")
	s.Credit(ctx, 3, 200, models.KindAdminGrant, "")
	s.Credit(ctx, 4, 10, models.KindAdminGrant, "")

	got, err := s.Leaderboard(ctx, 3, models.SortByCoins)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// ties break toward the lower user id
	wantOrder := []int64{2, 3, 1}
	for i, w := range wantOrder {
		if got[i].UserID != w {
			t.Fatalf("position %d = user %d, want %d", i, got[i].UserID, w)
		}
	}

	s.SetLevel(ctx, 4, 9)
	s.SetLevel(ctx, 1, 9)
	byLevel, _ := s.Leaderboard(ctx, 0, models.SortByLevel)
	if byLevel[0].UserID != 1 || byLevel[1].UserID != 4 {
		t.Fatalf("level sort order: %+v", byLevel)
	}
}

func TestLeaderboardDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for id := int64(1); id <= 8; id++ {
		s.Credit(ctx, id, 100, models.KindAdminGrant, "")
	}
	first, _ := s.Leaderboard(ctx, 0, models.SortByCoins)
	for run := 0; run < 5; run++ {
		again, _ := s.Leaderboard(ctx, 0, models.SortByCoins)
		for i := range first {
			if again[i].UserID != first[i].UserID {
				t.Fatalf("run %d: order changed at %d", run, i)
			}
		}
	}
}

func TestListTransactionsFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 1, 10, models.KindAdminGrant, "a")
	s.Credit(ctx, 2, 10, models.KindAdminGrant, "other user")
	s.Credit(ctx, 1, 10, models.KindLevelUp, "b")
	s.Debit(ctx, 1, 5, models.KindPeerTransfer, "c")

	all, err := s.ListTransactions(ctx, 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d transactions, want 3", len(all))
	}
	if all[0].Description != "c" || all[2].Description != "a" {
		t.Fatalf("not newest-first: %+v", all)
	}

	page, _ := s.ListTransactions(ctx, 1, 1, 1)
	if len(page) != 1 || page[0].Description != "b" {
		t.Fatalf("limit/offset page: %+v", page)
	}
	if past, _ := s.ListTransactions(ctx, 1, 10, 99); past != nil {
		t.Fatalf("offset past end: %+v", past)
	}
}

func TestFilePersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(testFormula, path, log)
	s.Credit(ctx, 1, 75, models.KindAdminGrant, "seed")
	s.AddXP(ctx, 1, 250, 0)

	reopened := New(testFormula, path, log)
	a, err := reopened.GetAccount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Coins != 75 || a.XP != 250 || a.Level != 2 {
		t.Fatalf("reloaded account = %+v", a)
	}
	txns, _ := reopened.ListTransactions(ctx, 1, 0, 0)
	if len(txns) != 1 {
		t.Fatalf("reloaded %d transactions, want 1", len(txns))
	}
}

func TestSnapshotSortedAndDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Credit(ctx, 9, 10, models.KindAdminGrant, "")
	s.Credit(ctx, 2, 10, models.KindAdminGrant, "")
	s.Credit(ctx, 5, 10, models.KindAdminGrant, "")

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 5, 9}
	for i, w := range want {
		if snap.Accounts[i].UserID != w {
			t.Fatalf("snapshot order: %+v", snap.Accounts)
		}
	}

	// mutating the store must not reach into an already-taken snapshot
	s.Credit(ctx, 2, 90, models.KindAdminGrant, "")
	if snap.Accounts[0].Coins != 10 {
		t.Fatalf("snapshot aliased live state: %+v", snap.Accounts[0])
	}
}
