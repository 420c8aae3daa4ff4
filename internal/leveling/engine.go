package leveling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/models"
	"github.com/coinbot-dev/coinbot/internal/repository"
	"github.com/coinbot-dev/coinbot/internal/worker"
)

// Message is the inbound event the engine consumes, stripped down to what
// the economy needs from the platform.
type Message struct {
	AuthorID  int64
	ChannelID string
	Content   string
}

// LevelUp describes a committed level-up for notification rendering.
type LevelUp struct {
	UserID       int64
	ChannelID    string
	NewLevel     int
	LevelsGained int
	CoinReward   int64
	XPProgress   int64
	XPNeeded     int64
}

// Notifier delivers level-up announcements. Delivery is best-effort: the
// ledger mutation has already committed by the time it runs.
type Notifier interface {
	NotifyLevelUp(ev LevelUp) error
}

type Engine struct {
	store    repository.Ledger
	formula  Formula
	gain     GainRule
	cooldown time.Duration
	notifier Notifier
	pool     *worker.Pool
	log      *slog.Logger
}

func NewEngine(store repository.Ledger, formula Formula, gain GainRule, cooldown time.Duration, notifier Notifier, pool *worker.Pool, log *slog.Logger) *Engine {
	return &Engine{store: store, formula: formula, gain: gain, cooldown: cooldown, notifier: notifier, pool: pool, log: log}
}

// ProcessMessage runs the per-message XP sequence: cooldown gate, gain
// computation, atomic XP grant, then the level-up sequence when a level
// boundary was crossed. Once the grant commits there is no rollback path;
// a failed notification never reverts coins or XP.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) error {
	ok, err := e.store.CanGainXP(ctx, msg.AuthorID, e.cooldown)
	if err != nil {
		return fmt.Errorf("cooldown check: %w", err)
	}
	if !ok {
		return nil
	}

	gain := e.gain.ForMessage(len(msg.Content))
	if gain <= 0 {
		return nil
	}

	// AddXP rechecks the cooldown inside the store's critical section, so
	// a race between two messages in the same window grants exactly once.
	res, err := e.store.AddXP(ctx, msg.AuthorID, int64(gain), e.cooldown)
	if err != nil {
		return fmt.Errorf("add xp: %w", err)
	}
	if !res.Granted {
		return nil
	}
	metrics.XPEventsTotal.Inc()

	if res.NewLevel <= res.OldLevel {
		return nil
	}
	return e.handleLevelUp(ctx, msg, res)
}

func (e *Engine) handleLevelUp(ctx context.Context, msg Message, res models.XPGrant) error {
	reward := e.formula.RewardForLevels(res.OldLevel, res.NewLevel)
	if reward > 0 {
		desc := fmt.Sprintf("Level up reward for reaching level %d", res.NewLevel)
		if _, err := e.store.Credit(ctx, msg.AuthorID, reward, models.KindLevelUp, desc); err != nil {
			return fmt.Errorf("level up credit: %w", err)
		}
	}
	metrics.LevelUpsTotal.Inc()

	levelStart := e.formula.XPForLevel(res.NewLevel)
	ev := LevelUp{
		UserID:       msg.AuthorID,
		ChannelID:    msg.ChannelID,
		NewLevel:     res.NewLevel,
		LevelsGained: res.NewLevel - res.OldLevel,
		CoinReward:   reward,
		XPProgress:   res.NewXP - levelStart,
		XPNeeded:     e.formula.XPForLevel(res.NewLevel+1) - levelStart,
	}
	e.log.Info("level up", "user_id", msg.AuthorID, "level", res.NewLevel, "reward", reward)
	e.dispatch(ev)
	return nil
}

func (e *Engine) dispatch(ev LevelUp) {
	if e.notifier == nil {
		return
	}
	deliver := func() {
		if err := e.notifier.NotifyLevelUp(ev); err != nil {
			metrics.NotificationsFailed.Inc()
			e.log.Error("level up notification", "user_id", ev.UserID, "err", err)
		}
	}
	if e.pool != nil {
		e.pool.Submit(deliver)
	} else {
		deliver()
	}
}
