package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/coinbot-dev/coinbot/internal/config"
	"github.com/coinbot-dev/coinbot/internal/economy"
	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/worker"
)

// Bot is the Discord adapter: it feeds inbound messages to the leveling
// engine, dispatches slash commands to the economy service, and renders
// responses. All economic state lives behind those two; the bot itself is
// a thin shim.
type Bot struct {
	session *discordgo.Session
	engine  *leveling.Engine
	econ    *economy.Service
	cfg     config.Config
	pool    *worker.Pool
	log     *slog.Logger
	ready   atomic.Bool
}

func New(cfg config.Config, econ *economy.Service, pool *worker.Pool, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	b := &Bot{session: session, econ: econ, cfg: cfg, pool: pool, log: log}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberUpdate)
	session.AddHandler(b.onInteractionCreate)
	return b, nil
}

// SetEngine breaks the construction cycle: the engine needs the bot as its
// notifier, the bot needs the engine for message events.
func (b *Bot) SetEngine(e *leveling.Engine) { b.engine = e }

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	return nil
}

func (b *Bot) Stop() error { return b.session.Close() }

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("connected to discord", "bot", r.User.Username, "guilds", len(r.Guilds))
	if err := b.registerCommands(); err != nil {
		// startup continues; the bot still earns XP without slash commands
		b.log.Warn("command sync failed", "err", err)
	}
	if err := s.UpdateWatchStatus(0, "for messages and level ups!"); err != nil {
		b.log.Warn("presence update failed", "err", err)
	}
	b.ready.Store(true)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	authorID, err := parseID(m.Author.ID)
	if err != nil {
		return
	}
	err = b.engine.ProcessMessage(context.Background(), leveling.Message{
		AuthorID:  authorID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	})
	if err != nil {
		b.log.Error("process message", "user_id", authorID, "err", err)
	}
}

// onGuildMemberUpdate pays the configured reward for every newly gained
// role. Removing and re-adding a role pays again; only the transaction
// log remembers earlier payouts.
func (b *Bot) onGuildMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.BeforeUpdate == nil || m.User == nil || m.User.Bot {
		return
	}
	before := map[string]bool{}
	for _, id := range m.BeforeUpdate.Roles {
		before[id] = true
	}
	var gained []string
	for _, id := range m.Roles {
		if before[id] {
			continue
		}
		if role, err := s.State.Role(m.GuildID, id); err == nil {
			gained = append(gained, role.Name)
		}
	}
	if len(gained) == 0 {
		return
	}
	userID, err := parseID(m.User.ID)
	if err != nil {
		return
	}
	total, rewarded, err := b.econ.RoleReward(context.Background(), userID, gained)
	if err != nil {
		b.log.Error("role reward", "user_id", userID, "err", err)
		return
	}
	if total > 0 {
		b.log.Info("role reward", "user_id", userID, "roles", rewarded, "coins", total)
		b.notifyRoleReward(m.User.ID, total, rewarded)
	}
}

// NotifyLevelUp implements leveling.Notifier. It runs on the worker pool;
// the ledger mutation has already committed and is never rolled back here.
func (b *Bot) NotifyLevelUp(ev leveling.LevelUp) error {
	embed := levelUpEmbed(ev)
	if _, err := b.session.ChannelMessageSendEmbed(ev.ChannelID, embed); err != nil {
		// fallback to a plain message before giving up
		text := fmt.Sprintf("🎉 <@%d> reached Level %d and earned %d coins!", ev.UserID, ev.NewLevel, ev.CoinReward)
		if _, err2 := b.session.ChannelMessageSend(ev.ChannelID, text); err2 != nil {
			return err
		}
	}
	return nil
}

// notifyRoleReward DMs the member, best-effort: closed DMs are normal.
func (b *Bot) notifyRoleReward(discordID string, total int64, roles []string) {
	b.pool.Submit(func() {
		ch, err := b.session.UserChannelCreate(discordID)
		if err != nil {
			return
		}
		if _, err := b.session.ChannelMessageSendEmbed(ch.ID, roleRewardEmbed(total, roles)); err != nil {
			b.log.Debug("role reward dm failed", "user", discordID, "err", err)
		}
	})
}

// isAdmin is the platform authorization predicate: administrator or
// manage-server permission, or guild owner.
func (b *Bot) isAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0 {
		return true
	}
	if g, err := b.session.State.Guild(i.GuildID); err == nil {
		return g.OwnerID == i.Member.User.ID
	}
	return false
}

// Ready, BotName, GuildCount and Latency feed the ops status endpoint.
func (b *Bot) Ready() bool { return b.ready.Load() }

func (b *Bot) BotName() string {
	if u := b.session.State.User; u != nil {
		return u.Username
	}
	return ""
}

func (b *Bot) GuildCount() int {
	if b.session.State == nil {
		return 0
	}
	return len(b.session.State.Guilds)
}

func (b *Bot) Latency() time.Duration { return b.session.HeartbeatLatency() }

func (b *Bot) respond(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Error("interaction respond", "err", err)
	}
}

func (b *Bot) respondError(i *discordgo.InteractionCreate, title, msg string) {
	b.respond(i, errorEmbed(title, msg), true)
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
