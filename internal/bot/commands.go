package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/coinbot-dev/coinbot/internal/economy"
	"github.com/coinbot-dev/coinbot/internal/models"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	minAmount := float64(1)
	minLevel := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Check your coin balance and level",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up", Required: false},
			},
		},
		{
			Name:        "leaderboard",
			Description: "View the server leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "sort_by", Description: "Ranking order", Required: false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "coins", Value: "coins"},
						{Name: "level", Value: "level"},
					},
				},
			},
		},
		{
			Name:        "pay",
			Description: "Send coins to another user",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Recipient", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Coins to send", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:        "give",
			Description: "[ADMIN] Give coins to a user",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Target user", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Coins to add", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:        "take",
			Description: "[ADMIN] Remove coins from a user",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Target user", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Coins to remove", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:        "setlevel",
			Description: "[ADMIN] Set a user's level",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Target user", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "level", Description: "New level", Required: true, MinValue: &minLevel},
			},
		},
		{
			Name:        "backup",
			Description: "[ADMIN] Create a backup of bot data",
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	cmds, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions())
	if err != nil {
		return err
	}
	b.log.Info("commands synced", "count", len(cmds))
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx := context.Background()
	switch data.Name {
	case "balance":
		b.handleBalance(ctx, i, data)
	case "leaderboard":
		b.handleLeaderboard(ctx, i, data)
	case "pay":
		b.handlePay(ctx, i, data)
	case "give":
		b.handleGive(ctx, i, data)
	case "take":
		b.handleTake(ctx, i, data)
	case "setlevel":
		b.handleSetLevel(ctx, i, data)
	case "backup":
		b.handleBackup(ctx, i)
	}
}

func (b *Bot) actor(i *discordgo.InteractionCreate) economy.Actor {
	id, _ := parseID(invokerID(i))
	return economy.Actor{ID: id, Admin: b.isAdmin(i)}
}

func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optUser(s *discordgo.Session, data discordgo.ApplicationCommandInteractionData, name string) *discordgo.User {
	for _, o := range data.Options {
		if o.Name == name {
			return o.UserValue(s)
		}
	}
	return nil
}

func optInt(data discordgo.ApplicationCommandInteractionData, name string) int64 {
	for _, o := range data.Options {
		if o.Name == name {
			return o.IntValue()
		}
	}
	return 0
}

func optString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, o := range data.Options {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func (b *Bot) handleBalance(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optUser(b.session, data, "user")
	if target == nil {
		target = interactionUser(i)
	}
	userID, err := parseID(target.ID)
	if err != nil {
		b.respondError(i, "Error", "Invalid user.")
		return
	}
	stats, err := b.econ.Stats(ctx, userID)
	if err != nil {
		b.respondError(i, "Error", "Could not load your profile. Please try again later.")
		return
	}
	b.respond(i, balanceEmbed(displayName(target), target.AvatarURL(""), stats), false)
}

func (b *Bot) handleLeaderboard(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	sortBy := models.LeaderboardSort(optString(data, "sort_by"))
	if sortBy != models.SortByLevel {
		sortBy = models.SortByCoins
	}
	leaders, err := b.econ.Leaderboard(ctx, sortBy)
	if err != nil {
		b.respondError(i, "Error", "Could not load the leaderboard. Please try again later.")
		return
	}
	if len(leaders) == 0 {
		b.respond(i, infoEmbed("📊 Leaderboard", "No users found in the database yet!"), false)
		return
	}

	var sb strings.Builder
	for n, e := range leaders {
		name := b.displayNameByID(e.UserID)
		var value string
		if sortBy == models.SortByCoins {
			value = fmt.Sprintf("%d coins", e.Coins)
		} else {
			value = fmt.Sprintf("Level %d (%d XP)", e.Level, e.XP)
		}
		medal := fmt.Sprintf("#%d", n+1)
		if n < 3 {
			medal = []string{"🥇", "🥈", "🥉"}[n]
		}
		fmt.Fprintf(&sb, "%s **%s** - %s\n", medal, name, value)
	}
	embed := infoEmbed(fmt.Sprintf("📊 Leaderboard - Top %s", titleCase(string(sortBy))), sb.String())
	if total, err := b.econ.UserCount(ctx); err == nil {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total users: %d", total)}
	}
	b.respond(i, embed, false)
}

func (b *Bot) handlePay(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optUser(b.session, data, "user")
	amount := optInt(data, "amount")
	if target == nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	receiverID, err := parseID(target.ID)
	if err != nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}

	rcpt, err := b.econ.Pay(ctx, b.actor(i), receiverID, target.Bot, amount)
	if err != nil {
		title, msg := payError(err)
		b.respondError(i, title, msg)
		return
	}

	sender := interactionUser(i)
	embed := successEmbed("💸 Payment Successful",
		fmt.Sprintf("**%s** sent **%d** coins to **%s**!", displayName(sender), amount, displayName(target)))
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "💰 Your New Balance", Value: fmt.Sprintf("**%d** coins", rcpt.SenderBalance), Inline: true},
		{Name: "💰 Recipient's New Balance", Value: fmt.Sprintf("**%d** coins", rcpt.ReceiverBalance), Inline: true},
	}
	b.respond(i, embed, false)

	// recipient DM, best-effort
	senderName := displayName(sender)
	targetID := target.ID
	b.pool.Submit(func() {
		ch, err := b.session.UserChannelCreate(targetID)
		if err != nil {
			return
		}
		dm := successEmbed("💰 You Received Coins!", fmt.Sprintf("**%s** sent you **%d** coins!", senderName, amount))
		_, _ = b.session.ChannelMessageSendEmbed(ch.ID, dm)
	})
}

func payError(err error) (string, string) {
	var ve *economy.ValidationError
	if errors.As(err, &ve) {
		return "❌ Error", strings.ToUpper(ve.Msg[:1]) + ve.Msg[1:] + "!"
	}
	var fe *economy.InsufficientFundsError
	if errors.As(err, &fe) {
		return "❌ Insufficient Funds",
			fmt.Sprintf("You only have **%d** coins, but tried to send **%d** coins!", fe.Balance, fe.Needed)
	}
	return "❌ Transaction Failed", "Failed to process the payment. Please try again."
}

func (b *Bot) handleGive(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optUser(b.session, data, "user")
	amount := optInt(data, "amount")
	if target == nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	targetID, err := parseID(target.ID)
	if err != nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	change, err := b.econ.Grant(ctx, b.actor(i), targetID, amount)
	if err != nil {
		b.respondAdminError(i, err)
		return
	}
	embed := successEmbed("✅ Coins Added", fmt.Sprintf("Added **%d** coins to **%s**", amount, displayName(target)))
	embed.Fields = balanceChangeFields(change)
	b.respond(i, embed, false)
}

func (b *Bot) handleTake(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optUser(b.session, data, "user")
	amount := optInt(data, "amount")
	if target == nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	targetID, err := parseID(target.ID)
	if err != nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	change, err := b.econ.Revoke(ctx, b.actor(i), targetID, amount)
	if err != nil {
		var fe *economy.InsufficientFundsError
		if errors.As(err, &fe) {
			b.respondError(i, "❌ Insufficient Funds",
				fmt.Sprintf("**%s** only has **%d** coins, cannot remove **%d** coins!", displayName(target), fe.Balance, fe.Needed))
			return
		}
		b.respondAdminError(i, err)
		return
	}
	embed := successEmbed("✅ Coins Removed", fmt.Sprintf("Removed **%d** coins from **%s**", amount, displayName(target)))
	embed.Fields = balanceChangeFields(change)
	b.respond(i, embed, false)
}

func (b *Bot) handleSetLevel(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optUser(b.session, data, "user")
	level := int(optInt(data, "level"))
	if target == nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	targetID, err := parseID(target.ID)
	if err != nil {
		b.respondError(i, "❌ Error", "Invalid target user.")
		return
	}
	change, err := b.econ.SetLevel(ctx, b.actor(i), targetID, level)
	if err != nil {
		b.respondAdminError(i, err)
		return
	}
	embed := successEmbed("✅ Level Set", fmt.Sprintf("Set **%s**'s level to **%d**", displayName(target), change.NewLevel))
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Previous Level", Value: fmt.Sprintf("Level %d", change.OldLevel), Inline: true},
		{Name: "New Level", Value: fmt.Sprintf("Level %d", change.NewLevel), Inline: true},
		{Name: "XP Set", Value: fmt.Sprintf("%d XP", change.XPSet), Inline: true},
	}
	b.respond(i, embed, false)
}

func (b *Bot) handleBackup(ctx context.Context, i *discordgo.InteractionCreate) {
	file, err := b.econ.Backup(ctx, b.actor(i))
	if err != nil {
		if errors.Is(err, economy.ErrUnauthorized) {
			b.respondAdminError(i, err)
			return
		}
		b.respondError(i, "❌ Backup Failed", "Failed to create database backup!")
		return
	}
	embed := successEmbed("✅ Backup Created", fmt.Sprintf("Database backup created: `%s`", file))
	if total, err := b.econ.UserCount(ctx); err == nil {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "📊 Stats", Value: fmt.Sprintf("Users: %d", total), Inline: true},
		}
	}
	b.respond(i, embed, false)
}

func (b *Bot) respondAdminError(i *discordgo.InteractionCreate, err error) {
	if errors.Is(err, economy.ErrUnauthorized) {
		b.respondError(i, "❌ Access Denied", "You need administrator permissions to use this command!")
		return
	}
	var ve *economy.ValidationError
	if errors.As(err, &ve) {
		b.respondError(i, "❌ Error", strings.ToUpper(ve.Msg[:1])+ve.Msg[1:]+"!")
		return
	}
	b.respondError(i, "❌ Error", "Something went wrong. Please try again later.")
}

func (b *Bot) displayNameByID(userID int64) string {
	id := fmt.Sprintf("%d", userID)
	if u, err := b.session.User(id); err == nil {
		return displayName(u)
	}
	return "Unknown User"
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return "Unknown User"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
