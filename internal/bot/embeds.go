package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/coinbot-dev/coinbot/internal/economy"
	"github.com/coinbot-dev/coinbot/internal/leveling"
	"github.com/coinbot-dev/coinbot/internal/models"
)

// Embed accent colors.
const (
	colorSuccess = 0x2ecc71
	colorError   = 0xe74c3c
	colorInfo    = 0x3498db
	colorLevelUp = 0xf1c40f
)

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorInfo}
}

func successEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorSuccess}
}

func errorEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorError}
}

func balanceEmbed(name, avatarURL string, stats models.UserStats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("💰 %s's Profile", name),
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🪙 Coins", Value: fmt.Sprintf("**%d**", stats.Coins), Inline: true},
			{Name: "📊 Level", Value: fmt.Sprintf("**%d**", stats.Level), Inline: true},
			{Name: "⭐ Total XP", Value: fmt.Sprintf("**%d**", stats.XP), Inline: true},
			{
				Name: "📈 Progress to Next Level",
				Value: fmt.Sprintf("**%d/%d** XP (%.1f%%)",
					stats.XPProgress, stats.XPForNextLevel, stats.ProgressPercentage),
			},
			{Name: "💬 Messages Sent", Value: fmt.Sprintf("**%d**", stats.TotalMessages), Inline: true},
			{Name: "🎯 XP Needed", Value: fmt.Sprintf("**%d** XP", stats.XPNeeded), Inline: true},
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: avatarURL},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Keep chatting to earn more XP and level up!"},
	}
}

func levelUpEmbed(ev leveling.LevelUp) *discordgo.MessageEmbed {
	title := "🎉 Level Up!"
	description := fmt.Sprintf("Congratulations <@%d>! You reached **Level %d**!", ev.UserID, ev.NewLevel)
	if ev.LevelsGained > 1 {
		title = "🚀 Multiple Level Up!"
		description = fmt.Sprintf("Amazing <@%d>! You jumped **%d levels** to **Level %d**!",
			ev.UserID, ev.LevelsGained, ev.NewLevel)
	}
	embed := &discordgo.MessageEmbed{Title: title, Description: description, Color: colorLevelUp}
	if ev.CoinReward > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "💰 Reward", Value: fmt.Sprintf("**%d** coins", ev.CoinReward), Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "📊 Progress",
		Value:  fmt.Sprintf("%d/%d XP to level %d", ev.XPProgress, ev.XPNeeded, ev.NewLevel+1),
		Inline: true,
	})
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Keep chatting to earn more XP and coins!"}
	return embed
}

func balanceChangeFields(c economy.BalanceChange) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: "Previous Balance", Value: fmt.Sprintf("%d coins", c.OldBalance), Inline: true},
		{Name: "New Balance", Value: fmt.Sprintf("%d coins", c.NewBalance), Inline: true},
	}
}

func roleRewardEmbed(total int64, roles []string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎉 Role Reward!",
		Description: fmt.Sprintf("You received **%d** coins for gaining the role(s): %s!",
			total, strings.Join(roles, ", ")),
		Color: colorSuccess,
	}
}
