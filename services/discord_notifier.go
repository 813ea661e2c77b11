// services/discord_notifier.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"geo-challenge-tracker/models"

	"github.com/bwmarrin/discordgo"
)

const discordEmbedColor = 0xa5434d

// DiscordNotifier announces new results and daily challenges in a
// Discord channel. Registered participants are mentioned by their
// linked account; unregistered ones by their Geoguessr name.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	store     *ChallengeStore
}

// NewDiscordNotifier opens a Discord session with the given bot token.
func NewDiscordNotifier(botToken, channelID string, store *ChallengeStore) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID, store: store}, nil
}

// Close shuts the Discord gateway connection down.
func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}

// NotifyNewResults posts the current scoreboard embed plus a line per
// newly recorded result.
func (n *DiscordNotifier) NotifyNewResults(ctx context.Context, challenge *models.Challenge, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}

	for _, result := range results {
		who := result.Participant.GeoName
		if result.Participant.Registered() {
			who = fmt.Sprintf("<@%s>", *result.Participant.DiscordID)
		}
		msg := fmt.Sprintf("%s finished today's challenge with **%d** points!", who, result.Score)
		if _, err := n.session.ChannelMessageSend(n.channelID, msg, discordgo.WithContext(ctx)); err != nil {
			log.Printf("[NOTIFY] ❌ Failed to send result message: %v", err)
		}
	}

	embed, err := n.scoreboardEmbed()
	if err != nil {
		return err
	}
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send scoreboard embed: %w", err)
	}
	return nil
}

// NotifyNewChallenge opens the spoiler thread for the day's challenge.
func (n *DiscordNotifier) NotifyNewChallenge(ctx context.Context, challenge *models.Challenge) error {
	day := challenge.RetrievedAt.UTC().Format("01-02-2006")
	thread, err := n.session.ThreadStart(
		n.channelID,
		day,
		discordgo.ChannelTypeGuildPublicThread,
		1440,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create daily thread: %w", err)
	}
	msg := fmt.Sprintf("Spoiler thread for the %s Geoguessr Daily", day)
	if _, err := n.session.ChannelMessageSend(thread.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send thread opener: %w", err)
	}
	return nil
}

func (n *DiscordNotifier) scoreboardEmbed() (*discordgo.MessageEmbed, error) {
	rows, err := n.store.TodaysResults()
	if err != nil {
		return nil, err
	}

	lines := ""
	for _, row := range rows {
		lines += fmt.Sprintf("%s: %d\n", row.GeoName, row.Score)
	}
	if lines == "" {
		lines = "No results yet today."
	}

	return &discordgo.MessageEmbed{
		Title: "Todays Results",
		Color: discordEmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Results", Value: lines, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
