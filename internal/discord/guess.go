package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	leaderboardSize    = 10
	leaderboardTimeout = 5 * time.Second
)

// responder is the part of *discordgo.Session used to answer interactions.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// handleGuessCommand handles the /guess command
func (b *DiscordBot) handleGuessCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.startRound(s, i)
}

// startRound acknowledges /guess before the round is drawn and presented,
// then edits the deferred reply with the result.
func (b *DiscordBot) startRound(r responder, i *discordgo.InteractionCreate) {
	if !allowedChannel(b.Config.GuessChannelID, i.ChannelID) {
		b.respondEphemeral(r, i, fmt.Sprintf("❌ This command only works in <#%s>.", b.Config.GuessChannelID))
		return
	}

	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Error acknowledging interaction")
		return
	}

	player := interactionUserID(i)
	content := ""
	if snap, err := b.Game.Start(player, i.ChannelID); err != nil {
		log.Debug().Err(err).Str("player", player).Msg("Could not start round")
		content = rejectionMessage(err)
	} else {
		content = fmt.Sprintf("🎲 Round started, you have %d attempts. Good luck!", snap.Remaining())
	}

	if _, err := r.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Error editing interaction response")
	}
}

// handleButton handles Skip, Change, End and Replay clicks
func (b *DiscordBot) handleButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.pressButton(s, i)
}

// pressButton acknowledges the click first; the controller posts the new
// state itself and rejections come back as an ephemeral followup.
func (b *DiscordBot) pressButton(r responder, i *discordgo.InteractionCreate) {
	in, err := parseCustomID(i.MessageComponentData().CustomID)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring component")
		return
	}

	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Error acknowledging button")
		return
	}

	player := interactionUserID(i)
	if _, err := b.Game.Handle(player, in); err != nil {
		if _, ferr := r.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Content: rejectionMessage(err),
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			log.Error().Err(ferr).Str("interaction", i.ID).Msg("Error sending followup")
		}
	}
}

// messageHandler routes plain channel messages to the author's round
func (b *DiscordBot) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.BotUserID {
		return
	}
	if !allowedChannel(b.Config.GuessChannelID, m.ChannelID) {
		return
	}

	snap, ok := b.Game.Lookup(m.Author.ID)
	text := strings.TrimSpace(m.Content)
	if !routesGuess(snap, ok, m.ChannelID, text) {
		return
	}

	b.Presenter.Track(snap.ID, m.ChannelID, m.ID)
	if _, err := b.Game.Handle(m.Author.ID, game.Input{
		Action:  game.ActionGuess,
		Text:    text,
		Session: snap.ID,
	}); err != nil {
		log.Debug().Err(err).Str("player", m.Author.ID).Msg("Guess not applied")
	}
}

// handleLeaderboardCommand handles the /classement command
func (b *DiscordBot) handleLeaderboardCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
	defer cancel()

	entries, err := b.Scores.Top(ctx, leaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("Error reading leaderboard")
		b.respondEphemeral(s, i, "❌ Could not read the leaderboard, try again later.")
		return
	}

	b.respondEmbed(s, i, leaderboardEmbed(entries), false)
}

// handleHelpCommand handles the /helpjeu command
func (b *DiscordBot) handleHelpCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.respondEmbed(s, i, helpEmbed(), true)
}

// allowedChannel reports whether the game may run in channelID. An empty
// restriction allows every channel.
func allowedChannel(restricted, channelID string) bool {
	return restricted == "" || restricted == channelID
}

// routesGuess reports whether a message is a guess for the author's round.
func routesGuess(snap game.Snapshot, ok bool, channelID, text string) bool {
	return ok && text != "" && snap.Outcome == game.InProgress && snap.ChannelID == channelID
}

// rejectionMessage explains a refused input to the player.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrAlreadyActive):
		return "⏳ You already have a round in progress. Finish it or press End."
	case errors.Is(err, game.ErrSourceExhausted):
		return "❌ No characters are available right now."
	case errors.Is(err, game.ErrInvalidTransition):
		return "⌛ This round is no longer active. Type `/guess` to play."
	default:
		return "❌ Something went wrong, try again."
	}
}
