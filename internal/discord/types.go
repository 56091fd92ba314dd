package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/hunterjsb/animeguess/internal/config"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/hunterjsb/animeguess/internal/scores"
)

// DiscordBot represents a Discord bot
type DiscordBot struct {
	Session         *discordgo.Session
	Config          *config.Config
	Game            *game.Controller
	Presenter       *Presenter
	Scores          leaderboard
	OpenAI          *OpenAIClient
	BotUserID       string
	GuildID         string
	Commands        []*discordgo.ApplicationCommand
	CommandHandlers map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// leaderboard is the read side of the score ledger.
type leaderboard interface {
	Top(ctx context.Context, n int) ([]scores.Entry, error)
}
