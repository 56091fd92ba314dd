package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/hunterjsb/animeguess/internal/config"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/hunterjsb/animeguess/internal/scores"
	"github.com/rs/zerolog/log"
)

// Command definitions
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "guess",
		Description: "Guess the anime character",
	},
	{
		Name:        "classement",
		Description: "Show the /guess leaderboard",
	},
	{
		Name:        "helpjeu",
		Description: "Explain how /guess works",
	},
}

// NewDiscordBot creates a new Discord bot with the provided configuration
func NewDiscordBot(cfg *config.Config, source game.Source, ledger *scores.Ledger) (*DiscordBot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	bot := &DiscordBot{
		Session:         session,
		Config:          cfg,
		Scores:          ledger,
		GuildID:         cfg.GuildID,
		CommandHandlers: make(map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)),
	}

	var announcer winAnnouncer
	if cfg.AnnouncerEnabled() {
		bot.OpenAI = NewOpenAIClient(cfg.OpenAIToken, cfg.MaxTokens, cfg.Temperature)
		announcer = bot.OpenAI
	}
	bot.Presenter = NewPresenter(session, announcer)
	bot.Game = game.NewController(source, bot.Presenter, ledger, game.Options{
		InactivityTimeout: cfg.InactivityTimeout,
		ReplayWindow:      cfg.ReplayWindow,
	})

	// Set up command handlers
	bot.CommandHandlers["guess"] = bot.handleGuessCommand
	bot.CommandHandlers["classement"] = bot.handleLeaderboardCommand
	bot.CommandHandlers["helpjeu"] = bot.handleHelpCommand

	return bot, nil
}

// Start starts the Discord bot
func (b *DiscordBot) Start() error {
	// Get bot user ID
	user, err := b.Session.User("@me")
	if err != nil {
		return fmt.Errorf("error getting bot user: %w", err)
	}
	b.BotUserID = user.ID

	b.Session.AddHandler(b.interactionHandler)
	b.Session.AddHandler(b.messageHandler)

	// Open a websocket connection to Discord
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening Discord session: %w", err)
	}

	registeredCommands, err := b.registerCommands()
	if err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	b.Commands = registeredCommands

	log.Info().
		Str("user", user.Username).
		Int("commands", len(registeredCommands)).
		Str("guess_channel", b.Config.GuessChannelID).
		Msg("Bot is now running with slash commands registered")
	return nil
}

// Stop ends every round, removes the commands and closes the gateway.
func (b *DiscordBot) Stop() error {
	b.Game.Close()

	log.Info().Msg("Removing commands...")
	for _, cmd := range b.Commands {
		err := b.Session.ApplicationCommandDelete(b.Session.State.User.ID, b.GuildID, cmd.ID)
		if err != nil {
			log.Error().Err(err).Str("command", cmd.Name).Msg("Error removing command")
		}
	}

	return b.Session.Close()
}

// registerCommands registers the defined slash commands
func (b *DiscordBot) registerCommands() ([]*discordgo.ApplicationCommand, error) {
	registeredCommands := make([]*discordgo.ApplicationCommand, len(commands))

	for i, cmd := range commands {
		registered, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, b.GuildID, cmd)
		if err != nil {
			return nil, fmt.Errorf("error creating command '%s': %w", cmd.Name, err)
		}
		registeredCommands[i] = registered
	}

	return registeredCommands, nil
}

// interactionHandler handles Discord interaction events
func (b *DiscordBot) interactionHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		commandName := i.ApplicationCommandData().Name
		if handler, ok := b.CommandHandlers[commandName]; ok {
			handler(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleButton(s, i)
	}
}

// respondEphemeral answers an interaction with a message only the user sees.
func (b *DiscordBot) respondEphemeral(r responder, i *discordgo.InteractionCreate, content string) {
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Error sending ephemeral response")
	}
}

// respondEmbed answers an interaction with an embed.
func (b *DiscordBot) respondEmbed(r responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Error sending embed response")
	}
}
