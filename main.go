package main

import (
	"errors"
	"os"

	"github.com/hunterjsb/animeguess/internal/characters"
	"github.com/hunterjsb/animeguess/internal/config"
	"github.com/hunterjsb/animeguess/internal/discord"
	"github.com/hunterjsb/animeguess/internal/logging"
	"github.com/hunterjsb/animeguess/internal/scores"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	source := characters.NewFileSource(cfg.CharactersPath, cfg.CharactersTTL)
	if err := source.Reload(); err != nil {
		log.Warn().Err(err).Str("path", cfg.CharactersPath).Msg("Could not load characters, /guess will fail until the file is fixed")
	}

	ledger, err := scores.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Error opening score database")
	}

	bot, err := discord.NewDiscordBot(cfg, source, ledger)
	if err != nil {
		ledger.Close()
		log.Fatal().Err(err).Msg("Error creating bot")
	}

	log.Info().Msg("Starting Discord bot...")
	if err := bot.Start(); err != nil {
		ledger.Close()
		log.Error().Err(err).Msg("Error starting bot")
		os.Exit(1)
	}

	// Set up graceful shutdown
	discord.SetupCloseHandler(func() error {
		return errors.Join(bot.Stop(), ledger.Close())
	})

	log.Info().Msg("Bot is now running. Press CTRL-C to exit.")
	select {}
}
