package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the bot configuration.
type Config struct {
	DiscordToken   string `env:"DISCORD_TOKEN"`
	GuildID        string `env:"GUILD_ID"`
	GuessChannelID string `env:"GUESS_CHANNEL_ID"`

	CharactersPath string        `env:"CHARACTERS_PATH" envDefault:"data/personnages.json"`
	CharactersTTL  time.Duration `env:"CHARACTERS_TTL" envDefault:"5m"`
	DatabasePath   string        `env:"DATABASE_PATH" envDefault:"data/scores.db"`

	OpenAIToken string  `env:"OPENAI_API_KEY"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"60"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.9"`

	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"180s"`
	ReplayWindow      time.Duration `env:"REPLAY_WINDOW" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads the .env file at path, if present, then parses the environment.
// Variables already set in the environment win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	return Parse()
}

// Parse builds a Config from the environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.CharactersPath == "" {
		return fmt.Errorf("CHARACTERS_PATH is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("INACTIVITY_TIMEOUT must be positive, got %s", c.InactivityTimeout)
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("REPLAY_WINDOW must be positive, got %s", c.ReplayWindow)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be between 0 and 2, got %g", c.Temperature)
	}
	return nil
}

// AnnouncerEnabled reports whether win messages should be generated.
func (c *Config) AnnouncerEnabled() bool {
	return c.OpenAIToken != ""
}
