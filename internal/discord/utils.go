package discord

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/rs/zerolog/log"
)

const customIDPrefix = "guess"

// SetupCloseHandler creates a handler that will catch SIGINT and SIGTERM signals
// and gracefully close the application
func SetupCloseHandler(cleanupFunc func() error) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		log.Info().Str("signal", sig.String()).Msg("Shutting down...")
		if err := cleanupFunc(); err != nil {
			log.Error().Err(err).Msg("Error during cleanup")
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

// encodeCustomID builds a button ID bound to one round of one session:
// guess:<action>:<session>:<round>
func encodeCustomID(action game.Action, snap game.Snapshot) string {
	return strings.Join([]string{customIDPrefix, buttonNames[action], snap.ID.String(), strconv.Itoa(snap.Round)}, ":")
}

// parseCustomID turns a button ID back into a controller input.
func parseCustomID(id string) (game.Input, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] != customIDPrefix {
		return game.Input{}, fmt.Errorf("not a guess button: %q", id)
	}

	action, ok := buttonActions[parts[1]]
	if !ok {
		return game.Input{}, fmt.Errorf("unknown button action %q", parts[1])
	}

	session, err := uuid.Parse(parts[2])
	if err != nil {
		return game.Input{}, fmt.Errorf("invalid session in %q: %w", id, err)
	}

	round, err := strconv.Atoi(parts[3])
	if err != nil || round < 1 {
		return game.Input{}, fmt.Errorf("invalid round in %q", id)
	}

	return game.Input{Action: action, Session: session, Round: round}, nil
}

var buttonActions = map[string]game.Action{
	"skip":   game.ActionSkip,
	"change": game.ActionChange,
	"end":    game.ActionAbandon,
	"replay": game.ActionReplay,
}

var buttonNames = map[game.Action]string{
	game.ActionSkip:    "skip",
	game.ActionChange:  "change",
	game.ActionAbandon: "end",
	game.ActionReplay:  "replay",
}

// interactionUserID returns the invoking user for guild and DM interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
