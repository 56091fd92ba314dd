package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// purgeTimeout bounds how long a single purge waits on the rate limiter.
const purgeTimeout = 30 * time.Second

// messenger is the part of *discordgo.Session the presenter needs.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// winAnnouncer writes the line shown when a player wins.
type winAnnouncer interface {
	Announce(ctx context.Context, snap game.Snapshot) (string, error)
}

// trail is every message posted for one session.
type trail struct {
	channelID string
	round     []string // purged on each new hint or character
	final     string   // end-of-round message, purged with the session
}

// Presenter renders rounds as channel messages and cleans them up.
type Presenter struct {
	api       messenger
	announcer winAnnouncer
	limiter   *rate.Limiter
	log       zerolog.Logger

	mu     sync.Mutex
	trails map[uuid.UUID]*trail
}

// NewPresenter creates a presenter. announcer may be nil.
func NewPresenter(api messenger, announcer winAnnouncer) *Presenter {
	return &Presenter{
		api:       api,
		announcer: announcer,
		limiter:   rate.NewLimiter(rate.Limit(4), 10),
		log:       log.With().Str("component", "presenter").Logger(),
		trails:    make(map[uuid.UUID]*trail),
	}
}

// Track records a player message so it is purged with the round.
func (p *Presenter) Track(sessionID uuid.UUID, channelID, messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.trailFor(sessionID, channelID)
	t.round = append(t.round, messageID)
}

// Present implements game.Presenter.
func (p *Presenter) Present(snap game.Snapshot) error {
	switch snap.Event {
	case game.EventStarted:
		return p.send(snap, startEmbed(snap), roundButtons(snap), false)
	case game.EventCharacterChanged, game.EventReplayed:
		p.purge(snap.ID, true)
		return p.send(snap, startEmbed(snap), roundButtons(snap), false)
	case game.EventWrongGuess:
		return p.send(snap, feedbackEmbed(snap), nil, false)
	case game.EventEnded:
		p.purge(snap.ID, false)
		return p.send(snap, finalEmbed(snap, p.winLine(snap)), replayButtons(snap), true)
	default:
		return nil
	}
}

// PresentHint implements game.Presenter.
func (p *Presenter) PresentHint(snap game.Snapshot, hint game.Hint) error {
	p.purge(snap.ID, false)
	return p.send(snap, hintEmbed(snap, hint), roundButtons(snap), false)
}

// Dispose implements game.Presenter. It removes everything posted for the session.
func (p *Presenter) Dispose(snap game.Snapshot) error {
	errs := p.purge(snap.ID, true)
	p.mu.Lock()
	delete(p.trails, snap.ID)
	p.mu.Unlock()
	return errs
}

func (p *Presenter) winLine(snap game.Snapshot) string {
	if snap.Outcome != game.Won || p.announcer == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	line, err := p.announcer.Announce(ctx, snap)
	if err != nil {
		p.log.Warn().Err(err).Str("player", snap.PlayerID).Msg("Win announcement failed, using default")
		return ""
	}
	return line
}

func (p *Presenter) send(snap game.Snapshot, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent, final bool) error {
	msg, err := p.api.ChannelMessageSendComplex(snap.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return fmt.Errorf("error sending %s message: %w", eventName(snap.Event), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.trailFor(snap.ID, snap.ChannelID)
	if final {
		t.final = msg.ID
	} else {
		t.round = append(t.round, msg.ID)
	}
	return nil
}

// purge deletes the round messages of a session, and the final message too
// when all is set. Messages that are already gone are not an error.
func (p *Presenter) purge(sessionID uuid.UUID, all bool) error {
	p.mu.Lock()
	t, ok := p.trails[sessionID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	channelID := t.channelID
	ids := t.round
	t.round = nil
	if all && t.final != "" {
		ids = append(ids, t.final)
		t.final = ""
	}
	p.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	var errs []error
	for _, id := range ids {
		if err := p.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("purge rate limit: %w", err))
			break
		}
		err := p.api.ChannelMessageDelete(channelID, id)
		switch {
		case err == nil:
		case isStatus(err, http.StatusNotFound):
			p.log.Debug().Str("message", id).Msg("Message already deleted")
		case isStatus(err, http.StatusForbidden):
			p.log.Warn().Str("channel", channelID).Str("message", id).Msg("Missing permission to delete message")
		default:
			p.log.Error().Err(err).Str("channel", channelID).Str("message", id).Msg("Error deleting message")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// trailFor returns the trail for a session, creating it. Must hold p.mu.
func (p *Presenter) trailFor(sessionID uuid.UUID, channelID string) *trail {
	t, ok := p.trails[sessionID]
	if !ok {
		t = &trail{channelID: channelID}
		p.trails[sessionID] = t
	}
	return t
}

func isStatus(err error, code int) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == code
}

func eventName(ev game.Event) string {
	switch ev {
	case game.EventStarted:
		return "start"
	case game.EventWrongGuess:
		return "feedback"
	case game.EventHint:
		return "hint"
	case game.EventCharacterChanged:
		return "change"
	case game.EventReplayed:
		return "replay"
	case game.EventEnded:
		return "final"
	default:
		return "session"
	}
}
