package game

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInactivityTimeout ends a round nobody has touched for this long.
	DefaultInactivityTimeout = 180 * time.Second
	// DefaultReplayWindow is how long a finished round can be replayed in place.
	DefaultReplayWindow = 30 * time.Second
)

var errClosed = fmt.Errorf("%w: controller closed", ErrInvalidTransition)

// Source supplies characters to play on.
type Source interface {
	Draw() (Character, error)
}

// Presenter shows session state to the player. It is called after the
// transition is committed; its errors are logged and never undo a transition.
type Presenter interface {
	Present(Snapshot) error
	PresentHint(Snapshot, Hint) error
	Dispose(Snapshot) error
}

// Ledger records wins. RecordWin must not block.
type Ledger interface {
	RecordWin(playerID string)
}

// Action is a player input kind.
type Action int

const (
	ActionGuess Action = iota
	ActionSkip
	ActionChange
	ActionAbandon
	ActionReplay
)

func (a Action) String() string {
	switch a {
	case ActionGuess:
		return "guess"
	case ActionSkip:
		return "skip"
	case ActionChange:
		return "change"
	case ActionAbandon:
		return "abandon"
	case ActionReplay:
		return "replay"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Input is one player input. When Session is set, the input only applies to
// that session and, if Round is non-zero, to that round.
type Input struct {
	Action  Action
	Text    string
	Session uuid.UUID
	Round   int
}

// Options tune a Controller. Zero values select the defaults.
type Options struct {
	InactivityTimeout time.Duration
	ReplayWindow      time.Duration
	Now               func() time.Time
}

// entry owns one player's session and its timers. Presentation work is
// queued under mu and run after mu is released, in commit order.
type entry struct {
	mu       sync.Mutex
	session  *Session
	gen      uint64
	activity *time.Timer
	replay   *time.Timer
	removed  bool

	pending  []func()
	draining bool
}

func (e *entry) snapshot(ev Event) Snapshot {
	return Snapshot{Session: *e.session, Event: ev}
}

// enqueue adds presentation work. Must hold e.mu.
func (e *entry) enqueue(op func()) {
	e.pending = append(e.pending, op)
}

// release unlocks e.mu and reports whether the caller must drain the queue.
// At most one goroutine drains an entry at a time.
func (e *entry) release() bool {
	elected := !e.draining && len(e.pending) > 0
	if elected {
		e.draining = true
	}
	e.mu.Unlock()
	return elected
}

// drain runs queued work until the queue is empty, without holding e.mu
// while a presenter call is in flight.
func (e *entry) drain() {
	for {
		e.mu.Lock()
		ops := e.pending
		e.pending = nil
		if len(ops) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
		for _, op := range ops {
			op()
		}
	}
}

// unlockAndDrain releases e.mu and runs pending presentation if elected.
func (e *entry) unlockAndDrain() {
	if e.release() {
		e.drain()
	}
}

func (e *entry) stopTimers() {
	if e.activity != nil {
		e.activity.Stop()
		e.activity = nil
	}
	if e.replay != nil {
		e.replay.Stop()
		e.replay = nil
	}
}

// Controller runs guessing rounds, one per player.
//
// Lock order is entry.mu before Controller.mu; nothing waits on an entry
// lock while holding Controller.mu, and no presenter call runs under either.
type Controller struct {
	source    Source
	presenter Presenter
	ledger    Ledger
	timeout   time.Duration
	window    time.Duration
	now       func() time.Time
	log       zerolog.Logger

	closed atomic.Bool

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewController creates a Controller. presenter and ledger may be nil.
func NewController(source Source, presenter Presenter, ledger Ledger, opts Options) *Controller {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	if opts.ReplayWindow <= 0 {
		opts.ReplayWindow = DefaultReplayWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if ledger == nil {
		ledger = nopLedger{}
	}
	return &Controller{
		source:    source,
		presenter: presenter,
		ledger:    ledger,
		timeout:   opts.InactivityTimeout,
		window:    opts.ReplayWindow,
		now:       opts.Now,
		log:       log.With().Str("component", "game").Logger(),
		sessions:  make(map[string]*entry),
	}
}

// Start opens a round for player in channel. A finished round still inside
// its replay window is replaced.
func (c *Controller) Start(player, channel string) (Snapshot, error) {
	for {
		if c.closed.Load() {
			return Snapshot{}, errClosed
		}

		prev := c.lookup(player)
		if prev != nil && prev.active() {
			return Snapshot{}, fmt.Errorf("%w: player %s", ErrAlreadyActive, player)
		}

		character, err := c.draw()
		if err != nil {
			return Snapshot{}, err
		}

		e := &entry{session: newSession(player, channel, character, c.now())}
		e.mu.Lock()
		if prev != nil {
			prev.mu.Lock()
			// A replay may have reopened the round since it was checked.
			if !prev.removed && !prev.session.Outcome.Terminal() {
				prev.mu.Unlock()
				e.mu.Unlock()
				return Snapshot{}, fmt.Errorf("%w: player %s", ErrAlreadyActive, player)
			}
		}

		installed, err := c.install(player, prev, e)
		if err != nil || !installed {
			if prev != nil {
				prev.mu.Unlock()
			}
			e.mu.Unlock()
			if err != nil {
				return Snapshot{}, err
			}
			continue
		}

		drainPrev := false
		if prev != nil {
			if !prev.removed {
				prev.removed = true
				prev.stopTimers()
				retired := prev.snapshot(EventExpired)
				prev.enqueue(func() { c.dispose(retired) })
			}
			drainPrev = prev.release()
		}

		c.armActivity(e)
		snap := e.snapshot(EventStarted)
		c.log.Info().
			Str("player", player).
			Str("session", snap.ID.String()).
			Str("character", character.FullName()).
			Str("series", character.Series).
			Msg("Round started")
		c.queuePresent(e, snap)
		drainNew := e.release()

		if drainPrev {
			prev.drain()
		}
		if drainNew {
			e.drain()
		}
		return snap, nil
	}
}

// install swaps e into the map if player still maps to prev. It reports false
// when the map changed since prev was read.
func (c *Controller) install(player string, prev, e *entry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false, errClosed
	}
	if c.sessions[player] != prev {
		return false, nil
	}
	c.sessions[player] = e
	return true, nil
}

// SubmitGuess applies a text guess to the player's round.
func (c *Controller) SubmitGuess(player, text string) (Snapshot, error) {
	return c.Handle(player, Input{Action: ActionGuess, Text: text})
}

// RequestHint skips ahead to the next hint level.
func (c *Controller) RequestHint(player string) (Snapshot, error) {
	return c.Handle(player, Input{Action: ActionSkip})
}

// ChangeCharacter swaps the character and restarts the counters.
func (c *Controller) ChangeCharacter(player string) (Snapshot, error) {
	return c.Handle(player, Input{Action: ActionChange})
}

// Abandon ends the player's round.
func (c *Controller) Abandon(player string) (Snapshot, error) {
	return c.Handle(player, Input{Action: ActionAbandon})
}

// Replay restarts a finished round in place.
func (c *Controller) Replay(player string) (Snapshot, error) {
	return c.Handle(player, Input{Action: ActionReplay})
}

// Handle applies one input to the player's session.
func (c *Controller) Handle(player string, in Input) (Snapshot, error) {
	e := c.lookup(player)
	if e == nil {
		return c.reject(player, in, fmt.Errorf("%w: no round for player %s", ErrInvalidTransition, player))
	}

	e.mu.Lock()
	snap, err := c.apply(e, player, in)
	e.unlockAndDrain()
	return snap, err
}

// apply runs one transition and queues its presentation. Must hold e.mu.
func (c *Controller) apply(e *entry, player string, in Input) (Snapshot, error) {
	if c.closed.Load() {
		return c.reject(player, in, errClosed)
	}
	if e.removed {
		return c.reject(player, in, fmt.Errorf("%w: no round for player %s", ErrInvalidTransition, player))
	}
	s := e.session
	if in.Session != uuid.Nil && (in.Session != s.ID || (in.Round != 0 && in.Round != s.Round)) {
		return c.reject(player, in, fmt.Errorf("%w: stale input for round %d", ErrInvalidTransition, in.Round))
	}

	now := c.now()
	switch in.Action {
	case ActionGuess:
		return c.handleGuess(e, in.Text, now)
	case ActionSkip:
		advanced, err := s.skip(now)
		if err != nil {
			return c.reject(player, in, err)
		}
		c.armActivity(e)
		snap := e.snapshot(EventHint)
		if advanced {
			c.queueHint(e, snap)
		}
		return snap, nil
	case ActionChange:
		if err := s.requireInProgress(); err != nil {
			return c.reject(player, in, err)
		}
		character, err := c.draw()
		if err != nil {
			c.log.Warn().Err(err).Str("player", player).Msg("Could not change character")
			return Snapshot{}, err
		}
		s.change(character, now)
		c.armActivity(e)
		snap := e.snapshot(EventCharacterChanged)
		c.log.Info().Str("player", player).Str("character", character.FullName()).Msg("Character changed")
		c.queuePresent(e, snap)
		return snap, nil
	case ActionAbandon:
		if err := s.abandon(now); err != nil {
			return c.reject(player, in, err)
		}
		return c.finish(e, ""), nil
	case ActionReplay:
		if err := s.requireReplayable(now, c.window); err != nil {
			return c.reject(player, in, err)
		}
		character, err := c.draw()
		if err != nil {
			c.log.Warn().Err(err).Str("player", player).Msg("Could not replay round")
			return Snapshot{}, err
		}
		s.reset(character, now)
		c.armActivity(e)
		snap := e.snapshot(EventReplayed)
		c.log.Info().Str("player", player).Int("round", s.Round).Str("character", character.FullName()).Msg("Round replayed")
		c.queuePresent(e, snap)
		return snap, nil
	default:
		return c.reject(player, in, fmt.Errorf("%w: unknown action %s", ErrInvalidTransition, in.Action))
	}
}

func (c *Controller) handleGuess(e *entry, text string, now time.Time) (Snapshot, error) {
	s := e.session
	won, hint, err := s.guess(text, now)
	if err != nil {
		return c.reject(s.PlayerID, Input{Action: ActionGuess, Text: text}, err)
	}
	if won {
		c.ledger.RecordWin(s.PlayerID)
		return c.finish(e, text), nil
	}
	if s.Outcome.Terminal() {
		return c.finish(e, text), nil
	}

	c.armActivity(e)
	snap := e.snapshot(EventWrongGuess)
	snap.Guess = text
	snap.Close = s.Character.IsClose(text)
	c.log.Debug().Str("player", s.PlayerID).Int("attempts", s.Attempts).Msg("Wrong guess")
	c.queuePresent(e, snap)
	if hint {
		c.queueHint(e, e.snapshot(EventHint))
	}
	return snap, nil
}

// Tick times the player's round out if it has been idle for the inactivity
// timeout as of now.
func (c *Controller) Tick(player string, now time.Time) (Snapshot, error) {
	e := c.lookup(player)
	if e == nil {
		return Snapshot{}, fmt.Errorf("%w: no round for player %s", ErrInvalidTransition, player)
	}
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: no round for player %s", ErrInvalidTransition, player)
	}
	snap := e.snapshot(EventNone)
	if e.session.expire(now, c.timeout) {
		snap = c.finish(e, "")
	}
	e.unlockAndDrain()
	return snap, nil
}

// Lookup returns the player's current session, finished or not.
func (c *Controller) Lookup(player string) (Snapshot, bool) {
	e := c.lookup(player)
	if e == nil {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Snapshot{}, false
	}
	return e.snapshot(EventNone), true
}

// Active returns the number of sessions held, finished ones included.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close stops every timer. Later inputs are rejected and arm no timers.
func (c *Controller) Close() {
	c.closed.Store(true)

	c.mu.Lock()
	entries := make([]*entry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.stopTimers()
		e.mu.Unlock()
	}
}

// active reports whether the entry holds a round still in progress.
func (e *entry) active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.removed && !e.session.Outcome.Terminal()
}

func (c *Controller) lookup(player string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[player]
}

func (c *Controller) draw() (Character, error) {
	character, err := c.source.Draw()
	if err != nil {
		if errors.Is(err, ErrSourceExhausted) {
			return Character{}, err
		}
		return Character{}, fmt.Errorf("%w: %v", ErrSourceExhausted, err)
	}
	return character, nil
}

// armActivity restarts the inactivity timer. Must hold e.mu.
func (c *Controller) armActivity(e *entry) {
	e.stopTimers()
	e.gen++
	gen := e.gen
	if c.closed.Load() {
		return
	}
	e.activity = time.AfterFunc(c.timeout, func() {
		c.onIdle(e, gen)
	})
}

// finish stops the activity timer, opens the replay window and queues the
// final state. Must hold e.mu.
func (c *Controller) finish(e *entry, guess string) Snapshot {
	e.stopTimers()
	e.gen++
	gen := e.gen
	player := e.session.PlayerID
	if !c.closed.Load() {
		e.replay = time.AfterFunc(c.window, func() {
			c.onReplayExpired(player, e, gen)
		})
	}

	snap := e.snapshot(EventEnded)
	snap.Guess = guess
	c.log.Info().
		Str("player", player).
		Str("session", snap.ID.String()).
		Str("outcome", snap.Outcome.String()).
		Int("attempts", snap.Attempts).
		Msg("Round ended")
	c.queuePresent(e, snap)
	return snap
}

func (c *Controller) onIdle(e *entry, gen uint64) {
	e.mu.Lock()
	if !e.removed && e.gen == gen && !c.closed.Load() && e.session.expire(c.now(), c.timeout) {
		c.finish(e, "")
	}
	e.unlockAndDrain()
}

func (c *Controller) onReplayExpired(player string, e *entry, gen uint64) {
	e.mu.Lock()
	if e.removed || e.gen != gen || c.closed.Load() {
		e.mu.Unlock()
		return
	}
	e.removed = true
	e.stopTimers()

	c.mu.Lock()
	if c.sessions[player] == e {
		delete(c.sessions, player)
	}
	c.mu.Unlock()

	snap := e.snapshot(EventExpired)
	c.log.Debug().Str("player", player).Str("session", snap.ID.String()).Msg("Replay window closed")
	e.enqueue(func() { c.dispose(snap) })
	e.unlockAndDrain()
}

func (c *Controller) reject(player string, in Input, err error) (Snapshot, error) {
	c.log.Debug().Err(err).Str("player", player).Str("action", in.Action.String()).Msg("Input rejected")
	return Snapshot{}, err
}

// queuePresent and queueHint capture snap at commit time. Must hold e.mu.
func (c *Controller) queuePresent(e *entry, snap Snapshot) {
	e.enqueue(func() { c.present(snap) })
}

func (c *Controller) queueHint(e *entry, snap Snapshot) {
	e.enqueue(func() { c.presentHint(snap) })
}

func (c *Controller) present(snap Snapshot) {
	if err := c.presenter.Present(snap); err != nil {
		c.log.Error().Err(err).Str("player", snap.PlayerID).Msg("Error presenting round")
	}
}

func (c *Controller) presentHint(snap Snapshot) {
	hint := NewHint(snap.Character, snap.HintLevel, snap.Remaining())
	if err := c.presenter.PresentHint(snap, hint); err != nil {
		c.log.Error().Err(err).Str("player", snap.PlayerID).Int("level", hint.Level).Msg("Error presenting hint")
	}
}

func (c *Controller) dispose(snap Snapshot) {
	if err := c.presenter.Dispose(snap); err != nil {
		c.log.Warn().Err(err).Str("player", snap.PlayerID).Msg("Error disposing round")
	}
}

type nopPresenter struct{}

func (nopPresenter) Present(Snapshot) error           { return nil }
func (nopPresenter) PresentHint(Snapshot, Hint) error { return nil }
func (nopPresenter) Dispose(Snapshot) error           { return nil }

type nopLedger struct{}

func (nopLedger) RecordWin(string) {}
