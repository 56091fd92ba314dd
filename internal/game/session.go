package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the state of a round.
type Outcome int

const (
	InProgress Outcome = iota
	Won
	Exhausted
	Abandoned
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case InProgress:
		return "in_progress"
	case Won:
		return "won"
	case Exhausted:
		return "exhausted"
	case Abandoned:
		return "abandoned"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Terminal reports whether no further guesses are accepted.
func (o Outcome) Terminal() bool {
	return o != InProgress
}

// Event names the transition a snapshot was taken after.
type Event int

const (
	EventNone Event = iota
	EventStarted
	EventWrongGuess
	EventHint
	EventCharacterChanged
	EventReplayed
	EventEnded
	EventExpired
)

// Session is one player's round. All fields are guarded by the controller's
// per-session lock.
type Session struct {
	ID        uuid.UUID
	PlayerID  string
	ChannelID string
	Round     int

	Character    Character
	Attempts     int
	HintLevel    int
	Outcome      Outcome
	LastActivity time.Time
	StartedAt    time.Time
	EndedAt      time.Time
}

// Snapshot is an immutable copy of a session handed to the presenter.
type Snapshot struct {
	Session
	Event Event
	Guess string // the guess that caused EventWrongGuess or a win
	Close bool   // the wrong guess was a near miss
}

// Remaining returns the number of guesses left in the round.
func (s Session) Remaining() int {
	return MaxAttempts - s.Attempts
}

// LastAttempt reports whether the next guess is the final one.
func (s Session) LastAttempt() bool {
	return s.Outcome == InProgress && s.Attempts == MaxAttempts-1
}

func newSession(player, channel string, c Character, now time.Time) *Session {
	s := &Session{
		ID:        uuid.New(),
		PlayerID:  player,
		ChannelID: channel,
	}
	s.reset(c, now)
	return s
}

// reset begins a fresh round on c.
func (s *Session) reset(c Character, now time.Time) {
	s.Round++
	s.Character = c
	s.Attempts = 0
	s.HintLevel = 0
	s.Outcome = InProgress
	s.StartedAt = now
	s.EndedAt = time.Time{}
	s.touch(now)
}

func (s *Session) touch(now time.Time) {
	s.LastActivity = now
}

func (s *Session) end(o Outcome, now time.Time) {
	s.Outcome = o
	s.EndedAt = now
}

func (s *Session) requireInProgress() error {
	if s.Outcome.Terminal() {
		return fmt.Errorf("%w: round is %s", ErrInvalidTransition, s.Outcome)
	}
	return nil
}

// guess applies one guess and reports whether it won and whether a new hint
// level was reached.
func (s *Session) guess(text string, now time.Time) (won, hint bool, err error) {
	if err := s.requireInProgress(); err != nil {
		return false, false, err
	}
	s.touch(now)
	s.Attempts++
	if s.Character.Matches(text) {
		s.end(Won, now)
		return true, false, nil
	}
	if s.Attempts >= MaxAttempts {
		s.end(Exhausted, now)
		return false, false, nil
	}
	if next := s.HintLevel + 1; next <= MaxHintLevel && s.Attempts >= hintThresholds[next] {
		s.HintLevel = next
		return false, true, nil
	}
	return false, false, nil
}

// skip fast-forwards to the next hint level. It reports false at the last level.
func (s *Session) skip(now time.Time) (bool, error) {
	if err := s.requireInProgress(); err != nil {
		return false, err
	}
	s.touch(now)
	if s.HintLevel >= MaxHintLevel {
		return false, nil
	}
	s.HintLevel++
	if t := hintThresholds[s.HintLevel]; s.Attempts < t {
		s.Attempts = t
	}
	return true, nil
}

func (s *Session) change(c Character, now time.Time) {
	s.Character = c
	s.Attempts = 0
	s.HintLevel = 0
	s.touch(now)
}

func (s *Session) abandon(now time.Time) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.touch(now)
	s.end(Abandoned, now)
	return nil
}

// expire times the round out when it has been idle for at least timeout.
func (s *Session) expire(now time.Time, timeout time.Duration) bool {
	if s.Outcome.Terminal() || now.Sub(s.LastActivity) < timeout {
		return false
	}
	s.end(TimedOut, now)
	return true
}

func (s *Session) requireReplayable(now time.Time, window time.Duration) error {
	if !s.Outcome.Terminal() {
		return fmt.Errorf("%w: round is still in progress", ErrInvalidTransition)
	}
	if now.Sub(s.EndedAt) >= window {
		return fmt.Errorf("%w: replay window expired", ErrInvalidTransition)
	}
	return nil
}
