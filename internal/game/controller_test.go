package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var naruto = Character{GivenName: "Naruto", FamilyName: "Uzumaki", Series: "Naruto"}

// fakeSource hands out characters in order, cycling.
type fakeSource struct {
	mu    sync.Mutex
	chars []Character
	next  int
	err   error
}

func (f *fakeSource) Draw() (Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Character{}, f.err
	}
	if len(f.chars) == 0 {
		return Character{}, ErrSourceExhausted
	}
	c := f.chars[f.next%len(f.chars)]
	f.next++
	return c, nil
}

type presented struct {
	event   Event
	outcome Outcome
	hint    int // -1 unless PresentHint
}

type fakePresenter struct {
	mu       sync.Mutex
	calls    []presented
	disposed []uuid.UUID
	err      error
	ended    chan Snapshot
}

func (f *fakePresenter) Present(s Snapshot) error {
	f.mu.Lock()
	f.calls = append(f.calls, presented{event: s.Event, outcome: s.Outcome, hint: -1})
	f.mu.Unlock()
	if s.Event == EventEnded && f.ended != nil {
		f.ended <- s
	}
	return f.err
}

func (f *fakePresenter) PresentHint(s Snapshot, h Hint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, presented{event: s.Event, outcome: s.Outcome, hint: h.Level})
	return f.err
}

func (f *fakePresenter) Dispose(s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed = append(f.disposed, s.ID)
	return nil
}

func (f *fakePresenter) hints() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var levels []int
	for _, c := range f.calls {
		if c.hint >= 0 {
			levels = append(levels, c.hint)
		}
	}
	return levels
}

type fakeLedger struct {
	mu   sync.Mutex
	wins map[string]int
}

func (f *fakeLedger) RecordWin(player string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wins == nil {
		f.wins = make(map[string]int)
	}
	f.wins[player]++
}

func (f *fakeLedger) count(player string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wins[player]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	ctrl      *Controller
	source    *fakeSource
	presenter *fakePresenter
	ledger    *fakeLedger
	clock     *fakeClock
}

func newHarness(t *testing.T, chars ...Character) *harness {
	t.Helper()
	if len(chars) == 0 {
		chars = []Character{naruto}
	}
	h := &harness{
		source:    &fakeSource{chars: chars},
		presenter: &fakePresenter{},
		ledger:    &fakeLedger{},
		clock:     newFakeClock(),
	}
	h.ctrl = NewController(h.source, h.presenter, h.ledger, Options{Now: h.clock.Now})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) start(t *testing.T, player string) Snapshot {
	t.Helper()
	snap, err := h.ctrl.Start(player, "channel-1")
	if err != nil {
		t.Fatalf("Start(%s) failed: %v", player, err)
	}
	return snap
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	snap := h.start(t, "alice")

	if snap.Outcome != InProgress {
		t.Errorf("Expected outcome in_progress, got %s", snap.Outcome)
	}
	if snap.Attempts != 0 || snap.HintLevel != 0 {
		t.Errorf("Expected fresh counters, got attempts=%d hint=%d", snap.Attempts, snap.HintLevel)
	}
	if snap.Round != 1 {
		t.Errorf("Expected round 1, got %d", snap.Round)
	}
	if snap.ID == uuid.Nil {
		t.Error("Expected a session id")
	}
	if snap.Character != naruto {
		t.Errorf("Expected %v, got %v", naruto, snap.Character)
	}
	if !snap.LastActivity.Equal(h.clock.Now()) {
		t.Errorf("Expected last activity %v, got %v", h.clock.Now(), snap.LastActivity)
	}
}

func TestStartRejectsSecondActiveRound(t *testing.T) {
	h := newHarness(t)
	first := h.start(t, "alice")

	_, err := h.ctrl.Start("alice", "channel-2")
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("Expected ErrAlreadyActive, got %v", err)
	}

	got, ok := h.ctrl.Lookup("alice")
	if !ok {
		t.Fatal("Expected alice's round to survive")
	}
	if got.ID != first.ID || got.ChannelID != "channel-1" {
		t.Errorf("Expected the original round to be unchanged, got %+v", got.Session)
	}

	// Other players are unaffected.
	h.start(t, "bob")
	if n := h.ctrl.Active(); n != 2 {
		t.Errorf("Expected 2 sessions, got %d", n)
	}
}

func TestStartSourceExhausted(t *testing.T) {
	h := newHarness(t)
	h.source.chars = nil

	_, err := h.ctrl.Start("alice", "channel-1")
	if !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("Expected ErrSourceExhausted, got %v", err)
	}
	if _, ok := h.ctrl.Lookup("alice"); ok {
		t.Error("Expected no session to be created")
	}

	h.source.err = errors.New("disk on fire")
	_, err = h.ctrl.Start("alice", "channel-1")
	if !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("Expected source errors to surface as ErrSourceExhausted, got %v", err)
	}
}

func TestStartAfterFinishedRoundReplacesIt(t *testing.T) {
	h := newHarness(t)
	first := h.start(t, "alice")
	if _, err := h.ctrl.Abandon("alice"); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	second := h.start(t, "alice")
	if second.ID == first.ID {
		t.Error("Expected a new session id")
	}
	if len(h.presenter.disposed) != 1 || h.presenter.disposed[0] != first.ID {
		t.Errorf("Expected the finished round to be disposed, got %v", h.presenter.disposed)
	}
}

func TestGuessAcceptedAnswers(t *testing.T) {
	tests := []struct {
		name  string
		guess string
	}{
		{"given name", "naruto"},
		{"upper case full name", "NARUTO UZUMAKI"},
		{"family name with spaces", "  Uzumaki  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start(t, "alice")

			snap, err := h.ctrl.SubmitGuess("alice", tt.guess)
			if err != nil {
				t.Fatalf("SubmitGuess failed: %v", err)
			}
			if snap.Outcome != Won {
				t.Errorf("Expected won, got %s", snap.Outcome)
			}
			if snap.Attempts != 1 {
				t.Errorf("Expected 1 attempt, got %d", snap.Attempts)
			}
			if n := h.ledger.count("alice"); n != 1 {
				t.Errorf("Expected exactly one recorded win, got %d", n)
			}
		})
	}
}

func TestGuessHintProgression(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")

	wantLevel := map[int]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 1, 6: 2, 7: 2, 8: 2, 9: 3}
	for i := 1; i <= 9; i++ {
		snap, err := h.ctrl.SubmitGuess("alice", "sasuke")
		if err != nil {
			t.Fatalf("Guess %d failed: %v", i, err)
		}
		if snap.Attempts != i {
			t.Errorf("Guess %d: expected attempts %d, got %d", i, i, snap.Attempts)
		}
		if snap.HintLevel != wantLevel[i] {
			t.Errorf("Guess %d: expected hint level %d, got %d", i, wantLevel[i], snap.HintLevel)
		}
		if snap.Outcome != InProgress {
			t.Fatalf("Guess %d: expected in_progress, got %s", i, snap.Outcome)
		}
	}

	got, _ := h.ctrl.Lookup("alice")
	if !got.LastAttempt() {
		t.Error("Expected the round to be on its last attempt")
	}

	snap, err := h.ctrl.SubmitGuess("alice", "sasuke")
	if err != nil {
		t.Fatalf("Guess 10 failed: %v", err)
	}
	if snap.Outcome != Exhausted {
		t.Errorf("Expected exhausted, got %s", snap.Outcome)
	}
	if snap.Attempts != MaxAttempts {
		t.Errorf("Expected %d attempts, got %d", MaxAttempts, snap.Attempts)
	}

	if _, err := h.ctrl.SubmitGuess("alice", "naruto"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected an 11th guess to be rejected, got %v", err)
	}
	if n := h.ledger.count("alice"); n != 0 {
		t.Errorf("Expected no recorded win, got %d", n)
	}

	hints := h.presenter.hints()
	if len(hints) != 3 || hints[0] != 1 || hints[1] != 2 || hints[2] != 3 {
		t.Errorf("Expected hints 1,2,3 to be presented, got %v", hints)
	}
}

func TestGuessCloseFlag(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")

	snap, err := h.ctrl.SubmitGuess("alice", "narutp")
	if err != nil {
		t.Fatalf("SubmitGuess failed: %v", err)
	}
	if !snap.Close {
		t.Error("Expected a near miss to be flagged close")
	}
	if snap.Outcome != InProgress || snap.Attempts != 1 {
		t.Errorf("Expected a close guess to count as a normal miss, got %+v", snap.Session)
	}

	snap, _ = h.ctrl.SubmitGuess("alice", "sasuke")
	if snap.Close {
		t.Error("Expected an unrelated guess not to be flagged close")
	}
}

func TestRequestHintSequence(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")

	steps := []struct {
		level    int
		attempts int
	}{
		{1, 4},
		{2, 6},
		{3, 9},
		{3, 9}, // no-op at the last level
	}
	for i, step := range steps {
		snap, err := h.ctrl.RequestHint("alice")
		if err != nil {
			t.Fatalf("RequestHint %d failed: %v", i+1, err)
		}
		if snap.HintLevel != step.level || snap.Attempts != step.attempts {
			t.Errorf("RequestHint %d: expected level=%d attempts=%d, got level=%d attempts=%d",
				i+1, step.level, step.attempts, snap.HintLevel, snap.Attempts)
		}
	}

	if hints := h.presenter.hints(); len(hints) != 3 {
		t.Errorf("Expected the no-op skip not to present a hint, got %v", hints)
	}

	// The last attempt still counts.
	snap, _ := h.ctrl.SubmitGuess("alice", "sasuke")
	if snap.Outcome != Exhausted {
		t.Errorf("Expected exhausted after the last attempt, got %s", snap.Outcome)
	}
}

func TestRequestHintKeepsHigherAttemptCount(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	for i := 0; i < 5; i++ {
		h.ctrl.SubmitGuess("alice", "sasuke")
	}

	snap, err := h.ctrl.RequestHint("alice")
	if err != nil {
		t.Fatalf("RequestHint failed: %v", err)
	}
	if snap.HintLevel != 2 || snap.Attempts != 6 {
		t.Errorf("Expected level 2 at 6 attempts, got level %d at %d", snap.HintLevel, snap.Attempts)
	}
}

func TestChangeCharacter(t *testing.T) {
	goku := Character{GivenName: "Son", FamilyName: "Goku", Series: "Dragon Ball"}
	h := newHarness(t, naruto, goku)
	first := h.start(t, "alice")
	h.ctrl.RequestHint("alice")

	snap, err := h.ctrl.ChangeCharacter("alice")
	if err != nil {
		t.Fatalf("ChangeCharacter failed: %v", err)
	}
	if snap.Character != goku {
		t.Errorf("Expected %v, got %v", goku, snap.Character)
	}
	if snap.Attempts != 0 || snap.HintLevel != 0 || snap.Outcome != InProgress {
		t.Errorf("Expected reset counters, got %+v", snap.Session)
	}
	if snap.ID != first.ID || snap.Round != first.Round {
		t.Error("Expected the same session and round")
	}

	// A change must not move the hint state through the threshold logic.
	if hints := h.presenter.hints(); len(hints) != 1 {
		t.Errorf("Expected only the skip hint, got %v", hints)
	}
}

func TestChangeCharacterSourceFailureKeepsRound(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	h.ctrl.SubmitGuess("alice", "sasuke")
	h.source.err = errors.New("gone")

	if _, err := h.ctrl.ChangeCharacter("alice"); !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("Expected ErrSourceExhausted, got %v", err)
	}
	got, _ := h.ctrl.Lookup("alice")
	if got.Attempts != 1 || got.Character != naruto {
		t.Errorf("Expected the round to be untouched, got %+v", got.Session)
	}
}

func TestAbandon(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	for i := 0; i < 3; i++ {
		h.ctrl.SubmitGuess("alice", "sasuke")
	}

	snap, err := h.ctrl.Abandon("alice")
	if err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	if snap.Outcome != Abandoned || snap.Attempts != 3 {
		t.Errorf("Expected abandoned at 3 attempts, got %s at %d", snap.Outcome, snap.Attempts)
	}

	if _, err := h.ctrl.SubmitGuess("alice", "naruto"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	got, _ := h.ctrl.Lookup("alice")
	if got.Attempts != 3 || got.Outcome != Abandoned {
		t.Errorf("Expected attempts to stay at 3, got %d (%s)", got.Attempts, got.Outcome)
	}
}

func TestTerminalRoundRejectsMutations(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	h.ctrl.SubmitGuess("alice", "naruto")

	for name, op := range map[string]func(string) (Snapshot, error){
		"guess":  func(p string) (Snapshot, error) { return h.ctrl.SubmitGuess(p, "naruto") },
		"skip":   h.ctrl.RequestHint,
		"change": h.ctrl.ChangeCharacter,
		"end":    h.ctrl.Abandon,
	} {
		if _, err := op("alice"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", name, err)
		}
	}

	got, _ := h.ctrl.Lookup("alice")
	if got.Attempts != 1 || got.HintLevel != 0 || got.Outcome != Won {
		t.Errorf("Expected the won round to be untouched, got %+v", got.Session)
	}
	if n := h.ledger.count("alice"); n != 1 {
		t.Errorf("Expected exactly one win, got %d", n)
	}
}

func TestUnknownPlayerIsRejected(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.SubmitGuess("nobody", "naruto"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	if _, err := h.ctrl.Tick("nobody", h.clock.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from Tick, got %v", err)
	}
}

func TestStaleInputIsRejected(t *testing.T) {
	h := newHarness(t)
	snap := h.start(t, "alice")

	if _, err := h.ctrl.Handle("alice", Input{Action: ActionSkip, Session: uuid.New()}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected a foreign session id to be rejected, got %v", err)
	}
	if _, err := h.ctrl.Handle("alice", Input{Action: ActionSkip, Session: snap.ID, Round: 2}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected a future round to be rejected, got %v", err)
	}
	got, err := h.ctrl.Handle("alice", Input{Action: ActionSkip, Session: snap.ID, Round: 1})
	if err != nil {
		t.Fatalf("Expected a matching input to apply, got %v", err)
	}
	if got.HintLevel != 1 {
		t.Errorf("Expected hint level 1, got %d", got.HintLevel)
	}
}

func TestTickTimesOut(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")

	h.clock.Advance(DefaultInactivityTimeout - time.Second)
	snap, err := h.ctrl.Tick("alice", h.clock.Now())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if snap.Outcome != InProgress {
		t.Fatalf("Expected the round to still be running, got %s", snap.Outcome)
	}

	// Activity restarts the countdown.
	h.ctrl.SubmitGuess("alice", "sasuke")
	h.clock.Advance(DefaultInactivityTimeout - time.Second)
	snap, _ = h.ctrl.Tick("alice", h.clock.Now())
	if snap.Outcome != InProgress {
		t.Fatalf("Expected the guess to reset the timer, got %s", snap.Outcome)
	}

	h.clock.Advance(time.Second)
	snap, err = h.ctrl.Tick("alice", h.clock.Now())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if snap.Outcome != TimedOut {
		t.Errorf("Expected timed_out, got %s", snap.Outcome)
	}
	if _, err := h.ctrl.SubmitGuess("alice", "naruto"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected guesses after a timeout to be rejected, got %v", err)
	}
}

func TestReplayWindow(t *testing.T) {
	goku := Character{GivenName: "Son", FamilyName: "Goku", Series: "Dragon Ball"}

	tests := []struct {
		name  string
		after time.Duration
		ok    bool
	}{
		{"inside window", 10 * time.Second, true},
		{"after window", 40 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, naruto, goku)
			first := h.start(t, "alice")
			h.ctrl.SubmitGuess("alice", "naruto")

			h.clock.Advance(tt.after)
			snap, err := h.ctrl.Replay("alice")
			if !tt.ok {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("Expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Replay failed: %v", err)
			}
			if snap.Outcome != InProgress || snap.Attempts != 0 || snap.HintLevel != 0 {
				t.Errorf("Expected a fresh round, got %+v", snap.Session)
			}
			if snap.ID != first.ID {
				t.Error("Expected replay to keep the session id")
			}
			if snap.Round != 2 {
				t.Errorf("Expected round 2, got %d", snap.Round)
			}
			if snap.Character != goku {
				t.Errorf("Expected a new character, got %v", snap.Character)
			}
		})
	}
}

func TestReplayRequiresFinishedRound(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	if _, err := h.ctrl.Replay("alice"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestPresentationFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.presenter.err = errors.New("discord down")
	h.start(t, "alice")

	snap, err := h.ctrl.SubmitGuess("alice", "naruto")
	if err != nil {
		t.Fatalf("Expected presentation errors not to surface, got %v", err)
	}
	if snap.Outcome != Won {
		t.Errorf("Expected won, got %s", snap.Outcome)
	}
}

func TestInactivityTimer(t *testing.T) {
	p := &fakePresenter{ended: make(chan Snapshot, 1)}
	ctrl := NewController(&fakeSource{chars: []Character{naruto}}, p, nil, Options{
		InactivityTimeout: 20 * time.Millisecond,
		ReplayWindow:      time.Hour,
	})
	defer ctrl.Close()

	if _, err := ctrl.Start("alice", "channel-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case snap := <-p.ended:
		if snap.Outcome != TimedOut {
			t.Errorf("Expected timed_out, got %s", snap.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the inactivity timer to end the round")
	}
}

func TestReplayWindowTimerRemovesSession(t *testing.T) {
	ctrl := NewController(&fakeSource{chars: []Character{naruto}}, nil, nil, Options{
		ReplayWindow: 10 * time.Millisecond,
	})
	defer ctrl.Close()

	if _, err := ctrl.Start("alice", "channel-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctrl.Abandon("alice")

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the finished session to be removed after the replay window")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := ctrl.Replay("alice"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected replay after removal to fail, got %v", err)
	}
}

func TestConcurrentPlayers(t *testing.T) {
	h := newHarness(t)
	players := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if _, err := h.ctrl.Start(p, "channel-"+p); err != nil {
				t.Errorf("Start(%s) failed: %v", p, err)
				return
			}
			for i := 0; i < 3; i++ {
				h.ctrl.SubmitGuess(p, "sasuke")
			}
			h.ctrl.SubmitGuess(p, "naruto")
		}(p)
	}
	wg.Wait()

	for _, p := range players {
		snap, ok := h.ctrl.Lookup(p)
		if !ok {
			t.Fatalf("Expected a session for %s", p)
		}
		if snap.Outcome != Won || snap.Attempts != 4 {
			t.Errorf("%s: expected won in 4, got %s in %d", p, snap.Outcome, snap.Attempts)
		}
		if n := h.ledger.count(p); n != 1 {
			t.Errorf("%s: expected one win, got %d", p, n)
		}
	}
}

// slowPresenter holds alice's end-of-round message until release is closed
// and records the order of presenter calls.
type slowPresenter struct {
	fakePresenter
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	logMu sync.Mutex
	order []string
}

func (p *slowPresenter) record(s string) {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	p.order = append(p.order, s)
}

func (p *slowPresenter) Present(s Snapshot) error {
	if s.Event == EventEnded && s.PlayerID == "alice" {
		p.once.Do(func() { close(p.entered) })
		<-p.release
		p.record("ended:" + s.ID.String())
	}
	return p.fakePresenter.Present(s)
}

func (p *slowPresenter) Dispose(s Snapshot) error {
	p.record("dispose:" + s.ID.String())
	return p.fakePresenter.Dispose(s)
}

func TestSlowPresentationDoesNotBlockOtherPlayers(t *testing.T) {
	p := &slowPresenter{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := NewController(&fakeSource{chars: []Character{naruto}}, p, nil, Options{ReplayWindow: time.Hour})
	defer ctrl.Close()

	first, err := ctrl.Start("alice", "channel-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	winDone := make(chan struct{})
	go func() {
		defer close(winDone)
		ctrl.SubmitGuess("alice", "naruto")
	}()
	<-p.entered

	others := make(chan error, 1)
	go func() {
		if _, err := ctrl.Start("bob", "channel-2"); err != nil {
			others <- err
			return
		}
		if _, ok := ctrl.Lookup("bob"); !ok {
			others <- errors.New("bob has no session")
			return
		}
		if snap, ok := ctrl.Lookup("alice"); !ok || snap.Outcome != Won {
			others <- errors.New("alice's win is not visible while it is being presented")
			return
		}
		if _, err := ctrl.Start("alice", "channel-1"); err != nil {
			others <- err
			return
		}
		others <- nil
	}()

	select {
	case err := <-others:
		if err != nil {
			t.Fatalf("Expected other calls to proceed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		close(p.release)
		t.Fatal("Expected other calls not to wait on alice's presentation")
	}

	close(p.release)
	<-winDone

	p.logMu.Lock()
	defer p.logMu.Unlock()
	expected := []string{"ended:" + first.ID.String(), "dispose:" + first.ID.String()}
	if len(p.order) != 2 || p.order[0] != expected[0] || p.order[1] != expected[1] {
		t.Errorf("Expected %v, got %v", expected, p.order)
	}
}

func TestCloseRejectsInputsAndArmsNoTimers(t *testing.T) {
	h := newHarness(t)
	h.start(t, "alice")
	h.start(t, "bob")
	h.ctrl.Close()

	if _, err := h.ctrl.SubmitGuess("alice", "naruto"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected guess after close to be rejected, got %v", err)
	}
	if _, err := h.ctrl.Start("carol", "channel-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected start after close to be rejected, got %v", err)
	}
	if n := h.ledger.count("alice"); n != 0 {
		t.Errorf("Expected no win recorded after close, got %d", n)
	}

	h.clock.Advance(DefaultInactivityTimeout)
	if _, err := h.ctrl.Tick("bob", h.clock.Now()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	for _, player := range []string{"alice", "bob"} {
		e := h.ctrl.lookup(player)
		e.mu.Lock()
		if e.activity != nil || e.replay != nil {
			t.Errorf("%s: expected no timers after close", player)
		}
		e.mu.Unlock()
	}
}
