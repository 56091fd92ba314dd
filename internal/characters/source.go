package characters

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a loaded roster is served before the file is read again.
const DefaultTTL = 5 * time.Minute

// record is one roster entry as stored in personnages.json.
type record struct {
	GivenName  string `json:"prenom"`
	FamilyName string `json:"nom"`
	Series     string `json:"anime"`
	Image      string `json:"image"`
}

// cachedRoster wraps a loaded roster with an expiration time.
type cachedRoster struct {
	value     []game.Character
	expiresAt time.Time
}

// FileSource draws characters from a JSON roster file. It is safe for
// concurrent use.
type FileSource struct {
	path string
	ttl  time.Duration
	now  func() time.Time
	pick func(n int) int

	mu     sync.RWMutex
	roster cachedRoster
	loaded bool
}

// NewFileSource creates a FileSource for path. If ttl <= 0, DefaultTTL is used.
func NewFileSource(path string, ttl time.Duration) *FileSource {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileSource{
		path: path,
		ttl:  ttl,
		now:  time.Now,
		pick: rand.Intn,
	}
}

// Draw returns a character chosen uniformly at random.
func (s *FileSource) Draw() (game.Character, error) {
	roster := s.current()
	if len(roster) == 0 {
		return game.Character{}, fmt.Errorf("%w: roster %s is empty", game.ErrSourceExhausted, s.path)
	}
	return roster[s.pick(len(roster))], nil
}

// Len returns the number of characters currently loaded.
func (s *FileSource) Len() int {
	return len(s.current())
}

// Reload reads the roster file now.
func (s *FileSource) Reload() error {
	roster, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.roster = cachedRoster{value: roster, expiresAt: s.now().Add(s.ttl)}
	s.loaded = true
	s.mu.Unlock()
	log.Info().Str("path", s.path).Int("characters", len(roster)).Msg("Roster loaded")
	return nil
}

// current returns the cached roster, reloading it when expired. A failed
// reload keeps the previous roster for another TTL.
func (s *FileSource) current() []game.Character {
	s.mu.RLock()
	item, loaded := s.roster, s.loaded
	s.mu.RUnlock()
	if loaded && s.now().Before(item.expiresAt) {
		return item.value
	}

	if err := s.Reload(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Could not reload roster")
		s.mu.Lock()
		s.roster.expiresAt = s.now().Add(s.ttl)
		s.loaded = true
		item = s.roster
		s.mu.Unlock()
		return item.value
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster.value
}

// Load reads and parses a roster file.
func Load(path string) ([]game.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes a roster. Fields are trimmed, a missing series becomes
// "Unknown" and entries without any name are skipped.
func Parse(data []byte) ([]game.Character, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error decoding roster: %w", err)
	}

	roster := make([]game.Character, 0, len(records))
	for _, r := range records {
		c := game.Character{
			GivenName:  strings.TrimSpace(r.GivenName),
			FamilyName: strings.TrimSpace(r.FamilyName),
			Series:     strings.TrimSpace(r.Series),
			ImageURL:   strings.TrimSpace(r.Image),
		}
		if c.GivenName == "" && c.FamilyName == "" {
			continue
		}
		if c.Series == "" {
			c.Series = "Unknown"
		}
		roster = append(roster, c)
	}
	return roster, nil
}
