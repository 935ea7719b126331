package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the guild sessions. It holds no global state; construct one
// per bot and pass it where it is needed.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	connector Connector
	newPlayer PlayerFactory
	log       zerolog.Logger
}

// NewRegistry returns an empty registry whose sessions connect through
// connector and play through players built by newPlayer.
func NewRegistry(connector Connector, newPlayer PlayerFactory, log zerolog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		connector: connector,
		newPlayer: newPlayer,
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// Get returns the live session for guildID, if any.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Create registers a fresh session for guildID. An existing live session is
// never replaced.
func (r *Registry) Create(guildID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[guildID]; ok {
		return nil, ErrAlreadyExists
	}
	s := newSession(guildID, r.connector, r.newPlayer, r.log.With().Str("component", "session").Logger())
	r.sessions[guildID] = s
	r.log.Debug().Str("guild_id", guildID).Str("session_id", s.ID()).Msg("session created")
	return s, nil
}

// Destroy tears the session down and removes it. It reports false when no
// session existed. Teardown runs without the registry lock, so other guilds
// are not held up by a slow disconnect; the entry stays registered until
// teardown returns, which keeps Create rejecting the guild meanwhile. The
// entry is removed even when teardown fails; the teardown error is returned.
func (r *Registry) Destroy(guildID string) (bool, error) {
	s, ok := r.Get(guildID)
	if !ok {
		return false, nil
	}
	err := s.Close()
	r.remove(s)

	if err != nil {
		r.log.Warn().Err(err).Str("guild_id", guildID).Msg("session teardown failed")
	} else {
		r.log.Debug().Str("guild_id", guildID).Msg("session destroyed")
	}
	return true, err
}

// Discard tears s down and removes it if it is still the registered
// session for its guild. A newer session for the same guild is left alone.
func (r *Registry) Discard(s *Session) error {
	err := s.Close()
	r.remove(s)
	return err
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.guildID]; ok && cur == s {
		delete(r.sessions, s.guildID)
	}
}

// Guilds returns the guild IDs with a live session, sorted.
func (r *Registry) Guilds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll destroys every session. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, id := range r.Guilds() {
		if _, err := r.Destroy(id); err != nil {
			r.log.Warn().Err(err).Str("guild_id", id).Msg("close on shutdown failed")
		}
	}
}
