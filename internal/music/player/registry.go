package player

import (
	"log"
	"sync"

	"radio-vecher/internal/music/backend"
)

// BackendFactory builds the audio backend for one guild's session. Which
// implementation it returns (local stream or Lavalink) is decided at wiring
// time; the player does not care.
type BackendFactory func(guildID string) backend.Backend

// ListenerCounter reports non-bot occupancy for a guild's voice channel.
type ListenerCounter func(guildID, channelID string) int

// Registry owns the per-guild sessions. It is created once at startup and
// passed by reference wherever sessions are needed, so tests can run several
// independent registries side by side.
type Registry struct {
	mu         sync.Mutex
	players    map[string]*Player
	radio      RadioStation
	newBackend BackendFactory
	dialer     Dialer
	listeners  ListenerCounter
}

func NewRegistry(radio RadioStation, factory BackendFactory, dialer Dialer, listeners ListenerCounter) *Registry {
	return &Registry{
		players:    make(map[string]*Player),
		radio:      radio,
		newBackend: factory,
		dialer:     dialer,
		listeners:  listeners,
	}
}

// GetOrCreate returns the guild's session, creating it on first use.
func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}

	var counter ListenerFunc
	if r.listeners != nil {
		counter = func(channelID string) int {
			return r.listeners(guildID, channelID)
		}
	}

	p := New(guildID, r.radio, r.newBackend(guildID), r.dialer, counter)
	r.players[guildID] = p
	log.Printf("[Registry] Created player for guild %s", guildID)
	return p
}

// Get returns the guild's session without creating one.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove tears down and forgets the guild's session.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()

	if ok {
		p.Close()
		log.Printf("[Registry] Removed player for guild %s", guildID)
	}
}

// GuildIDs lists the guilds with an active session.
func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	players := r.players
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
}
