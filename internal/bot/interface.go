package bot

import (
	"time"

	"radio-vecher/internal/music/player"
	"radio-vecher/internal/music/playlist"
)

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// MusicBot is the surface commands see. The discord package implements it;
// keeping commands behind this interface avoids import cycles and lets the
// tests drive them with fakes.
type MusicBot interface {
	Players() *player.Registry
	Playlists() *playlist.Store
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
	IsAdmin(guildID, userID string) bool
	VoteDuration() time.Duration
}
