// Package backend defines the audio backend contract: resolving queries into
// tracks and streaming them into a voice connection. Two implementations
// exist, a local ffmpeg-based one and a Lavalink client; the player never
// depends on which one is active.
package backend

import (
	"context"
	"errors"

	"radio-vecher/internal/music/track"
)

var ErrNoResults = errors.New("no playable result found")

type EventType int

const (
	// EventTrackEnd fires when the current track stops for any reason:
	// natural end, explicit stop, or stream error (carried in Event.Err).
	EventTrackEnd EventType = iota

	// EventConnectionLost fires when the backend loses its transport while a
	// track was playing.
	EventConnectionLost
)

type Event struct {
	Type EventType
	Err  error
}

// Voice is the live connection to a guild's voice channel. The discordgo
// adapter implements it in production; tests use fakes.
type Voice interface {
	GuildID() string
	ChannelID() string
	Connected() bool
	Move(channelID string) error
	Disconnect() error
	Speaking(bool) error
	OpusSend() chan<- []byte
}

// Resolver is the query-resolution half of a backend, split out so the
// playlist store can resolve tracks without holding a full backend.
type Resolver interface {
	// Resolve turns a search query, direct URL, or playlist URL into one or
	// more tracks. A playlist URL yields every contained track. Returns
	// ErrNoResults (possibly wrapped) when nothing playable was found.
	Resolve(ctx context.Context, query string) ([]track.Track, error)
}

// Backend resolves and plays audio for a single guild.
type Backend interface {
	Resolver

	// Play fills the track's handle if needed and starts playback into the
	// voice connection. It returns once playback has started; the end of the
	// track is reported through Events.
	Play(ctx context.Context, v Voice, t *track.Track) error

	// Stop aborts the current track. The backend emits EventTrackEnd.
	Stop()

	SetPaused(paused bool) error

	Events() <-chan Event

	// Close stops playback and closes the event channel.
	Close()
}
