package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/player"
	"radio-vecher/internal/music/track"
)

type stubBackend struct{ events chan backend.Event }

func newStubBackend() *stubBackend {
	return &stubBackend{events: make(chan backend.Event, 4)}
}

func (b *stubBackend) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	return nil, backend.ErrNoResults
}
func (b *stubBackend) Play(ctx context.Context, v backend.Voice, t *track.Track) error { return nil }
func (b *stubBackend) Stop()                                                           {}
func (b *stubBackend) SetPaused(paused bool) error                                     { return nil }
func (b *stubBackend) Events() <-chan backend.Event                                    { return b.events }
func (b *stubBackend) Close()                                                          { close(b.events) }

type stubVoice struct{ guildID, channelID string }

func (v *stubVoice) GuildID() string             { return v.guildID }
func (v *stubVoice) ChannelID() string           { return v.channelID }
func (v *stubVoice) Connected() bool             { return true }
func (v *stubVoice) Move(channelID string) error { v.channelID = channelID; return nil }
func (v *stubVoice) Disconnect() error           { return nil }
func (v *stubVoice) Speaking(bool) error         { return nil }
func (v *stubVoice) OpusSend() chan<- []byte     { return make(chan []byte, 4) }

type stubDialer struct{}

func (stubDialer) Join(guildID, channelID string) (backend.Voice, error) {
	return &stubVoice{guildID: guildID, channelID: channelID}, nil
}

func newVoiceTestBot(t *testing.T, guild *discordgo.Guild) *Bot {
	t.Helper()
	st := discordgo.NewState()
	require.NoError(t, st.GuildAdd(guild))

	b := &Bot{dg: &discordgo.Session{State: st}}
	b.players = player.NewRegistry(
		player.RadioStation{Name: "R", URL: "http://radio.example/live"},
		func(string) backend.Backend { return newStubBackend() },
		stubDialer{},
		b.listenerCount,
	)
	t.Cleanup(b.players.Close)
	return b
}

func voiceEvent(guildID, userID string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: guildID, UserID: userID},
	}
}

func TestVoiceStateUpdate_TearsDownAbandonedSession(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", ChannelID: "vc", UserID: "u1"},
		},
	}
	b := newVoiceTestBot(t, guild)

	p := b.players.GetOrCreate("g1")
	require.NoError(t, p.Connect("vc"))

	// A listener is still in the channel: the session survives.
	b.onVoiceStateUpdate(b.dg, voiceEvent("g1", "u2"))
	_, ok := b.players.Get("g1")
	assert.True(t, ok)

	// The last listener leaves.
	guild.VoiceStates = nil
	b.onVoiceStateUpdate(b.dg, voiceEvent("g1", "u1"))
	_, ok = b.players.Get("g1")
	assert.False(t, ok)
}

func TestVoiceStateUpdate_BotOnlyChannelCountsAsEmpty(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", ChannelID: "vc", UserID: "bot1"},
		},
	}
	b := newVoiceTestBot(t, guild)
	require.NoError(t, b.dg.State.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		User:    &discordgo.User{ID: "bot1", Bot: true},
	}))

	p := b.players.GetOrCreate("g1")
	require.NoError(t, p.Connect("vc"))

	b.onVoiceStateUpdate(b.dg, voiceEvent("g1", "u1"))
	_, ok := b.players.Get("g1")
	assert.False(t, ok)
}

func TestVoiceStateUpdate_NoSessionIsNoop(t *testing.T) {
	b := newVoiceTestBot(t, &discordgo.Guild{ID: "g1"})
	b.onVoiceStateUpdate(b.dg, voiceEvent("g1", "u1"))
	_, ok := b.players.Get("g1")
	assert.False(t, ok)
}
