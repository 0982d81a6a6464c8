package discord

import (
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"radio-vecher/internal/music/backend"
)

// Join implements player.Dialer. In local mode a full voice connection with
// UDP audio is opened; in Lavalink mode only the gateway voice state is set
// and the node streams the audio itself.
func (b *Bot) Join(guildID, channelID string) (backend.Voice, error) {
	if b.cfg.UseLavalink {
		if err := b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
			return nil, fmt.Errorf("voice join failed: %w", err)
		}
		return &nodeVoice{session: b.dg, guildID: guildID, channelID: channelID}, nil
	}

	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice join failed: %w", err)
	}
	return &voiceConn{vc: vc}, nil
}

// listenerCount counts non-bot users in a voice channel.
func (b *Bot) listenerCount(guildID, channelID string) int {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := b.dg.State.Member(guildID, vs.UserID)
		if err == nil && member.User != nil && member.User.Bot {
			continue
		}
		count++
	}
	return count
}

// voiceConn adapts *discordgo.VoiceConnection to backend.Voice.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConn) GuildID() string   { return v.vc.GuildID }
func (v *voiceConn) ChannelID() string { return v.vc.ChannelID }

func (v *voiceConn) Connected() bool {
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.Ready
}

func (v *voiceConn) Move(channelID string) error {
	return v.vc.ChangeChannel(channelID, false, true)
}

func (v *voiceConn) Disconnect() error {
	return v.vc.Disconnect()
}

func (v *voiceConn) Speaking(on bool) error {
	return v.vc.Speaking(on)
}

func (v *voiceConn) OpusSend() chan<- []byte {
	return v.vc.OpusSend
}

// nodeVoice is the Lavalink-mode stand-in: the gateway voice state exists
// but audio bypasses this process, so OpusSend is never used.
type nodeVoice struct {
	session *discordgo.Session

	mu        sync.Mutex
	guildID   string
	channelID string
	gone      bool
}

func (v *nodeVoice) GuildID() string { return v.guildID }

func (v *nodeVoice) ChannelID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channelID
}

func (v *nodeVoice) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.gone
}

func (v *nodeVoice) Move(channelID string) error {
	if err := v.session.ChannelVoiceJoinManual(v.guildID, channelID, false, true); err != nil {
		return err
	}
	v.mu.Lock()
	v.channelID = channelID
	v.mu.Unlock()
	return nil
}

func (v *nodeVoice) Disconnect() error {
	err := v.session.ChannelVoiceJoinManual(v.guildID, "", false, true)
	v.mu.Lock()
	v.gone = true
	v.mu.Unlock()
	return err
}

func (v *nodeVoice) Speaking(bool) error { return nil }

func (v *nodeVoice) OpusSend() chan<- []byte {
	log.Printf("[WARN] OpusSend requested in Lavalink mode for guild %s", v.guildID)
	return nil
}
