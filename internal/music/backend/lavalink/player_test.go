package lavalink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/player"
)

func testNode() *Node {
	return NewNode(NodeConfig{Host: "localhost", Port: 2333, Password: "pw", UserID: "1"})
}

func TestGuildPlayer_CloseEndsEventStream(t *testing.T) {
	n := testNode()
	p := n.Player("g1")

	p.Close()

	select {
	case _, ok := <-p.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("event channel still open after Close")
	}

	// A second Close and a late node event must both be no-ops.
	p.Close()
	p.emit(backend.Event{Type: backend.EventTrackEnd})
}

func TestNode_PlayerReplacesClosed(t *testing.T) {
	n := testNode()
	first := n.Player("g1")
	first.Close()

	second := n.Player("g1")
	require.NotSame(t, first, second)
	assert.False(t, second.isClosed())

	select {
	case <-second.Events():
		t.Fatal("fresh player delivered an unexpected event")
	default:
	}
}

type noopVoice struct{ guildID, channelID string }

func (v *noopVoice) GuildID() string             { return v.guildID }
func (v *noopVoice) ChannelID() string           { return v.channelID }
func (v *noopVoice) Connected() bool             { return true }
func (v *noopVoice) Move(channelID string) error { v.channelID = channelID; return nil }
func (v *noopVoice) Disconnect() error           { return nil }
func (v *noopVoice) Speaking(bool) error         { return nil }
func (v *noopVoice) OpusSend() chan<- []byte     { return make(chan []byte, 4) }

type noopDialer struct{}

func (noopDialer) Join(guildID, channelID string) (backend.Voice, error) {
	return &noopVoice{guildID: guildID, channelID: channelID}, nil
}

// A session running on the node backend must tear down cleanly even when the
// node was never reached; Close waits for the event loop, which only exits
// once the backend closes its channel.
func TestSession_CloseReturnsOnNodeBackend(t *testing.T) {
	n := testNode()
	p := player.New("g1", player.RadioStation{Name: "R", URL: "http://radio.example/live"}, n.Player("g1"), noopDialer{}, nil)

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session close did not return")
	}
}
