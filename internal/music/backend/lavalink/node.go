// Package lavalink is the node-accelerated audio backend. A single Node
// holds the websocket session to the Lavalink server; per-guild players
// drive playback over its REST API while the node routes incoming events
// back to them. Audio itself flows from the node to Discord, not through
// this process.
package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"radio-vecher/internal/music/backend"
)

const clientName = "radio-vecher/1.0"

type NodeConfig struct {
	Host     string
	Port     int
	Password string
	Secure   bool
	// UserID is the bot's Discord user ID, required by the node handshake.
	UserID string
}

// voiceCreds is the gateway voice credential pair the node needs to join a
// channel on the bot's behalf.
type voiceCreds struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (c voiceCreds) complete() bool {
	return c.Token != "" && c.Endpoint != "" && c.SessionID != ""
}

type Node struct {
	cfg  NodeConfig
	http *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	ready     chan struct{}
	players   map[string]*GuildPlayer
	creds     map[string]voiceCreds
	closed    bool
}

func NewNode(cfg NodeConfig) *Node {
	return &Node{
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		ready:   make(chan struct{}),
		players: make(map[string]*GuildPlayer),
		creds:   make(map[string]voiceCreds),
	}
}

func (n *Node) wsURL() string {
	scheme := "ws"
	if n.cfg.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, n.cfg.Host, n.cfg.Port)
}

func (n *Node) restURL(path string) string {
	scheme := "http"
	if n.cfg.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, n.cfg.Host, n.cfg.Port, path)
}

// Connect opens the websocket session and starts the read loop. It blocks
// until the node reports ready or the context expires.
func (n *Node) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", n.cfg.Password)
	header.Set("User-Id", n.cfg.UserID)
	header.Set("Client-Name", clientName)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, n.wsURL(), header)
	if err != nil {
		return fmt.Errorf("lavalink dial failed: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	go n.readLoop(conn)

	select {
	case <-n.ready:
		return nil
	case <-ctx.Done():
		conn.Close()
		return fmt.Errorf("lavalink handshake: %w", ctx.Err())
	}
}

type wsMessage struct {
	Op        string          `json:"op"`
	SessionID string          `json:"sessionId"`
	Resumed   bool            `json:"resumed"`
	Type      string          `json:"type"`
	GuildID   string          `json:"guildId"`
	Reason    string          `json:"reason"`
	Code      int             `json:"code"`
	Track     json.RawMessage `json:"track"`
	Exception *struct {
		Message string `json:"message"`
	} `json:"exception"`
}

func (n *Node) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			n.mu.Lock()
			closed := n.closed
			n.mu.Unlock()
			if !closed {
				log.Printf("[Lavalink] Websocket read failed: %v", err)
				n.broadcast(backend.Event{Type: backend.EventConnectionLost, Err: err})
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[Lavalink] Malformed node message: %v", err)
			continue
		}

		switch msg.Op {
		case "ready":
			n.mu.Lock()
			n.sessionID = msg.SessionID
			n.mu.Unlock()
			select {
			case <-n.ready:
			default:
				close(n.ready)
			}
			log.Printf("[Lavalink] Node session ready: %s", msg.SessionID)
		case "event":
			n.routeEvent(msg)
		}
	}
}

func (n *Node) routeEvent(msg wsMessage) {
	n.mu.Lock()
	p := n.players[msg.GuildID]
	n.mu.Unlock()
	if p == nil {
		return
	}

	switch msg.Type {
	case "TrackEndEvent":
		var err error
		if msg.Reason == "loadFailed" {
			err = fmt.Errorf("node failed to load track")
		}
		p.emit(backend.Event{Type: backend.EventTrackEnd, Err: err})
	case "TrackExceptionEvent":
		reason := "unknown"
		if msg.Exception != nil {
			reason = msg.Exception.Message
		}
		p.emit(backend.Event{Type: backend.EventTrackEnd, Err: fmt.Errorf("track exception: %s", reason)})
	case "TrackStuckEvent":
		p.emit(backend.Event{Type: backend.EventTrackEnd, Err: fmt.Errorf("track stuck")})
	case "WebSocketClosedEvent":
		p.emit(backend.Event{Type: backend.EventConnectionLost, Err: fmt.Errorf("voice websocket closed (code %d)", msg.Code)})
	}
}

func (n *Node) broadcast(ev backend.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.players {
		p.emit(ev)
	}
}

// Player returns the guild's player, creating it on first use. A previously
// closed player is replaced, so a guild whose session was torn down gets a
// live event channel on the next one.
func (n *Node) Player(guildID string) *GuildPlayer {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.players[guildID]
	if !ok || p.isClosed() {
		p = newGuildPlayer(n, guildID)
		n.players[guildID] = p
	}
	return p
}

// HandleVoiceServerUpdate feeds gateway voice server credentials to the
// node. Called from the Discord event handlers.
func (n *Node) HandleVoiceServerUpdate(guildID, token, endpoint string) {
	n.updateCreds(guildID, func(c *voiceCreds) {
		c.Token = token
		c.Endpoint = endpoint
	})
}

// HandleVoiceStateUpdate records the bot's own voice session ID.
func (n *Node) HandleVoiceStateUpdate(guildID, sessionID string) {
	n.updateCreds(guildID, func(c *voiceCreds) {
		c.SessionID = sessionID
	})
}

func (n *Node) updateCreds(guildID string, apply func(*voiceCreds)) {
	n.mu.Lock()
	c := n.creds[guildID]
	apply(&c)
	n.creds[guildID] = c
	n.mu.Unlock()

	if !c.complete() {
		return
	}
	if err := n.updatePlayer(context.Background(), guildID, map[string]any{"voice": c}); err != nil {
		log.Printf("[Lavalink] Failed to push voice credentials for guild %s: %v", guildID, err)
	}
}

func (n *Node) session() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sessionID == "" {
		return "", fmt.Errorf("lavalink node not connected")
	}
	return n.sessionID, nil
}

// updatePlayer PATCHes the guild's player state on the node.
func (n *Node) updatePlayer(ctx context.Context, guildID string, body map[string]any) error {
	sessionID, err := n.session()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return n.doJSON(ctx, http.MethodPatch, path, payload, nil)
}

func (n *Node) destroyPlayer(ctx context.Context, guildID string) error {
	sessionID, err := n.session()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return n.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (n *Node) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.restURL(path), reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", n.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("node returned %s for %s %s", resp.Status, method, path)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Close tears down every player and the websocket session.
func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	conn := n.conn
	players := make([]*GuildPlayer, 0, len(n.players))
	for _, p := range n.players {
		players = append(players, p)
	}
	n.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
	if conn != nil {
		conn.Close()
	}
}
