package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/track"
)

// loadResult is the /v4/loadtracks response. Data's shape depends on
// LoadType, so it stays raw until the type is known.
type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type apiTrack struct {
	Encoded string `json:"encoded"`
	Info    struct {
		Title      string `json:"title"`
		URI        string `json:"uri"`
		ArtworkURL string `json:"artworkUrl"`
		IsStream   bool   `json:"isStream"`
		SourceName string `json:"sourceName"`
	} `json:"info"`
}

type apiPlaylist struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []apiTrack `json:"tracks"`
}

// GuildPlayer implements backend.Backend for one guild on top of a shared
// Node. The encoded track string from the node rides in Track.Handle.
type GuildPlayer struct {
	node    *Node
	guildID string

	mu     sync.Mutex
	closed bool
	events chan backend.Event
}

func newGuildPlayer(n *Node, guildID string) *GuildPlayer {
	return &GuildPlayer{
		node:    n,
		guildID: guildID,
		events:  make(chan backend.Event, 8),
	}
}

func (p *GuildPlayer) Events() <-chan backend.Event {
	return p.events
}

func (p *GuildPlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *GuildPlayer) emit(ev backend.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		log.Printf("[Lavalink] Dropped event for guild %s (channel full)", p.guildID)
	}
}

// Resolve loads tracks through the node. Bare queries become YouTube
// searches; URLs go through as-is, so the node decides whether they are
// videos, playlists or live streams.
func (p *GuildPlayer) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, backend.ErrNoResults
	}

	identifier := query
	isRawURL := strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
	if !isRawURL {
		identifier = "ytsearch:" + query
	}

	var result loadResult
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := p.node.doJSON(ctx, "GET", path, nil, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrNoResults, err)
	}

	switch result.LoadType {
	case "track":
		var t apiTrack
		if err := unmarshal(result.Data, &t); err != nil {
			return nil, err
		}
		return []track.Track{toTrack(t, originFor(t, track.OriginSearch))}, nil
	case "search":
		var list []apiTrack
		if err := unmarshal(result.Data, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, backend.ErrNoResults
		}
		return []track.Track{toTrack(list[0], track.OriginSearch)}, nil
	case "playlist":
		var pl apiPlaylist
		if err := unmarshal(result.Data, &pl); err != nil {
			return nil, err
		}
		out := make([]track.Track, 0, len(pl.Tracks))
		for _, t := range pl.Tracks {
			out = append(out, toTrack(t, track.OriginPlaylist))
		}
		if len(out) == 0 {
			return nil, backend.ErrNoResults
		}
		return out, nil
	case "empty":
		return nil, backend.ErrNoResults
	default:
		return nil, fmt.Errorf("%w: node load failed (%s)", backend.ErrNoResults, result.LoadType)
	}
}

// originFor treats direct live streams as radio.
func originFor(t apiTrack, fallback track.Origin) track.Origin {
	if t.Info.IsStream && t.Info.SourceName == "http" {
		return track.OriginRadio
	}
	return fallback
}

func toTrack(t apiTrack, origin track.Origin) track.Track {
	title := t.Info.Title
	if title == "" {
		title = t.Info.URI
	}
	return track.Track{
		Title:     title,
		URL:       t.Info.URI,
		Thumbnail: t.Info.ArtworkURL,
		Origin:    origin,
		Handle:    t.Encoded,
	}
}

func unmarshal(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed node response: %v", backend.ErrNoResults, err)
	}
	return nil
}

// Play fills the encoded track handle if missing and PATCHes the node's
// player. The voice connection argument is only a join marker here; audio
// flows from the node directly.
func (p *GuildPlayer) Play(ctx context.Context, v backend.Voice, t *track.Track) error {
	if t.Handle == "" {
		resolved, err := p.Resolve(ctx, t.URL)
		if err != nil {
			return err
		}
		t.Handle = resolved[0].Handle
		if t.Title == "" {
			t.Title = resolved[0].Title
		}
	}

	body := map[string]any{
		"track":  map[string]any{"encoded": t.Handle},
		"paused": false,
	}
	if err := p.node.updatePlayer(ctx, p.guildID, body); err != nil {
		return fmt.Errorf("failed to start playback of %q: %w", t.Title, err)
	}
	return nil
}

func (p *GuildPlayer) Stop() {
	body := map[string]any{"track": map[string]any{"encoded": nil}}
	if err := p.node.updatePlayer(context.Background(), p.guildID, body); err != nil {
		log.Printf("[Lavalink] Failed to stop playback for guild %s: %v", p.guildID, err)
	}
}

func (p *GuildPlayer) SetPaused(paused bool) error {
	return p.node.updatePlayer(context.Background(), p.guildID, map[string]any{"paused": paused})
}

// Close destroys the node-side player and closes the event channel, ending
// any consumer ranging over Events(). Safe to call more than once; the node
// teardown and a session teardown can both reach it.
func (p *GuildPlayer) Close() {
	if err := p.node.destroyPlayer(context.Background(), p.guildID); err != nil {
		log.Printf("[Lavalink] Failed to destroy player for guild %s: %v", p.guildID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
}
