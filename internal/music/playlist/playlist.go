package playlist

import (
	"slices"

	"radio-vecher/internal/music/voting"
)

// TrackRef is a playlist entry: just enough to re-resolve the track when the
// playlist is played.
type TrackRef struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// Playlist is a named, collaboratively-voted track list owned by a guild.
// Names are unique per guild, case-insensitively.
type Playlist struct {
	Name     string     `json:"name"`
	AuthorID string     `json:"author_id"`
	Tracks   []TrackRef `json:"tracks"`
	Approved bool       `json:"approved"`
}

func (p *Playlist) clone() *Playlist {
	c := *p
	c.Tracks = slices.Clone(p.Tracks)
	return &c
}

// record is the per-guild persisted document. Ballots are keyed by the
// lowercased playlist name.
type record struct {
	Playlists []*Playlist               `json:"playlists"`
	Ballots   map[string]*voting.Ballot `json:"voting_status"`
}
