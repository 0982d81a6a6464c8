// Package web serves a small read-only JSON dashboard over the playback
// sessions and playlists.
package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"radio-vecher/internal/music/player"
	"radio-vecher/internal/music/playlist"
	"radio-vecher/internal/version"
)

type trackView struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type guildView struct {
	GuildID    string      `json:"guild_id"`
	State      string      `json:"state"`
	NowPlaying *trackView  `json:"now_playing,omitempty"`
	Queue      []trackView `json:"queue"`
	Radio      string      `json:"radio_station"`
}

type playlistView struct {
	Name     string `json:"name"`
	Tracks   int    `json:"tracks"`
	Approved bool   `json:"approved"`
}

// Serve runs the dashboard until the process exits.
func Serve(addr string, players *player.Registry, store *playlist.Store) {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"app":     version.AppName,
			"version": version.Version,
			"guilds":  players.GuildIDs(),
		})
	})

	mux.HandleFunc("/guilds/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/guilds/")
		guildID, tail, _ := strings.Cut(rest, "/")
		if guildID == "" {
			http.NotFound(w, r)
			return
		}

		switch tail {
		case "":
			serveGuild(w, players, guildID)
		case "playlists":
			serveGuildPlaylists(w, store, guildID)
		default:
			http.NotFound(w, r)
		}
	})

	log.Printf("[INFO] Dashboard listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[ERR] Dashboard server stopped: %v", err)
	}
}

func serveGuild(w http.ResponseWriter, players *player.Registry, guildID string) {
	p, ok := players.Get(guildID)
	if !ok {
		http.Error(w, "no session for guild", http.StatusNotFound)
		return
	}

	current, state := p.Current()
	view := guildView{
		GuildID: guildID,
		State:   state.String(),
		Queue:   []trackView{},
		Radio:   p.Radio().Name,
	}
	if current != nil {
		view.NowPlaying = &trackView{Title: current.Title, URL: current.URL, Thumbnail: current.Thumbnail}
	}
	for _, t := range p.Queue() {
		view.Queue = append(view.Queue, trackView{Title: t.Title, URL: t.URL, Thumbnail: t.Thumbnail})
	}
	writeJSON(w, view)
}

func serveGuildPlaylists(w http.ResponseWriter, store *playlist.Store, guildID string) {
	lists, err := store.List(guildID, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]playlistView, 0, len(lists))
	for _, pl := range lists {
		views = append(views, playlistView{Name: pl.Name, Tracks: len(pl.Tracks), Approved: pl.Approved})
	}
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERR] Failed to encode dashboard response: %v", err)
	}
}
