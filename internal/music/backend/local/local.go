// Package local is the in-process audio backend: it resolves tracks with the
// kkdai client plus HTTP probing, decodes them through ffmpeg and streams
// opus frames straight into the voice connection.
package local

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	youtube "github.com/kkdai/youtube/v2"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/track"
)

type playback struct {
	stop chan struct{}
	once sync.Once
}

func (pb *playback) halt() {
	pb.once.Do(func() { close(pb.stop) })
}

// Engine implements backend.Backend for one guild.
type Engine struct {
	yt     *youtube.Client
	probe  *radioProbe
	search *videoSearch

	mu      sync.Mutex
	current *playback
	paused  atomic.Bool

	events    chan backend.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New() *Engine {
	return &Engine{
		yt:     &youtube.Client{},
		probe:  newRadioProbe(),
		search: newVideoSearch(),
		events: make(chan backend.Event, 8),
	}
}

func (e *Engine) Events() <-chan backend.Event {
	return e.events
}

// Resolve handles three shapes of input: a plain search query, a video or
// playlist URL, and any other URL, which is probed as a radio stream.
func (e *Engine) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, backend.ErrNoResults
	}

	if !isURL(query) {
		videoID, err := e.search.firstVideoID(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrNoResults, err)
		}
		return e.resolveVideo(ctx, videoID, track.OriginSearch)
	}

	if isYouTubeURL(query) {
		if listID := playlistID(query); listID != "" {
			return e.resolvePlaylist(ctx, listID)
		}
		videoID, err := extractVideoID(query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrNoResults, err)
		}
		return e.resolveVideo(ctx, videoID, track.OriginSearch)
	}

	ok, _, err := e.probe.IsValidStream(ctx, query)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: not a playable stream: %v", backend.ErrNoResults, err)
	}
	return []track.Track{{
		Title:  streamTitle(query),
		URL:    query,
		Origin: track.OriginRadio,
	}}, nil
}

func (e *Engine) resolveVideo(ctx context.Context, videoID string, origin track.Origin) ([]track.Track, error) {
	video, err := e.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrNoResults, err)
	}
	return []track.Track{{
		Title:     video.Title,
		URL:       watchURL(video.ID),
		Thumbnail: bestThumbnail(video.Thumbnails),
		Origin:    origin,
	}}, nil
}

func (e *Engine) resolvePlaylist(ctx context.Context, listID string) ([]track.Track, error) {
	pl, err := e.yt.GetPlaylistContext(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrNoResults, err)
	}

	tracks := make([]track.Track, 0, len(pl.Videos))
	for _, entry := range pl.Videos {
		tracks = append(tracks, track.Track{
			Title:     entry.Title,
			URL:       watchURL(entry.ID),
			Thumbnail: bestThumbnail(entry.Thumbnails),
			Origin:    track.OriginPlaylist,
		})
	}
	if len(tracks) == 0 {
		return nil, backend.ErrNoResults
	}
	return tracks, nil
}

// Play fills the track's stream handle if it is still empty, spawns ffmpeg
// and starts the streaming goroutine. Any previous playback is halted first.
func (e *Engine) Play(ctx context.Context, v backend.Voice, t *track.Track) error {
	if t.Handle == "" {
		handle, err := e.resolveHandle(ctx, t)
		if err != nil {
			return err
		}
		t.Handle = handle
	}

	reader, cleanup, err := openFFmpeg(t.Handle)
	if err != nil {
		return fmt.Errorf("failed to open stream for %q: %w", t.Title, err)
	}

	pb := &playback{stop: make(chan struct{})}

	e.mu.Lock()
	if e.current != nil {
		e.current.halt()
	}
	e.current = pb
	e.paused.Store(false)
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(pb, reader, cleanup, v, t.Title)
	return nil
}

func (e *Engine) resolveHandle(ctx context.Context, t *track.Track) (string, error) {
	if t.IsRadio() {
		return t.URL, nil
	}

	videoID, err := extractVideoID(t.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrNoResults, err)
	}
	video, err := e.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrNoResults, err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", fmt.Errorf("%w: no audio formats for %q", backend.ErrNoResults, t.Title)
	}
	formats.Sort()

	streamURL, err := e.yt.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("failed to get stream URL for %q: %w", t.Title, err)
	}
	return streamURL, nil
}

func (e *Engine) run(pb *playback, reader readCloser, cleanup func(), v backend.Voice, title string) {
	defer e.wg.Done()
	defer cleanup()

	if err := v.Speaking(true); err != nil {
		log.Printf("[local] Speaking(true) failed: %v", err)
	}
	err := streamPCM(reader, v, pb.stop, &e.paused)
	if sErr := v.Speaking(false); sErr != nil {
		log.Printf("[local] Speaking(false) failed: %v", sErr)
	}

	e.mu.Lock()
	if e.current == pb {
		e.current = nil
	}
	e.mu.Unlock()

	if err != nil {
		log.Printf("[local] Playback of %q ended with error: %v", title, err)
		if !v.Connected() {
			e.emit(backend.Event{Type: backend.EventConnectionLost, Err: err})
			return
		}
		e.emit(backend.Event{Type: backend.EventTrackEnd, Err: err})
		return
	}
	e.emit(backend.Event{Type: backend.EventTrackEnd})
}

func (e *Engine) emit(ev backend.Event) {
	select {
	case e.events <- ev:
	default:
		log.Printf("[local] Dropped backend event (channel full)")
	}
}

// Stop halts the current playback; the streaming goroutine reports the
// track-end event. No-op when nothing is playing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.halt()
	}
}

func (e *Engine) SetPaused(paused bool) error {
	e.paused.Store(paused)
	return nil
}

func (e *Engine) Close() {
	e.Stop()
	e.closeOnce.Do(func() {
		e.wg.Wait()
		close(e.events)
	})
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[len(thumbs)-1].URL
}

// streamTitle derives a display name for a bare stream URL.
func streamTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
