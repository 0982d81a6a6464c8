package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/track"
)

// fakeVoice is a connected voice channel that swallows opus frames.
type fakeVoice struct {
	mu        sync.Mutex
	guildID   string
	channelID string
	connected bool
}

func (v *fakeVoice) GuildID() string { return v.guildID }
func (v *fakeVoice) ChannelID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channelID
}
func (v *fakeVoice) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}
func (v *fakeVoice) Move(channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.channelID = channelID
	return nil
}
func (v *fakeVoice) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = false
	return nil
}
func (v *fakeVoice) Speaking(bool) error     { return nil }
func (v *fakeVoice) OpusSend() chan<- []byte { return make(chan []byte, 64) }

type fakeDialer struct {
	mu    sync.Mutex
	joins int
	err   error
}

func (d *fakeDialer) Join(guildID, channelID string) (backend.Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.joins++
	return &fakeVoice{guildID: guildID, channelID: channelID, connected: true}, nil
}

// fakeBackend plays instantly and reports track ends when told to. Stop
// emits EventTrackEnd like the real backends do.
type fakeBackend struct {
	mu       sync.Mutex
	results  map[string][]track.Track
	played   []string
	playErrs int // fail this many Play calls before succeeding
	paused   []bool
	stops    int
	events   chan backend.Event
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		results: map[string][]track.Track{},
		events:  make(chan backend.Event, 16),
	}
}

func (f *fakeBackend) Resolve(_ context.Context, query string) ([]track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tracks, ok := f.results[query]
	if !ok {
		return nil, backend.ErrNoResults
	}
	return tracks, nil
}

func (f *fakeBackend) Play(_ context.Context, _ backend.Voice, t *track.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErrs > 0 {
		f.playErrs--
		return fmt.Errorf("stream refused")
	}
	f.played = append(f.played, t.Title)
	return nil
}

func (f *fakeBackend) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.events <- backend.Event{Type: backend.EventTrackEnd}
}

func (f *fakeBackend) SetPaused(paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, paused)
	return nil
}

func (f *fakeBackend) Events() <-chan backend.Event { return f.events }

func (f *fakeBackend) Close() { close(f.events) }

func (f *fakeBackend) endTrack() {
	f.events <- backend.Event{Type: backend.EventTrackEnd}
}

func (f *fakeBackend) playedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

var testStation = RadioStation{Name: "Test FM", URL: "http://radio.test/stream"}

func newTestPlayer(t *testing.T, fb *fakeBackend, listeners ListenerFunc) *Player {
	t.Helper()
	if listeners == nil {
		listeners = func(string) int { return 1 }
	}
	p := New("guild-1", testStation, fb, &fakeDialer{}, listeners)
	p.retryDelay = 0
	t.Cleanup(p.Close)
	return p
}

func someTracks(n int) []track.Track {
	out := make([]track.Track, n)
	for i := range out {
		out[i] = track.Track{
			Title:  fmt.Sprintf("track-%d", i+1),
			URL:    fmt.Sprintf("http://yt.test/%d", i+1),
			Origin: track.OriginSearch,
		}
	}
	return out
}

func TestPlayer_FirstTrackPlaysImmediately(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(3)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	titles, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)
	assert.Equal(t, []string{"track-1", "track-2", "track-3"}, titles)

	current, state := p.Current()
	require.NotNil(t, current)
	assert.Equal(t, "track-1", current.Title)
	assert.Equal(t, StatePlayingTrack, state)
	assert.Len(t, p.Queue(), 2)
	assert.Equal(t, []string{"track-1"}, fb.playedTitles())
}

func TestPlayer_UnresolvableQuery(t *testing.T) {
	fb := newFakeBackend()
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "nothing")
	assert.ErrorIs(t, err, backend.ErrNoResults)
}

func TestPlayer_TrackEndAdvancesFIFO(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(2)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	fb.endTrack()

	require.Eventually(t, func() bool {
		current, _ := p.Current()
		return current != nil && current.Title == "track-2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, p.Queue())
}

func TestPlayer_RadioFallbackOnEmptyQueue(t *testing.T) {
	fb := newFakeBackend()
	fb.results["one"] = someTracks(1)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "one")
	require.NoError(t, err)

	fb.endTrack()

	require.Eventually(t, func() bool {
		current, state := p.Current()
		return current != nil && current.IsRadio() && state == StatePlayingRadio
	}, 2*time.Second, 10*time.Millisecond)

	current, _ := p.Current()
	assert.Equal(t, testStation.Name, current.Title)
	assert.Equal(t, testStation.URL, current.URL)
}

func TestPlayer_RadioRetryExhaustion(t *testing.T) {
	fb := newFakeBackend()
	fb.playErrs = 100 // every attempt fails
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	err := p.PlayDefaultRadio()
	require.ErrorIs(t, err, ErrPlayback)

	current, state := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, StateIdle, state)

	fb.mu.Lock()
	attemptsUsed := 100 - fb.playErrs
	fb.mu.Unlock()
	assert.Equal(t, maxReconnectAttempts, attemptsUsed)
}

func TestPlayer_RadioRecoversWithinBudget(t *testing.T) {
	fb := newFakeBackend()
	fb.playErrs = 3 // fourth attempt succeeds
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	require.NoError(t, p.PlayDefaultRadio())

	current, state := p.Current()
	require.NotNil(t, current)
	assert.True(t, current.IsRadio())
	assert.Equal(t, StatePlayingRadio, state)
}

func TestPlayer_PlayRadioWithoutChannel(t *testing.T) {
	fb := newFakeBackend()
	p := newTestPlayer(t, fb, nil)

	assert.ErrorIs(t, p.PlayDefaultRadio(), ErrNotConnected)
}

func TestPlayer_SkipWhenIdle(t *testing.T) {
	fb := newFakeBackend()
	p := newTestPlayer(t, fb, nil)

	assert.ErrorIs(t, p.Skip(), ErrNothingPlaying)
}

func TestPlayer_VoteSkipQuorum(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(2)
	p := newTestPlayer(t, fb, func(string) int { return 4 })
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	res, err := p.VoteSkip("alice")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, res.Required)

	// Same voter again does not advance the tally.
	res, err = p.VoteSkip("alice")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, res.Votes)

	res, err = p.VoteSkip("bob")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.Eventually(t, func() bool {
		current, _ := p.Current()
		return current != nil && current.Title == "track-2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPlayer_VoteSkipSingleListenerBypass(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(1)
	p := newTestPlayer(t, fb, func(string) int { return 1 })
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	res, err := p.VoteSkip("alice")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestPlayer_VoteSkipRadioBypass(t *testing.T) {
	fb := newFakeBackend()
	p := newTestPlayer(t, fb, func(string) int { return 5 })
	require.NoError(t, p.Connect("ch-1"))
	require.NoError(t, p.PlayDefaultRadio())

	res, err := p.VoteSkip("alice")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestPlayer_VoteSkipResetsOnTrackChange(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(3)
	p := newTestPlayer(t, fb, func(string) int { return 6 }) // required = 3
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	res, err := p.VoteSkip("alice")
	require.NoError(t, err)
	require.Equal(t, 1, res.Votes)

	// Natural end moves to track-2; alice's old vote must not carry over.
	fb.endTrack()
	require.Eventually(t, func() bool {
		current, _ := p.Current()
		return current != nil && current.Title == "track-2"
	}, 2*time.Second, 10*time.Millisecond)

	res, err = p.VoteSkip("alice")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.Votes)
}

func TestPlayer_VoteSkipLateVoteSparesNextTrack(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(3)
	p := newTestPlayer(t, fb, func(string) int { return 4 }) // required = 2
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	_, err = p.VoteSkip("alice")
	require.NoError(t, err)
	res, err := p.VoteSkip("bob")
	require.NoError(t, err)
	require.True(t, res.Skipped)

	// A vote racing the skip's track-end event counts against whatever plays
	// next; it must not stop a second track.
	res, err = p.VoteSkip("charlie")
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	require.Eventually(t, func() bool {
		current, _ := p.Current()
		return current != nil && current.Title == "track-2"
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	current, _ := p.Current()
	require.NotNil(t, current)
	assert.Equal(t, "track-2", current.Title)
	assert.Len(t, p.Queue(), 1)

	fb.mu.Lock()
	stops := fb.stops
	fb.mu.Unlock()
	assert.Equal(t, 1, stops)
}

func TestPlayer_ConcurrentEnqueueStartsOnce(t *testing.T) {
	fb := newFakeBackend()
	fb.results["a"] = []track.Track{{Title: "alpha", URL: "http://yt.test/a", Origin: track.OriginSearch}}
	fb.results["b"] = []track.Track{{Title: "beta", URL: "http://yt.test/b", Origin: track.OriginSearch}}
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, query := range []string{"a", "b"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			<-start
			_, err := p.AddToQueue(context.Background(), q)
			assert.NoError(t, err)
		}(query)
	}
	close(start)
	wg.Wait()

	// One enqueue wins the idle session and plays; the other only queues.
	assert.Len(t, fb.playedTitles(), 1)
	current, _ := p.Current()
	require.NotNil(t, current)
	assert.Len(t, p.Queue(), 1)
}

func TestPlayer_PauseResume(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(1)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	assert.ErrorIs(t, p.Pause(), ErrNothingPlaying)

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	require.NoError(t, p.Pause())
	_, state := p.Current()
	assert.Equal(t, StatePaused, state)

	assert.ErrorIs(t, p.Pause(), ErrNothingPlaying)

	require.NoError(t, p.Resume())
	_, state = p.Current()
	assert.Equal(t, StatePlayingTrack, state)

	assert.ErrorIs(t, p.Resume(), ErrNothingPlaying)
	assert.Equal(t, []bool{true, false}, fb.paused)
}

func TestPlayer_StopClearsSession(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(3)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	p.Stop()

	current, state := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, p.Queue())

	// The stop's track-end event must not trigger the radio fallback.
	time.Sleep(50 * time.Millisecond)
	current, _ = p.Current()
	assert.Nil(t, current)
}

func TestPlayer_DisconnectReleasesChannel(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(3)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))
	require.True(t, p.Connected())

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)

	p.Disconnect()
	assert.False(t, p.Connected())
	assert.Equal(t, "", p.ChannelID())

	current, state := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, p.Queue())

	// Radio needs a channel again now.
	assert.ErrorIs(t, p.PlayDefaultRadio(), ErrNotConnected)
}

func TestPlayer_RemoveFromQueue(t *testing.T) {
	fb := newFakeBackend()
	fb.results["hits"] = someTracks(4)
	p := newTestPlayer(t, fb, nil)
	require.NoError(t, p.Connect("ch-1"))

	_, err := p.AddToQueue(context.Background(), "hits")
	require.NoError(t, err)
	require.Len(t, p.Queue(), 3)

	removed, ok := p.RemoveFromQueue(1)
	require.True(t, ok)
	assert.Equal(t, "track-3", removed.Title)

	titles := make([]string, 0, 2)
	for _, tr := range p.Queue() {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{"track-2", "track-4"}, titles)

	_, ok = p.RemoveFromQueue(5)
	assert.False(t, ok)
}

func TestPlayer_ConnectIsIdempotent(t *testing.T) {
	fb := newFakeBackend()
	d := &fakeDialer{}
	p := New("guild-1", testStation, fb, d, func(string) int { return 1 })
	p.retryDelay = 0
	t.Cleanup(p.Close)

	require.NoError(t, p.Connect("ch-1"))
	require.NoError(t, p.Connect("ch-1"))
	assert.Equal(t, 1, d.joins)

	// Moving channels reuses the connection.
	require.NoError(t, p.Connect("ch-2"))
	assert.Equal(t, 1, d.joins)
	assert.Equal(t, "ch-2", p.ChannelID())
}

func TestPlayer_ConnectFailure(t *testing.T) {
	fb := newFakeBackend()
	d := &fakeDialer{err: errors.New("gateway down")}
	p := New("guild-1", testStation, fb, d, func(string) int { return 1 })
	p.retryDelay = 0
	t.Cleanup(p.Close)

	err := p.Connect("ch-1")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestRegistry_PerGuildSessions(t *testing.T) {
	r := NewRegistry(testStation,
		func(guildID string) backend.Backend { return newFakeBackend() },
		&fakeDialer{},
		func(guildID, channelID string) int { return 1 },
	)
	t.Cleanup(r.Close)

	p1 := r.GetOrCreate("g1")
	p2 := r.GetOrCreate("g2")
	assert.NotSame(t, p1, p2)
	assert.Same(t, p1, r.GetOrCreate("g1"))

	_, ok := r.Get("g3")
	assert.False(t, ok)

	ids := r.GuildIDs()
	assert.ElementsMatch(t, []string{"g1", "g2"}, ids)

	r.Remove("g1")
	_, ok = r.Get("g1")
	assert.False(t, ok)
}
