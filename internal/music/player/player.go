// Package player owns the per-guild playback session: voice connection
// lifecycle, track queue, radio fallback, vote-skip ballot and bounded
// reconnect.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/track"
	"radio-vecher/internal/music/voting"
	"radio-vecher/pkg/retry"
)

const (
	maxReconnectAttempts = 5
	reconnectDelay       = 2 * time.Second
	playTimeout          = 30 * time.Second
)

var (
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNothingPlaying = errors.New("no track is currently playing")
	ErrConnection     = errors.New("could not join voice channel")
	ErrPlayback       = errors.New("playback retry budget exhausted")
)

// State is the playback half of the session state machine.
type State int

const (
	StateIdle State = iota
	StatePlayingRadio
	StatePlayingTrack
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlayingRadio:
		return "playing radio"
	case StatePlayingTrack:
		return "playing track"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// RadioStation is the fallback stream a guild reverts to whenever the
// on-demand queue runs dry.
type RadioStation struct {
	Name      string
	URL       string
	Thumbnail string
}

// Dialer joins voice channels. The discordgo adapter implements it in
// production.
type Dialer interface {
	Join(guildID, channelID string) (backend.Voice, error)
}

// ListenerFunc reports the number of non-bot users in a voice channel.
type ListenerFunc func(channelID string) int

// Player is one guild's playback session. All state is guarded by mu;
// backend events are consumed by a single loop goroutine, so queue
// advancement and user commands targeting the same guild are serialized.
type Player struct {
	guildID   string
	backend   backend.Backend
	dialer    Dialer
	listeners ListenerFunc

	// opMu serializes whole operations that decide-then-play: enqueue,
	// skip, track-end advancement, reconnect and the radio fallback. The
	// decision (is anything current?) and the backend call it leads to must
	// be one critical section, or two concurrent enqueues on an idle
	// session would both start playback. mu alone only guards the fields.
	opMu sync.Mutex

	mu                sync.Mutex
	radio             RadioStation
	voice             backend.Voice
	channelID         string
	state             State
	pausedFrom        State
	current           *track.Track
	queue             TrackQueue
	skipVotes         *voting.SkipBallot
	reconnectAttempts int
	playSeq           uint64

	retryDelay time.Duration
	done       chan struct{}
}

func New(guildID string, radio RadioStation, be backend.Backend, dialer Dialer, listeners ListenerFunc) *Player {
	p := &Player{
		guildID:    guildID,
		radio:      radio,
		backend:    be,
		dialer:     dialer,
		listeners:  listeners,
		skipVotes:  voting.NewSkipBallot(),
		retryDelay: reconnectDelay,
		done:       make(chan struct{}),
	}
	go p.loop()
	return p
}

// loop consumes backend events. Track-end advancement goes through the same
// lock as user commands, so two "advance the queue" paths can never race.
func (p *Player) loop() {
	defer close(p.done)
	for ev := range p.backend.Events() {
		switch ev.Type {
		case backend.EventTrackEnd:
			p.handleTrackEnd(ev.Err)
		case backend.EventConnectionLost:
			p.handleConnectionLost(ev.Err)
		}
	}
}

// Resolver exposes the backend's track resolution for callers that need to
// resolve without enqueueing, like playlist track verification.
func (p *Player) Resolver() backend.Resolver {
	return p.backend
}

// Connect joins the given voice channel. Calling it while already connected
// to the same channel is a no-op; while connected elsewhere it moves.
func (p *Player) Connect(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(channelID)
}

func (p *Player) connectLocked(channelID string) error {
	if channelID == "" {
		return fmt.Errorf("%w: no voice channel given", ErrConnection)
	}

	if p.voice != nil && p.voice.Connected() {
		if p.voice.ChannelID() == channelID {
			return nil
		}
		if err := p.voice.Move(channelID); err != nil {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		p.channelID = channelID
		return nil
	}

	v, err := p.dialer.Join(p.guildID, channelID)
	if err != nil {
		p.voice = nil
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	p.voice = v
	p.channelID = channelID
	p.reconnectAttempts = 0
	log.Printf("[Player] Joined voice channel %s on guild %s", channelID, p.guildID)
	return nil
}

// PlayDefaultRadio switches the session to the configured radio stream. The
// radio path is the system's steady state, so failures are retried with a
// fixed delay up to the reconnect budget; exhausting it leaves the session
// idle and returns ErrPlayback.
func (p *Player) PlayDefaultRadio() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.playDefaultRadioLocked()
}

// playDefaultRadioLocked is PlayDefaultRadio for callers already holding
// opMu (track-end and reconnect handlers).
func (p *Player) playDefaultRadioLocked() error {
	p.mu.Lock()
	if p.voice == nil || !p.voice.Connected() {
		if p.channelID == "" {
			p.mu.Unlock()
			return ErrNotConnected
		}
		if err := p.connectLocked(p.channelID); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	station := p.radio
	p.mu.Unlock()

	cfg := retry.Fixed(maxReconnectAttempts, p.retryDelay)
	cfg.OnRetry = func(attempt int, err error) {
		p.mu.Lock()
		p.reconnectAttempts = attempt
		p.mu.Unlock()
		log.Printf("[Player] Radio attempt %d failed for guild %s: %v", attempt, p.guildID, err)
	}

	err := retry.Do(context.Background(), cfg, func() error {
		t := track.Track{
			Title:     station.Name,
			URL:       station.URL,
			Thumbnail: station.Thumbnail,
			Origin:    track.OriginRadio,
		}
		return p.playTrack(&t)
	})
	if err != nil {
		p.mu.Lock()
		p.current = nil
		p.state = StateIdle
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	p.mu.Lock()
	p.reconnectAttempts = 0
	p.mu.Unlock()
	return nil
}

// AddToQueue resolves a query and enqueues the results. When nothing is
// playing the first result starts immediately. Returns the titles accepted.
func (p *Player) AddToQueue(ctx context.Context, query string) ([]string, error) {
	tracks, err := p.backend.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, backend.ErrNoResults
	}
	return p.enqueue(tracks)
}

// EnqueueTracks bulk-enqueues already-resolved tracks (playlist playback).
func (p *Player) EnqueueTracks(tracks []track.Track) ([]string, error) {
	if len(tracks) == 0 {
		return nil, backend.ErrNoResults
	}
	return p.enqueue(tracks)
}

func (p *Player) enqueue(tracks []track.Track) ([]string, error) {
	titles := make([]string, 0, len(tracks))
	for _, t := range tracks {
		titles = append(titles, t.Title)
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	playNow := p.current == nil
	if playNow {
		p.queue.Append(tracks[1:]...)
	} else {
		p.queue.Append(tracks...)
	}
	p.mu.Unlock()

	log.Printf("[Player] Added %d track(s) for guild %s | playNow=%v", len(tracks), p.guildID, playNow)

	if playNow {
		first := tracks[0]
		if err := p.playTrack(&first); err != nil {
			return titles, err
		}
	}
	return titles, nil
}

// playTrack connects if needed, starts the track on the backend and commits
// it as current. If the session moved on while the backend was resolving
// (skip or stop racing with a slow resolve), the result is discarded.
func (p *Player) playTrack(t *track.Track) error {
	p.mu.Lock()
	if p.voice == nil || !p.voice.Connected() {
		if p.channelID == "" {
			p.mu.Unlock()
			return ErrNotConnected
		}
		if err := p.connectLocked(p.channelID); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	voice := p.voice
	seq := p.playSeq
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	if err := p.backend.Play(ctx, voice, t); err != nil {
		return err
	}

	p.mu.Lock()
	if p.playSeq != seq {
		// A skip or stop won the race. Drop this playback.
		p.mu.Unlock()
		p.backend.Stop()
		log.Printf("[Player] Discarded stale playback of %q for guild %s", t.Title, p.guildID)
		return nil
	}
	p.current = t
	p.skipVotes.Reset()
	if t.IsRadio() {
		p.state = StatePlayingRadio
	} else {
		p.state = StatePlayingTrack
	}
	p.mu.Unlock()

	log.Printf("[Player] Now playing %q (%s) on guild %s", t.Title, t.Origin, p.guildID)
	return nil
}

// handleTrackEnd advances the queue, falling back to radio when it is empty.
// Tracks that fail to start are dropped rather than stalling the queue.
func (p *Player) handleTrackEnd(cause error) {
	if cause != nil {
		log.Printf("[Player] Track ended with error on guild %s: %v", p.guildID, cause)
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.current == nil {
		// Explicit stop already cleared the session; nothing to advance.
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.state = StateIdle
	p.skipVotes.Reset()
	p.mu.Unlock()

	for {
		p.mu.Lock()
		next, ok := p.queue.PopFront()
		p.mu.Unlock()
		if !ok {
			break
		}
		if err := p.playTrack(&next); err != nil {
			log.Printf("[Player] Dropping track %q on guild %s: %v", next.Title, p.guildID, err)
			continue
		}
		return
	}

	if err := p.playDefaultRadioLocked(); err != nil {
		log.Printf("[ERR] Radio fallback failed for guild %s: %v", p.guildID, err)
	}
}

// handleConnectionLost mirrors the track-end self-heal: reconnect after a
// short delay, resume the interrupted track if it was on-demand, otherwise
// return to radio.
func (p *Player) handleConnectionLost(cause error) {
	log.Printf("[Player] Voice connection lost on guild %s: %v", p.guildID, cause)

	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	interrupted := p.current
	p.current = nil
	p.state = StateIdle
	p.skipVotes.Reset()
	channelID := p.channelID
	if p.voice != nil {
		_ = p.voice.Disconnect()
		p.voice = nil
	}
	p.mu.Unlock()

	if channelID == "" {
		return
	}

	time.Sleep(p.retryDelay)
	if err := p.Connect(channelID); err != nil {
		log.Printf("[ERR] Reconnect failed for guild %s: %v", p.guildID, err)
		return
	}

	if interrupted != nil && !interrupted.IsRadio() {
		if err := p.playTrack(interrupted); err == nil {
			return
		}
	}
	if err := p.playDefaultRadioLocked(); err != nil {
		log.Printf("[ERR] Radio fallback failed for guild %s: %v", p.guildID, err)
	}
}

// Skip stops the current track immediately. Advancement happens through the
// backend's track-end event.
func (p *Player) Skip() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.skipLocked()
}

func (p *Player) skipLocked() error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNothingPlaying
	}
	p.mu.Unlock()
	p.backend.Stop()
	return nil
}

// SkipVoteResult reports the outcome of a vote-skip attempt.
type SkipVoteResult struct {
	Skipped   bool
	Votes     int
	Required  int
	Duplicate bool
}

// VoteSkip registers a skip vote. Radio tracks and rooms with at most one
// listener skip immediately without a ballot. The threshold decision and the
// skip it triggers run under opMu, and the ballot is consumed the moment the
// threshold is crossed, so votes landing after a successful skip count
// against the next track rather than re-skipping it.
func (p *Player) VoteSkip(voterID string) (SkipVoteResult, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return SkipVoteResult{}, ErrNothingPlaying
	}

	occupancy := 0
	if p.listeners != nil {
		occupancy = p.listeners(p.channelID)
	}

	if p.current.IsRadio() || occupancy <= 1 {
		p.mu.Unlock()
		return SkipVoteResult{Skipped: true, Votes: 1, Required: 1}, p.skipLocked()
	}

	duplicate := !p.skipVotes.Cast(voterID)
	votes := p.skipVotes.Count()
	required := voting.RequiredSkipVotes(occupancy)
	skip := votes >= required
	if skip {
		p.skipVotes.Reset()
	}
	p.mu.Unlock()

	if skip {
		err := p.skipLocked()
		return SkipVoteResult{Skipped: true, Votes: votes, Required: required, Duplicate: duplicate}, err
	}
	return SkipVoteResult{Votes: votes, Required: required, Duplicate: duplicate}, nil
}

// Pause suspends playback. Valid only while playing.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlayingRadio && p.state != StatePlayingTrack {
		return ErrNothingPlaying
	}
	if err := p.backend.SetPaused(true); err != nil {
		return err
	}
	p.pausedFrom = p.state
	p.state = StatePaused
	return nil
}

// Resume continues playback after Pause.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePaused {
		return ErrNothingPlaying
	}
	if err := p.backend.SetPaused(false); err != nil {
		return err
	}
	p.state = p.pausedFrom
	return nil
}

// Stop clears the queue, the current track and the skip ballot. Safe to call
// at any time.
func (p *Player) Stop() {
	p.mu.Lock()
	p.playSeq++
	p.queue.Clear()
	p.current = nil
	p.state = StateIdle
	p.skipVotes.Reset()
	p.mu.Unlock()
	p.backend.Stop()
}

// Disconnect stops playback and releases the voice connection. Safe to call
// on an already-disconnected session.
func (p *Player) Disconnect() {
	p.Stop()
	p.mu.Lock()
	if p.voice != nil {
		_ = p.voice.Disconnect()
		p.voice = nil
	}
	p.channelID = ""
	p.mu.Unlock()
}

// Close tears the session down for good.
func (p *Player) Close() {
	p.Disconnect()
	p.backend.Close()
	<-p.done
}

// SetRadio switches the fallback station. Takes effect on the next radio
// playback.
func (p *Player) SetRadio(station RadioStation) {
	p.mu.Lock()
	p.radio = station
	p.mu.Unlock()
}

func (p *Player) Radio() RadioStation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.radio
}

// Current returns the current track (nil when idle) and the playback state.
func (p *Player) Current() (*track.Track, State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, p.state
	}
	t := *p.current
	return &t, p.state
}

// Queue returns a copy of the pending tracks.
func (p *Player) Queue() []track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Tracks()
}

// RemoveFromQueue removes the pending track at index i.
func (p *Player) RemoveFromQueue(i int) (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.RemoveAt(i)
}

func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice != nil && p.voice.Connected()
}

func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}
