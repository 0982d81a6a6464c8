// Package playlist implements durable named playlists per guild with a
// quorum-based approval protocol.
package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"radio-vecher/datastore"
	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/track"
	"radio-vecher/internal/music/voting"
)

var (
	ErrNotFound         = errors.New("playlist not found")
	ErrDuplicateName    = errors.New("a playlist with that name already exists")
	ErrDuplicateTrack   = errors.New("that track is already in the playlist")
	ErrNotAllowed       = errors.New("only the playlist author or an admin can do that")
	ErrEmptyPlaylist    = errors.New("playlist has no tracks")
	ErrAlreadyApproved  = errors.New("playlist is already approved")
	ErrVotingInProgress = errors.New("voting for this playlist is already in progress")
	ErrNoActiveVote     = errors.New("no vote exists for this playlist")
	ErrNotApproved      = errors.New("playlist has not been approved by vote")
	ErrEmptyResult      = errors.New("none of the playlist tracks could be resolved")
)

// Store keeps every guild's playlists and approval ballots in the datastore,
// one document per guild. Mutations on the same guild are serialized by a
// per-guild lock held for the in-memory edit plus the durable write.
type Store struct {
	ds *datastore.DataStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func New(path string) (*Store, error) {
	ds, err := datastore.New(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		ds:    ds,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.ds.Close()
}

func (s *Store) guildLock(guildID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[guildID] = l
	}
	return l
}

// load reads the guild's document, finalizing any expired ballots on the
// way. Ballot expiry is a passive check-on-read; no background timer exists.
func (s *Store) load(guildID string) (*record, error) {
	rec := &record{Playlists: []*Playlist{}, Ballots: map[string]*voting.Ballot{}}

	raw, exists := s.ds.Get(guildID)
	if exists {
		jsonData, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("error marshalling guild record: %w", err)
		}
		if err := json.Unmarshal(jsonData, rec); err != nil {
			return nil, fmt.Errorf("error unmarshalling guild record: %w", err)
		}
		if rec.Ballots == nil {
			rec.Ballots = map[string]*voting.Ballot{}
		}
	}

	if s.sweepExpired(rec) {
		s.persist(guildID, rec)
	}
	return rec, nil
}

// sweepExpired finalizes every ballot past its end time by simple majority
// and applies the outcome to the playlist. Returns true if anything changed.
func (s *Store) sweepExpired(rec *record) bool {
	now := s.now()
	changed := false
	for key, ballot := range rec.Ballots {
		if !ballot.FinalizeExpired(now) {
			continue
		}
		changed = true
		if pl, ok := findPlaylist(rec, key); ok {
			pl.Approved = ballot.Approved
		}
	}
	return changed
}

// persist writes the guild document. Write failures are logged and not
// surfaced: the in-memory state stays valid for this process lifetime and
// only risks loss on restart.
func (s *Store) persist(guildID string, rec *record) {
	s.ds.Add(guildID, rec)
	if err := s.ds.SaveToFile(); err != nil {
		log.Printf("[WARN] Failed to persist playlists for guild %s: %v", guildID, err)
	}
}

func findPlaylist(rec *record, name string) (*Playlist, bool) {
	for _, p := range rec.Playlists {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

func ballotKey(name string) string {
	return strings.ToLower(name)
}

// Create adds an empty, unapproved playlist.
func (s *Store) Create(guildID, name, authorID string) error {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return err
	}
	if _, exists := findPlaylist(rec, name); exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	rec.Playlists = append(rec.Playlists, &Playlist{
		Name:     name,
		AuthorID: authorID,
		Tracks:   []TrackRef{},
	})
	s.persist(guildID, rec)
	return nil
}

// Delete removes a playlist and its ballot. Author or admin only.
func (s *Store) Delete(guildID, name, userID string, admin bool) error {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !admin && pl.AuthorID != userID {
		return ErrNotAllowed
	}

	rec.Playlists = slicesDelete(rec.Playlists, pl)
	delete(rec.Ballots, ballotKey(name))
	s.persist(guildID, rec)
	return nil
}

func slicesDelete(list []*Playlist, target *Playlist) []*Playlist {
	out := list[:0]
	for _, p := range list {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}

// AddTrack appends a track, rejecting exact URI duplicates.
func (s *Store) AddTrack(guildID, name, userID string, admin bool, ref TrackRef) error {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !admin && pl.AuthorID != userID {
		return ErrNotAllowed
	}
	for _, t := range pl.Tracks {
		if t.URL == ref.URL {
			return ErrDuplicateTrack
		}
	}

	pl.Tracks = append(pl.Tracks, ref)
	s.persist(guildID, rec)
	return nil
}

// RemoveTrack removes the track at index. The index is validated against the
// playlist's current length.
func (s *Store) RemoveTrack(guildID, name, userID string, admin bool, index int) (TrackRef, error) {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return TrackRef{}, err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return TrackRef{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !admin && pl.AuthorID != userID {
		return TrackRef{}, ErrNotAllowed
	}
	if index < 0 || index >= len(pl.Tracks) {
		return TrackRef{}, fmt.Errorf("%w: track index %d out of range", ErrNotFound, index)
	}

	removed := pl.Tracks[index]
	pl.Tracks = append(pl.Tracks[:index], pl.Tracks[index+1:]...)
	s.persist(guildID, rec)
	return removed, nil
}

// StartVoting opens a fresh approval ballot. A rejected playlist may be
// resubmitted; the new ballot starts with clean tallies.
func (s *Store) StartVoting(guildID, name string, duration time.Duration) error {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if len(pl.Tracks) == 0 {
		return ErrEmptyPlaylist
	}
	if pl.Approved {
		return ErrAlreadyApproved
	}
	if b, exists := rec.Ballots[ballotKey(name)]; exists && b.Active(s.now()) {
		return ErrVotingInProgress
	}

	rec.Ballots[ballotKey(name)] = voting.NewBallot(s.now(), duration)
	s.persist(guildID, rec)
	return nil
}

// CastVote records one member's vote and evaluates the decisive quorum. One
// vote per member for the ballot's lifetime.
func (s *Store) CastVote(guildID, name, voterID string, up bool) (voting.Outcome, error) {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return voting.OutcomePending, err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return voting.OutcomePending, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ballot, exists := rec.Ballots[ballotKey(name)]
	if !exists || !ballot.Active(s.now()) {
		return voting.OutcomePending, ErrNoActiveVote
	}

	outcome, err := ballot.Cast(voterID, up)
	if err != nil {
		return voting.OutcomePending, err
	}
	if outcome != voting.OutcomePending {
		pl.Approved = outcome == voting.OutcomeApproved
	}

	s.persist(guildID, rec)
	return outcome, nil
}

// VotingStatus returns the playlist's ballot. Reading finalizes expired
// ballots as a side effect of load.
func (s *Store) VotingStatus(guildID, name string) (*voting.Ballot, error) {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return nil, err
	}
	if _, ok := findPlaylist(rec, name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ballot, exists := rec.Ballots[ballotKey(name)]
	if !exists {
		return nil, ErrNoActiveVote
	}

	copied := *ballot
	return &copied, nil
}

// Get returns a copy of the named playlist.
func (s *Store) Get(guildID, name string) (*Playlist, error) {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return nil, err
	}
	pl, ok := findPlaylist(rec, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return pl.clone(), nil
}

// List returns copies of the guild's playlists, optionally filtered to
// approved ones.
func (s *Store) List(guildID string, includeUnapproved bool) ([]*Playlist, error) {
	l := s.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return nil, err
	}
	out := make([]*Playlist, 0, len(rec.Playlists))
	for _, p := range rec.Playlists {
		if !includeUnapproved && !p.Approved {
			continue
		}
		out = append(out, p.clone())
	}
	return out, nil
}

// ResolveTracks resolves every entry of an approved playlist through the
// audio backend, skipping entries that fail rather than aborting. Returns
// the resolved tracks and the playlist's total entry count. Unapproved
// playlists require an elevated caller.
func (s *Store) ResolveTracks(ctx context.Context, guildID, name string, elevated bool, r backend.Resolver) ([]track.Track, int, error) {
	pl, err := s.Get(guildID, name)
	if err != nil {
		return nil, 0, err
	}
	if !pl.Approved && !elevated {
		return nil, 0, ErrNotApproved
	}

	var resolved []track.Track
	for _, ref := range pl.Tracks {
		results, err := r.Resolve(ctx, ref.URL)
		if err != nil || len(results) == 0 {
			log.Printf("[Playlist] Skipping unresolvable track %q in %q: %v", ref.URL, pl.Name, err)
			continue
		}
		t := results[0]
		t.Origin = track.OriginPlaylist
		if t.Title == "" {
			t.Title = ref.Title
		}
		resolved = append(resolved, t)
	}

	if len(resolved) == 0 {
		return nil, len(pl.Tracks), ErrEmptyResult
	}
	return resolved, len(pl.Tracks), nil
}
