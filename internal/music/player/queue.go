package player

import (
	"slices"

	"radio-vecher/internal/music/track"
)

// TrackQueue is the ordered list of pending tracks for one guild. It is not
// safe for concurrent use on its own; all mutation goes through the owning
// player's lock, which serializes queue edits with track-end advancement.
type TrackQueue struct {
	items []track.Track
}

func (q *TrackQueue) Append(tracks ...track.Track) {
	q.items = append(q.items, tracks...)
}

func (q *TrackQueue) PopFront() (track.Track, bool) {
	if len(q.items) == 0 {
		return track.Track{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// RemoveAt removes the track at index i. The index is validated against the
// current length, since a concurrent pop may have shrunk the queue since the
// caller looked at it.
func (q *TrackQueue) RemoveAt(i int) (track.Track, bool) {
	if i < 0 || i >= len(q.items) {
		return track.Track{}, false
	}
	removed := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return removed, true
}

func (q *TrackQueue) Len() int {
	return len(q.items)
}

// Tracks returns a copy of the pending tracks in play order.
func (q *TrackQueue) Tracks() []track.Track {
	return slices.Clone(q.items)
}

func (q *TrackQueue) Clear() {
	q.items = nil
}
