package player

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"radio-vecher/internal/music/track"
)

func TestTrackQueue_FIFO(t *testing.T) {
	var q TrackQueue
	q.Append(track.Track{Title: "a"}, track.Track{Title: "b"}, track.Track{Title: "c"})

	assert.Equal(t, 3, q.Len())

	first, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, "a", first.Title)

	second, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, "b", second.Title)
	assert.Equal(t, 1, q.Len())
}

func TestTrackQueue_PopEmpty(t *testing.T) {
	var q TrackQueue
	_, ok := q.PopFront()
	assert.False(t, ok)
}

func TestTrackQueue_RemoveAt(t *testing.T) {
	var q TrackQueue
	q.Append(track.Track{Title: "a"}, track.Track{Title: "b"}, track.Track{Title: "c"})

	removed, ok := q.RemoveAt(1)
	assert.True(t, ok)
	assert.Equal(t, "b", removed.Title)

	// Indices past the end are rejected, not clamped.
	_, ok = q.RemoveAt(2)
	assert.False(t, ok)
	_, ok = q.RemoveAt(-1)
	assert.False(t, ok)

	titles := []string{}
	for _, tr := range q.Tracks() {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{"a", "c"}, titles)
}

func TestTrackQueue_TracksIsACopy(t *testing.T) {
	var q TrackQueue
	q.Append(track.Track{Title: "a"})

	snapshot := q.Tracks()
	snapshot[0].Title = "mutated"

	fresh := q.Tracks()
	assert.Equal(t, "a", fresh[0].Title)
}

func TestTrackQueue_Clear(t *testing.T) {
	var q TrackQueue
	q.Append(track.Track{Title: "a"}, track.Track{Title: "b"})
	q.Clear()
	assert.Equal(t, 0, q.Len())
}
