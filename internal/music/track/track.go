package track

// Origin tells where a track came from. The player treats radio tracks
// specially: they are the fallback steady state and are skipped without a
// ballot.
type Origin string

const (
	OriginRadio    Origin = "radio"
	OriginSearch   Origin = "search"
	OriginPlaylist Origin = "playlist"
)

// Track is a single playable item. Immutable once enqueued except for Handle,
// which the audio backend fills in lazily on first play.
type Track struct {
	Title     string
	URL       string
	Thumbnail string
	Origin    Origin

	// Handle is the resolved playable reference: a direct stream URL for the
	// local backend, or an encoded track token for a Lavalink node.
	Handle string
}

func (t *Track) IsRadio() bool {
	return t.Origin == OriginRadio
}
