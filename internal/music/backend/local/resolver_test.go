package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/stream"))
	assert.True(t, isURL("http://radio.host:8000/live"))
	assert.False(t, isURL("lofi beats"))
	assert.False(t, isURL("ftp://example.com/file"))
	assert.False(t, isURL("https://"))
}

func TestIsYouTubeURL(t *testing.T) {
	assert.True(t, isYouTubeURL("https://www.youtube.com/watch?v=abc123def45"))
	assert.True(t, isYouTubeURL("https://youtu.be/abc123def45"))
	assert.True(t, isYouTubeURL("https://music.youtube.com/watch?v=abc123def45"))
	assert.False(t, isYouTubeURL("https://vimeo.com/12345"))
	assert.False(t, isYouTubeURL("https://radio.example.com/stream"))
}

func TestExtractVideoID(t *testing.T) {
	id, err := extractVideoID("https://www.youtube.com/watch?v=abc123def45")
	require.NoError(t, err)
	assert.Equal(t, "abc123def45", id)

	id, err = extractVideoID("https://youtu.be/xyz987")
	require.NoError(t, err)
	assert.Equal(t, "xyz987", id)

	id, err = extractVideoID("https://www.youtube.com/shorts/short11")
	require.NoError(t, err)
	assert.Equal(t, "short11", id)

	_, err = extractVideoID("https://www.youtube.com/feed/library")
	assert.ErrorIs(t, err, ErrNoVideoMatch)
}

func TestPlaylistID(t *testing.T) {
	assert.Equal(t, "PLx", playlistID("https://www.youtube.com/playlist?list=PLx"))

	// A watch URL with a list parameter plays the single video.
	assert.Equal(t, "", playlistID("https://www.youtube.com/watch?v=abc&list=PLx"))
	assert.Equal(t, "", playlistID("https://www.youtube.com/watch?v=abc"))
}

func TestIsLikelyPlaylistFile(t *testing.T) {
	assert.True(t, isLikelyPlaylistFile("http://radio.host/live.m3u8"))
	assert.True(t, isLikelyPlaylistFile("http://radio.host/stations.pls"))
	assert.False(t, isLikelyPlaylistFile("http://radio.host/stream.mp3"))
}

func TestStreamTitle(t *testing.T) {
	assert.Equal(t, "radio.example.com", streamTitle("https://radio.example.com/live"))
	assert.Equal(t, "not a url", streamTitle("not a url"))
}
