package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

var ErrNoVideoMatch = errors.New("no video found for the given query")

var searchResultPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

// videoSearch scrapes the results page for the first video ID. No API key
// needed, fragile by nature; the kkdai client takes over from the ID on.
type videoSearch struct {
	baseURL string
	client  *http.Client
}

func newVideoSearch() *videoSearch {
	return &videoSearch{
		baseURL: "https://www.youtube.com",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *videoSearch) firstVideoID(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := searchResultPattern.FindStringSubmatch(string(body))
	if len(matches) > 1 {
		return matches[1], nil
	}
	return "", ErrNoVideoMatch
}

var validContentTypes = []string{
	"audio/", // general catch
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream", // risky but often used for streams
}

// radioProbe validates streaming links by checking headers and heuristics.
type radioProbe struct {
	client *http.Client
}

func newRadioProbe() *radioProbe {
	return &radioProbe{
		client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// IsValidStream checks stream validity based on content-type and file
// extension heuristics.
func (p *radioProbe) IsValidStream(ctx context.Context, rawURL string) (bool, string, error) {
	contentType, finalURL, err := p.fetchContentType(ctx, rawURL)
	if err != nil {
		return false, "", fmt.Errorf("failed to fetch content type: %w", err)
	}

	if p.isAllowedType(contentType) || isLikelyPlaylistFile(finalURL) {
		return true, contentType, nil
	}
	return false, contentType, fmt.Errorf("invalid stream content-type: %q, url: %s", contentType, finalURL)
}

func (p *radioProbe) fetchContentType(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil || resp.StatusCode >= 400 {
		// Some stream servers reject HEAD; try GET and drain.
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", "", err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err = p.client.Do(req)
		if err != nil {
			return "", "", fmt.Errorf("GET fallback failed: %w", err)
		}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	finalURL := resp.Request.URL.String() // actual URL after redirects
	return contentType, finalURL, nil
}

func (p *radioProbe) isAllowedType(contentType string) bool {
	// Strip params like "audio/mpeg; charset=utf-8".
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylistFile(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

// playlistID returns the list parameter, or "" when the URL points at a
// single video.
func playlistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Query().Get("v") != "" {
		// watch?v=...&list=... plays the single video, not the mix
		return ""
	}
	return u.Query().Get("list")
}

func extractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", ErrNoVideoMatch
		}
		return id, nil
	}
	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	if strings.HasPrefix(u.Path, "/shorts/") || strings.HasPrefix(u.Path, "/embed/") {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1], nil
		}
	}
	return "", ErrNoVideoMatch
}
