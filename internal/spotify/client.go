// Package spotify provides the minimal Spotify Connect Web API surface used
// by the streaming backend: search, remote play/pause and device volume.
package spotify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.spotify.com"

// ErrNoMatch is returned when a title search yields no playable track.
var ErrNoMatch = errors.New("no matching track")

// Client calls the Spotify Web API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects the public API.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchTrackURI resolves a bare title to the URI of the best match.
func (c *Client) SearchTrackURI(query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", "1")

	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Tracks.Items) == 0 {
		return "", ErrNoMatch
	}
	return result.Tracks.Items[0].URI, nil
}

// Play starts playback of the given URIs on a device. An empty deviceID
// targets the user's active device.
func (c *Client) Play(deviceID string, uris []string) error {
	endpoint := c.baseURL + "/v1/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}

	body, err := json.Marshal(map[string][]string{"uris": uris})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	return c.doExpectNoContent(req)
}

// Pause pauses playback. Pausing an already idle player is not an error.
func (c *Client) Pause() error {
	req, err := http.NewRequest(http.MethodPut, c.baseURL+"/v1/me/player/pause", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	err = c.doExpectNoContent(req)
	if err != nil && isRestrictionError(err) {
		return nil
	}
	return err
}

// SetVolume sets the device volume in percent [0,100].
func (c *Client) SetVolume(percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	endpoint := c.baseURL + "/v1/me/player/volume?volume_percent=" + strconv.Itoa(percent)
	req, err := http.NewRequest(http.MethodPut, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	return c.doExpectNoContent(req)
}

// CurrentlyPlaying returns the player state, or nil when nothing is loaded.
func (c *Client) CurrentlyPlaying() (*PlaybackState, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/me/player/currently-playing", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var state PlaybackState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &state, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	if req.Method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (c *Client) doExpectNoContent(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
}

// isRestrictionError matches the 403 the player API returns for commands
// that are invalid in the current state (e.g. pausing a paused player).
func isRestrictionError(err error) bool {
	return err != nil && err.Error() == "API returned status 403"
}
