package torbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/ratelimit"

	"torboxdav/pkg/logger"
)

const DefaultBaseURL = "https://api.torbox.app"

// ErrUnauthorized is returned when TorBox rejects the API key
var ErrUnauthorized = errors.New("torbox rejected the API key")

// StatusError is returned for any other non-success API response
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("torbox request failed: HTTP %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("torbox request failed: HTTP %d", e.Code)
}

// Client talks to the TorBox REST API
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      ratelimit.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the client used for both API calls and content streams
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// WithRateLimit caps API calls per second. Content streams are not limited.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = ratelimit.NewUnlimited()
			return
		}
		c.limiter = ratelimit.New(perSecond)
	}
}

// NewClient creates a new TorBox client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// streams may legitimately run for hours
		streamClient: &http.Client{},
		limiter:      ratelimit.New(5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTorrents returns every torrent whose download is present at TorBox
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	query := url.Values{}
	query.Set("bypass_cache", "true")

	var torrents []Torrent
	if err := c.getJSON(ctx, "/v1/api/torrents/mylist", query, &torrents); err != nil {
		return nil, fmt.Errorf("failed to list torrents: %w", err)
	}

	present := make([]Torrent, 0, len(torrents))
	for _, t := range torrents {
		if t.DownloadPresent {
			present = append(present, t)
		}
	}

	logger.Debug("[TorBox] Listed %d torrents, %d ready", len(torrents), len(present))
	return present, nil
}

// RequestDownloadLink resolves a file to a short-lived direct URL
func (c *Client) RequestDownloadLink(ctx context.Context, torrentID, fileID int64) (string, error) {
	query := url.Values{}
	query.Set("token", c.apiKey)
	query.Set("torrent_id", strconv.FormatInt(torrentID, 10))
	query.Set("file_id", strconv.FormatInt(fileID, 10))

	var link string
	if err := c.getJSON(ctx, "/v1/api/torrents/requestdl", query, &link); err != nil {
		return "", fmt.Errorf("failed to request download link for torrent %d file %d: %w", torrentID, fileID, err)
	}
	if link == "" {
		return "", fmt.Errorf("empty download link for torrent %d file %d", torrentID, fileID)
	}
	return link, nil
}

// OpenStream issues a GET for a resolved download URL, forwarding rangeHeader when set.
// The response is returned whatever its status; the caller owns the body.
func (c *Client) OpenStream(ctx context.Context, downloadURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	reqURL := c.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.limiter.Take()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope[json.RawMessage]
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Detail: env.Detail}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to parse json: %w", decodeErr)
	}
	if !env.Success {
		return &StatusError{Code: resp.StatusCode, Detail: env.Detail}
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse json data: %w", err)
	}
	return nil
}
