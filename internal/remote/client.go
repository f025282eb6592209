package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/florianilch/lodestone/internal/session"
	"github.com/florianilch/lodestone/internal/settings"
)

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 4 << 20

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// Client is the remote persistence endpoint.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a Client for the backing store at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SaveDocument sends a serialized config document to its save endpoint.
func (c *Client) SaveDocument(ctx context.Context, kind settings.Kind, body json.RawMessage) error {
	var path string
	switch kind {
	case settings.KindConfig:
		path = PathSaveConfig
	case settings.KindPluginConfig:
		path = PathSavePluginConfig
	default:
		return fmt.Errorf("%w: %s", settings.ErrUnknownKind, kind)
	}
	return c.PostJSON(ctx, path, body)
}

// SaveCredentials overwrites the stored session list.
func (c *Client) SaveCredentials(ctx context.Context, sessions []session.Session) error {
	if sessions == nil {
		sessions = []session.Session{}
	}
	return c.PostJSON(ctx, PathSaveCredentials, sessions)
}

// LoadConfig fetches the main config document.
func (c *Client) LoadConfig(ctx context.Context) (settings.Config, error) {
	var cfg settings.Config
	err := c.getJSON(ctx, PathConfig, &cfg)
	return cfg, err
}

// LoadPluginConfig fetches the plugin config document.
func (c *Client) LoadPluginConfig(ctx context.Context) (map[string]any, error) {
	plugin := map[string]any{}
	err := c.getJSON(ctx, PathPluginConfig, &plugin)
	return plugin, err
}

// LoadCredentials fetches the stored session list.
func (c *Client) LoadCredentials(ctx context.Context) ([]session.Session, error) {
	var sessions []session.Session
	err := c.getJSON(ctx, PathCredentials, &sessions)
	return sessions, err
}

// OpenFilePicker asks the host to let the user pick a jar file. It reports
// false when the host answers with anything other than 200.
func (c *Client) OpenFilePicker(ctx context.Context) (string, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, PathJarFilePicker, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", false, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", false, fmt.Errorf("reading %s response: %w", PathJarFilePicker, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// PostJSON sends body as JSON to path. Non-2xx responses are logged and
// returned as *StatusError.
func (c *Client) PostJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s body: %w", path, err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(ctx, path, resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(ctx, path, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkStatus(ctx context.Context, path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	slog.ErrorContext(ctx, "backing store request failed",
		"path", path,
		"status", resp.StatusCode,
		"body", string(text),
	)
	return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(text)}
}
