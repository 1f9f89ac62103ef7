// Package simplenote implements remote.Service against the Simperium API
// that backs Simplenote.
package simplenote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/remote"
)

// Endpoint defaults.
const (
	DefaultAppID   = "chalk-bump-f49"
	DefaultAuthURL = "https://auth.simperium.com/1"
	DefaultAPIURL  = "https://api.simperium.com/1"

	bucket   = "note"
	pageSize = 100
)

// Config holds client settings.
type Config struct {
	User     string
	Password string
	AppID    string
	APIKey   string
	AuthURL  string
	APIURL   string

	// RequestsPerSecond and Burst throttle all API calls.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration

	HTTPClient *http.Client
}

// Client talks to Simperium. It authorizes lazily on first use and is safe
// for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	token string
}

var _ remote.Service = (*Client)(nil)

// New creates a client. Zero-valued settings take defaults.
func New(cfg Config) *Client {
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.AuthURL = strings.TrimSuffix(cfg.AuthURL, "/")
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

// wireNote is the JSON shape of a note in the bucket. Dates are floats.
type wireNote struct {
	Content          string   `json:"content"`
	Tags             []string `json:"tags"`
	SystemTags       []string `json:"systemTags"`
	CreationDate     float64  `json:"creationDate"`
	ModificationDate float64  `json:"modificationDate"`
	Deleted          bool     `json:"deleted"`
	ShareURL         string   `json:"shareURL"`
	PublishURL       string   `json:"publishURL"`
}

func toWire(e remote.Entry) wireNote {
	return wireNote{
		Content:          e.Content,
		Tags:             nonNil(e.Tags),
		SystemTags:       nonNil(e.SystemTags),
		CreationDate:     float64(e.Created),
		ModificationDate: float64(e.Modified),
		Deleted:          e.Deleted,
		ShareURL:         e.ShareURL,
		PublishURL:       e.PublishURL,
	}
}

func fromWire(key string, version int, w wireNote) remote.Entry {
	return remote.Entry{
		Key:        key,
		Version:    version,
		Content:    w.Content,
		Tags:       w.Tags,
		SystemTags: w.SystemTags,
		Created:    int64(w.CreationDate),
		Modified:   int64(w.ModificationDate),
		Deleted:    w.Deleted,
		ShareURL:   w.ShareURL,
		PublishURL: w.PublishURL,
	}
}

type indexPage struct {
	Current string `json:"current"`
	Mark    string `json:"mark"`
	Index   []struct {
		ID      string   `json:"id"`
		Version int      `json:"v"`
		Data    wireNote `json:"d"`
	} `json:"index"`
}

// List pages through the bucket index, returning entries changed since
// cursor and the cursor reported by the last page.
func (c *Client) List(ctx context.Context, cursor string) ([]remote.Entry, string, error) {
	var (
		out  []remote.Entry
		mark string
		next = cursor
	)
	for {
		q := url.Values{}
		q.Set("data", "true")
		q.Set("limit", strconv.Itoa(pageSize))
		if cursor != "" {
			q.Set("since", cursor)
		}
		if mark != "" {
			q.Set("mark", mark)
		}
		var page indexPage
		if _, err := c.do(ctx, http.MethodGet, c.bucketURL("index")+"?"+q.Encode(), nil, &page); err != nil {
			return nil, "", fmt.Errorf("simplenote: list: %w", err)
		}
		for _, item := range page.Index {
			out = append(out, fromWire(item.ID, item.Version, item.Data))
		}
		if page.Current != "" {
			next = page.Current
		}
		if page.Mark == "" {
			return out, next, nil
		}
		mark = page.Mark
	}
}

// Get fetches one note.
func (c *Client) Get(ctx context.Context, key string) (remote.Entry, error) {
	var w wireNote
	hdr, err := c.do(ctx, http.MethodGet, c.bucketURL("i", key), nil, &w)
	if err != nil {
		return remote.Entry{}, fmt.Errorf("simplenote: get %s: %w", key, err)
	}
	return fromWire(key, versionOf(hdr), w), nil
}

// Update creates or updates a note. New notes get a random key, as the
// official clients do.
func (c *Client) Update(ctx context.Context, e remote.Entry) (remote.Entry, error) {
	key := e.Key
	parts := []string{"i", key}
	if key == "" {
		key = strings.ReplaceAll(uuid.NewString(), "-", "")
		parts = []string{"i", key}
	} else if e.Version > 0 {
		parts = append(parts, "v", strconv.Itoa(e.Version))
	}
	if e.Modified == 0 {
		e.Modified = time.Now().Unix()
	}
	if e.Created == 0 {
		e.Created = e.Modified
	}

	var w wireNote
	hdr, err := c.do(ctx, http.MethodPost, c.bucketURL(parts...)+"?response=1", toWire(e), &w)
	if err != nil {
		return remote.Entry{}, fmt.Errorf("simplenote: update %s: %w", key, err)
	}
	version := versionOf(hdr)
	if version == 0 {
		version = e.Version + 1
	}
	return fromWire(key, version, w), nil
}

// Trash marks a note deleted.
func (c *Client) Trash(ctx context.Context, key string) (remote.Entry, error) {
	e, err := c.Get(ctx, key)
	if err != nil {
		return remote.Entry{}, err
	}
	e.Deleted = true
	return c.Update(ctx, e)
}

// Delete removes a note permanently.
func (c *Client) Delete(ctx context.Context, key string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.bucketURL("i", key), nil, nil); err != nil {
		return fmt.Errorf("simplenote: delete %s: %w", key, err)
	}
	return nil
}

func (c *Client) bucketURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.cfg.APIURL + "/" + url.PathEscape(c.cfg.AppID) + "/" + bucket + "/" + strings.Join(escaped, "/")
}

// do sends an authorized, throttled request and decodes a JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, u string, in, out any) (http.Header, error) {
	token, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Simperium-Token", token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

func (c *Client) authorize(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	if c.cfg.User == "" || c.cfg.Password == "" {
		return "", fmt.Errorf("simplenote: user and password are required")
	}

	data, _ := json.Marshal(map[string]string{"username": c.cfg.User, "password": c.cfg.Password})
	u := c.cfg.AuthURL + "/" + url.PathEscape(c.cfg.AppID) + "/authorize/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Simperium-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("simplenote: authorize: %w", err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", fmt.Errorf("simplenote: authorize: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("simplenote: authorize: no access token in response")
	}
	c.token = tok.AccessToken
	return c.token, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperr.ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		return apperr.ErrConflict
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func versionOf(h http.Header) int {
	v, _ := strconv.Atoi(h.Get("X-Simperium-Version"))
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
