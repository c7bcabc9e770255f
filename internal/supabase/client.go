// Package supabase is a small client for the identity (GoTrue) and
// database (PostgREST) APIs of a Supabase project.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recetas/recetas/internal/auth"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// maxErrorBody bounds how much of an error payload is read.
	maxErrorBody = 64 << 10

	userAgent = "recetas-go/1.0"
)

// Client talks to one Supabase project.
type Client struct {
	baseURL  *url.URL
	anonKey  string
	http     *http.Client
	store    SessionStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionStore makes the client remember the signed-in session.
// Without a store the client is stateless: tokens only come from the context.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) { c.store = store }
}

// WithNotifier sets where auth state changes are published.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client. It fails immediately when the project URL or the
// public anonymous key is missing.
func New(projectURL, anonKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(projectURL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, ErrMissingKey
	}

	u, err := url.Parse(strings.TrimSuffix(projectURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, projectURL)
	}

	c := &Client{
		baseURL: u,
		anonKey: anonKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient()
	}
	if c.notifier == nil {
		c.notifier = NewBus()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "supabase")

	return c, nil
}

// NewHTTPClient creates an HTTP client with timeouts suited to the
// identity and database APIs. It does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Ping checks that the identity service answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/health", nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Notifier returns the notifier auth changes are published on.
func (c *Client) Notifier() Notifier {
	return c.notifier
}

// accessToken resolves the bearer token for a call: the session in the
// context, then the stored session, then the anonymous key.
func (c *Client) accessToken(ctx context.Context) string {
	if token := auth.AccessTokenFromContext(ctx); token != "" {
		return token
	}
	if session := c.storedSession(ctx); session != nil {
		return session.AccessToken
	}
	return c.anonKey
}

// newRequest builds a request against the project with the standard headers.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken(ctx))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request and decodes a successful JSON body into out.
// Non-2xx responses become *APIError.
func (c *Client) do(req *http.Request, out any) error {
	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("supabase request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", c.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, body)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
