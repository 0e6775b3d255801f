package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/dragos-portal/internal/config"
	"github.com/thesavant42/dragos-portal/internal/metrics"
	"github.com/thesavant42/dragos-portal/internal/ratelimit"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	userAgent = "dragos-portal-go/1.0"

	headerToken  = "Api-Token"
	headerSecret = "Api-Secret"

	kindJSON   = "json"
	kindBinary = "binary"
)

var filenamePattern = regexp.MustCompile(`filename="?([^"]+)"?`)

// Client is a Dragos portal API client. Every request it issues is first
// recorded against its rate governor.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	secret     string
	insecure   bool
	governor   *ratelimit.Governor
	pacer      *rate.Limiter // nil unless throttling is enabled
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithGovernor replaces the governor built from the config limits
func WithGovernor(g *ratelimit.Governor) Option {
	return func(c *Client) {
		c.governor = g
	}
}

// New creates a client bound to the credentials and base URL in cfg
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no portal config", config.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	insecure := cfg.IsLocal()
	if insecure {
		// Local development portals use self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:  cfg.URL,
		token:    cfg.AccessToken,
		secret:   cfg.AccessKey,
		insecure: insecure,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.governor == nil {
		c.governor = ratelimit.NewGovernor(cfg.Limits)
	}
	if cfg.Throttle {
		perMinute := c.governor.Limits().PerMinute
		c.pacer = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}

	if insecure {
		c.logger.Warn("TLS certificate verification disabled for local portal", "url", c.baseURL)
	}

	return c, nil
}

// BaseURL returns the portal API base URL (always ending in '/')
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InsecureTLS reports whether certificate verification is disabled
func (c *Client) InsecureTLS() bool {
	return c.insecure
}

// Governor returns the client's rate governor
func (c *Client) Governor() *ratelimit.Governor {
	return c.governor
}

// FetchJSON issues an authenticated GET and decodes a 200 response into v.
// Any other status fails with *UpstreamError.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	start := time.Now()
	resp, err := c.get(ctx, kindJSON, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(kindJSON, "transport_error", time.Since(start))
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveRequest(kindJSON, "upstream_error", time.Since(start))
		c.logger.Error("API error", "status", resp.StatusCode, "url", rawURL, "response", string(body))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body), URL: rawURL}
	}
	c.metrics.ObserveRequest(kindJSON, "ok", time.Since(start))

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Asset is a downloaded binary document
type Asset struct {
	Filename    string
	ContentType string
	Body        []byte
}

// FetchBinary issues an authenticated GET and returns the raw body along
// with the filename from the content-disposition header.
func (c *Client) FetchBinary(ctx context.Context, rawURL string) (*Asset, error) {
	c.checkLinkDomain(rawURL)

	start := time.Now()
	resp, err := c.get(ctx, kindBinary, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(kindBinary, "transport_error", time.Since(start))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveRequest(kindBinary, "upstream_error", time.Since(start))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body), URL: rawURL}
	}
	c.metrics.ObserveRequest(kindBinary, "ok", time.Since(start))

	filename, err := ParseFilename(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return nil, err
	}

	return &Asset{
		Filename:    filename,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// get records the request with the governor, then issues it. A governor
// rejection returns before anything is sent.
func (c *Client) get(ctx context.Context, kind, rawURL string) (*http.Response, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request pacing interrupted: %w", err)
		}
	}

	counts, err := c.governor.CheckAndRecord()
	c.metrics.ObserveWindows(counts.Minute, counts.Week)
	if err != nil {
		window := "unknown"
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			window = limitErr.Window
		}
		c.metrics.ObserveRateLimited(kind, window)
		c.logger.Warn("Rate limit exceeded, request not sent", "url", rawURL, "window", window, "minute", counts.Minute, "week", counts.Week)
		return nil, err
	}

	limits := c.governor.Limits()
	c.logger.Debug("Rate limit",
		"minute", fmt.Sprintf("%d / %d", counts.Minute, limits.PerMinute),
		"week", fmt.Sprintf("%d / %d", counts.Week, limits.PerWeek))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.logger.Error("Failed to create request", "url", rawURL, "error", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerToken, c.token)
	req.Header.Set(headerSecret, c.secret)
	req.Header.Set("User-Agent", userAgent)
	if kind == kindJSON {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Info("GET", "endpoint", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(kind, "transport_error", 0)
		c.logger.Error("Request failed", "url", rawURL, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// checkLinkDomain warns when credentials are about to be sent to a host
// outside the portal's registrable domain
func (c *Client) checkLinkDomain(rawURL string) {
	link, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	if !sameSite(link.Hostname(), base.Hostname()) {
		c.logger.Warn("Report link host differs from portal host; credentials are sent with it",
			"link_host", link.Hostname(), "portal_host", base.Hostname())
	}
}

// sameSite compares two hosts by effective TLD+1 (e.g. "cdn.dragos.com" and
// "portal.dragos.com" match). Hosts without a public suffix compare exactly.
func sameSite(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	rootA, errA := publicsuffix.EffectiveTLDPlusOne(a)
	rootB, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return false
	}
	return rootA == rootB
}

// ParseFilename extracts the filename from a content-disposition header
// Example: attachment; filename="DOM-2024-01.pdf"
func ParseFilename(disposition string) (string, error) {
	if disposition == "" {
		return "", ErrNoFilename
	}

	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := params["filename"]; name != "" {
			return name, nil
		}
	}

	// Fall back to a lenient match for headers mime can't parse
	matches := filenamePattern.FindStringSubmatch(disposition)
	if len(matches) < 2 || strings.TrimSpace(matches[1]) == "" {
		return "", fmt.Errorf("%w: %q", ErrNoFilename, disposition)
	}
	return strings.TrimSpace(matches[1]), nil
}
