// Package github provides the GitHub API access pull-review needs: pull request
// metadata, changed files, commits, blame ranges, repository files and review requests.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	defaultAPIBase     = "https://api.github.com"
	defaultHTTPTimeout = 30 * time.Second
	perPageLimit       = 100
)

// Retry constants.
const (
	maxRetryAttempts  = 10
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 2 * time.Minute
)

// ErrNotFound is returned when GitHub answers 404.
var ErrNotFound = errors.New("not found")

// HTTPDoer provides an interface for making HTTP requests.
// This allows us to mock HTTP calls in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for creating a new GitHub client.
type Config struct {
	HTTPClient  HTTPDoer     // nil uses an http.Client with HTTPTimeout
	Logger      *slog.Logger // nil uses slog.Default()
	Token       string       // personal access token; empty falls back to GITHUB_TOKEN, then `gh auth token`
	AppID       string       // GitHub App ID; empty falls back to GITHUB_APP_ID
	AppKeyPath  string       // GitHub App private key file; see resolveAppCredentials
	APIBase     string       // defaults to https://api.github.com
	HTTPTimeout time.Duration
	UseAppAuth  bool
}

// Client handles all GitHub API interactions.
type Client struct {
	tokenExpiry        time.Time
	httpClient         HTTPDoer
	logger             *slog.Logger
	installationTokens map[string]installationToken
	appID              string
	token              string
	privateKeyPath     string
	apiBase            string
	privateKeyContent  []byte
	retryDelay         time.Duration
	retryAttempts      uint
	tokenMutex         sync.RWMutex
	isAppAuth          bool
}

// New creates a new GitHub API client using a personal token or GitHub App authentication.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		httpClient:         cfg.HTTPClient,
		logger:             cfg.Logger,
		apiBase:            strings.TrimSuffix(cfg.APIBase, "/"),
		retryDelay:         initialRetryDelay,
		retryAttempts:      maxRetryAttempts,
		installationTokens: make(map[string]installationToken),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.apiBase == "" {
		c.apiBase = defaultAPIBase
	}
	if c.httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}

	if cfg.UseAppAuth {
		if err := c.setupAppAuth(cfg.AppID, cfg.AppKeyPath); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.setupTokenAuth(ctx, cfg.Token); err != nil {
		return nil, err
	}
	return c, nil
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func (c *Client) drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		c.logger.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		c.logger.Warn("Failed to close response body", "error", err)
	}
}

// doRequest makes an HTTP request to the GitHub API with retry logic.
// owner and repo select the App installation token; the caller closes the body.
func (c *Client) doRequest(ctx context.Context, method, apiURL, owner, repo string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	authHeader, err := c.authorization(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	sanitizedURL := sanitizeURLForLogging(apiURL)
	c.logger.DebugContext(ctx, "HTTP request", "component", "http", "method", method, "url", sanitizedURL)

	var resp *http.Response
	err = c.retryWithBackoff(ctx, method+" "+sanitizedURL, func() error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", authHeader)
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // body is closed by the caller
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if localResp.StatusCode == http.StatusTooManyRequests {
			c.drainAndCloseBody(localResp.Body)
			c.logger.WarnContext(ctx, "Rate limited - will retry with backoff", "method", method, "url", sanitizedURL, "status", 429)
			return fmt.Errorf("http %d: rate limited", localResp.StatusCode)
		}
		if localResp.StatusCode >= http.StatusInternalServerError && localResp.StatusCode < 600 {
			c.drainAndCloseBody(localResp.Body)
			c.logger.WarnContext(ctx, "Server error - will retry with backoff", "method", method, "url", sanitizedURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "HTTP response", "component", "http", "method", method, "url", sanitizedURL, "status", resp.StatusCode)
	return resp, nil
}

// getJSON fetches apiURL and decodes a 200 response into v.
func (c *Client) getJSON(ctx context.Context, apiURL, owner, repo string, v any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, owner, repo, nil) //nolint:bodyclose // closed below
	if err != nil {
		return err
	}
	defer c.drainAndCloseBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", sanitizeURLForLogging(apiURL), ErrNotFound)
	default:
		return fmt.Errorf("GET %s: %w", sanitizeURLForLogging(apiURL), statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", sanitizeURLForLogging(apiURL), err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("status %d (could not read body: %w)", resp.StatusCode, err)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// retryWithBackoff executes fn with exponential backoff and jitter.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(c.retryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			c.logger.InfoContext(ctx, "Retry attempt", "component", "retry", "operation", operation,
				"attempt", n+1, "max_attempts", c.retryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}

// retryable reports whether err is worth another attempt: rate limits, server errors and network issues.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limited") ||
		strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "EOF")
}

// sanitizeURLForLogging strips the query string, which may carry tokens on redirects.
func sanitizeURLForLogging(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func (c *Client) repoURL(owner, repo string, format string, args ...any) string {
	return fmt.Sprintf("%s/repos/%s/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo)) + fmt.Sprintf(format, args...)
}
