// Package wxwork is a minimal client for the WeChat Work server API. It owns
// the corp access-token lifecycle: tokens are fetched from the gettoken
// endpoint, cached in memory until their expiry, and dropped on demand when a
// downstream call reports them invalid.
package wxwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-retryablehttp"
)

// ClientConfig configures a Client. Zero values fall back to the hosted API
// defaults.
type ClientConfig struct {
	APIBase     string
	Credentials Credentials
	Timeout     time.Duration
	RetryMax    int
}

// Client talks to one WeChat Work corp. Use one Client per credential set so
// cached tokens never leak across corps.
type Client struct {
	apiBase    string
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger

	// Guards the cached token value only. Concurrent callers that both find
	// the token expired will each fetch a new one; token issuance is
	// idempotent, so the losing write is harmless and the race is left alone.
	mu     sync.Mutex
	cached *cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// leveledSlog adapts slog to retryablehttp's logger, rewriting retry ERRORs
// down to WARN since they are retried.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Info(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = timeout

	return &Client{
		apiBase:    apiBase,
		creds:      cfg.Credentials,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Credentials returns the credential set the client was built with.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// GetToken returns a currently valid corp access token, fetching a new one
// from the remote API only when the cached token is absent or expired.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.cached != nil && time.Now().Before(c.cached.expiresAt) {
		token := c.cached.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	resp, err := c.RequestToken(ctx)
	if err != nil {
		return "", err
	}
	if resp.ErrCode != ErrCodeOK {
		return "", &APIError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}

	c.mu.Lock()
	c.cached = &cachedToken{
		token:     resp.AccessToken,
		expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	c.mu.Unlock()

	return resp.AccessToken, nil
}

// RequestToken performs a single gettoken call and returns the raw response
// without touching the cache. The auth pipeline uses it directly because
// login tokens are scoped to one login and must not be cached.
func (c *Client) RequestToken(ctx context.Context) (*TokenResponse, error) {
	endpoint, err := c.endpoint("/gettoken", tokenParams{
		CorpID:     c.creds.CorpID,
		CorpSecret: c.creds.CorpSecret,
	})
	if err != nil {
		return nil, err
	}

	var resp TokenResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invalidate drops the cached token so the next GetToken call fetches a
// fresh one. Call it after a downstream API call fails with a token-invalid
// errcode.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// GetUserID resolves the member behind an authorization code.
func (c *Client) GetUserID(ctx context.Context, accessToken, code string) (string, error) {
	endpoint, err := c.endpoint("/user/getuserinfo", userInfoParams{
		AccessToken: accessToken,
		Code:        code,
	})
	if err != nil {
		return "", err
	}

	var resp userInfoResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != ErrCodeOK {
		return "", &APIError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return resp.UserID, nil
}

// GetUser fetches the full profile of a member.
func (c *Client) GetUser(ctx context.Context, accessToken, userID string) (*User, error) {
	endpoint, err := c.endpoint("/user/get", userGetParams{
		AccessToken: accessToken,
		UserID:      userID,
	})
	if err != nil {
		return nil, err
	}

	var resp userResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.ErrCode != ErrCodeOK {
		return nil, &APIError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return &resp.User, nil
}

// SendMessage POSTs one message to the send endpoint using the given access
// token. A token-invalid errcode comes back as an APIError the caller can
// recognize with IsTokenInvalid.
func (c *Client) SendMessage(ctx context.Context, accessToken string, msg *Message) error {
	endpoint, err := c.endpoint("/message/send", sendParams{AccessToken: accessToken})
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wxwork: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wxwork: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sendResponse
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.ErrCode != ErrCodeOK {
		return &APIError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return nil
}

func (c *Client) endpoint(path string, params any) (string, error) {
	values, err := query.Values(params)
	if err != nil {
		return "", fmt.Errorf("wxwork: encode query params: %w", err)
	}
	return c.apiBase + path + "?" + values.Encode(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("wxwork: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wxwork: request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wxwork: read response: %w", err)
	}

	c.logger.Debug("wxwork response",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"content", string(body),
	)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("wxwork: decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
