// Package auth is the client for the login/registration API.
//
// Every call goes through Client.Request, which attaches the stored access
// token as a bearer credential, and on a 401 exchanges the refresh token for
// a new access token and retries the call once. Concurrent refreshes are not
// coordinated and there is no backoff.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/tokens"
)

// DefaultBaseURL is the API root used when Options.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8080/api"

// maxResponseSize limits response body reads.
const maxResponseSize = 10 * 1024 * 1024

// Route names handed to the Redirector after a final 401.
const (
	RouteLogin      = "login"
	RouteAdminLogin = "admin/login"
)

// publicEndpoints never carry a bearer token and never trigger a refresh.
// Matching is by substring, so "/auth/forgot-password/reset" is public too.
var publicEndpoints = []string{
	"/auth/login",
	"/auth/admin/login",
	"/auth/admin/forgot-password",
	"/auth/register",
	"/auth/send-code",
	"/auth/login/code",
	"/auth/forgot-password",
	"/auth/refresh",
}

// IsPublicEndpoint reports whether path is on the public allow-list.
func IsPublicEndpoint(path string) bool {
	for _, ep := range publicEndpoints {
		if strings.Contains(path, ep) {
			return true
		}
	}
	return false
}

// Redirector sends the user to a login view. target is either the login
// path (after a failed refresh) or a route name (after a final 401).
type Redirector func(target string)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// LoginPath is where a failed refresh redirects to. Defaults to "/login".
	LoginPath string
	// CurrentView reports the view the user is on; no redirect happens when
	// it already equals LoginPath.
	CurrentView func() string
	Redirect    Redirector
	// SendCodeCooldown rate-limits verification code requests client-side.
	// Zero disables the limit.
	SendCodeCooldown time.Duration
	HTTPClient       *http.Client
}

type Client struct {
	http        *resty.Client
	tokens      *tokens.Manager
	loginPath   string
	currentView func() string
	redirect    Redirector

	cooldown  time.Duration
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewClient(tm *tokens.Manager, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base).
		SetTimeout(timeout).
		SetLogger(restyLogger{})

	return &Client{
		http:        rc,
		tokens:      tm,
		loginPath:   loginPath,
		currentView: opts.CurrentView,
		redirect:    opts.Redirect,
		cooldown:    opts.SendCodeCooldown,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Tokens exposes the token manager backing this client.
func (c *Client) Tokens() *tokens.Manager {
	return c.tokens
}

// RequestOptions describes one API call. Body is JSON-encoded when non-nil.
type RequestOptions struct {
	Method  string
	Body    interface{}
	Headers map[string]string
}

// Response is the backend envelope. Status is the HTTP status code; Code is
// the envelope code, which the backend sets independently.
type Response struct {
	Code              int             `json:"code"`
	Message           string          `json:"message,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	AccessToken       string          `json:"accessToken,omitempty"`
	RefreshToken      string          `json:"refreshToken,omitempty"`
	TokenType         string          `json:"tokenType,omitempty"`
	RemainingAttempts *int            `json:"remainingAttempts,omitempty"`
	Status            int             `json:"-"`
}

func (r *Response) OK() bool {
	return r.Code == http.StatusOK
}

// HasData reports whether the envelope carried a non-null data field.
func (r *Response) HasData() bool {
	d := strings.TrimSpace(string(r.Data))
	return d != "" && d != "null"
}

// DecodeData unmarshals the data field into v.
func (r *Response) DecodeData(v interface{}) error {
	if !r.HasData() {
		return fmt.Errorf("auth: response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// Request performs an API call with bearer attachment and a single
// refresh-and-retry on 401.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("auth: marshal request: %w", err)
		}
		body = b
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	public := IsPublicEndpoint(path)
	if !public {
		if token := c.tokens.AccessToken(); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	}

	resp, err := c.do(ctx, method, path, headers, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized && !public && c.tokens.RefreshToken() != "" {
		logger.DebugCF("auth", "Access token rejected, refreshing", map[string]interface{}{"path": path})

		accessToken, err := c.refreshAccessToken(ctx)
		if err != nil {
			logger.WarnCF("auth", "Token refresh failed", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			c.tokens.Clear()
			if c.currentView == nil || c.currentView() != c.loginPath {
				c.redirectTo(c.loginPath)
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		headers["Authorization"] = "Bearer " + accessToken
		resp, err = c.do(ctx, method, path, headers, body)
		if err != nil {
			return nil, err
		}
	}

	out := normalize(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())

	if resp.StatusCode() == http.StatusUnauthorized {
		c.tokens.Clear()
		if strings.Contains(path, "/admin/") {
			c.redirectTo(RouteAdminLogin)
		} else {
			c.redirectTo(RouteLogin)
		}
	}

	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("auth: %s %s: %w", method, path, err)
	}
	if len(resp.Body()) > maxResponseSize {
		return nil, fmt.Errorf("auth: %s %s: response exceeds %d bytes", method, path, maxResponseSize)
	}
	return resp, nil
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token. Any failure clears the stored tokens.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"refreshToken": refreshToken}).
		Post("/auth/refresh")
	if err != nil {
		c.tokens.Clear()
		return "", fmt.Errorf("auth: refresh: %w", err)
	}

	var env Response
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		c.tokens.Clear()
		return "", fmt.Errorf("auth: refresh: %w", ErrBadResponse)
	}
	if env.Code != http.StatusOK || env.AccessToken == "" {
		c.tokens.Clear()
		return "", ErrRefreshFailed
	}

	c.tokens.SetTokens(env.AccessToken, refreshToken)
	logger.InfoCF("auth", "Access token refreshed", nil)
	return env.AccessToken, nil
}

func (c *Client) redirectTo(target string) {
	logger.InfoCF("auth", "Redirecting to login", map[string]interface{}{"target": target})
	if c.redirect != nil {
		c.redirect(target)
	}
}

// normalize turns any HTTP response into an envelope. JSON bodies are
// decoded as-is; empty, unparseable or non-JSON bodies get a synthesized
// code and message.
func normalize(status int, contentType string, body []byte) *Response {
	if strings.Contains(contentType, "application/json") {
		if text := strings.TrimSpace(string(body)); text != "" {
			var r Response
			if err := json.Unmarshal([]byte(text), &r); err == nil {
				r.Status = status
				return &r
			}
		}
		return &Response{Code: status, Message: defaultMessage(status, false), Status: status}
	}
	return &Response{Code: status, Message: defaultMessage(status, true), Status: status}
}

func defaultMessage(status int, includeNotFound bool) string {
	switch {
	case status == http.StatusForbidden:
		return "access denied"
	case status == http.StatusUnauthorized:
		return "unauthorized, please log in again"
	case includeNotFound && status == http.StatusNotFound:
		return "resource not found"
	default:
		return "request failed"
	}
}

// allowCode applies the per-kind verification code cooldown. A new limiter
// is seeded with the last request stored in the session, so the cooldown
// also holds across processes sharing that session.
func (c *Client) allowCode(kind string) bool {
	if c.cooldown <= 0 {
		return true
	}
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	l, ok := c.limiters[kind]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.cooldown), 1)
		if last, ok := c.tokens.LastCodeSent(kind); ok {
			l.AllowN(last, 1)
		}
		c.limiters[kind] = l
	}
	now := time.Now()
	if !l.AllowN(now, 1) {
		return false
	}
	c.tokens.MarkCodeSent(kind, now)
	return true
}

type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	logger.ErrorCF("auth", fmt.Sprintf(format, v...), nil)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	logger.WarnCF("auth", fmt.Sprintf(format, v...), nil)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	logger.DebugCF("auth", fmt.Sprintf(format, v...), nil)
}
