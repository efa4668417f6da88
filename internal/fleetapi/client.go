package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/session"
	"github.com/muurk/fleetsync/internal/urls"
	"github.com/muurk/fleetsync/internal/version"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 8 << 20
)

// Client performs single request/response cycles against the fleet API.
// It never retries; callers that need retries (the reconcile engine) own
// that policy.
type Client struct {
	// BaseURL is the API origin (e.g., "http://fleet.local:8080")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Session supplies the bearer token and is cleared on 401
	Session *session.Session

	// Codec encodes request bodies and decodes responses. Nil means codec.Default.
	Codec *codec.Codec

	// OnAuthFailure is called after the session is cleared because the
	// backend rejected it. The console uses it to return to its login view.
	OnAuthFailure func(err *APIError)

	// UserAgent is sent with every request
	UserAgent string
}

// NewClient creates a client for baseURL using sess for credentials.
func NewClient(baseURL string, sess *session.Session) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Session:    sess,
		UserAgent:  version.UserAgent(),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

func (c *Client) codec() *codec.Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return codec.Default
}

func (c *Client) host() string {
	if u, err := url.Parse(c.BaseURL); err == nil {
		return u.Host
	}
	return c.BaseURL
}

// Result is the outcome of one request: either OK with the decoded
// envelope, or Err describing the failure.
type Result struct {
	OK         bool
	StatusCode int
	Envelope   *Envelope
	Err        *APIError
}

// Error returns the failure as an error, or nil when OK.
func (r Result) Error() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// DecodeData unmarshals the envelope's data into v.
func (r Result) DecodeData(v any) error {
	if r.Envelope == nil || len(r.Envelope.Data) == 0 {
		return NewParseError("response has no data", nil)
	}
	if err := json.Unmarshal(r.Envelope.Data, v); err != nil {
		return NewParseError("failed to parse response data", err)
	}
	return nil
}

func failed(err *APIError) Result {
	return Result{StatusCode: err.StatusCode, Err: err}
}

// Do sends one request. body, if non-nil, is encoded once with the codec's
// identifier allow-list; the response is decoded once.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) Result {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = c.codec().Encode(body)
		if err != nil {
			return failed(&APIError{Type: ErrTypeUnknown, Message: "failed to encode request", Err: err})
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failed(NewNetworkError(fmt.Sprintf("failed to create %s request", method), err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Session != nil {
		if auth := c.Session.AuthorizationHeader(); auth != "" {
			req.Header.Set("Authorization", auth)
		}
	}

	logging.LogHTTPRequest(method, endpoint, payload)
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		apiErr := NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
		apiErr.Host = c.host()
		return failed(apiErr)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return failed(NewNetworkError("failed to read response body", err))
	}
	logging.LogHTTPResponse(method, endpoint, resp.StatusCode, time.Since(start), raw)

	if resp.StatusCode == http.StatusUnauthorized {
		return failed(c.rejectSession(raw, ""))
	}

	var env Envelope
	if err := c.codec().Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			apiErr := NewHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode))
			apiErr.Body = raw
			return failed(apiErr)
		}
		apiErr := NewParseError("response is not a JSON envelope", err)
		apiErr.StatusCode = resp.StatusCode
		apiErr.Body = raw
		return failed(apiErr)
	}

	if env.Code == http.StatusUnauthorized {
		return failed(c.rejectSession(raw, env.Message))
	}

	if resp.StatusCode >= 300 || !env.Succeeded() {
		status := resp.StatusCode
		if status < 300 {
			status = env.Code
		}
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		apiErr := NewHTTPError(status, msg)
		apiErr.Code = env.Code
		apiErr.Body = raw
		return failed(apiErr)
	}

	return Result{OK: true, StatusCode: resp.StatusCode, Envelope: &env}
}

// rejectSession clears the stored credential and signals the login boundary.
func (c *Client) rejectSession(raw []byte, message string) *APIError {
	if message == "" {
		message = "session rejected by server"
	}
	apiErr := NewAuthError(message)
	apiErr.Body = raw

	if c.Session != nil {
		if err := c.Session.Clear(); err != nil {
			logging.Warn("Failed to clear rejected session", zap.Error(err))
		}
	}
	logging.Info("Session rejected; credentials cleared")

	if c.OnAuthFailure != nil {
		c.OnAuthFailure(apiErr)
	}
	return apiErr
}

// Ping checks the API is reachable. Any HTTP answer below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+urls.Health, nil)
	if err != nil {
		return NewNetworkError("failed to create ping request", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		apiErr := NewNetworkError("API unreachable", err)
		apiErr.Host = c.host()
		return apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	return nil
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, NewValidationError("email and password are required")
	}

	res := c.Do(ctx, http.MethodPost, urls.Login, nil, Credentials{Email: email, Password: password})
	if !res.OK {
		return nil, res.Error()
	}

	var login LoginResult
	if err := res.DecodeData(&login); err != nil {
		return nil, err
	}
	if login.Token == "" {
		return nil, NewParseError("login response has no token", nil)
	}

	if c.Session != nil {
		user, err := json.Marshal(login.User)
		if err != nil {
			return nil, fmt.Errorf("failed to encode user profile: %w", err)
		}
		if err := c.Session.Save(login.Token, string(user)); err != nil {
			return nil, err
		}
	}

	logging.Info("Logged in", zap.String("email", email), zap.String("uid", login.User.UID.String()))
	return &login, nil
}

// Logout forgets the stored credential.
func (c *Client) Logout() error {
	if c.Session == nil {
		return nil
	}
	return c.Session.Clear()
}
