// Package apiclient is the Go client for the EduGame HTTP API. It keeps the
// signed-in session in a kvstore.Store so it survives restarts and refreshes
// the access token when it expires.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/kvstore"
	"edugame/internal/models"
)

// Storage keys
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserProfile  = "user_profile"
	KeyTokenExpiry  = "token_expiry"
)

// expirySkew refreshes a little early so a token does not lapse in flight
const expirySkew = 30 * time.Second

// State is the authentication state of the client
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
)

var (
	// ErrNotAuthenticated is returned by calls that need a session when there is none
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrSessionExpired is returned when the refresh token was rejected; the session is cleared
	ErrSessionExpired = errors.New("session expired, please sign in again")
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s %v", e.StatusCode, e.Message, e.Fields)
}

// Client talks to the API on behalf of one user
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      kvstore.Store
	log        logrus.FieldLogger
	now        func() time.Time

	mu    sync.Mutex
	state State
	user  *models.User

	// refreshMu serializes token refreshes
	refreshMu sync.Mutex
}

// New creates a client for the API at baseURL
func New(baseURL string, store kvstore.Store, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store: store,
		log:   log,
		now:   time.Now,
		state: StateUnauthenticated,
	}
}

// State returns the current authentication state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the signed-in user, or nil
func (c *Client) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// IsAuthenticated reports whether a user is signed in
func (c *Client) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

func (c *Client) setState(state State, user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.user = user
}

// Login signs in with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

// Register creates an account and signs in to it
func (c *Client) Register(ctx context.Context, form models.RegisterForm) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/register", form)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.User, error) {
	c.setState(StateLoading, nil)

	// a failed sign-in must not leave an earlier session restorable
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		c.setState(StateUnauthenticated, nil)
		c.discardSession(ctx)
		return nil, err
	}
	if err := c.saveSession(ctx, &resp); err != nil {
		c.setState(StateUnauthenticated, nil)
		c.discardSession(ctx)
		return nil, err
	}

	c.setState(StateAuthenticated, resp.User)
	c.log.WithField("user_id", resp.User.ID).Debug("signed in")
	return resp.User, nil
}

// Restore loads a saved session. It leaves the client unauthenticated when
// nothing was saved; an expired access token is refreshed on first use.
func (c *Client) Restore(ctx context.Context) error {
	c.setState(StateLoading, nil)

	token, err := c.get(ctx, KeyAccessToken)
	if err != nil {
		c.setState(StateUnauthenticated, nil)
		return err
	}
	profile, err := c.get(ctx, KeyUserProfile)
	if err != nil {
		c.setState(StateUnauthenticated, nil)
		return err
	}
	if token == "" || profile == "" {
		c.setState(StateUnauthenticated, nil)
		return nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(profile), &user); err != nil {
		c.log.WithError(err).Warn("discarding unreadable saved profile")
		c.setState(StateUnauthenticated, nil)
		return c.clearSession(ctx)
	}

	c.setState(StateAuthenticated, &user)
	return nil
}

// Logout revokes the refresh token on the server and clears the saved session.
// The local session is cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	refresh, err := c.get(ctx, KeyRefreshToken)
	if err == nil && refresh != "" {
		if err := c.do(ctx, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": refresh}, nil); err != nil {
			c.log.WithError(err).Warn("server logout failed")
		}
	}

	c.setState(StateUnauthenticated, nil)
	return c.clearSession(ctx)
}

// AccessToken returns a valid access token, refreshing it when it has expired.
// A rejected refresh signs the user out and returns ErrSessionExpired.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	token, err := c.get(ctx, KeyAccessToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotAuthenticated
	}

	expiry, err := c.get(ctx, KeyTokenExpiry)
	if err != nil {
		return "", err
	}
	expiresAtMs, err := strconv.ParseInt(expiry, 10, 64)
	if err == nil && c.now().Add(expirySkew).Before(time.UnixMilli(expiresAtMs)) {
		return token, nil
	}

	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refresh, err := c.get(ctx, KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		c.setState(StateUnauthenticated, nil)
		return "", ErrSessionExpired
	}

	var resp models.AuthResponse
	err = c.do(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		c.log.WithError(err).Info("refresh rejected, signing out")
		c.setState(StateUnauthenticated, nil)
		if err := c.clearSession(ctx); err != nil {
			return "", err
		}
		return "", ErrSessionExpired
	}
	if err != nil {
		return "", err
	}

	if err := c.saveSession(ctx, &resp); err != nil {
		return "", err
	}
	c.setState(StateAuthenticated, resp.User)
	return resp.Tokens.AccessToken, nil
}

func (c *Client) saveSession(ctx context.Context, resp *models.AuthResponse) error {
	profile, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	values := []struct{ key, value string }{
		{KeyAccessToken, resp.Tokens.AccessToken},
		{KeyRefreshToken, resp.Tokens.RefreshToken},
		{KeyUserProfile, string(profile)},
		{KeyTokenExpiry, strconv.FormatInt(resp.Tokens.ExpiresAt, 10)},
	}
	for _, v := range values {
		if err := c.store.Set(ctx, v.key, v.value); err != nil {
			return fmt.Errorf("failed to save %s: %w", v.key, err)
		}
	}
	return nil
}

func (c *Client) clearSession(ctx context.Context) error {
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUserProfile, KeyTokenExpiry} {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

// discardSession clears the saved session, logging instead of returning a failure
func (c *Client) discardSession(ctx context.Context) {
	if err := c.clearSession(ctx); err != nil {
		c.log.WithError(err).Warn("failed to clear saved session")
	}
}

// get reads a stored value; a missing key reads as ""
func (c *Client) get(ctx context.Context, key string) (string, error) {
	value, err := c.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// authed performs a request with the current access token
func (c *Client) authed(ctx context.Context, method, path string, body, result any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, result)
}

// optional performs a request with the access token when signed in
func (c *Client) optional(ctx context.Context, method, path string, body, result any) error {
	if !c.IsAuthenticated() {
		return c.do(ctx, method, path, "", body, result)
	}
	return c.authed(ctx, method, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		}
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
