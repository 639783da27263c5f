package usecase

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	stateParam      = "state"
	mockAccessToken = "mock_token_for_testing"
)

var mockScopes = []string{
	"https://www.googleapis.com/auth/documents.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

// handshake is one authorization attempt. It resolves once, by whichever
// signal arrives first.
type handshake struct {
	state string

	tokenOnce sync.Once
	token     chan struct{}

	abandonOnce sync.Once
	abandoned   chan struct{}
}

func newHandshake(state string) *handshake {
	return &handshake{
		state:     state,
		token:     make(chan struct{}),
		abandoned: make(chan struct{}),
	}
}

func (h *handshake) delivered() {
	h.tokenOnce.Do(func() { close(h.token) })
}

func (h *handshake) abandon() {
	h.abandonOnce.Do(func() { close(h.abandoned) })
}

// ConnectExternalAccount runs the authorization handshake. A failed or
// cancelled attempt leaves an existing connection untouched.
func (c *SessionController) ConnectExternalAccount(ctx context.Context) (domain.ConnectOutcome, error) {
	if c.isClosed() {
		return domain.ConnectFailed, domain.ErrSessionClosed
	}
	if c.deps.Opener == nil {
		return c.connectFailed(domain.WrapError(domain.ErrInvalidInput, "connect account", errors.New("no window opener configured")))
	}

	ctx, done := c.sessionContext(ctx)
	defer done()

	authURL, err := c.deps.Backend.AuthURL(ctx)
	if err != nil {
		return c.connectFailed(err)
	}
	state := uuid.NewString()
	authURL, err = withState(authURL, state)
	if err != nil {
		return c.connectFailed(err)
	}

	// Store timestamps may be truncated to the second.
	started := c.deps.Now().Truncate(time.Second)
	hs := newHandshake(state)
	c.mu.Lock()
	c.pending = hs
	c.authState = state
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.pending == hs {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	window, err := c.deps.Opener.Open(ctx, authURL)
	if err != nil {
		return c.connectFailed(err)
	}
	defer func() { _ = window.Close() }()

	select {
	case <-hs.token:
		return c.connectSucceeded()
	case <-hs.abandoned:
	case <-window.Closed():
	case <-ctx.Done():
		if c.isClosed() {
			return domain.ConnectFailed, domain.ErrSessionClosed
		}
		return c.connectCancelled(domain.WrapError(domain.ErrCancelled, "connect account", ctx.Err()))
	}

	// A token delivered together with the close still wins.
	select {
	case <-hs.token:
		return c.connectSucceeded()
	default:
	}

	if c.adoptStoredSince(ctx, started) {
		return c.connectSucceeded()
	}
	return c.connectCancelled(domain.WrapError(domain.ErrCancelled, "connect account", errors.New("authorization cancelled or failed")))
}

// adoptStoredSince checks the token store once for a usable credential the
// authorization page saved during the current attempt.
func (c *SessionController) adoptStoredSince(ctx context.Context, since time.Time) bool {
	stored, err := c.deps.Tokens.Load(ctx)
	if err != nil {
		c.deps.Logger.Warn("token_store_load_failed", "error", err)
		return false
	}
	if stored == nil || !stored.Usable(c.deps.Now()) {
		return false
	}
	if stored.SavedAt.Before(since) {
		c.deps.Logger.Debug("stored_token_predates_attempt", "saved_at", stored.SavedAt)
		return false
	}
	c.adoptToken(stored.Token, stored.ExpiresAt, false)
	return true
}

// DeliverToken accepts the credential from the out-of-band channel. It is
// honored until Close, even after the attempt that asked for it gave up, as
// long as state matches the latest attempt.
func (c *SessionController) DeliverToken(ctx context.Context, state string, token json.RawMessage, expiresAt *time.Time) error {
	token = bytes.TrimSpace(token)
	if len(token) == 0 || bytes.Equal(token, []byte("null")) {
		return domain.WrapError(domain.ErrInvalidInput, "deliver token", errors.New("token is empty"))
	}

	c.mu.Lock()
	closed, known := c.closed, stateMatches(c.authState, state)
	c.mu.Unlock()
	if closed {
		return domain.ErrSessionClosed
	}
	if !known {
		c.deps.Logger.Warn("token_state_mismatch")
		return domain.WrapError(domain.ErrStateMismatch, "deliver token", errors.New("unknown authorization state"))
	}

	if err := c.deps.Tokens.Save(ctx, domain.StoredToken{
		Token:     cloneRaw(token),
		SavedAt:   c.deps.Now(),
		ExpiresAt: expiresAt,
	}); err != nil {
		c.deps.Logger.Warn("token_store_save_failed", "error", err)
	}

	if pending := c.adoptToken(token, expiresAt, false); pending != nil {
		pending.delivered()
	}
	c.publish(domain.EventAccountConnected, nil)
	return nil
}

// AbandonAuthorization is the closed signal reported by the authorization
// page. It reports whether a pending attempt was ended.
func (c *SessionController) AbandonAuthorization(state string) (bool, error) {
	c.mu.Lock()
	known := stateMatches(c.authState, state)
	pending := c.pending
	c.mu.Unlock()
	if !known {
		return false, domain.WrapError(domain.ErrStateMismatch, "abandon authorization", errors.New("unknown authorization state"))
	}
	if pending == nil || pending.state != state {
		return false, nil
	}
	pending.abandon()
	return true, nil
}

// ConnectMockAccount stores a labelled test credential without an
// authorization round trip. The backend cannot read real documents with it.
func (c *SessionController) ConnectMockAccount(ctx context.Context) error {
	if c.isClosed() {
		return domain.ErrSessionClosed
	}
	now := c.deps.Now()
	expires := now.Add(time.Hour)
	token, err := json.Marshal(map[string]any{
		"access_token":  mockAccessToken,
		"refresh_token": "mock_refresh_token",
		"token_uri":     "https://oauth2.googleapis.com/token",
		"client_id":     "mock_client_id",
		"client_secret": "mock_secret",
		"scopes":        mockScopes,
		"expiry":        expires.Format(time.RFC3339),
	})
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "mock connect", err)
	}

	if err := c.deps.Tokens.Save(ctx, domain.StoredToken{Token: token, SavedAt: now, ExpiresAt: &expires}); err != nil {
		c.deps.Logger.Warn("token_store_save_failed", "error", err)
	}
	c.adoptToken(token, &expires, true)
	c.deps.Logger.Info("mock_account_connected")
	c.notify(domain.NoticeWarning, "Mock connection for testing only. Use real OAuth in production.")
	c.publish(domain.EventAccountConnected, map[string]string{"mock": "true"})
	return nil
}

// DisconnectExternalAccount is purely local and idempotent.
func (c *SessionController) DisconnectExternalAccount() {
	c.mu.Lock()
	c.conn = domain.Connection{}
	c.authState = ""
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Tokens.Clear(ctx); err != nil {
		c.deps.Logger.Warn("token_store_clear_failed", "error", err)
	}
	c.notify(domain.NoticeInfo, "External account disconnected")
}

func (c *SessionController) adoptToken(token json.RawMessage, expiresAt *time.Time, mock bool) *handshake {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.conn = domain.Connection{
		Connected:   true,
		Token:       cloneRaw(token),
		ConnectedAt: c.deps.Now(),
		ExpiresAt:   expiresAt,
		Mock:        mock,
	}
	return c.pending
}

func (c *SessionController) connectSucceeded() (domain.ConnectOutcome, error) {
	c.deps.Metrics.RecordConnect(domain.ConnectConnected)
	c.deps.Logger.Info("account_connected")
	c.notify(domain.NoticeSuccess, "External account connected")
	return domain.ConnectConnected, nil
}

func (c *SessionController) connectCancelled(err error) (domain.ConnectOutcome, error) {
	c.deps.Metrics.RecordConnect(domain.ConnectCancelled)
	c.deps.Logger.Info("account_connect_cancelled", "error", err)
	c.notify(domain.NoticeWarning, "Authorization cancelled or failed")
	return domain.ConnectCancelled, err
}

func (c *SessionController) connectFailed(err error) (domain.ConnectOutcome, error) {
	c.deps.Metrics.RecordConnect(domain.ConnectFailed)
	c.deps.Logger.Warn("account_connect_failed", "error", err)
	c.notify(domain.NoticeError, "Failed to connect the external account")
	return domain.ConnectFailed, err
}

func withState(authURL, state string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil || u.Host == "" {
		return "", &domain.BackendError{Operation: "auth url", Message: "backend returned an invalid authorization url"}
	}
	q := u.Query()
	q.Set(stateParam, state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func stateMatches(want, got string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func isMockToken(raw json.RawMessage) bool {
	var token struct {
		AccessToken string `json:"access_token"`
	}
	return json.Unmarshal(raw, &token) == nil && token.AccessToken == mockAccessToken
}
