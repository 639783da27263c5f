package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
)

const defaultMaxFileSize = 10 << 20

type SessionConfig struct {
	UserID            string
	MaxFileSize       int64
	UploadConcurrency int
	FallbackEnabled   bool
	EventTimeout      time.Duration
}

type SessionDeps struct {
	Backend   ports.Backend
	Tokens    ports.TokenStore
	Opener    ports.WindowOpener
	Notifier  ports.Notifier
	Events    ports.EventPublisher
	Inspector ports.FileInspector
	Metrics   ports.SessionMetrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// SessionController owns every piece of client session state. All mutation
// happens under mu; the lock is never held across I/O.
type SessionController struct {
	cfg  SessionConfig
	deps SessionDeps

	root   context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	state        domain.SessionState
	docs         []domain.UploadedDocument
	remote       []domain.RemoteFile
	conn         domain.Connection
	currentQuery string
	result       *domain.AnalysisResult
	lastError    string
	reachable    *bool
	pending      *handshake
	authState    string
	demo         bool
}

func NewSessionController(cfg SessionConfig, deps SessionDeps) *SessionController {
	if cfg.UserID == "" {
		cfg.UserID = "default_user"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 2 * time.Second
	}
	if deps.Tokens == nil {
		deps.Tokens = noopTokenStore{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	root, cancel := context.WithCancel(context.Background())
	return &SessionController{
		cfg:    cfg,
		deps:   deps,
		root:   root,
		cancel: cancel,
		state:  domain.SessionIdle,
	}
}

// Restore adopts a previously persisted credential, if any.
func (c *SessionController) Restore(ctx context.Context) error {
	stored, err := c.deps.Tokens.Load(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "restore token", err)
	}
	if stored == nil || len(stored.Token) == 0 {
		return nil
	}
	if !stored.Usable(c.deps.Now()) {
		c.deps.Logger.Info("stored_token_expired", "expires_at", stored.ExpiresAt)
		return c.deps.Tokens.Clear(ctx)
	}
	c.adoptToken(stored.Token, stored.ExpiresAt, isMockToken(stored.Token))
	return nil
}

// Snapshot returns a deep copy of the current state.
func (c *SessionController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.Snapshot{
		State:        c.state,
		Documents:    append([]domain.UploadedDocument(nil), c.docs...),
		RemoteFiles:  append([]domain.RemoteFile(nil), c.remote...),
		Connected:    c.connectedLocked(),
		Demo:         c.demo,
		CurrentQuery: c.currentQuery,
		Result:       c.result.Clone(),
		LastError:    c.lastError,
	}
	if snap.Connected {
		snap.ConnectedAt = c.conn.ConnectedAt
		snap.MockConnection = c.conn.Mock
	}
	if c.reachable != nil {
		v := *c.reachable
		snap.BackendReachable = &v
	}
	return snap
}

func (c *SessionController) RefreshFiles(ctx context.Context) error {
	ctx, done := c.sessionContext(ctx)
	defer done()

	files, err := c.deps.Backend.ListFiles(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrSessionClosed
	}
	c.remote = append([]domain.RemoteFile(nil), files...)
	return nil
}

// CheckBackend probes liveness and records reachability for the banner.
func (c *SessionController) CheckBackend(ctx context.Context) bool {
	ctx, done := c.sessionContext(ctx)
	defer done()

	err := c.deps.Backend.Ping(ctx)
	ok := err == nil

	c.mu.Lock()
	if !c.closed {
		c.reachable = &ok
	}
	c.mu.Unlock()

	if ok {
		c.notify(domain.NoticeSuccess, "Connected to analysis backend")
		return true
	}
	c.deps.Logger.Warn("backend_unreachable", "error", err)
	if c.cfg.FallbackEnabled {
		c.notify(domain.NoticeWarning, "Backend not connected, fallback results enabled")
	} else {
		c.notify(domain.NoticeWarning, "Backend not connected")
	}
	return false
}

// RemoveDocument drops a local record. Uploads in flight cannot be removed.
func (c *SessionController) RemoveDocument(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if doc.ID != id {
			continue
		}
		if doc.Status == domain.UploadUploading {
			return domain.WrapError(domain.ErrInvalidInput, "remove document", errUploadInProgress)
		}
		c.docs = append(c.docs[:i:i], c.docs[i+1:]...)
		return nil
	}
	return domain.WrapError(domain.ErrDocumentNotFound, "remove document", errUnknownDocument(id))
}

// Reset clears documents and results. The account connection survives.
func (c *SessionController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = nil
	c.remote = nil
	c.result = nil
	c.currentQuery = ""
	c.lastError = ""
	c.demo = false
}

// Close discards the session; continuations still in flight become no-ops.
func (c *SessionController) Close() {
	c.mu.Lock()
	c.closed = true
	c.authState = ""
	c.mu.Unlock()
	c.cancel()
}

func (c *SessionController) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *SessionController) connectedLocked() bool {
	return c.conn.Connected && !c.conn.Expired(c.deps.Now())
}

func (c *SessionController) hasDocumentSourceLocked() bool {
	if c.connectedLocked() || len(c.remote) > 0 {
		return true
	}
	for _, doc := range c.docs {
		if doc.Status == domain.UploadUploaded {
			return true
		}
	}
	return false
}

// sessionContext ties an operation to both the caller and the session.
func (c *SessionController) sessionContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.root, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *SessionController) notify(level domain.NoticeLevel, message string) {
	c.deps.Notifier.Notify(domain.Notice{Level: level, Message: message})
}

func (c *SessionController) publish(eventType string, attrs map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.EventTimeout)
	defer cancel()
	event := domain.SessionEvent{
		Type:       eventType,
		OccurredAt: c.deps.Now(),
		Attributes: attrs,
	}
	if err := c.deps.Events.Publish(ctx, event); err != nil {
		c.deps.Logger.Warn("event_publish_failed", "event", eventType, "error", err)
	}
}

type noopTokenStore struct{}

func (noopTokenStore) Load(context.Context) (*domain.StoredToken, error) { return nil, nil }
func (noopTokenStore) Save(context.Context, domain.StoredToken) error    { return nil }
func (noopTokenStore) Clear(context.Context) error                       { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(domain.Notice) {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordUpload(domain.UploadStatus, int64) {}
func (noopMetrics) RecordQuery(string, float64)             {}
func (noopMetrics) RecordConnect(domain.ConnectOutcome)     {}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
