package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docassist/internal/core/domain"
)

// UploadFile is one file handed to the backend.
type UploadFile struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// UploadReceipt is the backend acknowledgement of one upload.
type UploadReceipt struct {
	ServerID string
	Document domain.RemoteFile
}

// Backend is the remote analysis service.
type Backend interface {
	Upload(ctx context.Context, file UploadFile, userID string) (*UploadReceipt, error)
	ListFiles(ctx context.Context) ([]domain.RemoteFile, error)
	AuthURL(ctx context.Context) (string, error)
	Analyze(ctx context.Context, query domain.AnalysisQuery) (*domain.AnalysisResult, error)
	Ping(ctx context.Context) error
}

// TokenStore persists the external credential across restarts.
type TokenStore interface {
	Load(ctx context.Context) (*domain.StoredToken, error)
	Save(ctx context.Context, token domain.StoredToken) error
	Clear(ctx context.Context) error
}

// InteractiveWindow is a separate context the user completes authorization in.
type InteractiveWindow interface {
	// Closed is closed once the user dismissed the window.
	Closed() <-chan struct{}
	Close() error
}

// WindowOpener opens a URL in an interactive context.
type WindowOpener interface {
	Open(ctx context.Context, url string) (InteractiveWindow, error)
}

// Notifier surfaces short user-visible notices.
type Notifier interface {
	Notify(notice domain.Notice)
}

// EventPublisher publishes session events to external observers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
}

// FileInspector enriches intake metadata; failures are non-fatal.
type FileInspector interface {
	PageCount(file UploadFile) (int, error)
}

// SessionMetrics records controller outcomes.
type SessionMetrics interface {
	RecordUpload(status domain.UploadStatus, bytes int64)
	RecordQuery(outcome string, seconds float64)
	RecordConnect(outcome domain.ConnectOutcome)
}
