package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
)

// SessionController is the single authority over client session state.
type SessionController interface {
	SubmitFiles(ctx context.Context, files []UploadFile) (domain.BatchReport, error)
	ConnectExternalAccount(ctx context.Context) (domain.ConnectOutcome, error)
	ConnectMockAccount(ctx context.Context) error
	DisconnectExternalAccount()
	SubmitQuery(ctx context.Context, text string) (*domain.AnalysisResult, error)
	RefreshFiles(ctx context.Context) error
	CheckBackend(ctx context.Context) bool
	RemoveDocument(id string) error
	Reset()
	Snapshot() domain.Snapshot
	RunDemo(ctx context.Context) (*domain.AnalysisResult, error)
}

// TokenReceiver accepts out-of-band credential delivery. State is the
// per-attempt value appended to the authorization URL; calls carrying any
// other value are refused with domain.ErrStateMismatch.
type TokenReceiver interface {
	DeliverToken(ctx context.Context, state string, token json.RawMessage, expiresAt *time.Time) error
	AbandonAuthorization(state string) (bool, error)
}
