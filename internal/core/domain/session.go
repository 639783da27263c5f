package domain

import "time"

type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionProcessing SessionState = "processing"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Snapshot is an immutable copy of controller state for rendering.
type Snapshot struct {
	State            SessionState       `json:"state"`
	Documents        []UploadedDocument `json:"documents"`
	RemoteFiles      []RemoteFile       `json:"remote_files"`
	Connected        bool               `json:"connected"`
	MockConnection   bool               `json:"mock_connection,omitempty"`
	Demo             bool               `json:"demo,omitempty"`
	ConnectedAt      time.Time          `json:"connected_at,omitempty"`
	CurrentQuery     string             `json:"current_query,omitempty"`
	Result           *AnalysisResult    `json:"result,omitempty"`
	LastError        string             `json:"last_error,omitempty"`
	BackendReachable *bool              `json:"backend_reachable,omitempty"`
}

// UploadedCount counts local documents the backend accepted.
func (s Snapshot) UploadedCount() int {
	n := 0
	for _, d := range s.Documents {
		if d.Status == UploadUploaded {
			n++
		}
	}
	return n
}

// SessionEvent is published to observers outside the process.
type SessionEvent struct {
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

const (
	EventDocumentUploaded  = "document.uploaded"
	EventDocumentFailed    = "document.failed"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFallback  = "analysis.fallback"
	EventAccountConnected  = "account.connected"
	EventDemoStarted       = "demo.started"
)
