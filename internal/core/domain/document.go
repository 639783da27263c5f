package domain

import "time"

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadUploaded  UploadStatus = "uploaded"
	UploadFailed    UploadStatus = "failed"
)

// CanTransition enforces the monotonic upload lifecycle.
func (s UploadStatus) CanTransition(to UploadStatus) bool {
	switch s {
	case UploadPending:
		return to == UploadUploading || to == UploadFailed
	case UploadUploading:
		return to == UploadUploaded || to == UploadFailed
	default:
		return false
	}
}

type MediaCategory string

const (
	MediaPDF   MediaCategory = "pdf"
	MediaImage MediaCategory = "image"
	MediaDoc   MediaCategory = "doc"
	MediaText  MediaCategory = "text"
)

type UploadedDocument struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Size      int64         `json:"size"`
	Category  MediaCategory `json:"category"`
	MediaType string        `json:"media_type,omitempty"`
	Pages     int           `json:"pages,omitempty"`
	Status    UploadStatus  `json:"status"`
	ServerID  string        `json:"server_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	Demo      bool          `json:"demo,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RemoteFile mirrors an entry of the backend file listing.
type RemoteFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Preview      string `json:"preview,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	OCRProcessed bool   `json:"ocr_processed,omitempty"`
}

// Rejection names a file that was refused before any network call.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// BatchReport summarizes one SubmitFiles call after every upload settled.
type BatchReport struct {
	Accepted  []string    `json:"accepted"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Refreshed bool        `json:"refreshed"`
}
