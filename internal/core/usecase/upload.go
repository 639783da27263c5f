package usecase

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
)

var errUploadInProgress = errors.New("upload in progress")

func errUnknownDocument(id string) error {
	return fmt.Errorf("no document with id %q", id)
}

var acceptedMediaTypes = map[string]domain.MediaCategory{
	"application/pdf":    domain.MediaPDF,
	"image/png":          domain.MediaImage,
	"image/jpeg":         domain.MediaImage,
	"image/jpg":          domain.MediaImage,
	"text/plain":         domain.MediaText,
	"application/msword": domain.MediaDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": domain.MediaDoc,
}

var acceptedExtensions = map[string]domain.MediaCategory{
	".pdf":  domain.MediaPDF,
	".png":  domain.MediaImage,
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".txt":  domain.MediaText,
	".doc":  domain.MediaDoc,
	".docx": domain.MediaDoc,
}

// ClassifyMedia maps a declared media type or, failing that, the filename
// extension onto the accepted category set.
func ClassifyMedia(name, mediaType string) (domain.MediaCategory, error) {
	if category, ok := acceptedMediaTypes[normalizeMediaType(mediaType)]; ok {
		return category, nil
	}
	if category, ok := acceptedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return category, nil
	}
	return "", domain.WrapError(domain.ErrUnsupportedMedia, "classify media", fmt.Errorf("file type not supported: %s", name))
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(mediaType)
	}
	return parsed
}

// SubmitFiles validates every file, records the accepted ones and uploads them
// concurrently. It returns once every upload settled.
func (c *SessionController) SubmitFiles(ctx context.Context, files []ports.UploadFile) (domain.BatchReport, error) {
	var report domain.BatchReport
	if len(files) == 0 {
		return report, domain.WrapError(domain.ErrInvalidInput, "submit files", errors.New("file list is empty"))
	}
	if c.isClosed() {
		return report, domain.ErrSessionClosed
	}

	type job struct {
		id   string
		file ports.UploadFile
	}
	jobs := make([]job, 0, len(files))
	for _, file := range files {
		doc, err := c.admit(file)
		if err != nil {
			reason := rejectionReason(err, file, c.cfg.MaxFileSize)
			report.Rejected = append(report.Rejected, domain.Rejection{Name: file.Name, Reason: reason, Err: err})
			c.notify(domain.NoticeWarning, reason)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return report, domain.ErrSessionClosed
		}
		if c.demo {
			// Real files end the demo; its sample records are dropped.
			c.docs = nil
			c.demo = false
		}
		c.docs = append(c.docs, doc)
		c.mu.Unlock()

		jobs = append(jobs, job{id: doc.ID, file: file})
		report.Accepted = append(report.Accepted, doc.ID)
	}
	if len(jobs) == 0 {
		return report, nil
	}

	c.notify(domain.NoticeInfo, fmt.Sprintf("Uploading %d file(s)...", len(jobs)))

	ctx, done := c.sessionContext(ctx)
	defer done()

	outcomes := make([]bool, len(jobs))
	var group errgroup.Group
	group.SetLimit(c.cfg.UploadConcurrency)
	for i, j := range jobs {
		group.Go(func() error {
			outcomes[i] = c.uploadOne(ctx, j.id, j.file)
			return nil
		})
	}
	_ = group.Wait()

	for _, ok := range outcomes {
		if ok {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	if report.Succeeded > 0 {
		if err := c.RefreshFiles(ctx); err != nil {
			c.deps.Logger.Warn("refresh_files_failed", "error", err)
		} else {
			report.Refreshed = true
		}
		c.notify(domain.NoticeSuccess, fmt.Sprintf("Upload complete: %d of %d file(s) uploaded", report.Succeeded, len(jobs)))
	}
	return report, nil
}

func (c *SessionController) admit(file ports.UploadFile) (domain.UploadedDocument, error) {
	category, err := ClassifyMedia(file.Name, file.MediaType)
	if err != nil {
		return domain.UploadedDocument{}, err
	}
	if file.Size > c.cfg.MaxFileSize {
		return domain.UploadedDocument{}, domain.WrapError(domain.ErrFileTooLarge, "admit file",
			fmt.Errorf("%s is %d bytes, limit is %d", file.Name, file.Size, c.cfg.MaxFileSize))
	}

	now := c.deps.Now()
	doc := domain.UploadedDocument{
		ID:        uuid.NewString(),
		Name:      file.Name,
		Size:      file.Size,
		Category:  category,
		MediaType: normalizeMediaType(file.MediaType),
		Status:    domain.UploadPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if category == domain.MediaPDF && c.deps.Inspector != nil {
		pages, err := c.deps.Inspector.PageCount(file)
		if err != nil {
			c.deps.Logger.Debug("pdf_inspect_failed", "file", file.Name, "error", err)
		} else {
			doc.Pages = pages
		}
	}
	return doc, nil
}

func (c *SessionController) uploadOne(ctx context.Context, id string, file ports.UploadFile) bool {
	if !c.transition(id, domain.UploadUploading, nil) {
		return false
	}

	receipt, err := c.deps.Backend.Upload(ctx, file, c.cfg.UserID)
	if err != nil {
		message := err.Error()
		if !c.transition(id, domain.UploadFailed, func(doc *domain.UploadedDocument) { doc.Error = message }) {
			return false
		}
		c.deps.Logger.Warn("upload_failed", "document_id", id, "file", file.Name, "error", err)
		c.deps.Metrics.RecordUpload(domain.UploadFailed, file.Size)
		c.notify(domain.NoticeError, fmt.Sprintf("Failed to upload %s", file.Name))
		c.publish(domain.EventDocumentFailed, map[string]string{"document_id": id, "name": file.Name, "error": message})
		return false
	}

	serverID := receipt.ServerID
	if serverID == "" {
		serverID = id
	}
	if !c.transition(id, domain.UploadUploaded, func(doc *domain.UploadedDocument) { doc.ServerID = serverID }) {
		return false
	}
	c.deps.Logger.Info("upload_completed", "document_id", id, "server_id", serverID, "file", file.Name)
	c.deps.Metrics.RecordUpload(domain.UploadUploaded, file.Size)
	c.publish(domain.EventDocumentUploaded, map[string]string{"document_id": id, "server_id": serverID, "name": file.Name})
	return true
}

// transition moves the record identified by id, never by position, and
// refuses regressions. It is a no-op once the session is closed.
func (c *SessionController) transition(id string, to domain.UploadStatus, mutate func(*domain.UploadedDocument)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	for i := range c.docs {
		doc := &c.docs[i]
		if doc.ID != id {
			continue
		}
		if !doc.Status.CanTransition(to) {
			return false
		}
		doc.Status = to
		doc.UpdatedAt = c.deps.Now()
		if mutate != nil {
			mutate(doc)
		}
		return true
	}
	return false
}

func rejectionReason(err error, file ports.UploadFile, limit int64) string {
	switch {
	case domain.IsKind(err, domain.ErrFileTooLarge):
		return fmt.Sprintf("File %s is too large (max %s)", file.Name, FormatBytes(limit))
	case domain.IsKind(err, domain.ErrUnsupportedMedia):
		return fmt.Sprintf("File type not supported: %s", file.Name)
	default:
		return fmt.Sprintf("File %s was rejected: %v", file.Name, err)
	}
}

// FormatBytes renders a byte count the way the upload list shows it.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(n)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d Bytes", n)
	}
	s := fmt.Sprintf("%.1f", value)
	s = strings.TrimSuffix(s, ".0")
	return s + " " + units[i]
}
