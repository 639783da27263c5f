package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/docassist/internal/core/domain"
)

var demoDocuments = []struct {
	name     string
	size     int64
	category domain.MediaCategory
	media    string
}{
	{"Passport_Scan.pdf", 2_202_009, domain.MediaPDF, "application/pdf"},
	{"Academic_Transcript_2023.pdf", 1_887_437, domain.MediaPDF, "application/pdf"},
	{"Bachelor_Diploma.jpg", 3_355_443, domain.MediaImage, "image/jpeg"},
	{"CV_Resume.docx", 250_880, domain.MediaDoc, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// RunDemo replaces the local documents with a fixed sample set and analyzes
// the university example against them. While the demo is active a backend
// network failure yields the canned demo result instead of the fallback.
func (c *SessionController) RunDemo(ctx context.Context) (*domain.AnalysisResult, error) {
	now := c.deps.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	if c.state == domain.SessionProcessing {
		c.mu.Unlock()
		return nil, domain.WrapError(domain.ErrQueryInFlight, "run demo", errors.New("wait for the running analysis to finish"))
	}
	for _, d := range c.docs {
		if d.Status == domain.UploadUploading {
			c.mu.Unlock()
			return nil, domain.WrapError(domain.ErrInvalidInput, "run demo", errUploadInProgress)
		}
	}
	c.docs = make([]domain.UploadedDocument, 0, len(demoDocuments))
	for i, d := range demoDocuments {
		c.docs = append(c.docs, domain.UploadedDocument{
			ID:        fmt.Sprintf("demo_%d", i),
			Name:      d.name,
			Size:      d.size,
			Category:  d.category,
			MediaType: d.media,
			Status:    domain.UploadUploaded,
			Demo:      true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	c.result = nil
	c.currentQuery = ""
	c.lastError = ""
	c.demo = true
	c.mu.Unlock()

	c.deps.Logger.Info("demo_started", "documents", len(demoDocuments))
	c.notify(domain.NoticeSuccess, "Demo mode activated with sample documents")
	c.publish(domain.EventDemoStarted, nil)

	query, _ := ExampleQuery("university")
	return c.SubmitQuery(ctx, query)
}

func demoResult(query string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Query:             query,
		UseCase:           "University application (demo)",
		RequiredDocuments: []string{"passport", "transcript", "diploma", "cv", "recommendation_letter", "english_test"},
		MatchedDocuments: []domain.MatchedDocument{
			{Type: "passport", Filename: "Passport_Scan.pdf", Confidence: 0.95},
			{Type: "transcript", Filename: "Academic_Transcript_2023.pdf", Confidence: 0.92},
			{Type: "diploma", Filename: "Bachelor_Diploma.jpg", Confidence: 0.88},
			{Type: "cv", Filename: "CV_Resume.docx", Confidence: 0.90},
		},
		MissingDocuments: []string{"recommendation_letter", "english_test"},
		Guidance: map[string]domain.Guidance{
			"recommendation_letter": {
				Where: "Your university professors or previous employers",
				Time:  "2-4 weeks",
				Cost:  "Usually free",
				Tips:  "Contact them well in advance, provide your CV and purpose",
			},
			"english_test": {
				Where: "IELTS/TOEFL test centers",
				Time:  "Test dates every month, results in 2 weeks",
				Cost:  "$200-$300",
				Tips:  "Book early, minimum score requirements vary by university",
			},
		},
		Summary: "You have most documents ready for university application. Need recommendation letters and English test scores.",
		NextSteps: []string{
			"Request recommendation letters from 2-3 professors",
			"Register for IELTS/TOEFL test",
			"Check specific university deadlines",
			"Prepare statement of purpose",
		},
		TotalDocumentsAnalyzed: len(demoDocuments),
		Source:                 domain.SourceDemo,
	}
}
