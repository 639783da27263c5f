package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docassist/internal/core/domain"
)

var fallbackRequired = []string{"passport", "transcript", "diploma"}

// buildFallbackResult synthesizes a placeholder so the UI never dead-ends.
// Matches use the categories the backend already assigned to remote files.
func buildFallbackResult(query string, docs []domain.UploadedDocument, remote []domain.RemoteFile) *domain.AnalysisResult {
	byType := make(map[string][]domain.MatchedFile)
	for _, f := range remote {
		category := strings.ToLower(strings.TrimSpace(f.Category))
		byType[category] = append(byType[category], domain.MatchedFile{Name: f.Name, Preview: f.Preview})
	}

	var matched []domain.MatchedDocument
	var missing []string
	for _, docType := range fallbackRequired {
		if files, ok := byType[docType]; ok {
			matched = append(matched, domain.MatchedDocument{Type: docType, Documents: files})
			continue
		}
		missing = append(missing, docType)
	}

	available := len(remote)
	if available == 0 {
		for _, d := range docs {
			if d.Status == domain.UploadUploaded {
				available++
			}
		}
	}

	return &domain.AnalysisResult{
		Query:                  query,
		UseCase:                "Offline placeholder",
		RequiredDocuments:      append([]string(nil), fallbackRequired...),
		MatchedDocuments:       matched,
		MissingDocuments:       missing,
		Advice:                 "This result was generated locally because the analysis service could not be reached. Run the query again once the backend is available.",
		Summary:                fmt.Sprintf("Fallback result for \"%s\": %d file(s) available", query, available),
		TotalDocumentsAnalyzed: available,
		Source:                 domain.SourceFallback,
	}
}
