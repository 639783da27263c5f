package domain

import "encoding/json"

type ResultSource string

const (
	SourceBackend  ResultSource = "backend"
	SourceFallback ResultSource = "fallback"
	SourceDemo     ResultSource = "demo"
)

type AnalysisQuery struct {
	Query     string          `json:"query"`
	UserID    string          `json:"user_id"`
	AuthToken json.RawMessage `json:"auth_token,omitempty"`
}

type MatchedFile struct {
	Name    string `json:"name"`
	Preview string `json:"preview,omitempty"`
	Source  string `json:"source,omitempty"`
}

type MatchedDocument struct {
	Type       string        `json:"type"`
	Filename   string        `json:"filename,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Documents  []MatchedFile `json:"documents,omitempty"`
}

type Guidance struct {
	Where string `json:"where,omitempty"`
	Time  string `json:"time,omitempty"`
	Cost  string `json:"cost,omitempty"`
	Tips  string `json:"tips,omitempty"`
}

type AnalysisResult struct {
	Query                  string              `json:"query"`
	UseCase                string              `json:"use_case,omitempty"`
	RequiredDocuments      []string            `json:"required_documents"`
	MatchedDocuments       []MatchedDocument   `json:"matched_documents"`
	MissingDocuments       []string            `json:"missing_documents"`
	Guidance               map[string]Guidance `json:"guidance,omitempty"`
	Advice                 string              `json:"advice,omitempty"`
	Summary                string              `json:"summary,omitempty"`
	NextSteps              []string            `json:"next_steps,omitempty"`
	TotalDocumentsAnalyzed int                 `json:"total_documents_analyzed"`
	ServerFallback         bool                `json:"fallback_mode,omitempty"`
	Source                 ResultSource        `json:"source"`
}

// IsFallback reports whether the result was synthesized on the client.
func (r AnalysisResult) IsFallback() bool {
	return r.Source == SourceFallback
}

func (r AnalysisResult) IsDemo() bool {
	return r.Source == SourceDemo
}

// Clone returns a deep copy so snapshots never alias controller state.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.RequiredDocuments = append([]string(nil), r.RequiredDocuments...)
	out.MissingDocuments = append([]string(nil), r.MissingDocuments...)
	out.NextSteps = append([]string(nil), r.NextSteps...)
	out.MatchedDocuments = make([]MatchedDocument, len(r.MatchedDocuments))
	for i, m := range r.MatchedDocuments {
		m.Documents = append([]MatchedFile(nil), m.Documents...)
		out.MatchedDocuments[i] = m
	}
	if r.Guidance != nil {
		out.Guidance = make(map[string]Guidance, len(r.Guidance))
		for k, v := range r.Guidance {
			out.Guidance[k] = v
		}
	}
	return &out
}
