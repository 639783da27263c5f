// Package view maps analysis results onto a presentation-neutral model that
// any renderer can consume.
package view

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	ReadinessReady   = "Ready to apply"
	ReadinessPartial = "Partially ready"
	ReadinessNeeds   = "Needs preparation"
)

const (
	bannerClientFallback = "Offline result: the analysis service could not be reached, showing a locally generated placeholder."
	bannerServerFallback = "Fallback mode: some analysis features may be limited."
	bannerDemo           = "Demo result: sample data, not an analysis of your documents."
)

type Requirement struct {
	Type  string
	Label string
	Found bool
}

type Match struct {
	Type          string
	Label         string
	Filename      string
	ConfidencePct int
	Files         []domain.MatchedFile
}

type GuidanceItem struct {
	Type  string
	Label string
	Where string
	Time  string
	Cost  string
	Tips  string
}

type Result struct {
	Query     string
	UseCase   string
	Summary   string
	Advice    string
	NextSteps []string

	Found        []Match
	Missing      []Requirement
	Requirements []Requirement
	Guidance     []GuidanceItem

	CompletionPercent int
	Readiness         string
	Banner            string
	Fallback          bool
	Demo              bool

	TotalAnalyzed int
}

var titleCaser = cases.Title(language.English)

// Label turns a document type id such as "recommendation_letter" into
// "Recommendation Letter".
func Label(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	if len(words) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(words, " "))
}

func BuildResult(r domain.AnalysisResult) Result {
	out := Result{
		Query:         r.Query,
		UseCase:       r.UseCase,
		Summary:       r.Summary,
		Advice:        r.Advice,
		NextSteps:     append([]string(nil), r.NextSteps...),
		TotalAnalyzed: r.TotalDocumentsAnalyzed,
		Fallback:      r.IsFallback(),
		Demo:          r.IsDemo(),
	}

	matchedTypes := make(map[string]struct{}, len(r.MatchedDocuments))
	for _, m := range r.MatchedDocuments {
		matchedTypes[m.Type] = struct{}{}
		out.Found = append(out.Found, Match{
			Type:          m.Type,
			Label:         Label(m.Type),
			Filename:      m.Filename,
			ConfidencePct: percent(m.Confidence),
			Files:         append([]domain.MatchedFile(nil), m.Documents...),
		})
	}

	for _, docType := range r.RequiredDocuments {
		_, found := matchedTypes[docType]
		out.Requirements = append(out.Requirements, Requirement{Type: docType, Label: Label(docType), Found: found})
	}

	for _, docType := range r.MissingDocuments {
		out.Missing = append(out.Missing, Requirement{Type: docType, Label: Label(docType)})
		g, ok := r.Guidance[docType]
		if !ok || g == (domain.Guidance{}) {
			continue
		}
		out.Guidance = append(out.Guidance, GuidanceItem{
			Type:  docType,
			Label: Label(docType),
			Where: g.Where,
			Time:  g.Time,
			Cost:  g.Cost,
			Tips:  g.Tips,
		})
	}

	out.CompletionPercent = Completion(r)
	out.Readiness = Readiness(out.CompletionPercent)
	switch {
	case out.Demo:
		out.Banner = bannerDemo
	case out.Fallback:
		out.Banner = bannerClientFallback
	case r.ServerFallback:
		out.Banner = bannerServerFallback
	}
	return out
}

// Completion is the share of required types that were matched. Without a
// required list it falls back to matched / (matched + missing).
func Completion(r domain.AnalysisResult) int {
	matchedTypes := make(map[string]struct{}, len(r.MatchedDocuments))
	for _, m := range r.MatchedDocuments {
		matchedTypes[m.Type] = struct{}{}
	}

	var ratio float64
	if len(r.RequiredDocuments) > 0 {
		found := 0
		for _, docType := range r.RequiredDocuments {
			if _, ok := matchedTypes[docType]; ok {
				found++
			}
		}
		ratio = float64(found) / float64(len(r.RequiredDocuments))
	} else if total := len(r.MatchedDocuments) + len(r.MissingDocuments); total > 0 {
		ratio = float64(len(r.MatchedDocuments)) / float64(total)
	}
	return min(int(math.Round(ratio*100)), 100)
}

func Readiness(completion int) string {
	switch {
	case completion >= 80:
		return ReadinessReady
	case completion >= 50:
		return ReadinessPartial
	default:
		return ReadinessNeeds
	}
}

func percent(confidence float64) int {
	if confidence <= 0 {
		return 0
	}
	return min(int(math.Round(confidence*100)), 100)
}
