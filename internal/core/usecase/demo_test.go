package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/docassist/internal/core/domain"
)

func TestRunDemoSeedsDocumentsAndQueriesBackend(t *testing.T) {
	h := newHarness(t, SessionConfig{FallbackEnabled: true})

	result, err := h.ctrl.RunDemo(context.Background())
	if err != nil {
		t.Fatalf("RunDemo() error = %v", err)
	}
	if result.Source != domain.SourceBackend {
		t.Fatalf("expected a real backend answer when reachable, got %s", result.Source)
	}
	if h.backend.queryCount() != 1 || !strings.Contains(h.backend.queries[0].Query, "Stanford") {
		t.Fatalf("expected the university example sent, got %+v", h.backend.queries)
	}

	snap := h.ctrl.Snapshot()
	if !snap.Demo || len(snap.Documents) != 4 || snap.UploadedCount() != 4 {
		t.Fatalf("expected four demo documents, got %+v", snap.Documents)
	}
	for i, d := range snap.Documents {
		if !d.Demo || !strings.HasPrefix(d.ID, "demo_") {
			t.Fatalf("document %d not labelled as demo: %+v", i, d)
		}
	}
	if h.backend.uploadCount() != 0 {
		t.Fatalf("demo documents must never be uploaded")
	}
	if !h.notifier.contains(domain.NoticeSuccess, "Demo mode activated") {
		t.Fatalf("expected demo notice")
	}
}

func TestRunDemoWithoutBackendShowsDemoResult(t *testing.T) {
	h := newHarness(t, SessionConfig{FallbackEnabled: false})
	h.backend.analyzeFn = func(context.Context, domain.AnalysisQuery) (*domain.AnalysisResult, error) {
		return nil, errUnreachable
	}

	result, err := h.ctrl.RunDemo(context.Background())
	if !domain.IsKind(err, domain.ErrNetwork) {
		t.Fatalf("expected the network error reported, got %v", err)
	}
	if result == nil || !result.IsDemo() {
		t.Fatalf("expected demo result, got %+v", result)
	}
	if len(result.MissingDocuments) != 2 || result.Guidance["english_test"].Cost == "" {
		t.Fatalf("unexpected demo content: %+v", result)
	}
	snap := h.ctrl.Snapshot()
	if snap.Result == nil || !snap.Result.IsDemo() || snap.State != domain.SessionIdle {
		t.Fatalf("expected demo result stored and idle state, got %+v", snap)
	}
	if !h.notifier.contains(domain.NoticeWarning, "showing demo results") {
		t.Fatalf("expected demo results notice")
	}
}

func TestRealUploadEndsDemo(t *testing.T) {
	h := newHarness(t, SessionConfig{FallbackEnabled: true})
	if _, err := h.ctrl.RunDemo(context.Background()); err != nil {
		t.Fatalf("RunDemo() error = %v", err)
	}

	h.uploadOne(t, "passport.pdf")

	snap := h.ctrl.Snapshot()
	if snap.Demo || len(snap.Documents) != 1 || snap.Documents[0].Demo {
		t.Fatalf("expected demo records replaced by the real upload, got %+v", snap.Documents)
	}

	h.backend.analyzeFn = func(context.Context, domain.AnalysisQuery) (*domain.AnalysisResult, error) {
		return nil, errUnreachable
	}
	result, _ := h.ctrl.SubmitQuery(context.Background(), "student visa")
	if result == nil || !result.IsFallback() {
		t.Fatalf("expected the regular fallback once the demo ended, got %+v", result)
	}
}

func TestResetEndsDemo(t *testing.T) {
	h := newHarness(t, SessionConfig{FallbackEnabled: true})
	if _, err := h.ctrl.RunDemo(context.Background()); err != nil {
		t.Fatalf("RunDemo() error = %v", err)
	}
	h.ctrl.Reset()
	if snap := h.ctrl.Snapshot(); snap.Demo || len(snap.Documents) != 0 {
		t.Fatalf("expected demo cleared, got %+v", snap)
	}
}
