package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const (
	queryOutcomeSuccess      = "success"
	queryOutcomeBackendError = "backend_error"
	queryOutcomeNetworkError = "network_error"
	queryOutcomeFallback     = "fallback"
	queryOutcomeCancelled    = "cancelled"
	queryOutcomeDemo         = "demo"
)

// SubmitQuery issues exactly one analysis request. On a network failure with
// fallback enabled it returns the synthesized result together with the error.
func (c *SessionController) SubmitQuery(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		c.notify(domain.NoticeWarning, "Please enter what you need documents for")
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit query", errors.New("query text is empty"))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	if c.state == domain.SessionProcessing {
		c.mu.Unlock()
		return nil, domain.WrapError(domain.ErrQueryInFlight, "submit query", errors.New("wait for the running analysis to finish"))
	}
	if !c.hasDocumentSourceLocked() {
		c.mu.Unlock()
		c.notify(domain.NoticeWarning, "Please upload documents or connect an account first")
		return nil, domain.WrapError(domain.ErrNoDocumentSource, "submit query", errors.New("no uploaded documents and no connected account"))
	}

	c.state = domain.SessionProcessing
	c.currentQuery = query
	c.result = nil
	c.lastError = ""
	request := domain.AnalysisQuery{Query: query, UserID: c.cfg.UserID}
	if c.connectedLocked() {
		request.AuthToken = cloneRaw(c.conn.Token)
	}
	docs := append([]domain.UploadedDocument(nil), c.docs...)
	remote := append([]domain.RemoteFile(nil), c.remote...)
	c.mu.Unlock()

	start := c.deps.Now()
	opCtx, done := c.sessionContext(ctx)
	result, err := c.deps.Backend.Analyze(opCtx, request)
	done()
	elapsed := c.deps.Now().Sub(start).Seconds()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	c.state = domain.SessionIdle

	if err == nil {
		result.Source = domain.SourceBackend
		if result.Query == "" {
			result.Query = query
		}
		c.result = result.Clone()
		c.mu.Unlock()

		c.deps.Metrics.RecordQuery(queryOutcomeSuccess, elapsed)
		c.deps.Logger.Info("analysis_completed",
			"matched", len(result.MatchedDocuments),
			"missing", len(result.MissingDocuments),
			"duration_ms", elapsed*1000,
		)
		c.notify(domain.NoticeSuccess, "Analysis complete!")
		c.publish(domain.EventAnalysisCompleted, map[string]string{
			"query":   query,
			"missing": fmt.Sprint(len(result.MissingDocuments)),
		})
		return result, nil
	}

	switch {
	case domain.IsKind(err, domain.ErrBackend):
		c.lastError = err.Error()
		c.mu.Unlock()
		c.deps.Metrics.RecordQuery(queryOutcomeBackendError, elapsed)
		c.deps.Logger.Warn("analysis_rejected", "error", err)
		c.notify(domain.NoticeError, err.Error())
		return nil, err

	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		c.mu.Unlock()
		c.deps.Metrics.RecordQuery(queryOutcomeCancelled, elapsed)
		return nil, domain.WrapError(domain.ErrCancelled, "submit query", err)
	}

	if !domain.IsKind(err, domain.ErrNetwork) {
		err = domain.WrapError(domain.ErrNetwork, "submit query", err)
	}
	c.lastError = err.Error()
	if c.demo {
		demo := demoResult(query)
		c.result = demo.Clone()
		c.mu.Unlock()

		c.deps.Metrics.RecordQuery(queryOutcomeDemo, elapsed)
		c.deps.Logger.Warn("analysis_demo_result", "error", err)
		c.notify(domain.NoticeWarning, "Backend not connected, showing demo results")
		return demo, err
	}
	if !c.cfg.FallbackEnabled {
		c.mu.Unlock()
		c.deps.Metrics.RecordQuery(queryOutcomeNetworkError, elapsed)
		c.deps.Logger.Error("analysis_failed", "error", err)
		c.notify(domain.NoticeError, "Failed to process query. Please try again.")
		return nil, err
	}

	fallback := buildFallbackResult(query, docs, remote)
	c.result = fallback.Clone()
	c.mu.Unlock()

	c.deps.Metrics.RecordQuery(queryOutcomeFallback, elapsed)
	c.deps.Logger.Warn("analysis_fallback", "error", err)
	c.notify(domain.NoticeWarning, "Analysis service unavailable, showing a fallback result")
	c.publish(domain.EventAnalysisFallback, map[string]string{"query": query})
	return fallback, err
}
