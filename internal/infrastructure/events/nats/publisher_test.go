package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/infrastructure/resilience"
)

type connFake struct {
	subject string
	data    []byte
	calls   int
	err     error
	closed  bool
}

func (c *connFake) Publish(subject string, data []byte) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.subject = subject
	c.data = data
	return nil
}

func (c *connFake) Close() { c.closed = true }

func TestPublishEncodesEnvelope(t *testing.T) {
	fake := &connFake{}
	pub := newPublisher(fake, Options{SubjectPrefix: "assist.events.", UserID: "default_user"})

	occurred := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	err := pub.Publish(context.Background(), domain.SessionEvent{
		Type:       domain.EventDocumentUploaded,
		OccurredAt: occurred,
		Attributes: map[string]string{"name": "passport.pdf"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if fake.subject != "assist.events.document.uploaded" {
		t.Fatalf("unexpected subject %q", fake.subject)
	}

	var got envelope
	if err := json.Unmarshal(fake.data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ID == "" || got.UserID != "default_user" || !got.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if got.Attributes["name"] != "passport.pdf" {
		t.Fatalf("expected attributes carried, got %v", got.Attributes)
	}
}

func TestPublishDefaultsSubjectPrefix(t *testing.T) {
	fake := &connFake{}
	pub := newPublisher(fake, Options{})
	if err := pub.Publish(context.Background(), domain.SessionEvent{Type: domain.EventAccountConnected}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if fake.subject != "docassist.session.account.connected" {
		t.Fatalf("unexpected subject %q", fake.subject)
	}
}

func TestPublishRejectsEmptyType(t *testing.T) {
	fake := &connFake{}
	pub := newPublisher(fake, Options{})
	err := pub.Publish(context.Background(), domain.SessionEvent{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no publish call")
	}
}

func TestPublishMarksConnectionErrorsTemporary(t *testing.T) {
	fake := &connFake{err: nats.ErrConnectionClosed}
	pub := newPublisher(fake, Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
		}),
	})

	err := pub.Publish(context.Background(), domain.SessionEvent{Type: domain.EventAnalysisCompleted})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected retry on closed connection, got %d calls", fake.calls)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must be neither retried nor recorded")
	}
	if class := classifyNATSError(nats.ErrNoServers); !class.Retryable {
		t.Fatalf("expected no servers to be retryable")
	}
	if class := classifyNATSError(errors.New("bad subject")); class.Retryable || !class.RecordFailure {
		t.Fatalf("unexpected classification for permanent error")
	}
}

func TestCloseClosesConnection(t *testing.T) {
	fake := &connFake{}
	newPublisher(fake, Options{}).Close()
	if !fake.closed {
		t.Fatalf("expected connection closed")
	}
}
