package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/infrastructure/resilience"
)

const defaultSubjectPrefix = "docassist.session"

type Options struct {
	SubjectPrefix        string
	ClientName           string
	UserID               string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher emits session events as JSON envelopes on
// "<prefix>.<event type>" subjects.
type Publisher struct {
	conn     conn
	prefix   string
	userID   string
	executor *resilience.Executor
}

type envelope struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	UserID     string            `json:"user_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func New(url string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 30
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.ClientName
	if name == "" {
		name = "docassist"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, options), nil
}

func newPublisher(c conn, options Options) *Publisher {
	prefix := strings.TrimSuffix(strings.TrimSpace(options.SubjectPrefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &Publisher{
		conn:     c,
		prefix:   prefix,
		userID:   options.UserID,
		executor: options.ResilienceExecutor,
	}
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	subject, payload, err := p.encode(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (p *Publisher) encode(event domain.SessionEvent) (string, []byte, error) {
	eventType := strings.TrimSpace(event.Type)
	if eventType == "" {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "publish event", fmt.Errorf("event type is empty"))
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt,
		UserID:     p.userID,
		Attributes: event.Attributes,
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode event: %w", err)
	}
	return p.prefix + "." + eventType, payload, nil
}
