package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/infrastructure/resilience"
)

const DefaultQueueGroup = "auditors"

type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-verifier"),
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
	return &Queue{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishExtractionFinished(ctx context.Context, event domain.ExtractionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal extraction event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if err := q.executor.Execute(ctx, "nats.publish", call, classifyNATSError); err != nil {
		return wrapTemporaryIfNeeded("nats publish", err)
	}
	return nil
}

// SubscribeExtractionFinished blocks until ctx is done, then drains the
// subscription so pending and in-flight events are still handled.
func (q *Queue) SubscribeExtractionFinished(ctx context.Context, handler func(context.Context, domain.ExtractionEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, q.messageHandler(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// messageHandler detaches handlers from ctx cancellation; Drain relies on
// them running to completion after shutdown starts.
func (q *Queue) messageHandler(ctx context.Context, handler func(context.Context, domain.ExtractionEvent) error) nats.MsgHandler {
	handlerCtx := context.WithoutCancel(ctx)
	return func(msg *nats.Msg) {
		q.handleMessage(handlerCtx, msg, handler)
	}
}

func (q *Queue) handleMessage(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.ExtractionEvent) error) {
	event, err := decodeEvent(msg.Data)
	if err != nil {
		q.logger.Error("extraction_event_decode_failed", "subject", msg.Subject, "error", err)
		return
	}
	if err := handler(ctx, event); err != nil {
		q.logger.Error("extraction_event_handler_failed",
			"session_id", event.SessionID,
			"attempt", event.Attempt,
			"error", err,
		)
	}
}

func decodeEvent(data []byte) (domain.ExtractionEvent, error) {
	var event domain.ExtractionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ExtractionEvent{}, fmt.Errorf("decode extraction event: %w", err)
	}
	if event.SessionID == "" {
		return domain.ExtractionEvent{}, domain.WrapError(domain.ErrInvalidInput, "decode extraction event", errors.New("missing session_id"))
	}
	return event, nil
}
