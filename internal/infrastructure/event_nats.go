package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/yourusername/yt-sync-go/internal/domain"
	"go.uber.org/zap"
)

// streamPublisher is the part of jetstream.JetStream the publisher uses
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSEventPublisher mirrors job lifecycle events onto a JetStream stream.
// Progress events are not published.
type NATSEventPublisher struct {
	js     streamPublisher
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials NATS, ensures the job stream exists and returns a publisher
func ConnectNATS(ctx context.Context, cfg *domain.NATSConfig, logger *zap.Logger) (*NATSEventPublisher, func(), error) {
	logger = logger.Named("nats")
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Download job lifecycle events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Replicas:    1,
		MaxMsgs:     -1,
		MaxBytes:    -1,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
	}

	cleanup := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("failed to drain NATS connection", zap.Error(err))
		}
	}

	logger.Info("NATS publisher initialized",
		zap.String("url", cfg.URL),
		zap.String("stream", cfg.Stream))

	return NewNATSEventPublisher(js, cfg.SubjectPrefix, logger), cleanup, nil
}

// NewNATSEventPublisher creates a publisher over an existing JetStream context
func NewNATSEventPublisher(js streamPublisher, subjectPrefix string, logger *zap.Logger) *NATSEventPublisher {
	return &NATSEventPublisher{js: js, prefix: subjectPrefix, logger: logger}
}

// Subject returns the subject an event type is published on
func (p *NATSEventPublisher) Subject(eventType domain.JobEventType) string {
	return p.prefix + "." + string(eventType)
}

// OnJobEvent implements domain.JobListener
func (p *NATSEventPublisher) OnJobEvent(event domain.JobEvent) {
	if event.Type == domain.EventJobProgress {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Publish(ctx, event)
}

// Publish sends one event, deduplicated by envelope id
func (p *NATSEventPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	envelope := NewJobEventEnvelope(event)
	data, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(event.Type)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(envelope.ID))
	if err != nil {
		p.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("job_id", envelope.JobID),
			zap.String("subject", subject))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("job_id", envelope.JobID),
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence))
	return nil
}
