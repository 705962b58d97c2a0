// Package broadcast pushes appended events to NATS JetStream for
// downstream consumers. The feed is lossy: it drains a watch channel,
// so a slow broker never stalls settlement. Consumers that need every
// event read the durable log instead.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"SpotLedger/internal/event"
	"SpotLedger/internal/observability"
)

// Subjects follow the pattern spot.ledger.events.{event_type}.
const subjectPrefix = "spot.ledger.events"

// OutboundMessage is the wire shape of a published envelope.
type OutboundMessage struct {
	Sequence  int64       `json:"sequence"`
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher forwards envelopes from a watch channel to JetStream.
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan event.Envelope
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, input <-chan event.Envelope, logger zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		input:   input,
		logger:  logger,
		metrics: metrics,
	}
}

// Run blocks until ctx is cancelled or the input channel closes.
// Publish failures are logged and skipped; the durable log stays the
// authoritative record.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.input:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, env); err != nil {
				p.logger.Warn().Err(err).Int64("sequence", env.Sequence).Msg("publish failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.PublishEvents.Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	msg := OutboundMessage{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: env.Type.String(),
		Payload:   env.Record,
		Timestamp: env.Timestamp,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, env.Type)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates or updates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SPOT_LEDGER_EVENTS",
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger.Info().Msg("ensured outbound stream SPOT_LEDGER_EVENTS")
	return nil
}
