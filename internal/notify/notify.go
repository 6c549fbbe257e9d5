// Package notify hands scoring outcomes off to downstream systems. The
// engine itself never sends user-facing messages; it records every handoff
// in the outbox and, when a broker is configured, publishes it to Kafka.
// Emission is fail-soft: a broker outage is logged and counted but never
// fails the scoring run that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/haulcommand/signal-engine/internal/metrics"
	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

// Event kinds emitted by the engine.
const (
	KindAnomaly       = "score_anomaly"
	KindFraudHold     = "review_auto_hold"
	KindSurgeAlert    = "scarcity_alert"
	KindTierPromotion = "reputation_tier_change"
)

// Event is one handoff record. Payload is kind-specific.
type Event struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	EntityID signal.EntityID `json:"entity_id"`
	Scorer   string          `json:"scorer,omitempty"`
	Payload  map[string]any  `json:"payload"`
	At       time.Time       `json:"at"`
}

// Emitter delivers events to an external channel.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// Notifier records every event in the outbox and forwards it to the
// configured emitter.
type Notifier struct {
	outbox  store.OutboxStore
	emitter Emitter
	log     *slog.Logger
}

func New(outbox store.OutboxStore, emitter Emitter, log *slog.Logger) *Notifier {
	return &Notifier{
		outbox:  outbox,
		emitter: emitter,
		log:     log.With(slog.String("component", "notifier")),
	}
}

// Publish persists the event and forwards it. Delivery failures are logged,
// not returned; the outbox row is the durable record either way.
func (n *Notifier) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("marshal handoff event", slog.String("kind", ev.Kind), slog.Any("error", err))
		metrics.NotificationsEmitted.WithLabelValues(ev.Kind, "error").Inc()
		return
	}
	if err := n.outbox.Append(ctx, ev.ID, ev.Kind, payload); err != nil {
		n.log.Error("append handoff to outbox",
			slog.String("kind", ev.Kind),
			slog.String("entity_id", string(ev.EntityID)),
			slog.Any("error", err))
		metrics.NotificationsEmitted.WithLabelValues(ev.Kind, "error").Inc()
		return
	}
	if n.emitter == nil {
		metrics.NotificationsEmitted.WithLabelValues(ev.Kind, "outbox_only").Inc()
		return
	}
	if err := n.emitter.Emit(ctx, ev); err != nil {
		n.log.Warn("handoff emit failed, outbox retains the record",
			slog.String("kind", ev.Kind),
			slog.String("entity_id", string(ev.EntityID)),
			slog.Any("error", err))
		metrics.NotificationsEmitted.WithLabelValues(ev.Kind, "failed").Inc()
		return
	}
	metrics.NotificationsEmitted.WithLabelValues(ev.Kind, "ok").Inc()
}

// LogEmitter writes events to the structured log. It is the default when no
// broker is configured.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	return &LogEmitter{log: log.With(slog.String("component", "log-emitter"))}
}

func (e *LogEmitter) Emit(_ context.Context, ev Event) error {
	e.log.Info("handoff event",
		slog.String("kind", ev.Kind),
		slog.String("entity_id", string(ev.EntityID)),
		slog.String("scorer", ev.Scorer))
	return nil
}

// KafkaEmitter publishes events to a Kafka topic keyed by entity so per-entity
// ordering survives partitioning.
type KafkaEmitter struct {
	writer *kafka.Writer
}

func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (e *KafkaEmitter) Emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.EntityID),
		Value: payload,
	})
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
