// Package changelog publishes session lifecycle and ledger mutation events
// for downstream reporting. Emission is best effort: a broker hiccup must
// never fail the command that triggered the event.
package changelog

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Event types carried on the changelog topic.
const (
	EventSessionOpened = "session.opened"
	EventSessionClosed = "session.closed"
	EventEntryAdded    = "entry.added"
	EventEntryUpdated  = "entry.updated"
	EventEntryDeleted  = "entry.deleted"
)

// Event is one changelog record. Events for the same session share a key so
// they land on one partition in order.
type Event struct {
	SchemaVersion string                `json:"schema_version"`
	EventType     string                `json:"event_type"`
	SessionID     string                `json:"session_id"`
	OperatorID    string                `json:"operator_id"`
	BatchNumber   string                `json:"batch_number"`
	Entry         *models.BoxEntry      `json:"entry,omitempty"`
	Totals        *models.SessionTotals `json:"totals,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// Emitter is the changelog surface the services depend on.
type Emitter interface {
	EmitSession(ctx context.Context, eventType string, session *models.WeighingSession)
	EmitEntry(ctx context.Context, eventType string, session *models.WeighingSession, entry *models.BoxEntry)
}

// KafkaEmitter publishes changelog events to the configured Kafka topic.
type KafkaEmitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

func NewKafkaEmitter(producer *kafka.Producer, logger ectologger.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *KafkaEmitter) EmitSession(ctx context.Context, eventType string, session *models.WeighingSession) {
	ctx, span := tracing.StartSpan(ctx, "changelog.KafkaEmitter.EmitSession")
	defer span.End()

	e.publish(ctx, Event{
		SchemaVersion: SchemaVersion,
		EventType:     eventType,
		SessionID:     session.ID,
		OperatorID:    session.OperatorID,
		BatchNumber:   session.BatchNumber,
		Totals:        &session.Totals,
		Timestamp:     time.Now().UTC(),
	})
}

func (e *KafkaEmitter) EmitEntry(ctx context.Context, eventType string, session *models.WeighingSession, entry *models.BoxEntry) {
	ctx, span := tracing.StartSpan(ctx, "changelog.KafkaEmitter.EmitEntry")
	defer span.End()

	e.publish(ctx, Event{
		SchemaVersion: SchemaVersion,
		EventType:     eventType,
		SessionID:     session.ID,
		OperatorID:    session.OperatorID,
		BatchNumber:   session.BatchNumber,
		Entry:         entry,
		Totals:        &session.Totals,
		Timestamp:     time.Now().UTC(),
	})
}

func (e *KafkaEmitter) publish(ctx context.Context, event Event) {
	if err := e.producer.PublishJSON(ctx, event.SessionID, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
			"session_id": event.SessionID,
		}).Errorf("Failed to emit %s event", event.EventType)
	}
}

// NopEmitter discards events, for deployments without a changelog topic.
type NopEmitter struct{}

func (NopEmitter) EmitSession(context.Context, string, *models.WeighingSession) {}

func (NopEmitter) EmitEntry(context.Context, string, *models.WeighingSession, *models.BoxEntry) {}
