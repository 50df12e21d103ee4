// Package events publishes citation and job domain events to Kafka for
// downstream consumers. Publishing is optional and disabled by default;
// it is never a client notification channel, clients poll jobs over HTTP.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Event types published by the service.
const (
	EventTypeCitationExtracted = "citation.extracted"
	EventTypeJobCompleted      = "job.completed"
	EventTypeJobFailed         = "job.failed"
)

// Event is the envelope written to the topic. The paper ID keys the
// message so per-paper ordering is preserved within a partition.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	PaperID    string      `json:"paper_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Config holds configuration for the event emitter.
type Config struct {
	// Enabled turns event publishing on.
	Enabled bool
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic to publish to.
	Topic string
}

// Emitter writes domain events to Kafka. A disabled emitter is valid and
// drops every event, so callers never need a nil check.
type Emitter struct {
	writer  *kafka.Writer
	enabled bool
	logger  zerolog.Logger
}

// NewEmitter creates an event emitter. When cfg.Enabled is false the
// emitter is inert and no connection is made.
func NewEmitter(cfg Config, logger zerolog.Logger) *Emitter {
	e := &Emitter{
		enabled: cfg.Enabled,
		logger:  logger.With().Str("component", "event_emitter").Logger(),
	}
	if !cfg.Enabled {
		return e
	}

	e.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return e
}

// EmitCitationExtracted publishes a citation.extracted event after an
// extraction run persisted its citations.
func (e *Emitter) EmitCitationExtracted(ctx context.Context, result *domain.ExtractionResult) {
	e.emit(ctx, EventTypeCitationExtracted, result.PaperID, map[string]interface{}{
		"direction":        result.Direction,
		"citations_found":  result.CitationsFound,
		"citations_new":    result.CitationsNew,
		"citations_linked": result.CitationsLinked,
		"sources_queried":  result.SourcesQueried,
		"sources_failed":   result.SourcesFailed,
	})
}

// EmitJobCompleted publishes a job.completed event.
func (e *Emitter) EmitJobCompleted(ctx context.Context, job *domain.Job) {
	e.emit(ctx, EventTypeJobCompleted, job.PaperID, map[string]interface{}{
		"job_id":   job.ID.String(),
		"job_type": job.Type,
		"result":   job.Result,
	})
}

// EmitJobFailed publishes a job.failed event.
func (e *Emitter) EmitJobFailed(ctx context.Context, job *domain.Job) {
	e.emit(ctx, EventTypeJobFailed, job.PaperID, map[string]interface{}{
		"job_id":   job.ID.String(),
		"job_type": job.Type,
		"error":    job.Error,
	})
}

// emit writes one event. Delivery failures are logged, never propagated:
// event publishing is best-effort and must not fail the operation that
// produced the event.
func (e *Emitter) emit(ctx context.Context, eventType string, paperID uuid.UUID, payload interface{}) {
	if !e.enabled {
		return
	}

	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		PaperID:    paperID.String(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	value, err := json.Marshal(event)
	if err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event")
		return
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaperID),
		Value: value,
	})
	if err != nil {
		e.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("paper_id", event.PaperID).
			Msg("failed to publish event")
		return
	}

	e.logger.Debug().
		Str("event_type", eventType).
		Str("paper_id", event.PaperID).
		Msg("event published")
}

// Close flushes and closes the underlying writer.
func (e *Emitter) Close() error {
	if e.writer == nil {
		return nil
	}
	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
