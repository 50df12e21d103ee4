package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
)

func TestNewEmitter_Disabled(t *testing.T) {
	e := NewEmitter(Config{Enabled: false}, zerolog.Nop())
	require.NotNil(t, e)
	assert.Nil(t, e.writer)

	// A disabled emitter drops events without touching the network.
	job := domain.NewJob(uuid.New(), domain.JobTypeSummary)
	e.EmitJobCompleted(context.Background(), job)
	e.EmitJobFailed(context.Background(), job)
	e.EmitCitationExtracted(context.Background(), &domain.ExtractionResult{PaperID: uuid.New()})

	assert.NoError(t, e.Close())
}

func TestNewEmitter_Enabled(t *testing.T) {
	e := NewEmitter(Config{
		Enabled: true,
		Brokers: []string{"localhost:9092"},
		Topic:   "citation-events",
	}, zerolog.Nop())

	require.NotNil(t, e.writer)
	assert.Equal(t, "citation-events", e.writer.Topic)
	assert.NoError(t, e.Close())
}
