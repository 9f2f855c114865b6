package events

import (
	"context"
	"log"

	"github.com/tourhive/backoffice/internal/core/domain"
)

// LogPublisher is the fallback publisher used when no webhook URL is
// configured: events are logged and considered delivered.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	log.Printf("outbox publish topic=%s event_id=%s event_type=%s entity=%s/%s actor=%s", topic, event.EventID, event.EventType, event.EntityType, event.EntityID, event.Actor)
	return nil
}
