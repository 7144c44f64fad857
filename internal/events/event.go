// Package events defines the envelope every domain event is published in.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// New wraps data in an envelope for the given aggregate version.
func New(aggregateID, aggregateType, eventType string, version int, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
		Version:       version,
	}, nil
}

// Publisher delivers events keyed by aggregate id.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }
