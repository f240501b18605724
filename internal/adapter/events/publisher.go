// Package events publishes post-commit ledger notifications over Redis
// pub/sub. Publishing is best-effort: a failed publish is logged and never
// surfaces to the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"balance-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher implements ports.EventPublisher over Redis pub/sub. Each event
// type maps to its own channel under a fixed prefix.
type Publisher struct {
	client *goredis.Client
	prefix string
	log    zerolog.Logger
}

// NewPublisher creates a Redis-backed event publisher.
func NewPublisher(client *goredis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		prefix: "ledger.events.",
		log:    log.With().Str("component", "event_publisher").Logger(),
	}
}

// Channel returns the pub/sub channel for an event type.
func (p *Publisher) Channel(eventType domain.EventType) string {
	return p.prefix + string(eventType)
}

// Publish serializes the event and publishes it on its type channel.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.Channel(event.Type), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.log.Debug().
		Str("type", string(event.Type)).
		Msg("event published")
	return nil
}
