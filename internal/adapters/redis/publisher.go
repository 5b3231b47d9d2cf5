package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/dispatch/internal/ports/secondary"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "dispatch.events"

// Envelope is the JSON message published for every event.
type Envelope struct {
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher publishes events on a Redis pub/sub channel.
type Publisher struct {
	client  goredis.UniversalClient
	channel string
	now     func() time.Time
}

// NewPublisher creates a publisher on channel, or DefaultChannel when empty.
func NewPublisher(client goredis.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel, now: time.Now}
}

// Publish sends the event wrapped in an Envelope.
func (p *Publisher) Publish(ctx context.Context, name string, payload any) error {
	msg, err := encodeEnvelope(name, payload, p.now().UTC())
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish %s on %s: %w", name, p.channel, err)
	}
	return nil
}

func encodeEnvelope(name string, payload any, at time.Time) ([]byte, error) {
	msg, err := json.Marshal(Envelope{Event: name, Payload: payload, PublishedAt: at})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", name, err)
	}
	return msg, nil
}

var _ secondary.EventPublisher = (*Publisher)(nil)
