// Package queue moves fetched detail pages from the crawler to workers over
// a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/statjobs/go-scraper/internal/domain"
)

// DefaultQueueName is the Redis list detail pages travel on.
const DefaultQueueName = "listings:raw"

// Publisher pushes fetched detail pages to the Redis queue.
type Publisher struct {
	client    *redis.Client
	queueName string
}

// NewPublisher creates a queue publisher.
func NewPublisher(client *redis.Client, queueName string) *Publisher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Publisher{
		client:    client,
		queueName: queueName,
	}
}

// PublishBatch pushes detail pages in one pipeline round trip.
func (p *Publisher) PublishBatch(ctx context.Context, details []*domain.RawDetail) error {
	if len(details) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, detail := range details {
		data, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		pipe.LPush(ctx, p.queueName, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}

	return nil
}

// QueueLength returns the current queue length.
func (p *Publisher) QueueLength(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.queueName).Result()
}
