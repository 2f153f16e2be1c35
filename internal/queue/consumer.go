package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/statjobs/go-scraper/internal/domain"
)

// Consumer consumes fetched detail pages from the Redis queue.
type Consumer struct {
	client    *redis.Client
	queueName string
	timeout   time.Duration
}

// NewConsumer creates a queue consumer.
func NewConsumer(client *redis.Client, queueName string, timeout time.Duration) *Consumer {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Consumer{
		client:    client,
		queueName: queueName,
		timeout:   timeout,
	}
}

// ConsumeBatch consumes up to maxBatch detail pages. The first item uses
// BRPOP so an idle worker blocks instead of spinning; the rest of the batch
// drains with non-blocking RPOP.
func (c *Consumer) ConsumeBatch(ctx context.Context, maxBatch int) ([]*domain.RawDetail, error) {
	details := make([]*domain.RawDetail, 0, maxBatch)

	result, err := c.client.BRPop(ctx, c.timeout, c.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return details, nil
		}
		return nil, fmt.Errorf("brpop: %w", err)
	}

	if len(result) >= 2 {
		var detail domain.RawDetail
		if err := json.Unmarshal([]byte(result[1]), &detail); err == nil {
			details = append(details, &detail)
		}
	}

	for i := 1; i < maxBatch; i++ {
		result, err := c.client.RPop(ctx, c.queueName).Result()
		if err != nil {
			if err == redis.Nil {
				break
			}
			return details, fmt.Errorf("rpop: %w", err)
		}

		var detail domain.RawDetail
		if err := json.Unmarshal([]byte(result), &detail); err != nil {
			continue // skip malformed payloads
		}

		details = append(details, &detail)
	}

	return details, nil
}
