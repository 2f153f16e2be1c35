// Package dedup is the Redis fast path for skipping listings whose summary
// has not changed since the last run. The SQLite state store remains the
// durable record; this layer only avoids repeat detail fetches when Redis
// still remembers the listing.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker is the fast-path change check consulted during discovery.
type Checker interface {
	CheckListing(ctx context.Context, source, listingID, updatedAt string) (CheckResult, error)
	MarkSeen(ctx context.Context, source, listingID, updatedAt string, deadline time.Time) error
}

// Deduplicator tracks seen listings in Redis keyed by listing ID, storing
// the summary updated_at for change detection.
type Deduplicator struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewDeduplicator creates a Redis-based deduplicator.
func NewDeduplicator(client *redis.Client, prefix string, defaultTTL time.Duration) *Deduplicator {
	if prefix == "" {
		prefix = "seen"
	}
	if defaultTTL == 0 {
		defaultTTL = 30 * 24 * time.Hour
	}
	return &Deduplicator{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// CheckResult classifies a listing against the seen set.
type CheckResult int

const (
	// ResultNew - listing has never been seen
	ResultNew CheckResult = iota
	// ResultUpdated - listing exists but its updated_at changed
	ResultUpdated
	// ResultUnchanged - listing exists with the same updated_at
	ResultUnchanged
)

func (r CheckResult) String() string {
	switch r {
	case ResultNew:
		return "NEW"
	case ResultUpdated:
		return "UPDATED"
	default:
		return "UNCHANGED"
	}
}

// CheckListing classifies a listing by its summary updated_at. A listing
// with no stored value is ResultNew; a Redis error also reports ResultNew so
// an unavailable fast path degrades to fetching rather than skipping.
func (d *Deduplicator) CheckListing(ctx context.Context, source, listingID, updatedAt string) (CheckResult, error) {
	key := d.makeKey(source, listingID)

	stored, err := d.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ResultNew, nil
	}
	if err != nil {
		return ResultNew, fmt.Errorf("redis get: %w", err)
	}

	if stored != updatedAt {
		return ResultUpdated, nil
	}
	return ResultUnchanged, nil
}

// MarkSeen stores the listing's updated_at. When the apply deadline is
// known the TTL extends one day past it so closed listings age out on
// their own; otherwise the default TTL applies.
func (d *Deduplicator) MarkSeen(ctx context.Context, source, listingID, updatedAt string, deadline time.Time) error {
	key := d.makeKey(source, listingID)

	ttl := d.defaultTTL
	if !deadline.IsZero() {
		if until := time.Until(deadline); until > 0 {
			ttl = until + 24*time.Hour
		}
	}

	if err := d.client.Set(ctx, key, updatedAt, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (d *Deduplicator) makeKey(source, id string) string {
	return fmt.Sprintf("%s:%s:%s", d.prefix, source, id)
}
