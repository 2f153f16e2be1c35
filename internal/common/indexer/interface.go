// Package indexer writes exploded listing rows to output backends.
package indexer

import (
	"context"

	"github.com/statjobs/go-scraper/internal/domain"
)

// Sink is an output backend for exploded rows and their listing-level
// aggregates.
type Sink interface {
	// BulkIndex writes exploded rows, upserting on (listing_id, job_code).
	BulkIndex(ctx context.Context, rows []*domain.ExplodedRow) error

	// BulkIndexAggregates writes listing-level aggregate records.
	BulkIndexAggregates(ctx context.Context, aggs []*domain.ListingAggregate) error
}
