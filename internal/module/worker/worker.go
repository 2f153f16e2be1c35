// Package worker consumes fetched detail pages from the queue and writes
// exploded rows to the configured sink.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/statjobs/go-scraper/internal/common/indexer"
	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/explode"
	"github.com/statjobs/go-scraper/internal/queue"
)

// Worker runs a pool of goroutines draining the detail queue.
type Worker struct {
	consumer  *queue.Consumer
	processor *Processor
	sink      indexer.Sink

	batchSize   int
	concurrency int
}

// Config holds worker pool configuration.
type Config struct {
	Concurrency int
	BatchSize   int
}

// NewWorker creates a worker pool.
func NewWorker(consumer *queue.Consumer, processor *Processor, sink indexer.Sink, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Worker{
		consumer:    consumer,
		processor:   processor,
		sink:        sink,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
}

// Run starts the worker pool and blocks until the context is cancelled or a
// worker fails.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[Worker] Starting pool with %d workers", w.concurrency)

	var wg sync.WaitGroup
	errChan := make(chan error, w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := w.runSingle(ctx, workerID); err != nil {
				errChan <- fmt.Errorf("worker %d: %w", workerID, err)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	case <-done:
		return nil
	}
}

func (w *Worker) runSingle(ctx context.Context, workerID int) error {
	log.Printf("[Worker] %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] %d stopping", workerID)
			return nil
		default:
		}

		details, err := w.consumer.ConsumeBatch(ctx, w.batchSize)
		if err != nil {
			log.Printf("[Worker] %d consume error: %v", workerID, err)
			continue
		}
		if len(details) == 0 {
			continue // BRPOP timeout, poll again
		}

		log.Printf("[Worker] %d processing %d detail pages", workerID, len(details))
		if err := w.ProcessBatch(ctx, details); err != nil {
			log.Printf("[Worker] %d batch error: %v", workerID, err)
		}
	}
}

// ProcessBatch processes a batch of detail pages and writes the results.
// Also used inline by single-process runs that bypass the queue.
func (w *Worker) ProcessBatch(ctx context.Context, details []*domain.RawDetail) error {
	var rows []*domain.ExplodedRow
	var aggs []*domain.ListingAggregate

	for _, raw := range details {
		result, err := w.processor.Process(ctx, raw)
		if err != nil {
			log.Printf("[Worker] Process error for %s: %v", raw.ListingID, err)
			continue
		}
		if result.Skipped != "" {
			log.Printf("[Worker] Skipped %s: %s", raw.ListingID, result.Skipped)
			continue
		}
		rows = append(rows, result.Rows...)
		aggs = append(aggs, result.Aggregate)
	}

	if len(rows) == 0 {
		return nil
	}

	if err := w.sink.BulkIndex(ctx, rows); err != nil {
		return fmt.Errorf("index rows: %w", err)
	}
	if err := w.sink.BulkIndexAggregates(ctx, aggs); err != nil {
		return fmt.Errorf("index aggregates: %w", err)
	}

	m := explode.Measure(rows)
	log.Printf("[Worker] Indexed %d rows (%d listings, %d with code, %d with salary)",
		m.Rows, len(aggs), m.WithCode, m.WithSalary)
	return nil
}
