package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/statjobs/go-scraper/internal/common/cleaner"
	"github.com/statjobs/go-scraper/internal/common/extractor"
	"github.com/statjobs/go-scraper/internal/common/indexer"
	"github.com/statjobs/go-scraper/internal/config"
	"github.com/statjobs/go-scraper/internal/module/worker"
	"github.com/statjobs/go-scraper/internal/orgmatch"
	"github.com/statjobs/go-scraper/internal/queue"
	"github.com/statjobs/go-scraper/internal/state"
)

var (
	workerFormat      string
	workerConcurrency int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued detail pages and write output rows",
	Long: `Worker drains the Redis detail queue filled by "run --queue": each page is
parsed, matched against the tracked organizations, exploded into per-code
rows, and written to the configured sink.`,
	Run: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVarP(&workerFormat, "format", "f", "", "Output format: csv, postgres, or elasticsearch")
	workerCmd.Flags().IntVarP(&workerConcurrency, "concurrency", "c", 0, "Worker goroutines (0 = config default)")
}

func runWorker(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if workerConcurrency > 0 {
		cfg.Worker.Concurrency = workerConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, shutting down...")
		cancel()
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	log.Println("Redis connected")

	store, err := state.Open(cfg.State.DBPath)
	if err != nil {
		log.Fatalf("Open state store: %v", err)
	}
	defer store.Close()

	sink, err := newSink(cfg, workerFormat)
	if err != nil {
		log.Fatalf("Create sink: %v", err)
	}
	if es, ok := sink.(*indexer.ElasticsearchSink); ok {
		if err := es.EnsureIndex(ctx); err != nil {
			log.Printf("Warning: ensure index failed: %v", err)
		}
	}

	processor := worker.NewProcessor(store, cleaner.NewCleaner(), orgmatch.NewMatcher(orgmatch.DefaultConfig()), worker.ProcessorConfig{
		Selectors:      extractor.DefaultDetailSelectors(),
		FuzzyThreshold: cfg.Match.FuzzyThreshold,
		SectorFiltered: cfg.Match.SectorFiltered,
	})

	consumer := queue.NewConsumer(rdb, cfg.Redis.DetailQueue, 5*time.Second)
	pool := worker.NewWorker(consumer, processor, sink, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		BatchSize:   cfg.Worker.BatchSize,
	})

	log.Printf("Worker consuming %q with %d goroutines", cfg.Redis.DetailQueue, cfg.Worker.Concurrency)
	if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Worker failed: %v", err)
	}
	log.Println("Worker stopped")
}
