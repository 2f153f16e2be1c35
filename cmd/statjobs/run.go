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
	"github.com/statjobs/go-scraper/internal/common/dedup"
	"github.com/statjobs/go-scraper/internal/common/extractor"
	"github.com/statjobs/go-scraper/internal/config"
	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/module"
	"github.com/statjobs/go-scraper/internal/module/arbeidsplassen"
	"github.com/statjobs/go-scraper/internal/module/worker"
	"github.com/statjobs/go-scraper/internal/orgmatch"
	"github.com/statjobs/go-scraper/internal/queue"
	"github.com/statjobs/go-scraper/internal/state"
)

var (
	runFull           bool
	runMaxPages       int
	runOut            string
	runFormat         string
	runFuzzyThreshold float64
	runQueue          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery pass and process changed listings",
	Long: `Run walks the search result pages, resolves a stable listing ID for each
result, and selects listings whose summary changed since the last run. With
--queue the fetched detail pages are published to Redis for a separate
worker; otherwise they are parsed and written inline.

Examples:
  # Incremental run, CSV output
  ./statjobs run

  # Reprocess every tracked listing
  ./statjobs run --full

  # Publish detail pages to Redis instead of processing inline
  ./statjobs run --queue`,
	Run: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFull, "full", false, "Select every listing regardless of change detection")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "Max search pages to walk (0 = config default)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Output directory for CSV files")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "Output format: csv, postgres, or elasticsearch")
	runCmd.Flags().Float64Var(&runFuzzyThreshold, "fuzzy-threshold", 0, "Enable fuzzy employer matching at this similarity (0 disables)")
	runCmd.Flags().BoolVar(&runQueue, "queue", false, "Publish fetched detail pages to Redis instead of processing inline")
}

func runRun(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if runMaxPages > 0 {
		cfg.Crawler.MaxPages = runMaxPages
	}
	if runOut != "" {
		cfg.Output.Dir = runOut
	}
	if runFuzzyThreshold > 0 {
		cfg.Match.FuzzyThreshold = runFuzzyThreshold
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

	store, err := state.Open(cfg.State.DBPath)
	if err != nil {
		log.Fatalf("Open state store: %v", err)
	}
	defer store.Close()

	ext := extractor.NewCollyExtractor(arbeidsplassen.Source, extractor.DefaultListSelectors(), extractor.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		ProxyURL:     cfg.Crawler.ProxyURL,
		MaxRetries:   cfg.Crawler.MaxRetries,
		RequestDelay: int(cfg.Crawler.RequestDelay.Milliseconds()),
	})

	// Redis is optional for inline runs: without it the SQLite store does
	// all change detection. --queue requires it.
	var dd dedup.Checker
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		if runQueue {
			log.Fatalf("Redis connection failed: %v", err)
		}
		log.Printf("Redis unavailable, continuing without fast path: %v", err)
		rdb = nil
	} else {
		dd = dedup.NewDeduplicator(rdb, cfg.Redis.DedupPrefix, cfg.Redis.DedupTTL)
	}

	var handler module.DetailHandler
	var publisher *queue.Publisher
	if runQueue {
		publisher = queue.NewPublisher(rdb, cfg.Redis.DetailQueue)
		handler = func(details []*domain.RawDetail) error {
			return publisher.PublishBatch(ctx, details)
		}
	} else {
		sink, err := newSink(cfg, runFormat)
		if err != nil {
			log.Fatalf("Create sink: %v", err)
		}

		processor := worker.NewProcessor(store, cleaner.NewCleaner(), orgmatch.NewMatcher(orgmatch.DefaultConfig()), worker.ProcessorConfig{
			Selectors:      extractor.DefaultDetailSelectors(),
			FuzzyThreshold: cfg.Match.FuzzyThreshold,
			SectorFiltered: cfg.Match.SectorFiltered,
		})
		pool := worker.NewWorker(nil, processor, sink, worker.Config{BatchSize: cfg.Worker.BatchSize})
		handler = func(details []*domain.RawDetail) error {
			return pool.ProcessBatch(ctx, details)
		}
	}

	crawler := arbeidsplassen.NewCrawler(ext, store, dd, arbeidsplassen.Config{
		BaseURL:      cfg.Crawler.BaseURL,
		Query:        cfg.Crawler.Query,
		MaxPages:     cfg.Crawler.MaxPages,
		RequestDelay: cfg.Crawler.RequestDelay,
		Full:         runFull,
	})

	start := time.Now()
	metrics, err := crawler.Crawl(ctx, handler)
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Run cancelled")
			os.Exit(1)
		}
		log.Fatalf("Run failed: %v", err)
	}

	tracked, err := store.Count(ctx)
	if err != nil {
		log.Printf("Count tracked listings: %v", err)
	}
	log.Printf("Run finished in %s: %d discovered, %d selected, %d fetched, %d tracked total",
		time.Since(start).Round(time.Second), metrics.Discovered, metrics.Selected, metrics.Fetched, tracked)

	if publisher != nil {
		if depth, err := publisher.QueueLength(ctx); err != nil {
			log.Printf("Queue length check failed: %v", err)
		} else {
			log.Printf("%d detail pages waiting on %q", depth, cfg.Redis.DetailQueue)
		}
	}
}
