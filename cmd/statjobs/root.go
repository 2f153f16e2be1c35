package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statjobs/go-scraper/internal/common/indexer"
	"github.com/statjobs/go-scraper/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "statjobs",
	Short: "Incremental scraper for Norwegian state-sector job listings",
	Long: `statjobs discovers state-sector listings, tracks them across runs in a
local state store, and emits one output row per (listing, job code) pair for
the tracked defence- and security-sector employers.`,
	SilenceUsage: true,
}

// newSink builds the output backend selected by OUTPUT_FORMAT or --format.
func newSink(cfg *config.Config, format string) (indexer.Sink, error) {
	if format == "" {
		format = cfg.Output.Format
	}
	switch format {
	case "csv":
		return indexer.NewCSVSink(cfg.Output.Dir)
	case "postgres":
		return indexer.NewPostgresSink(cfg.Postgres.ConnectionString, cfg.Postgres.RowsTable, cfg.Postgres.AggsTable)
	case "elasticsearch":
		return indexer.NewElasticsearchSink(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index, cfg.Elasticsearch.AggsIndex)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
