package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/statjobs/go-scraper/internal/domain"
)

// ElasticsearchSink writes exploded rows to Elasticsearch. Document IDs are
// "<listing_id>:<job_code>" so re-indexing a listing overwrites its rows.
type ElasticsearchSink struct {
	client    *elasticsearch.Client
	indexName string
	aggsIndex string
}

// NewElasticsearchSink creates an Elasticsearch sink and verifies the
// cluster is reachable.
func NewElasticsearchSink(addresses []string, indexName, aggsIndex string) (*ElasticsearchSink, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("es error: %s", res.Status())
	}

	if indexName == "" {
		indexName = "listings-exploded"
	}
	if aggsIndex == "" {
		aggsIndex = "listings"
	}

	return &ElasticsearchSink{
		client:    client,
		indexName: indexName,
		aggsIndex: aggsIndex,
	}, nil
}

// BulkIndex indexes exploded rows with the bulk API.
func (s *ElasticsearchSink) BulkIndex(ctx context.Context, rows []*domain.ExplodedRow) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, row := range rows {
		writeBulkMeta(&buf, s.indexName, docID(row))

		docBytes, err := json.Marshal(row)
		if err != nil {
			log.Printf("marshal row %s: %v", docID(row), err)
			continue
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	return s.bulk(ctx, &buf)
}

// BulkIndexAggregates indexes listing-level aggregates, keyed by listing ID.
func (s *ElasticsearchSink) BulkIndexAggregates(ctx context.Context, aggs []*domain.ListingAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, agg := range aggs {
		writeBulkMeta(&buf, s.aggsIndex, agg.ListingID)

		docBytes, err := json.Marshal(agg)
		if err != nil {
			log.Printf("marshal aggregate %s: %v", agg.ListingID, err)
			continue
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	return s.bulk(ctx, &buf)
}

func (s *ElasticsearchSink) bulk(ctx context.Context, buf *bytes.Buffer) error {
	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()), s.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk error: %s", res.Status())
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
				Error  struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}

	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}

	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			if item.Index.Status >= 400 {
				log.Printf("bulk index error for %s: %s - %s",
					item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason)
			}
		}
	}

	return nil
}

// EnsureIndex creates the exploded-rows index if it doesn't exist. Norwegian
// text gets asciifolding so "Bodø" and "Bodo" both hit.
func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName})
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	mapping := `{
		"settings": {
			"analysis": {
				"analyzer": {
					"norwegian_analyzer": {
						"type": "custom",
						"tokenizer": "standard",
						"filter": ["lowercase", "asciifolding"]
					}
				}
			}
		},
		"mappings": {
			"properties": {
				"listing_id": {"type": "keyword"},
				"job_code": {"type": "keyword"},
				"job_title": {
					"type": "text",
					"analyzer": "norwegian_analyzer",
					"fields": {"keyword": {"type": "keyword"}}
				},
				"employer_normalized": {
					"type": "text",
					"analyzer": "norwegian_analyzer",
					"fields": {"keyword": {"type": "keyword"}}
				},
				"salary_min": {"type": "integer"},
				"salary_max": {"type": "integer"},
				"salary_text": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
				"is_shared_salary": {"type": "boolean"},
				"published_at": {"type": "date"},
				"updated_at": {"type": "date"},
				"apply_deadline": {"type": "date"},
				"source_url": {"type": "keyword"},
				"scraped_at": {"type": "date"},
				"matched_org_tag": {"type": "keyword"},
				"match_confidence": {"type": "float"}
			}
		}
	}`

	res, err = s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index error: %s", res.Status())
	}

	return nil
}

func docID(row *domain.ExplodedRow) string {
	return row.ListingID + ":" + row.JobCode
}

func writeBulkMeta(buf *bytes.Buffer, index, id string) {
	meta := map[string]any{
		"index": map[string]any{
			"_index": index,
			"_id":    id,
		},
	}
	metaBytes, _ := json.Marshal(meta)
	buf.Write(metaBytes)
	buf.WriteByte('\n')
}
