package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchIndex mirrors catalog entries into Elasticsearch for full-text
// search over title and description.
type SearchIndex struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewSearchIndex(client *elasticsearch.Client, index string, log logger.Logger) *SearchIndex {
	return &SearchIndex{client: client, index: index, log: log}
}

// Index writes a catalog entry into the search index. Indexing failure is a
// search-quality problem, not a catalog-consistency one, so callers log and
// continue.
func (si *SearchIndex) Index(ctx context.Context, job models.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: encode for index: %w", err)
	}

	res, err := si.client.Index(
		si.index,
		bytes.NewReader(body),
		si.client.Index.WithDocumentID(job.ID),
		si.client.Index.WithContext(ctx),
	)
	if err != nil {
		return stderrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return stderrors.NewSearchQueryFailedError(fmt.Errorf("index status %s", res.Status()))
	}
	return nil
}

// Search runs a multi-match query over title and description and returns the
// matching catalog entries.
func (si *SearchIndex) Search(ctx context.Context, query string, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var buf bytes.Buffer
	searchBody := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "description", "company"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(searchBody); err != nil {
		return nil, fmt.Errorf("jobs: encode search query: %w", err)
	}

	res, err := si.client.Search(
		si.client.Search.WithContext(ctx),
		si.client.Search.WithIndex(si.index),
		si.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, stderrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, stderrors.NewSearchQueryFailedError(fmt.Errorf("search status %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Job `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("jobs: decode search response: %w", err)
	}

	jobs := make([]models.Job, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		jobs = append(jobs, hit.Source)
	}
	return jobs, nil
}
