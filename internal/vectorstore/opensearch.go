// Package vectorstore implements the search stage against an OpenSearch
// k-NN index.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"

	"github.com/haasonsaas/ragbench/internal/stages"
)

// serverlessService is the SigV4 service name for OpenSearch Serverless.
const serverlessService = "aoss"

// Config holds OpenSearch connection settings.
type Config struct {
	Host     string
	Username string
	Password string

	// Serverless switches authentication from basic auth to SigV4 request
	// signing for OpenSearch Serverless collections.
	Serverless bool

	// Region used for SigV4 signing when Serverless is set.
	Region string
}

// Store performs nearest-neighbor queries against OpenSearch indexes.
type Store struct {
	client *opensearch.Client
}

// New creates an OpenSearch-backed vector store. Serverless collections are
// authenticated with SigV4 signed requests via the default AWS credential
// chain; managed clusters use basic auth.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("vectorstore: host is required")
	}

	osCfg := opensearch.Config{Addresses: []string{cfg.Host}}
	if cfg.Serverless {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("vectorstore: load aws config: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, serverlessService)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: create request signer: %w", err)
		}
		osCfg.Signer = signer
	} else {
		osCfg.Username = cfg.Username
		osCfg.Password = cfg.Password
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create client: %w", err)
	}
	return &Store{client: client}, nil
}

type knnQuery struct {
	Size  int `json:"size"`
	Query struct {
		Knn map[string]knnField `json:"knn"`
	} `json:"query"`
	Source []string `json:"_source"`
}

type knnField struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text string `json:"text"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search implements stages.Searcher. It returns the top-k chunks ordered by
// score; an index with no matches yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, indexID string, vector []float32, k int) ([]stages.RetrievedChunk, error) {
	query := knnQuery{Size: k, Source: []string{"text"}}
	query.Query.Knn = map[string]knnField{
		"vectors": {Vector: vector, K: k},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexID},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %s: %w", indexID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("vectorstore: search %s: %s: %s", indexID, res.Status(), msg)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read response: %w", err)
	}
	return ParseSearchResponse(raw)
}

// ParseSearchResponse decodes an OpenSearch search response into retrieved
// chunks, preserving hit order.
func ParseSearchResponse(raw []byte) ([]stages.RetrievedChunk, error) {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("vectorstore: decode response: %w", err)
	}

	chunks := make([]stages.RetrievedChunk, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		chunks = append(chunks, stages.RetrievedChunk{
			Text:  hit.Source.Text,
			Score: hit.Score,
		})
	}
	return chunks, nil
}
