// Package memory talks to the long-term semantic memory service.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voice-journal/core/internal/journal/model"
)

// Searcher returns ranked memory snippets for a topic.
type Searcher interface {
	Search(ctx context.Context, userID, topic string, limit int) ([]model.MemorySnippet, error)
}

// HTTPSearcher posts search requests to the memory service.
type HTTPSearcher struct {
	url    string
	client *http.Client
}

func NewHTTPSearcher(url string, timeout time.Duration) *HTTPSearcher {
	return &HTTPSearcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
	Limit  int    `json:"limit"`
}

type searchResponse struct {
	Results []model.MemorySnippet `json:"results"`
}

func (s *HTTPSearcher) Search(ctx context.Context, userID, topic string, limit int) ([]model.MemorySnippet, error) {
	body, err := json.Marshal(searchRequest{UserID: userID, Topic: topic, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("memory search: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}
	return out.Results, nil
}

// NopSearcher is used when no memory service is configured.
type NopSearcher struct{}

func (NopSearcher) Search(context.Context, string, string, int) ([]model.MemorySnippet, error) {
	return []model.MemorySnippet{}, nil
}

var (
	_ Searcher = (*HTTPSearcher)(nil)
	_ Searcher = NopSearcher{}
)
