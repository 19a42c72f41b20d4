package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PineconeConfig configures the Pinecone MemoryStore implementation.
//
// To use Pinecone you need either:
// - BaseURL (data-plane host, e.g. https://<index>-<project>.svc.<region>.pinecone.io), or
// - Index, in which case the store will resolve host via the controller API.
type PineconeConfig struct {
	APIKey    string        `json:"api_key" yaml:"api_key"`
	Index     string        `json:"index,omitempty" yaml:"index"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url"`
	Namespace string        `json:"namespace,omitempty" yaml:"namespace"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	ControllerBaseURL string `json:"controller_base_url,omitempty" yaml:"controller_base_url"` // Default: https://api.pinecone.io
}

// PineconeStore implements MemoryStore using Pinecone's REST API.
// Ownership metadata rides along as user_id / project_id fields and is
// applied as a server-side filter on query.
type PineconeStore struct {
	cfg    PineconeConfig
	logger *zap.Logger
	client *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeStore creates a Pinecone-backed MemoryStore.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ControllerBaseURL == "" {
		cfg.ControllerBaseURL = "https://api.pinecone.io"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &PineconeStore{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "pinecone_store")),
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: baseURL,
	}
}

func (s *PineconeStore) ensureBaseURL(ctx context.Context) error {
	s.mu.RLock()
	if s.baseURL != "" {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	if strings.TrimSpace(s.cfg.Index) == "" {
		return fmt.Errorf("pinecone base_url is required when index is empty")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("pinecone api_key is required")
	}

	// Resolve host via controller API: GET /indexes/{index}
	controller := strings.TrimRight(strings.TrimSpace(s.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(s.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone describe index failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return fmt.Errorf("pinecone controller returned empty host for index %q", s.cfg.Index)
	}

	baseURL := host
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	s.mu.Lock()
	s.baseURL = baseURL
	s.mu.Unlock()

	return nil
}

func (s *PineconeStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	if err := s.ensureBaseURL(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	baseURL := s.baseURL
	s.mu.RUnlock()
	endpoint := baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *PineconeStore) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.ID)
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("pinecone api_key is required")
	}

	meta := map[string]any{
		"user_id": rec.UserID,
		"summary": rec.Content,
	}
	if rec.ProjectID != nil {
		meta["project_id"] = *rec.ProjectID
	}

	type vector struct {
		ID       string         `json:"id"`
		Values   []float64      `json:"values"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	req := struct {
		Vectors   []vector `json:"vectors"`
		Namespace string   `json:"namespace,omitempty"`
	}{
		Vectors:   []vector{{ID: rec.ID, Values: rec.Embedding, Metadata: meta}},
		Namespace: strings.TrimSpace(s.cfg.Namespace),
	}

	var resp any
	return s.doJSON(ctx, http.MethodPost, "/vectors/upsert", req, &resp)
}

func (s *PineconeStore) Query(ctx context.Context, embedding []float64, f Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	filter := map[string]any{
		"user_id": map[string]any{"$eq": f.UserID},
	}
	if f.ProjectID != nil {
		filter = map[string]any{
			"$and": []map[string]any{
				{"user_id": map[string]any{"$eq": f.UserID}},
				{"project_id": map[string]any{"$eq": *f.ProjectID}},
			},
		}
	}

	req := struct {
		Vector          []float64      `json:"vector"`
		TopK            int            `json:"topK"`
		Namespace       string         `json:"namespace,omitempty"`
		Filter          map[string]any `json:"filter"`
		IncludeMetadata bool           `json:"includeMetadata"`
	}{
		Vector:          embedding,
		TopK:            topK,
		Namespace:       strings.TrimSpace(s.cfg.Namespace),
		Filter:          filter,
		IncludeMetadata: true,
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := Match{ID: m.ID, Score: m.Score}
		if m.Metadata != nil {
			if v, ok := m.Metadata["summary"].(string); ok {
				match.Content = v
			}
		}
		out = append(out, match)
	}
	return out, nil
}

func (s *PineconeStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := struct {
		IDs       []string `json:"ids"`
		Namespace string   `json:"namespace,omitempty"`
	}{
		IDs:       ids,
		Namespace: strings.TrimSpace(s.cfg.Namespace),
	}

	var resp any
	return s.doJSON(ctx, http.MethodPost, "/vectors/delete", req, &resp)
}
