package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the number of summaries returned per retrieval.
const DefaultTopK = 3

// Embedder turns text into a vector. *llm.Client satisfies it.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float64, error)
}

// Client is the high-level retrieval facade: it embeds text via the
// LLM provider and reads/writes the memory store.
type Client struct {
	embedder Embedder
	store    MemoryStore
	topK     int
	logger   *zap.Logger
}

// NewClient creates a Client. topK <= 0 selects DefaultTopK.
func NewClient(embedder Embedder, store MemoryStore, topK int, logger *zap.Logger) *Client {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{embedder: embedder, store: store, topK: topK, logger: logger}
}

// SummaryID returns the deterministic vector id for a session summary,
// so re-saving a session's summary overwrites the previous one.
func SummaryID(sessionID uint) string {
	return fmt.Sprintf("session-%d", sessionID)
}

// SaveSummary embeds the summary and upserts it with ownership metadata.
func (c *Client) SaveSummary(ctx context.Context, sessionID uint, userID uint64, projectID *uint, summary string) error {
	if summary == "" {
		return nil
	}
	embedding, err := c.embedder.Embedding(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}
	rec := Record{
		ID:        SummaryID(sessionID),
		Embedding: embedding,
		Content:   summary,
		UserID:    userID,
		ProjectID: projectID,
	}
	if err := c.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	c.logger.Info("session summary saved",
		zap.Uint("session_id", sessionID),
		zap.Uint64("user_id", userID),
	)
	return nil
}

// FindRelevant retrieves the summaries most similar to query. An empty
// projectIDs list means the query runs unscoped across the user's
// memory; otherwise each project is queried concurrently and the merged
// results are truncated to topK.
func (c *Client) FindRelevant(ctx context.Context, userID uint64, projectIDs []uint, query string) ([]string, error) {
	embedding, err := c.embedder.Embedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var matches []Match
	if len(projectIDs) == 0 {
		matches, err = c.store.Query(ctx, embedding, Filter{UserID: userID}, c.topK)
		if err != nil {
			return nil, err
		}
	} else {
		matches, err = c.queryProjects(ctx, embedding, userID, projectIDs)
		if err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Content)
	}
	c.logger.Debug("relevant summaries found",
		zap.Uint64("user_id", userID),
		zap.Int("projects", len(projectIDs)),
		zap.Int("matches", len(out)),
	)
	return out, nil
}

// queryProjects fans one query out per project and merges the results,
// deduplicating by id (a summary may surface from several scopes) and
// keeping the best score.
func (c *Client) queryProjects(ctx context.Context, embedding []float64, userID uint64, projectIDs []uint) ([]Match, error) {
	results := make([][]Match, len(projectIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pid := range projectIDs {
		g.Go(func() error {
			f := Filter{UserID: userID, ProjectID: &pid}
			matches, err := c.store.Query(gctx, embedding, f, c.topK)
			if err != nil {
				return fmt.Errorf("query project %d: %w", pid, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make(map[string]Match)
	for _, batch := range results {
		for _, m := range batch {
			if prev, ok := best[m.ID]; !ok || m.Score > prev.Score {
				best[m.ID] = m
			}
		}
	}
	merged := make([]Match, 0, len(best))
	for _, m := range best {
		merged = append(merged, m)
	}
	sortByScore(merged)
	if len(merged) > c.topK {
		merged = merged[:c.topK]
	}
	return merged, nil
}
