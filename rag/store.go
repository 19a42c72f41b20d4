package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Record is one stored memory: a summary text with its embedding and
// the ownership metadata used for scoped retrieval.
type Record struct {
	ID        string
	Embedding []float64
	Content   string
	UserID    uint64
	ProjectID *uint
}

// Filter restricts a query. UserID is always required; a nil ProjectID
// matches records in any project as well as unscoped ones.
type Filter struct {
	UserID    uint64
	ProjectID *uint
}

// Match is one retrieval hit, most similar first.
type Match struct {
	ID      string
	Content string
	Score   float64
}

// MemoryStore 向量记忆存储接口
type MemoryStore interface {
	// 写入或覆盖一条记录
	Upsert(ctx context.Context, rec Record) error

	// 按过滤条件检索最相似的 topK 条
	Query(ctx context.Context, embedding []float64, f Filter, topK int) ([]Match, error)

	// 删除记录
	Delete(ctx context.Context, ids []string) error
}

// ====== 内存实现（用于测试和小规模应用）======

// InMemoryStore keeps records in a map. Used in tests and single-node
// deployments without an external vector database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	logger  *zap.Logger
}

// NewInMemoryStore 创建内存记忆存储
func NewInMemoryStore(logger *zap.Logger) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryStore{
		records: make(map[string]Record),
		logger:  logger,
	}
}

func (s *InMemoryStore) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) Query(ctx context.Context, embedding []float64, f Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if rec.UserID != f.UserID {
			continue
		}
		if f.ProjectID != nil && (rec.ProjectID == nil || *rec.ProjectID != *f.ProjectID) {
			continue
		}
		matches = append(matches, Match{
			ID:      rec.ID,
			Content: rec.Content,
			Score:   cosineSimilarity(embedding, rec.Embedding),
		})
	}

	sortByScore(matches)
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func (s *InMemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// 余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore 按分数降序排序
func sortByScore(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
