package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/types"
)

// HistoryCacheConfig configures the Redis-backed session history cache.
type HistoryCacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Addr      string        `yaml:"addr" json:"addr"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// cachedMessage is the wire form of one cached history entry.
type cachedMessage struct {
	ID      string     `json:"id"`
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
	At      time.Time  `json:"at"`
}

// HistoryCache is a Redis-backed cache of recent session history, used for
// hot reads so the relational store is only consulted on cache miss. The
// relational store remains the source of truth; cache writes are best
// effort.
type HistoryCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewHistoryCache creates a HistoryCache and verifies connectivity.
func NewHistoryCache(cfg HistoryCacheConfig, logger *zap.Logger) (*HistoryCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "deskagent:"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &HistoryCache{
		client:    client,
		keyPrefix: prefix + "sess:",
		ttl:       ttl,
		logger:    logger,
	}, nil
}

func (c *HistoryCache) key(sessionID uint) string {
	return fmt.Sprintf("%s%d:history", c.keyPrefix, sessionID)
}

// Append pushes one message onto the session's cached history and refreshes
// the TTL.
func (c *HistoryCache) Append(ctx context.Context, sessionID uint, msg types.Message) error {
	entry := cachedMessage{
		ID:      uuid.New().String(),
		Role:    msg.Role,
		Content: msg.Content,
		At:      time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := c.key(sessionID)
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Replace atomically swaps the session's cached history for the given
// messages, used to warm the cache from the relational store after a miss.
func (c *HistoryCache) Replace(ctx context.Context, sessionID uint, msgs []types.Message) error {
	key := c.key(sessionID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	now := time.Now().UTC()
	for _, msg := range msgs {
		entry := cachedMessage{
			ID:      uuid.New().String(),
			Role:    msg.Role,
			Content: msg.Content,
			At:      now,
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, key, raw)
	}
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns up to n most recent messages in chronological order.
// n <= 0 returns the full cached history.
func (c *HistoryCache) Recent(ctx context.Context, sessionID uint, n int) ([]types.Message, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	rows, err := c.client.LRange(ctx, c.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(rows))
	for _, row := range rows {
		var entry cachedMessage
		if err := json.Unmarshal([]byte(row), &entry); err != nil {
			c.logger.Warn("skipping malformed cached history entry",
				zap.Uint("session_id", sessionID),
				zap.Error(err),
			)
			continue
		}
		msgs = append(msgs, types.Message{Role: entry.Role, Content: entry.Content})
	}
	return msgs, nil
}

// Clear removes the session's cached history.
func (c *HistoryCache) Clear(ctx context.Context, sessionID uint) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}

// Close releases the Redis connection.
func (c *HistoryCache) Close() error {
	return c.client.Close()
}
