package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CacheConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`

	// SearchTimeout bounds a shared lookup, which outlives any single caller.
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
}

// CachedRetriever is a read-through Redis cache in front of another
// Retriever. Redis errors never fail a search.
type CachedRetriever struct {
	next    Retriever
	rdb     redis.UniversalClient
	ttl     time.Duration
	prefix  string
	timeout time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

func NewCachedRetriever(next Retriever, rdb redis.UniversalClient, cfg CacheConfig, logger *zap.Logger) *CachedRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "kb:search:"
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 15 * time.Second
	}
	return &CachedRetriever{
		next:    next,
		rdb:     rdb,
		ttl:     cfg.TTL,
		prefix:  cfg.KeyPrefix,
		timeout: cfg.SearchTimeout,
		logger:  logger.With(zap.String("component", "retrieval_cache")),
	}
}

func (c *CachedRetriever) key(query string, topK int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", topK, strings.ToLower(query))))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedRetriever) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	key := c.key(query, topK)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var docs []Document
		if jerr := json.Unmarshal(raw, &docs); jerr == nil {
			return docs, nil
		}
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache get failed", zap.Error(err))
	}

	// The shared lookup is detached from any one caller: a session that ends
	// mid-search only abandons its own wait.
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		docs, err := c.next.Search(sctx, query, topK)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			if b, jerr := json.Marshal(docs); jerr == nil {
				if serr := c.rdb.Set(sctx, key, b, c.ttl).Err(); serr != nil {
					c.logger.Warn("cache set failed", zap.Error(serr))
				}
			}
		}
		return docs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Document), nil
	}
}
