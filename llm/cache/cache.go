package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config 缓存配置。
type Config struct {
	// LocalMaxSize 本地缓存最大条目数。
	LocalMaxSize int `json:"local_max_size"`
	// LocalTTL 本地缓存 TTL。
	LocalTTL time.Duration `json:"local_ttl"`
	// RedisTTL Redis 缓存 TTL。
	RedisTTL time.Duration `json:"redis_ttl"`
	// EnableLocal 是否启用本地缓存。
	EnableLocal bool `json:"enable_local"`
	// KeyPrefix Redis 键前缀。
	KeyPrefix string `json:"key_prefix"`
}

// DefaultConfig 返回合理默认值。
func DefaultConfig() *Config {
	return &Config{
		LocalMaxSize: 512,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     30 * time.Minute,
		EnableLocal:  true,
		KeyPrefix:    "parley:completion:",
	}
}

// CompletionCache 多级补全缓存，实现 llm.Cache。
type CompletionCache struct {
	local  *lruCache
	rdb    *redis.Client
	config *Config
	logger *zap.Logger
}

// New 创建多级缓存。rdb 为 nil 时只用本地层。
func New(rdb *redis.Client, config *Config, logger *zap.Logger) *CompletionCache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var local *lruCache
	if config.EnableLocal {
		local = newLRUCache(config.LocalMaxSize, config.LocalTTL)
	}

	return &CompletionCache{
		local:  local,
		rdb:    rdb,
		config: config,
		logger: logger.With(zap.String("component", "completion_cache")),
	}
}

// Get 查询缓存：先本地后 Redis；Redis 命中时回填本地层。
func (c *CompletionCache) Get(ctx context.Context, prompt string) (string, bool) {
	key := Key(prompt)

	if c.local != nil {
		if text, ok := c.local.get(key); ok {
			return text, true
		}
	}

	if c.rdb != nil {
		text, err := c.rdb.Get(ctx, c.config.KeyPrefix+key).Result()
		if err == nil {
			if c.local != nil {
				c.local.set(key, text)
			}
			return text, true
		}
		if err != redis.Nil {
			// Redis 故障只降级为未命中。
			c.logger.Warn("redis get failed", zap.Error(err))
		}
	}

	return "", false
}

// Set 写入缓存（本地与 Redis 双写）。
func (c *CompletionCache) Set(ctx context.Context, prompt, text string) {
	key := Key(prompt)

	if c.local != nil {
		c.local.set(key, text)
	}

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, c.config.KeyPrefix+key, text, c.config.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis set failed", zap.Error(err))
		}
	}
}

// Key 返回 prompt 的缓存键（sha256 十六进制摘要）。
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// --- 本地 LRU 层 ---

type lruEntry struct {
	key       string
	text      string
	expiresAt time.Time
}

// lruCache 带 TTL 的固定容量 LRU。
type lruCache struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	order    *list.List               // 头部最新
	elements map[string]*list.Element // key → element
}

func newLRUCache(maxSize int, ttl time.Duration) *lruCache {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &lruCache{
		maxSize:  maxSize,
		ttl:      ttl,
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (l *lruCache) get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.elements[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*lruEntry)
	if l.ttl > 0 && time.Now().After(entry.expiresAt) {
		l.order.Remove(el)
		delete(l.elements, key)
		return "", false
	}
	l.order.MoveToFront(el)
	return entry.text, true
}

func (l *lruCache) set(key, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt := time.Now().Add(l.ttl)
	if el, ok := l.elements[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.text = text
		entry.expiresAt = expiresAt
		l.order.MoveToFront(el)
		return
	}

	el := l.order.PushFront(&lruEntry{key: key, text: text, expiresAt: expiresAt})
	l.elements[key] = el

	for l.order.Len() > l.maxSize {
		oldest := l.order.Back()
		if oldest == nil {
			break
		}
		l.order.Remove(oldest)
		delete(l.elements, oldest.Value.(*lruEntry).key)
	}
}
