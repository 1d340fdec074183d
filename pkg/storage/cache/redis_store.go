package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore decorates a storage.Store with a Redis read-through cache.
// Git objects are immutable, so entries never need invalidation; the TTL only
// bounds memory.
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	fills  sync.WaitGroup
}

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // zero means no expiry
}

// NewCachedStore connects and pings Redis; an unreachable server is an error
// at construction time only.
func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewCachedStoreWithClient(backend, client, cfg.TTL), nil
}

// NewCachedStoreWithClient wraps an existing client without probing it.
func NewCachedStoreWithClient(backend storage.Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     ttl,
		logger:  slog.Default().With("component", "object-cache"),
	}
}

// Close waits for pending cache fills before closing the client.
func (s *CachedStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.fills.Wait()
	return s.client.Close()
}

func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "lastmod:obj:" + string(hash)
}

// Get serves loose objects from Redis and fills the cache on a miss.
// Redis failures degrade to the backend.
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	key := s.cacheKey(hash)

	// 1. Cache lookup
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		entry, derr := core.DecodeEntry(data)
		if derr == nil {
			return io.NopCloser(bytes.NewReader(entry.Loose)), nil
		}
		s.logger.Warn("dropping undecodable cache entry", "hash", hash, "error", derr)
		s.client.Del(ctx, key)
	case err != redis.Nil:
		s.logger.Warn("redis get failed, using backend", "hash", hash, "error", err)
	}

	// 2. Backend
	reader, err := s.backend.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, err
	}

	// 3. Fill only with well-formed objects; the caller reports corruption
	if t, _, _, lerr := storage.ReadLoose(bytes.NewReader(raw)); lerr == nil {
		s.fill(key, t, raw)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// Has answers from Redis when the object is cached.
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	n, err := s.client.Exists(ctx, s.cacheKey(hash)).Result()
	if err != nil {
		s.logger.Warn("redis exists failed, using backend", "hash", hash, "error", err)
	} else if n > 0 {
		return true, nil
	}
	return s.backend.Has(ctx, hash)
}

// Put writes through to the backend, then caches the object.
func (s *CachedStore) Put(ctx context.Context, obj core.Object) error {
	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}
	loose, err := storage.EncodeLoose(obj)
	if err != nil {
		return err
	}
	data, err := core.EncodeEntry(obj.Type(), loose)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.cacheKey(obj.ID()), data, s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", "hash", obj.ID(), "error", err)
	}
	return nil
}

func (s *CachedStore) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	return s.backend.ExpandHash(ctx, prefix)
}

// fill writes asynchronously so a slow Redis never blocks a history walk.
// Fills requested after Close are dropped.
func (s *CachedStore) fill(key string, t core.ObjectType, loose []byte) {
	data, err := core.EncodeEntry(t, loose)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Debug("cache fill failed", "key", key, "error", err)
		}
	}()
}
