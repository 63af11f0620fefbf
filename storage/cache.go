package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskfolio-api/domain"
)

// Cache wraps an Adapter with Redis-backed caching for reads. Saves write
// through to the base adapter and refresh the cached copy. A NotFound from
// the base is never cached.
type Cache struct {
	base  Adapter
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Adapter using the provided Redis client and TTL.
func NewCache(base Adapter, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base adapter is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) LoadTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if data, ok := c.loadCached(ctx, KindTasks, userID); ok {
		var tasks []domain.Task
		if err := json.Unmarshal(data, &tasks); err == nil {
			return tasks, nil
		}
		c.evict(ctx, KindTasks, userID)
	}
	tasks, err := c.base.LoadTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, KindTasks, userID, tasks)
	return tasks, nil
}

func (c *Cache) SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error {
	if err := c.base.SaveTasks(ctx, userID, tasks); err != nil {
		return err
	}
	c.store(ctx, KindTasks, userID, tasks)
	return nil
}

func (c *Cache) LoadProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	if data, ok := c.loadCached(ctx, KindProjects, userID); ok {
		var projects []domain.Project
		if err := json.Unmarshal(data, &projects); err == nil {
			return projects, nil
		}
		c.evict(ctx, KindProjects, userID)
	}
	projects, err := c.base.LoadProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, KindProjects, userID, projects)
	return projects, nil
}

func (c *Cache) SaveProjects(ctx context.Context, userID string, projects []domain.Project) error {
	if err := c.base.SaveProjects(ctx, userID, projects); err != nil {
		return err
	}
	c.store(ctx, KindProjects, userID, projects)
	return nil
}

func (c *Cache) loadCached(ctx context.Context, kind Kind, userID string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(kind, userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing adapter without failing.
			_ = c.redis.Del(ctx, cacheKey(kind, userID)).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, kind Kind, userID string, collection any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(kind, userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, kind Kind, userID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(kind, userID)).Err()
}

func cacheKey(kind Kind, userID string) string {
	return string(kind) + ":" + userID
}
