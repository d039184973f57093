package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jktrn/MemoLanes/internal/tile"
)

// RedisCache keeps each tile under its own key plus two bookkeeping
// structures: a sorted set of keys scored by store time and a hash of sizes.
// All three are updated in one MULTI/EXEC.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.KeyPrefix), nil
}

func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "journey-tile"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) Name() string {
	return "redis"
}

func (c *RedisCache) keyFor(k tile.Key) string {
	return c.prefix + ":tile:" + string(k)
}

func (c *RedisCache) indexKey() string {
	return c.prefix + ":index"
}

func (c *RedisCache) sizesKey() string {
	return c.prefix + ":sizes"
}

func (c *RedisCache) Get(ctx context.Context, k tile.Key) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, e Entry) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.keyFor(e.Key), e.Data, 0)
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{
			Score:  float64(e.StoredAt.UnixMilli()),
			Member: string(e.Key),
		})
		pipe.HSet(ctx, c.sizesKey(), string(e.Key), len(e.Data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, k tile.Key) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.keyFor(k))
		pipe.ZRem(ctx, c.indexKey(), string(k))
		pipe.HDel(ctx, c.sizesKey(), string(k))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}

	return nil
}

func (c *RedisCache) Scan(ctx context.Context) ([]EntryInfo, error) {
	members, err := c.client.ZRangeWithScores(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange error: %w", err)
	}
	sizes, err := c.client.HGetAll(ctx, c.sizesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall error: %w", err)
	}

	infos := make([]EntryInfo, 0, len(members))
	for _, m := range members {
		key, _ := m.Member.(string)
		size, err := strconv.ParseInt(sizes[key], 10, 64)
		if err != nil {
			// index entry without size: written by something else, skip it
			continue
		}
		infos = append(infos, EntryInfo{
			Key:      tile.Key(key),
			Size:     size,
			StoredAt: time.UnixMilli(int64(m.Score)),
		})
	}

	return infos, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	members, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis zrange error: %w", err)
	}

	keys := make([]string, 0, len(members)+2)
	for _, m := range members {
		keys = append(keys, c.keyFor(tile.Key(m)))
	}
	keys = append(keys, c.indexKey(), c.sizesKey())

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
