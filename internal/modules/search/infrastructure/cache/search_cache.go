package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const searchKeyPrefix = "artseek:search:"

// SearchCache 查询结果缓存，值为已序列化的结果
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type redisSearchCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisSearchCache(client *goredis.Client, ttl time.Duration) SearchCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisSearchCache{client: client, ttl: ttl}
}

func (c *redisSearchCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (c *redisSearchCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// SearchKey 键里带上索引的 build id，重建索引后旧缓存自然失效
func SearchKey(buildID, url string, offset, limit int) string {
	sum := sha1.Sum([]byte(url))
	return searchKeyPrefix + buildID + ":" + hex.EncodeToString(sum[:]) + ":" +
		strconv.Itoa(offset) + ":" + strconv.Itoa(limit)
}
