package initial

import (
	"context"
	"fmt"
	"time"

	"ArtSeek/internal/config"
	"ArtSeek/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 未配置 host 时返回 nil（调用方据此关闭缓存）
func NewRedisClient(conf *config.Config) *goredis.Client {
	host := conf.RedisConfig.Host
	port := conf.RedisConfig.Port

	// 如果未配置主机，则跳过 Redis 初始化
	if host == "" {
		zlog.Info("redis not configured, search cache disabled")
		return nil
	}

	if port == 0 {
		port = 6379
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	zlog.Info("redis connecting", zap.String("addr", addr))

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// 缓存不是必需依赖，连接失败只降级
		zlog.Error("redis connect failed, search cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}

	zlog.Info("redis connected", zap.String("addr", addr))
	return client
}
