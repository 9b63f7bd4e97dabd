package driver

import (
	"context"
	"fmt"
	"time"

	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// ConnectRedis 連接 Redis（可選組件，未啟用時直接跳過）.
func ConnectRedis() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("配置未載入")
	}

	if !cfg.Database.Redis.Enabled {
		logger.LogInfof("Redis 未啟用，跳過連接")
		return nil
	}

	return InitRedis(cfg.Database.Redis)
}

// InitRedis 初始化 Redis 連接.
func InitRedis(cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	redisClient = client
	logger.LogInfof("Redis connected successfully")
	return nil
}

// GetRedisClient 獲取 Redis 客戶端實例，未連接時回傳 nil.
func GetRedisClient() *redis.Client {
	return redisClient
}

// CloseRedis 關閉 Redis 連接.
func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
