package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uninest-messaging/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

// ThreadCache 執行緒列表的暫存快取接口.
// 執行緒每次都從訊息即時推導，快取只是短 TTL 的去重層，
// 任何寫入（發送、標記已讀）都必須讓相關用戶的條目失效.
type ThreadCache interface {
	Get(ctx context.Context, userID string) ([]*Thread, bool)
	Set(ctx context.Context, userID string, threads []*Thread)
	Invalidate(ctx context.Context, userIDs ...string)
}

// RedisThreadCache Redis 實作.
// 快取失敗一律降級為直接查詢，絕不阻斷請求.
type RedisThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisThreadCache 創建執行緒快取.
func NewRedisThreadCache(client *redis.Client, ttl time.Duration) *RedisThreadCache {
	return &RedisThreadCache{
		client: client,
		ttl:    ttl,
	}
}

// cacheKey 用戶執行緒列表的快取 key.
func cacheKey(userID string) string {
	return fmt.Sprintf("threads:%s", userID)
}

// Get 讀取快取，未命中或出錯時回傳 false.
func (c *RedisThreadCache) Get(ctx context.Context, userID string) ([]*Thread, bool) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warning(ctx, "讀取執行緒快取失敗",
				logger.WithUserID(userID),
				logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		}
		return nil, false
	}

	var threads []*Thread
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, false
	}

	return threads, true
}

// Set 寫入快取，失敗只記日誌.
func (c *RedisThreadCache) Set(ctx context.Context, userID string, threads []*Thread) {
	data, err := json.Marshal(threads)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err(); err != nil {
		logger.Warning(ctx, "寫入執行緒快取失敗",
			logger.WithUserID(userID),
			logger.WithDetails(map[string]interface{}{"error": err.Error()}))
	}
}

// Invalidate 使指定用戶的快取失效.
func (c *RedisThreadCache) Invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cacheKey(id))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warning(ctx, "清除執行緒快取失敗",
			logger.WithDetails(map[string]interface{}{"error": err.Error()}))
	}
}
