package main

import (
	"context"
	"os"
	"time"

	"uninest-messaging/internal/chat"
	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/livefeed"
	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/driver"
	"uninest-messaging/internal/platform/logger"
	"uninest-messaging/internal/platform/server"
	"uninest-messaging/internal/storage/database"
	"uninest-messaging/internal/storage/database/message"
)

func main() {
	os.Exit(mainNoExit())
}

// mainNoExit 讓 defer 在退出前執行.
func mainNoExit() int {
	// 載入配置
	if env := os.Getenv("APP_ENV"); env != "" {
		config.SetEnv(env)
	}
	if err := config.Load(); err != nil {
		logger.LogErrorf("載入配置失敗: %v", err)
		return 1
	}

	// 初始化日誌
	if err := logger.InitLogger(); err != nil {
		logger.LogErrorf("初始化日誌失敗: %v", err)
		return 1
	}
	defer logger.CloseLogger()

	cfg := config.Get()
	ctx := context.Background()

	// 連接 MongoDB
	if err := driver.ConnectMongo(); err != nil {
		logger.Errorf(ctx, "連接 MongoDB 失敗: %v", err)
		return 1
	}
	defer driver.CloseMongo() //nolint:errcheck

	// 連接可選組件
	if err := driver.ConnectRedis(); err != nil {
		logger.Errorf(ctx, "連接 Redis 失敗: %v", err)
		return 1
	}
	defer driver.CloseRedis() //nolint:errcheck

	if err := driver.ConnectNATS(); err != nil {
		logger.Errorf(ctx, "連接 NATS 失敗: %v", err)
		return 1
	}
	defer driver.CloseNATS()

	db := driver.GetMongoDatabase()
	repos := database.NewRepositories(db)

	// 創建索引並記錄索引清單，方便對照部署後的實際狀態
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := repos.EnsureIndexes(indexCtx, db); err != nil {
		logger.Warningf(indexCtx, "創建索引失敗: %v", err)
	} else if stats, err := message.GetIndexStats(indexCtx, db); err == nil {
		logger.Info(indexCtx, "訊息集合索引就緒", logger.WithDetails(stats))
	}
	cancel()

	// 即時通知通道：NATS 啟用時走 NATS，否則用進程內通道
	var feed livefeed.Feed
	if conn := driver.GetNATSConn(); conn != nil {
		feed = livefeed.NewNATSFeed(conn, cfg.NATS.SubjectPrefix)
	} else {
		feed = livefeed.NewMemoryFeed()
	}
	defer feed.Close() //nolint:errcheck

	// 執行緒快取：Redis 啟用時才掛上
	var cache chat.ThreadCache
	if client := driver.GetRedisClient(); client != nil {
		ttl := time.Duration(cfg.Database.Redis.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = time.Duration(constants.DefaultThreadCacheTTLSeconds) * time.Second
		}
		cache = chat.NewRedisThreadCache(client, ttl)
	}

	// 領域服務
	messageLimit := int64(constants.DefaultUserMessagesLimit)
	if cfg.Limits.MongoDB.UserMessagesLimit > 0 {
		messageLimit = int64(cfg.Limits.MongoDB.UserMessagesLimit)
	}
	conversationLimit := int64(cfg.Limits.MongoDB.MaxQueryLimit)

	conversations := chat.NewConversationService(repos.Messages, repos.Profiles, feed, cache, conversationLimit)
	threads := chat.NewThreadAggregator(repos.Messages, repos.Profiles, cache, messageLimit)
	reads := chat.NewReadTracker(repos.Messages, cache)
	sessions := chat.NewSessionController(conversations, reads, feed)

	router := server.Router(&server.Services{
		Threads:       threads,
		Conversations: conversations,
		Reads:         reads,
		Sessions:      sessions,
		Profiles:      repos.Profiles,
	})

	if err := server.Start(router); err != nil {
		logger.Errorf(ctx, "HTTP 服務異常: %v", err)
		return 1
	}

	return 0
}
