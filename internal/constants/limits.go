package constants

// HTTP 請求相關常數
const (
	// 默認值（可被配置覆蓋）
	DefaultMaxRequestBodySize = 10 << 20 // 10MB
	DefaultMaxMultipartMemory = 10 << 20 // 10MB
	DefaultRequestTimeout     = 30       // 秒
)

// 分頁相關常數
const (
	DefaultPageSize    = 20
	DefaultMaxPageSize = 100
	MinPageSize        = 1
)

// 訊息相關常數
const (
	DefaultMaxMessageLength = 10000
	MessageChannelBuffer    = 10
)

// Rate Limiting 默認值
const (
	DefaultRateLimitPerMinute   = 100
	DefaultMessageRateLimit     = 30
	DefaultThreadListRateLimit  = 60
	DefaultSSERateLimit         = 5
	RateLimitCleanupIntervalMin = 10 // 分鐘
)

// SSE 連接相關常數
const (
	DefaultSSEMaxConnectionsPerIP   = 3
	DefaultSSEMaxTotalConnections   = 1000
	DefaultSSEMinConnectionInterval = 10 // 秒
	DefaultSSEHeartbeatInterval     = 15 // 秒
	SSEConnectionCleanupIntervalMin = 10 // 分鐘
)

// MongoDB 查詢相關常數
const (
	DefaultMongoQueryLimit = 20
	MaxMongoQueryLimit     = 100
	// 單一用戶參與的訊息總量上限（執行緒聚合一次撈取的保護值）
	DefaultUserMessagesLimit = 5000
)

// 用戶 / 房源 ID 相關常數
const (
	MaxUserIDLength    = 100
	MaxListingIDLength = 100
)

// 快取相關常數
const (
	DefaultThreadCacheTTLSeconds = 30
)
