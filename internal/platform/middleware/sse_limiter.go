package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SSEConnectionLimiter SSE 連接限制器
// 同一個用戶通常每個對話視窗開一條串流，限制以用戶為單位
type SSEConnectionLimiter struct {
	mu                sync.RWMutex
	connections       map[string]int       // 用戶/IP -> 連接數
	lastConnect       map[string]time.Time // 用戶/IP -> 最後連接時間
	maxPerClient      int                  // 每個用戶最大連接數
	minInterval       time.Duration        // 最小連接間隔
	cleanupInterval   time.Duration        // 清理間隔
	maxTotalConns     int                  // 全局最大連接數
	currentTotalConns int                  // 當前總連接數
}

// NewSSEConnectionLimiter 創建 SSE 連接限制器
func NewSSEConnectionLimiter(maxPerClient int, minInterval time.Duration, maxTotal int) *SSEConnectionLimiter {
	limiter := &SSEConnectionLimiter{
		connections:     make(map[string]int),
		lastConnect:     make(map[string]time.Time),
		maxPerClient:    maxPerClient,
		minInterval:     minInterval,
		cleanupInterval: 5 * time.Minute,
		maxTotalConns:   maxTotal,
	}

	// 啟動定期清理
	go limiter.cleanup()

	return limiter
}

// Middleware SSE 連接限制中間件
func (l *SSEConnectionLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limitKey(c)

		// 檢查是否允許連接
		if !l.allowConnection(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "串流連接數已達上限，請稍後再試",
				"success": false,
			})
			c.Abort()
			return
		}

		// 註冊連接
		l.registerConnection(key)

		// 在連接關閉時清理
		go func() {
			<-c.Request.Context().Done()
			l.removeConnection(key)
		}()

		c.Next()
	}
}

// allowConnection 檢查是否允許建立新連接
func (l *SSEConnectionLimiter) allowConnection(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 檢查全局連接數限制
	if l.currentTotalConns >= l.maxTotalConns {
		return false
	}

	// 檢查單個用戶連接數
	if count, exists := l.connections[key]; exists && count >= l.maxPerClient {
		return false
	}

	// 檢查連接頻率
	if lastTime, exists := l.lastConnect[key]; exists {
		if time.Since(lastTime) < l.minInterval {
			return false
		}
	}

	return true
}

// registerConnection 註冊新連接
func (l *SSEConnectionLimiter) registerConnection(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connections[key]++
	l.currentTotalConns++
	l.lastConnect[key] = time.Now()
}

// removeConnection 移除連接
func (l *SSEConnectionLimiter) removeConnection(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count, exists := l.connections[key]; exists {
		if count <= 1 {
			delete(l.connections, key)
		} else {
			l.connections[key]--
		}
		l.currentTotalConns--
	}
}

// cleanup 定期清理過期數據
func (l *SSEConnectionLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, lastTime := range l.lastConnect {
			// 清理 10 分鐘無活動的記錄
			if now.Sub(lastTime) > 10*time.Minute {
				delete(l.lastConnect, key)
				if count, exists := l.connections[key]; !exists || count == 0 {
					delete(l.connections, key)
				}
			}
		}
		l.mu.Unlock()
	}
}

// Stats 獲取統計信息
func (l *SSEConnectionLimiter) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": l.currentTotalConns,
		"unique_clients":    len(l.connections),
		"max_total":         l.maxTotalConns,
		"max_per_client":    l.maxPerClient,
	}
}
