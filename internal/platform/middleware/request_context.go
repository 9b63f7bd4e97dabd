package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetadata 請求的上下文資訊
type RequestMetadata struct {
	RequestID string
	UserID    string
	UserName  string
	ClientIP  string
	UserAgent string
	StartTime time.Time
}

const requestMetadataKey = "request_metadata"

// RequestContextMiddleware 收集請求上下文資訊
// 必須掛在 RequestIDMiddleware 與認證中間件之後
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := &RequestMetadata{
			RequestID: GetRequestID(c),
			UserID:    c.GetString(UserIDKey),
			UserName:  c.GetString(UserNameKey),
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			StartTime: time.Now(),
		}

		c.Set(requestMetadataKey, meta)
		c.Next()
	}
}

// GetRequestMetadata 從 context 取得請求資訊
func GetRequestMetadata(c *gin.Context) *RequestMetadata {
	if v, exists := c.Get(requestMetadataKey); exists {
		if meta, ok := v.(*RequestMetadata); ok {
			return meta
		}
	}
	return &RequestMetadata{
		RequestID: GetRequestID(c),
		ClientIP:  c.ClientIP(),
		StartTime: time.Now(),
	}
}

// CurrentUserID 取得已認證用戶 ID，未認證時回傳空字串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
