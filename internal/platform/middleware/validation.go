package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"uninest-messaging/internal/constants"

	"github.com/gin-gonic/gin"
)

// 識別碼只允許安全字元（UUID、ObjectID 或一般帳號格式）
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-:.]+$`)

// ValidateUserID 驗證用戶 ID
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("用戶 ID 不能為空")
	}
	if len(userID) > constants.MaxUserIDLength {
		return fmt.Errorf("用戶 ID 長度不能超過 %d", constants.MaxUserIDLength)
	}
	if !idPattern.MatchString(userID) {
		return fmt.Errorf("用戶 ID 包含非法字元")
	}
	return nil
}

// ValidateListingID 驗證房源 ID
func ValidateListingID(listingID string) error {
	if listingID == "" {
		return fmt.Errorf("房源 ID 不能為空")
	}
	if len(listingID) > constants.MaxListingIDLength {
		return fmt.Errorf("房源 ID 長度不能超過 %d", constants.MaxListingIDLength)
	}
	if !idPattern.MatchString(listingID) {
		return fmt.Errorf("房源 ID 包含非法字元")
	}
	return nil
}

// ValidateMessageContent 驗證訊息內容
// 內容先經過 trim，空白訊息視為非法
func ValidateMessageContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("訊息內容不能為空")
	}
	if utf8.RuneCountInString(trimmed) > constants.DefaultMaxMessageLength {
		return fmt.Errorf("訊息內容長度不能超過 %d", constants.DefaultMaxMessageLength)
	}
	return nil
}

// SanitizeInput 清理輸入中的控制字元
// 保留換行與 tab，其餘控制字元一律移除
func SanitizeInput(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))

	for _, r := range input {
		if r == '\n' || r == '\t' || r == '\r' {
			builder.WriteRune(r)
			continue
		}
		if r < 32 || r == 127 {
			continue
		}
		builder.WriteRune(r)
	}

	return builder.String()
}

// RequestSizeLimiter 限制請求體大小的中間件
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "請求體過大",
				"success": false,
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
