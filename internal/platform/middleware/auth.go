package middleware

import (
	"fmt"
	"strings"

	"uninest-messaging/internal/platform/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserIDKey context 中存放已認證用戶 ID 的 key
	UserIDKey = "user_id"
	// UserNameKey context 中存放用戶顯示名稱的 key
	UserNameKey = "user_name"
)

// IdentityClaims JWT 內的身份聲明
type IdentityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware 認證中間件
// 驗證 Bearer token 並把用戶身份放進 context
type AuthMiddleware struct {
	enabled bool
	secret  []byte
}

// NewAuthMiddleware 創建新的認證中間件
func NewAuthMiddleware(enabled bool, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		enabled: enabled,
		secret:  []byte(secret),
	}
}

// RequireAuth 要求認證的中間件（強制）
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			// 認證關閉時（本地開發）允許用 header 直接帶身份
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				c.Set(UserIDKey, userID)
			}
			c.Next()
			return
		}

		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.JSON(401, gin.H{"error": "未授權訪問", "success": false})
			c.Abort()
			return
		}

		claims, err := m.parseToken(tokenString)
		if err != nil {
			c.JSON(401, gin.H{"error": "無效的 token", "success": false})
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.Subject)
		if claims.Name != "" {
			c.Set(UserNameKey, claims.Name)
		}

		c.Next()
	}
}

// parseToken 解析並驗證 JWT
func (m *AuthMiddleware) parseToken(tokenString string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	return claims, nil
}

// extractBearerToken 從 Authorization header 取出 token
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// NewAuthMiddlewareFromConfig 從配置創建認證中間件
func NewAuthMiddlewareFromConfig() *AuthMiddleware {
	cfg := config.Get()
	if cfg == nil {
		return NewAuthMiddleware(false, "")
	}
	auth := cfg.Security.Authentication
	return NewAuthMiddleware(auth.JWTEnabled, auth.JWTSecret)
}
