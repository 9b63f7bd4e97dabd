package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"uninest-messaging/internal/chat"
	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/httputil"
	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/health"
	"uninest-messaging/internal/platform/middleware"
	"uninest-messaging/internal/security/audit"
	"uninest-messaging/internal/storage/database/profile"

	"github.com/gin-gonic/gin"
)

// Services 路由需要的領域服務.
type Services struct {
	Threads       *chat.ThreadAggregator
	Conversations *chat.ConversationService
	Reads         *chat.ReadTracker
	Sessions      *chat.SessionController
	Profiles      profile.Repository
}

// Router 建立 HTTP 路由.
func Router(services *Services) *gin.Engine {
	cfg := config.Get()

	if cfg != nil && !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(corsMiddleware())

	maxBodySize := int64(constants.DefaultMaxRequestBodySize)
	if cfg != nil && cfg.Limits.Request.MaxBodySize > 0 {
		maxBodySize = cfg.Limits.Request.MaxBodySize
	}
	router.Use(middleware.RequestSizeLimiter(maxBodySize))

	auth := middleware.NewAuthMiddlewareFromConfig()

	router.GET("/health", health.Handler())

	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	api.Use(middleware.RequestContextMiddleware())
	api.Use(rateLimiter(cfg).Middleware())

	h := &handlers{services: services}

	api.GET("/threads", h.listThreads)
	api.GET("/messages", h.getMessages)
	api.POST("/messages", h.sendMessage)
	api.POST("/messages/read", h.markRead)
	api.GET("/messages/unread_count", h.unreadCount)
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.updateProfile)

	sseLimiter := middleware.NewSSEConnectionLimiter(
		sseMaxPerClient(cfg),
		time.Duration(sseMinInterval(cfg))*time.Second,
		sseMaxTotal(cfg),
	)
	api.GET("/messages/stream", sseLimiter.Middleware(), h.streamMessages)

	return router
}

// corsMiddleware CORS 中間件，只放行白名單內的來源.
func corsMiddleware() gin.HandlerFunc {
	allowedOrigins := map[string]bool{
		"http://localhost:3000":  true,
		"http://localhost:8080":  true,
		"https://localhost:3000": true,
		"https://localhost:8080": true,
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Request-ID, X-User-ID, Cache-Control")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// rateLimiter 依配置建立端點級速率限制.
func rateLimiter(cfg *config.Config) *middleware.PerEndpointRateLimiter {
	defaultRate := constants.DefaultRateLimitPerMinute
	messagesRate := constants.DefaultMessageRateLimit
	threadsRate := constants.DefaultThreadListRateLimit
	sseRate := constants.DefaultSSERateLimit

	if cfg != nil && cfg.Limits.RateLimiting.Enabled {
		if cfg.Limits.RateLimiting.DefaultPerMinute > 0 {
			defaultRate = cfg.Limits.RateLimiting.DefaultPerMinute
		}
		if cfg.Limits.RateLimiting.MessagesPerMin > 0 {
			messagesRate = cfg.Limits.RateLimiting.MessagesPerMin
		}
		if cfg.Limits.RateLimiting.ThreadsPerMin > 0 {
			threadsRate = cfg.Limits.RateLimiting.ThreadsPerMin
		}
		if cfg.Limits.RateLimiting.SSEPerMin > 0 {
			sseRate = cfg.Limits.RateLimiting.SSEPerMin
		}
	}

	limiter := middleware.NewPerEndpointRateLimiter(defaultRate, time.Minute)
	limiter.SetLimit("/api/v1/messages", messagesRate, time.Minute)
	limiter.SetLimit("/api/v1/threads", threadsRate, time.Minute)
	limiter.SetLimit("/api/v1/messages/stream", sseRate, time.Minute)

	return limiter
}

func sseMaxPerClient(cfg *config.Config) int {
	if cfg != nil && cfg.Limits.SSE.MaxConnectionsPerIP > 0 {
		return cfg.Limits.SSE.MaxConnectionsPerIP
	}
	return constants.DefaultSSEMaxConnectionsPerIP
}

func sseMaxTotal(cfg *config.Config) int {
	if cfg != nil && cfg.Limits.SSE.MaxTotalConnections > 0 {
		return cfg.Limits.SSE.MaxTotalConnections
	}
	return constants.DefaultSSEMaxTotalConnections
}

func sseMinInterval(cfg *config.Config) int {
	if cfg != nil && cfg.Limits.SSE.MinConnectionInterval > 0 {
		return cfg.Limits.SSE.MinConnectionInterval
	}
	return constants.DefaultSSEMinConnectionInterval
}

// handlers HTTP 處理器.
type handlers struct {
	services *Services
}

// listThreads 取得執行緒列表.
// GET /api/v1/threads
func (h *handlers) listThreads(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	threads, err := h.services.Threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		// 讀取失敗時降級成帶錯誤旗標的空列表，前端照常渲染
		var dataErr *chat.DataAccessError
		if errors.As(err, &dataErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"code":       httputil.ErrorCodeDataAccessFailed,
				"error":      "資料讀取失敗，請稍後再試",
				"data":       []*chat.Thread{},
				"request_id": middleware.GetRequestID(c),
			})
			return
		}
		h.renderError(c, err)
		return
	}

	meta := middleware.GetRequestMetadata(c)
	audit.Log(c.Request.Context(), audit.Event{
		Type:      audit.EventThreadListViewed,
		UserID:    userID,
		RequestID: meta.RequestID,
		ClientIP:  meta.ClientIP,
	})

	c.JSON(http.StatusOK, httputil.NewSuccessResponseWithCount(httputil.DataRetrieved, threads, len(threads)))
}

// getMessages 取得對話訊息.
// GET /api/v1/messages?listing_id=&peer_id=
func (h *handlers) getMessages(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	listingID := c.Query("listing_id")
	peerID := c.Query("peer_id")
	if err := middleware.ValidateListingID(listingID); err != nil {
		httputil.ValidationFailed(c, "listing_id", err.Error())
		return
	}
	if err := middleware.ValidateUserID(peerID); err != nil {
		httputil.ValidationFailed(c, "peer_id", err.Error())
		return
	}

	messages, err := h.services.Conversations.GetMessages(c.Request.Context(), userID, listingID, peerID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponseWithCount(httputil.DataRetrieved, messages, len(messages)))
}

// sendMessageRequest 發送訊息的請求體.
type sendMessageRequest struct {
	ListingID  string `json:"listing_id" binding:"required"`
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
	ID         string `json:"id"`
}

// sendMessage 發送訊息.
// POST /api/v1/messages
func (h *handlers) sendMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "請求格式錯誤")
		return
	}

	if err := middleware.ValidateListingID(req.ListingID); err != nil {
		httputil.ValidationFailed(c, "listing_id", err.Error())
		return
	}
	if err := middleware.ValidateUserID(req.ReceiverID); err != nil {
		httputil.ValidationFailed(c, "receiver_id", err.Error())
		return
	}

	content := middleware.SanitizeInput(req.Content)
	if err := middleware.ValidateMessageContent(content); err != nil {
		httputil.ValidationFailed(c, "content", err.Error())
		return
	}

	view, err := h.services.Conversations.SendMessage(c.Request.Context(), userID, req.ListingID, req.ReceiverID, content, req.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	meta := middleware.GetRequestMetadata(c)
	audit.MessageSent(c.Request.Context(), userID, req.ListingID, req.ReceiverID, view.ID, meta.RequestID, meta.ClientIP)

	c.JSON(http.StatusCreated, httputil.NewSuccessResponse(httputil.DataCreated, view))
}

// markReadRequest 標記已讀的請求體.
type markReadRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	PeerID    string `json:"peer_id" binding:"required"`
}

// markRead 標記對話已讀.
// POST /api/v1/messages/read
func (h *handlers) markRead(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "請求格式錯誤")
		return
	}

	count, err := h.services.Reads.MarkRead(c.Request.Context(), userID, req.ListingID, req.PeerID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	meta := middleware.GetRequestMetadata(c)
	audit.MessagesRead(c.Request.Context(), userID, req.ListingID, req.PeerID, meta.RequestID, count)

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataUpdated, gin.H{"marked": count}))
}

// unreadCount 未讀總數.
// GET /api/v1/messages/unread_count
func (h *handlers) unreadCount(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	count, err := h.services.Reads.UnreadTotal(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataRetrieved, gin.H{"unread_count": count}))
}

// getProfile 取得當前用戶的公開資料.
// GET /api/v1/profile
func (h *handlers) getProfile(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	p, err := h.services.Profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		httputil.InternalServerError(c, err)
		return
	}
	if p == nil {
		httputil.NotFoundError(c, "用戶資料尚未建立")
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataRetrieved, p))
}

// updateProfileRequest 更新用戶資料的請求體.
type updateProfileRequest struct {
	Name     string `json:"name" binding:"required"`
	PhotoURL string `json:"photo_url"`
}

// updateProfile 建立或更新當前用戶的公開資料.
// PUT /api/v1/profile
func (h *handlers) updateProfile(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		httputil.Unauthorized(c, "")
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "請求格式錯誤")
		return
	}

	name := strings.TrimSpace(middleware.SanitizeInput(req.Name))
	if name == "" {
		httputil.ValidationFailed(c, "name", "不能為空")
		return
	}

	p := &profile.Profile{
		ID:       userID,
		Name:     name,
		PhotoURL: req.PhotoURL,
	}
	if err := h.services.Profiles.Upsert(c.Request.Context(), p); err != nil {
		httputil.InternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse(httputil.DataUpdated, p))
}

// renderError 把領域錯誤轉成 HTTP 響應.
func (h *handlers) renderError(c *gin.Context, err error) {
	var validationErr *chat.ValidationError
	var sendErr *chat.SendFailedError
	var dataErr *chat.DataAccessError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, httputil.ErrorWithCode(httputil.ErrorCodeValidationFailed, validationErr.Error()))
	case errors.As(err, &sendErr):
		// 把原始內容還給呼叫方，讓前端還原草稿
		c.JSON(http.StatusBadGateway, gin.H{
			"success":    false,
			"code":       httputil.ErrorCodeSendFailed,
			"error":      "訊息發送失敗，請重試",
			"content":    sendErr.Content,
			"request_id": middleware.GetRequestID(c),
		})
	case errors.As(err, &dataErr):
		c.JSON(http.StatusInternalServerError, httputil.ErrorWithCode(httputil.ErrorCodeDataAccessFailed, "資料讀取失敗，請稍後再試"))
	default:
		httputil.InternalServerError(c, err)
	}
}
