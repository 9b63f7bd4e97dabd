package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/httputil"
	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/logger"
	"uninest-messaging/internal/platform/middleware"
	"uninest-messaging/internal/security/audit"

	"github.com/gin-gonic/gin"
)

// streamMessages 對話的即時訊息串流 (Server-Sent Events).
// GET /api/v1/messages/stream?listing_id=&peer_id=
// 開啟會話（先訂閱再載入歷史），把新到訊息以 SSE 事件推給客戶端，
// 定期送 heartbeat 維持連接.
func (h *handlers) streamMessages(c *gin.Context) {
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

	session, err := h.services.Sessions.Open(c.Request.Context(), userID, listingID, peerID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer session.Close() //nolint:errcheck

	setupSSEHeaders(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, httputil.ErrorMessage("串流不支援"))
		return
	}

	meta := middleware.GetRequestMetadata(c)
	audit.StreamOpened(c.Request.Context(), userID, listingID, peerID, meta.RequestID, meta.ClientIP)
	startedAt := time.Now()
	defer func() {
		audit.StreamClosed(c.Request.Context(), userID, listingID, peerID, meta.RequestID, time.Since(startedAt))
	}()

	// 先送連接確認與目前的對話快照
	writeSSEEvent(c, "connected", gin.H{
		"listing_id": listingID,
		"peer_id":    peerID,
	})
	writeSSEEvent(c, "history", session.Messages())
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval())
	defer heartbeat.Stop()

	for {
		select {
		case view, open := <-session.Events():
			if !open {
				return
			}
			writeSSEEvent(c, "message", view)
			flusher.Flush()

		case <-heartbeat.C:
			// SSE 註解行，不觸發客戶端事件
			fmt.Fprintf(c.Writer, ": heartbeat %d\n\n", time.Now().Unix())
			flusher.Flush()

		case <-c.Request.Context().Done():
			logger.Debug(c.Request.Context(), "SSE 連接已關閉",
				logger.WithUserID(userID),
				logger.WithListingID(listingID))
			return
		}
	}
}

// setupSSEHeaders 設置 SSE 響應頭.
func setupSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEEvent 寫出一個 SSE 事件.
func writeSSEEvent(c *gin.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
}

// heartbeatInterval 心跳間隔.
func heartbeatInterval() time.Duration {
	if cfg := config.Get(); cfg != nil && cfg.Limits.SSE.HeartbeatInterval > 0 {
		return time.Duration(cfg.Limits.SSE.HeartbeatInterval) * time.Second
	}
	return time.Duration(constants.DefaultSSEHeartbeatInterval) * time.Second
}
