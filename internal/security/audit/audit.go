package audit

import (
	"context"
	"encoding/json"
	"time"

	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/logger"
)

// EventType 審計事件類型.
type EventType string

const (
	// EventMessageSent 訊息發送
	EventMessageSent EventType = "message_sent"
	// EventMessagesRead 訊息標記已讀
	EventMessagesRead EventType = "messages_read"
	// EventThreadListViewed 執行緒列表查看
	EventThreadListViewed EventType = "thread_list_viewed"
	// EventConversationViewed 對話查看
	EventConversationViewed EventType = "conversation_viewed"
	// EventStreamOpened 即時串流開啟
	EventStreamOpened EventType = "stream_opened"
	// EventStreamClosed 即時串流關閉
	EventStreamClosed EventType = "stream_closed"
	// EventAuthFailed 認證失敗
	EventAuthFailed EventType = "auth_failed"
	// EventRateLimited 請求被限流
	EventRateLimited EventType = "rate_limited"
)

// Event 審計事件.
type Event struct {
	Type      EventType              `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	ListingID string                 `json:"listing_id,omitempty"`
	PeerID    string                 `json:"peer_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	ClientIP  string                 `json:"client_ip,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Log 記錄審計事件.
// 審計未啟用時為 no-op，事件以 JSON 寫入一般日誌流.
func Log(ctx context.Context, event Event) {
	cfg := config.Get()
	if cfg == nil || !cfg.Security.Audit.Enabled {
		return
	}

	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		logger.Warning(ctx, "審計事件序列化失敗",
			logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		return
	}

	logger.Info(ctx, "AUDIT "+string(data),
		logger.WithUserID(event.UserID),
		logger.WithListingID(event.ListingID),
		logger.WithAction(string(event.Type)))
}

// MessageSent 記錄訊息發送事件.
func MessageSent(ctx context.Context, userID, listingID, peerID, messageID, requestID, clientIP string) {
	Log(ctx, Event{
		Type:      EventMessageSent,
		UserID:    userID,
		ListingID: listingID,
		PeerID:    peerID,
		RequestID: requestID,
		ClientIP:  clientIP,
		Details:   map[string]interface{}{"message_id": messageID},
	})
}

// MessagesRead 記錄標記已讀事件.
func MessagesRead(ctx context.Context, userID, listingID, peerID, requestID string, count int64) {
	Log(ctx, Event{
		Type:      EventMessagesRead,
		UserID:    userID,
		ListingID: listingID,
		PeerID:    peerID,
		RequestID: requestID,
		Details:   map[string]interface{}{"count": count},
	})
}

// StreamOpened 記錄串流開啟事件.
func StreamOpened(ctx context.Context, userID, listingID, peerID, requestID, clientIP string) {
	Log(ctx, Event{
		Type:      EventStreamOpened,
		UserID:    userID,
		ListingID: listingID,
		PeerID:    peerID,
		RequestID: requestID,
		ClientIP:  clientIP,
	})
}

// StreamClosed 記錄串流關閉事件.
func StreamClosed(ctx context.Context, userID, listingID, peerID, requestID string, duration time.Duration) {
	Log(ctx, Event{
		Type:      EventStreamClosed,
		UserID:    userID,
		ListingID: listingID,
		PeerID:    peerID,
		RequestID: requestID,
		Details:   map[string]interface{}{"duration_seconds": duration.Seconds()},
	})
}
