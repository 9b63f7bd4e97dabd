package chat

import (
	"context"

	"uninest-messaging/internal/platform/logger"
	"uninest-messaging/internal/storage/database/message"
)

// ReadTracker 已讀狀態追蹤.
// 已讀是對話層級的批量操作：打開對話即把對方發來的
// 未讀訊息一次全部標為已讀，沒有逐筆已讀回執.
type ReadTracker struct {
	messages message.Repository
	cache    ThreadCache
}

// NewReadTracker 創建已讀追蹤器.
func NewReadTracker(messages message.Repository, cache ThreadCache) *ReadTracker {
	return &ReadTracker{
		messages: messages,
		cache:    cache,
	}
}

// MarkRead 把某房源底下對方發給自己的未讀訊息全部標為已讀.
// 操作是冪等的：重複呼叫不會改動已經寫入的已讀時間戳，
// 回傳本次實際標記的筆數.
func (t *ReadTracker) MarkRead(ctx context.Context, viewerID, listingID, peerID string) (int64, error) {
	if err := validateConversationKey(viewerID, listingID, peerID); err != nil {
		return 0, err
	}

	// 只標對方發來的方向，自己發出的訊息已讀與否由對方決定
	count, err := t.messages.MarkConversationRead(ctx, listingID, peerID, viewerID)
	if err != nil {
		return 0, &DataAccessError{Op: "標記已讀", Err: err}
	}

	if count > 0 {
		// 未讀數變了，讓自己的執行緒快取失效
		if t.cache != nil {
			t.cache.Invalidate(ctx, viewerID)
		}

		logger.Info(ctx, "訊息已標記已讀",
			logger.WithUserID(viewerID),
			logger.WithListingID(listingID),
			logger.WithAction("mark_read"),
			logger.WithDetails(map[string]interface{}{"count": count}))
	}

	return count, nil
}

// UnreadTotal 用戶所有對話的未讀總數.
func (t *ReadTracker) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, NewValidationError("user_id", "不能為空")
	}

	count, err := t.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, &DataAccessError{Op: "查詢未讀總數", Err: err}
	}

	return count, nil
}
