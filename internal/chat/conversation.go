package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/livefeed"
	"uninest-messaging/internal/platform/logger"
	"uninest-messaging/internal/storage/database/message"
	"uninest-messaging/internal/storage/database/profile"
)

// ConversationService 對話的讀取與寫入.
type ConversationService struct {
	messages message.Repository
	profiles profile.Repository
	feed     livefeed.Feed
	cache    ThreadCache
	limit    int64
}

// NewConversationService 創建對話服務.
// feed 與 cache 都可以為 nil（分別代表不發即時通知、不啟用快取）.
func NewConversationService(messages message.Repository, profiles profile.Repository, feed livefeed.Feed, cache ThreadCache, limit int64) *ConversationService {
	return &ConversationService{
		messages: messages,
		profiles: profiles,
		feed:     feed,
		cache:    cache,
		limit:    limit,
	}
}

// GetMessages 取得某房源底下自己與對方的完整對話，按時間升序.
// 兩個方向的訊息都包含，時間相同時以 ID 升序穩定排序
// （存儲層已按 created_at, _id 排序）.
func (s *ConversationService) GetMessages(ctx context.Context, viewerID, listingID, peerID string) ([]*MessageView, error) {
	if err := validateConversationKey(viewerID, listingID, peerID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListConversation(ctx, listingID, viewerID, peerID, s.limit)
	if err != nil {
		return nil, &DataAccessError{Op: "查詢對話", Err: err}
	}

	return s.toViews(ctx, msgs), nil
}

// GetMessage 根據 ID 取得單一訊息（即時通知的重新解析）.
func (s *ConversationService) GetMessage(ctx context.Context, id string) (*MessageView, error) {
	if id == "" {
		return nil, NewValidationError("message_id", "不能為空")
	}

	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, &DataAccessError{Op: "查詢訊息", Err: err}
	}

	views := s.toViews(ctx, []*message.Message{m})
	return views[0], nil
}

// SendMessage 發送訊息.
// 內容先 trim，空白訊息直接拒絕；寫入成功後才發即時通知，
// 通知失敗不影響發送結果（訂閱方靠重新解析補齊）.
// id 可以由呼叫方預先指定（樂觀更新），留空則自動生成.
func (s *ConversationService) SendMessage(ctx context.Context, senderID, listingID, receiverID, content, id string) (*MessageView, error) {
	if err := validateConversationKey(senderID, listingID, receiverID); err != nil {
		return nil, err
	}
	// 自己傳給自己不允許寫入；既有的退化資料只在讀取端容忍
	if senderID == receiverID {
		return nil, NewValidationError("receiver_id", "不能傳訊息給自己")
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, NewValidationError("content", "不能為空")
	}
	if utf8.RuneCountInString(trimmed) > constants.DefaultMaxMessageLength {
		return nil, NewValidationError("content", "長度超過上限")
	}

	m := message.NewMessage(listingID, senderID, receiverID, trimmed)
	if id != "" {
		m.ID = id
	}

	if err := s.messages.Insert(ctx, m); err != nil {
		// 攜帶原始內容讓呼叫方還原草稿
		return nil, &SendFailedError{Content: content, Err: err}
	}

	// 寫入成功後使相關用戶的執行緒快取失效
	if s.cache != nil {
		s.cache.Invalidate(ctx, senderID, receiverID)
	}

	if s.feed != nil {
		event := livefeed.Event{
			MessageID:  m.ID,
			ListingID:  m.ListingID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
		}
		if err := s.feed.Publish(ctx, event); err != nil {
			logger.Warning(ctx, "發布即時通知失敗",
				logger.WithListingID(listingID),
				logger.WithMessageID(m.ID),
				logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		}
	}

	logger.Info(ctx, "訊息已發送",
		logger.WithUserID(senderID),
		logger.WithListingID(listingID),
		logger.WithMessageID(m.ID),
		logger.WithAction("send_message"))

	return s.toViews(ctx, []*message.Message{m})[0], nil
}

// toViews 組裝呈現模型並補上發送者資料快照.
func (s *ConversationService) toViews(ctx context.Context, msgs []*message.Message) []*MessageView {
	senderIDs := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := s.profiles.GetByIDs(ctx, senderIDs)
	if err != nil {
		logger.Warning(ctx, "解析發送者資料快照失敗",
			logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		profiles = map[string]*profile.Profile{}
	}

	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, newMessageView(m, profiles[m.SenderID]))
	}

	return views
}

// validateConversationKey 驗證對話三元組.
// 自己跟自己的退化對話是允許的（資料層不阻止），
// 但三個識別碼都必須存在.
func validateConversationKey(viewerID, listingID, peerID string) error {
	if viewerID == "" {
		return NewValidationError("user_id", "不能為空")
	}
	if listingID == "" {
		return NewValidationError("listing_id", "不能為空")
	}
	if len(listingID) > constants.MaxListingIDLength {
		return NewValidationError("listing_id", "長度超過上限")
	}
	if peerID == "" {
		return NewValidationError("peer_id", "不能為空")
	}
	return nil
}
