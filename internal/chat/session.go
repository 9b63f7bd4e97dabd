package chat

import (
	"context"
	"sync"
	"time"

	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/livefeed"
	"uninest-messaging/internal/platform/logger"

	"github.com/google/uuid"
)

// SessionController 對話會話控制器.
// 會話代表「用戶打開某個房源對話視窗」這段期間：
// 先訂閱即時通知再載入歷史（保證不漏訊息），
// 視窗開著時對方發來的訊息自動標為已讀.
type SessionController struct {
	conversations *ConversationService
	reads         *ReadTracker
	feed          livefeed.Feed
}

// NewSessionController 創建會話控制器.
func NewSessionController(conversations *ConversationService, reads *ReadTracker, feed livefeed.Feed) *SessionController {
	return &SessionController{
		conversations: conversations,
		reads:         reads,
		feed:          feed,
	}
}

// Open 開啟對話會話.
// 順序是固定的：先訂閱、再載入歷史、再合併，
// 這樣訂閱建立前後寫入的訊息最多重複、不會遺漏，
// 重複靠訊息 ID 去重解決.
func (c *SessionController) Open(ctx context.Context, viewerID, listingID, peerID string) (*Session, error) {
	if err := validateConversationKey(viewerID, listingID, peerID); err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	sub, err := c.feed.Subscribe(sessionCtx, listingID)
	if err != nil {
		cancel()
		return nil, &DataAccessError{Op: "訂閱即時通知", Err: err}
	}

	history, err := c.conversations.GetMessages(sessionCtx, viewerID, listingID, peerID)
	if err != nil {
		sub.Close() //nolint:errcheck
		cancel()
		return nil, err
	}

	session := &Session{
		controller: c,
		viewerID:   viewerID,
		listingID:  listingID,
		peerID:     peerID,
		seen:       make(map[string]struct{}, len(history)),
		events:     make(chan *MessageView, constants.MessageChannelBuffer),
		sub:        sub,
		cancel:     cancel,
		ctx:        sessionCtx,
	}

	hasUnread := false
	for _, view := range history {
		session.messages = append(session.messages, view)
		session.seen[view.ID] = struct{}{}
		if view.SenderID == peerID && view.SenderID != viewerID && view.ReadAt == nil {
			hasUnread = true
		}
	}

	// 打開對話即視為已讀
	if hasUnread {
		if _, err := c.reads.MarkRead(sessionCtx, viewerID, listingID, peerID); err != nil {
			logger.Warning(sessionCtx, "開啟會話時標記已讀失敗",
				logger.WithUserID(viewerID),
				logger.WithListingID(listingID),
				logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		}
	}

	go session.pump()

	return session, nil
}

// Session 進行中的對話會話.
type Session struct {
	controller *SessionController
	viewerID   string
	listingID  string
	peerID     string

	mu       sync.Mutex
	messages []*MessageView
	seen     map[string]struct{}
	closed   bool

	events chan *MessageView
	sub    livefeed.Subscription
	cancel context.CancelFunc
	ctx    context.Context
}

// Messages 目前的對話快照（含樂觀更新中的訊息），按時間升序.
func (s *Session) Messages() []*MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*MessageView, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// Events 會話期間新到訊息的通道，會話關閉後通道會被關閉.
func (s *Session) Events() <-chan *MessageView {
	return s.events
}

// Send 發送訊息（樂觀更新）.
// 先以預生成的 ID 把訊息放進本地快照，寫入失敗再拿掉，
// 失敗時錯誤會攜帶原始內容讓呼叫方還原草稿.
func (s *Session) Send(ctx context.Context, content string) (*MessageView, error) {
	id := uuid.New().String()

	pending := &MessageView{
		ID:         id,
		ListingID:  s.listingID,
		SenderID:   s.viewerID,
		ReceiverID: s.peerID,
		Content:    content,
		CreatedAt:  time.Now(),
		Pending:    true,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &SendFailedError{Content: content, Err: context.Canceled}
	}
	s.messages = append(s.messages, pending)
	s.seen[id] = struct{}{}
	s.mu.Unlock()

	view, err := s.controller.conversations.SendMessage(ctx, s.viewerID, s.listingID, s.peerID, content, id)
	if err != nil {
		// 回滾樂觀更新
		s.mu.Lock()
		s.removeLocked(id)
		delete(s.seen, id)
		s.mu.Unlock()
		return nil, err
	}

	// 用確認後的訊息替換本地版本
	s.mu.Lock()
	s.replaceLocked(id, view)
	s.mu.Unlock()

	return view, nil
}

// Close 關閉會話並釋放資源，可重複呼叫.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.sub.Close()
}

// pump 消費即時通知：過濾、去重、重新解析、投遞.
func (s *Session) pump() {
	defer close(s.events)

	for event := range s.sub.Events() {
		if !s.matches(event) {
			continue
		}

		s.mu.Lock()
		if _, dup := s.seen[event.MessageID]; dup {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		// 通知只帶 ID，完整訊息向存儲層重新解析
		view, err := s.controller.conversations.GetMessage(s.ctx, event.MessageID)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logger.Warning(s.ctx, "重新解析即時訊息失敗",
				logger.WithMessageID(event.MessageID),
				logger.WithListingID(s.listingID),
				logger.WithDetails(map[string]interface{}{"error": err.Error()}))
			continue
		}

		s.mu.Lock()
		if _, dup := s.seen[view.ID]; dup || s.closed {
			s.mu.Unlock()
			continue
		}
		s.seen[view.ID] = struct{}{}
		s.messages = append(s.messages, view)
		s.mu.Unlock()

		// 視窗開著時收到對方訊息，立即標為已讀
		if view.SenderID == s.peerID && view.SenderID != s.viewerID {
			if _, err := s.controller.reads.MarkRead(s.ctx, s.viewerID, s.listingID, s.peerID); err != nil && s.ctx.Err() == nil {
				logger.Warning(s.ctx, "會話中標記已讀失敗",
					logger.WithUserID(s.viewerID),
					logger.WithListingID(s.listingID),
					logger.WithDetails(map[string]interface{}{"error": err.Error()}))
			}
		}

		select {
		case s.events <- view:
		case <-s.ctx.Done():
			return
		}
	}
}

// matches 通知是否屬於這個會話的對話.
func (s *Session) matches(event livefeed.Event) bool {
	if event.ListingID != s.listingID {
		return false
	}
	sameDirection := event.SenderID == s.viewerID && event.ReceiverID == s.peerID
	reverseDirection := event.SenderID == s.peerID && event.ReceiverID == s.viewerID
	return sameDirection || reverseDirection
}

// removeLocked 從快照移除指定 ID 的訊息，呼叫方必須持有鎖.
func (s *Session) removeLocked(id string) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// replaceLocked 用確認後的訊息替換本地版本，呼叫方必須持有鎖.
func (s *Session) replaceLocked(id string, view *MessageView) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages[i] = view
			return
		}
	}
	// 樂觀版本已被移除（極端競態），直接補回
	s.messages = append(s.messages, view)
}
