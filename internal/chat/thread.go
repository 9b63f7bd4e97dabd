package chat

import (
	"context"
	"sort"

	"uninest-messaging/internal/platform/logger"
	"uninest-messaging/internal/storage/database/message"
	"uninest-messaging/internal/storage/database/profile"
)

// ThreadAggregator 把用戶參與的所有訊息彙整成執行緒列表.
// 執行緒不是存儲層的實體，每次都從訊息即時推導，
// 所以不需要隨訊息寫入維護任何彙總狀態.
type ThreadAggregator struct {
	messages     message.Repository
	profiles     profile.Repository
	cache        ThreadCache
	messageLimit int64
}

// NewThreadAggregator 創建執行緒彙整器.
// cache 可以為 nil（不啟用快取）.
// messageLimit 大於零時只彙整最新的一段訊息，
// 超出視窗的只會是最久沒動靜的執行緒.
func NewThreadAggregator(messages message.Repository, profiles profile.Repository, cache ThreadCache, messageLimit int64) *ThreadAggregator {
	return &ThreadAggregator{
		messages:     messages,
		profiles:     profiles,
		cache:        cache,
		messageLimit: messageLimit,
	}
}

// ListThreads 取得用戶的執行緒列表，按最後訊息時間降序.
// 用單一查詢撈回用戶參與的所有訊息，在記憶體中按
// (房源, 對方) 分組：每組取最後一筆訊息當摘要，
// 未讀數只算對方發來且還沒讀的.
func (a *ThreadAggregator) ListThreads(ctx context.Context, userID string) ([]*Thread, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "不能為空")
	}

	if a.cache != nil {
		if threads, ok := a.cache.Get(ctx, userID); ok {
			return threads, nil
		}
	}

	msgs, err := a.messages.ListForUser(ctx, userID, a.messageLimit)
	if err != nil {
		return nil, &DataAccessError{Op: "查詢用戶訊息", Err: err}
	}

	threads, err := a.aggregate(ctx, userID, msgs)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(ctx, userID, threads)
	}

	return threads, nil
}

// aggregate 把升序的訊息流彙整成執行緒.
func (a *ThreadAggregator) aggregate(ctx context.Context, userID string, msgs []*message.Message) ([]*Thread, error) {
	grouped := make(map[string]*threadAccumulator)
	var order []string

	for _, m := range msgs {
		// 自己傳給自己的退化對話也成立一條執行緒
		peerID := m.PeerOf(userID)
		key := threadKey(m.ListingID, peerID)

		acc, exists := grouped[key]
		if !exists {
			acc = &threadAccumulator{listingID: m.ListingID, peerID: peerID}
			grouped[key] = acc
			order = append(order, key)
		}

		// 訊息按時間升序，最後一筆就是最新的
		acc.last = m

		// 未讀：對方發來且 read_at 還是空的
		if m.SenderID != userID && !m.IsRead() {
			acc.unread++
		}
	}

	// 批量解析對方的資料快照
	peerIDs := make([]string, 0, len(order))
	for _, key := range order {
		peerIDs = append(peerIDs, grouped[key].peerID)
	}

	profiles, err := a.profiles.GetByIDs(ctx, peerIDs)
	if err != nil {
		// 資料快照缺失不阻斷執行緒列表，降級為只帶 ID
		logger.Warning(ctx, "解析用戶資料快照失敗",
			logger.WithUserID(userID),
			logger.WithDetails(map[string]interface{}{"error": err.Error()}))
		profiles = map[string]*profile.Profile{}
	}

	threads := make([]*Thread, 0, len(order))
	for _, key := range order {
		acc := grouped[key]
		threads = append(threads, &Thread{
			ListingID:   acc.listingID,
			Peer:        snapshotOf(acc.peerID, profiles),
			LastMessage: newMessageView(acc.last, profiles[acc.last.SenderID]),
			UnreadCount: acc.unread,
		})
	}

	// 最後訊息最新的排最前面
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastMessage.CreatedAt.After(threads[j].LastMessage.CreatedAt)
	})

	return threads, nil
}

// threadAccumulator 分組過程中的累加狀態.
type threadAccumulator struct {
	listingID string
	peerID    string
	last      *message.Message
	unread    int
}
