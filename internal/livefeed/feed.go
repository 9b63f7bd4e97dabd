package livefeed

import "context"

// Event 新訊息插入通知.
// 只攜帶識別資訊，訂閱方拿到通知後自行向存儲層重新解析完整訊息，
// 避免通知通道成為訊息內容的第二個事實來源.
type Event struct {
	MessageID  string `json:"message_id"`
	ListingID  string `json:"listing_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// InvolvesUser 通知是否與指定用戶相關（發送方或接收方）.
func (e Event) InvolvesUser(userID string) bool {
	return e.SenderID == userID || e.ReceiverID == userID
}

// Subscription 單一房源的通知訂閱.
type Subscription interface {
	// Events 通知通道，訂閱關閉後通道會被關閉.
	Events() <-chan Event
	// Close 取消訂閱並釋放資源，可重複呼叫.
	Close() error
}

// Feed 即時通知通道.
// 通知是 best-effort 的：訂閱方必須容忍丟失與重複，
// 依靠訊息 ID 去重、依靠存儲層重新解析補齊.
type Feed interface {
	// Publish 發布新訊息插入通知.
	Publish(ctx context.Context, event Event) error
	// Subscribe 訂閱某個房源底下的插入通知.
	Subscribe(ctx context.Context, listingID string) (Subscription, error)
	// Close 關閉通道並清理所有訂閱.
	Close() error
}
