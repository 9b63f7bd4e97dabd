package chat

import (
	"time"

	"uninest-messaging/internal/storage/database/message"
	"uninest-messaging/internal/storage/database/profile"
)

// UserSnapshot 對話中顯示的用戶公開資料快照.
type UserSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// MessageView 對外呈現的訊息.
// Pending 表示樂觀更新中、尚未被存儲層確認的本地訊息.
type MessageView struct {
	ID         string        `json:"id"`
	ListingID  string        `json:"listing_id"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Content    string        `json:"content"`
	ReadAt     *time.Time    `json:"read_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Sender     *UserSnapshot `json:"sender,omitempty"`
	Pending    bool          `json:"pending,omitempty"`
}

// Thread 執行緒：某個房源底下與某個用戶的對話摘要.
type Thread struct {
	ListingID   string       `json:"listing_id"`
	Peer        UserSnapshot `json:"peer"`
	LastMessage *MessageView `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}

// Key 執行緒的唯一識別：房源 + 對方用戶.
func (t *Thread) Key() string {
	return threadKey(t.ListingID, t.Peer.ID)
}

// threadKey 組合執行緒 key.
func threadKey(listingID, peerID string) string {
	return listingID + "|" + peerID
}

// newMessageView 從存儲模型組裝呈現模型.
func newMessageView(m *message.Message, sender *profile.Profile) *MessageView {
	view := &MessageView{
		ID:         m.ID,
		ListingID:  m.ListingID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}

	if sender != nil {
		view.Sender = &UserSnapshot{
			ID:       sender.ID,
			Name:     sender.Name,
			PhotoURL: sender.PhotoURL,
		}
	}

	return view
}

// snapshotOf 從資料快照組裝用戶摘要，找不到資料時只帶 ID.
func snapshotOf(userID string, profiles map[string]*profile.Profile) UserSnapshot {
	if p, ok := profiles[userID]; ok && p != nil {
		return UserSnapshot{ID: p.ID, Name: p.Name, PhotoURL: p.PhotoURL}
	}
	return UserSnapshot{ID: userID}
}
