package message

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repository 訊息倉儲接口.
// 兩個 List 方法都按 (created_at, _id) 升序回傳；
// limit 大於零時保留最新的一段，截掉的只會是最舊的訊息.
type Repository interface {
	Insert(ctx context.Context, message *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForUser(ctx context.Context, userID string, limit int64) ([]*Message, error)
	ListConversation(ctx context.Context, listingID, userA, userB string, limit int64) ([]*Message, error)
	MarkConversationRead(ctx context.Context, listingID, senderID, receiverID string) (int64, error)
	CountUnreadForUser(ctx context.Context, userID string) (int64, error)
}

// Message 房源私訊數據模型.
// 訊息屬於某個房源（listing）底下兩個用戶之間的對話，
// read_at 為 nil 表示接收方尚未讀取.
type Message struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	ListingID  string     `bson:"listing_id" json:"listing_id"`
	SenderID   string     `bson:"sender_id" json:"sender_id"`
	ReceiverID string     `bson:"receiver_id" json:"receiver_id"`
	Content    string     `bson:"content" json:"content"`
	ReadAt     *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
}

// NewMessage 創建新訊息.
func NewMessage(listingID, senderID, receiverID, content string) *Message {
	return &Message{
		ID:         bson.NewObjectID().Hex(),
		ListingID:  listingID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

// IsRead 是否已被接收方讀取.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// PeerOf 對話中相對於 userID 的另一方.
// 自己傳給自己的退化訊息，對方就是自己.
func (m *Message) PeerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
