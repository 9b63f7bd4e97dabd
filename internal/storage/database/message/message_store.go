package message

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessageStore 訊息存儲實作.
type MessageStore struct {
	collection *mongo.Collection
}

// NewMessageStore 創建新的訊息存儲.
func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{
		collection: db.Collection("messages"),
	}
}

// Insert 寫入訊息.
// 呼叫方可以預先指定 ID（樂觀更新時由閘道生成），
// 沒指定時自動生成 ObjectID.
func (s *MessageStore) Insert(ctx context.Context, message *Message) error {
	if message.ID == "" {
		message.ID = bson.NewObjectID().Hex()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := s.collection.InsertOne(ctx, message)
	return err
}

// GetByID 根據 ID 獲取訊息.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*Message, error) {
	var message Message
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListForUser 取得用戶參與的所有訊息（發送或接收），按時間升序.
// 單一查詢撈回，由上層彙整成執行緒列表.
// limit 大於零時只保留最新的一段，被截掉的一定是最舊的訊息.
func (s *MessageStore) ListForUser(ctx context.Context, userID string, limit int64) ([]*Message, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userID},
			{"receiver_id": userID},
		},
	}

	return s.findRecentAscending(ctx, filter, limit)
}

// ListConversation 取得某房源底下兩個用戶之間的完整對話，按時間升序.
// 兩個方向的訊息都包含在內.
// limit 大於零時只保留最新的一段，被截掉的一定是最舊的訊息.
func (s *MessageStore) ListConversation(ctx context.Context, listingID, userA, userB string, limit int64) ([]*Message, error) {
	filter := bson.M{
		"listing_id": listingID,
		"$or": []bson.M{
			{"sender_id": userA, "receiver_id": userB},
			{"sender_id": userB, "receiver_id": userA},
		},
	}

	return s.findRecentAscending(ctx, filter, limit)
}

// findRecentAscending 查詢後按時間升序回傳.
// 有上限時先用降序搭配 limit 取到最新的一段，再於記憶體內反轉；
// 升序搭配 limit 會截掉最新的訊息，那是錯的一端.
func (s *MessageStore) findRecentAscending(ctx context.Context, filter bson.M, limit int64) ([]*Message, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(limit)
	} else {
		opts.SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	}

	messages, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

// MarkConversationRead 把某房源底下對方發給自己的未讀訊息全部標為已讀.
// 只更新 read_at 為 nil 的訊息，重複呼叫不會改動已讀時間戳，
// 回傳本次實際更新的筆數.
func (s *MessageStore) MarkConversationRead(ctx context.Context, listingID, senderID, receiverID string) (int64, error) {
	filter := bson.M{
		"listing_id":  listingID,
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"read_at":     nil,
	}

	update := bson.M{
		"$set": bson.M{"read_at": time.Now()},
	}

	result, err := s.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

// CountUnreadForUser 計算用戶所有對話的未讀總數.
func (s *MessageStore) CountUnreadForUser(ctx context.Context, userID string) (int64, error) {
	filter := bson.M{
		"receiver_id": userID,
		"read_at":     nil,
	}

	return s.collection.CountDocuments(ctx, filter)
}

// find 執行查詢並解碼結果.
func (s *MessageStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Message, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	for cursor.Next(ctx) {
		var message Message
		if err := cursor.Decode(&message); err != nil {
			return nil, err
		}
		messages = append(messages, &message)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
