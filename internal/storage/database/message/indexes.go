package message

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateIndexes 創建訊息集合索引以優化查詢性能
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection("messages")

	// 1. 房源 + 發送者 + 接收者 + 創建時間複合索引（對話查詢與標記已讀）
	conversationIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "listing_id", Value: 1},
			{Key: "sender_id", Value: 1},
			{Key: "receiver_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
		Options: options.Index().SetName("conversation_idx"),
	}

	// 2. 發送者 + 創建時間索引（執行緒列表的 $or 查詢）
	senderTimeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "sender_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
		Options: options.Index().SetName("sender_time_idx"),
	}

	// 3. 接收者 + 創建時間索引
	receiverTimeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "receiver_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
		Options: options.Index().SetName("receiver_time_idx"),
	}

	// 4. 未讀查詢索引（接收者 + read_at）
	unreadIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "receiver_id", Value: 1},
			{Key: "read_at", Value: 1},
		},
		Options: options.Index().SetName("unread_idx"),
	}

	// 5. 房源 + 創建時間索引（即時訂閱的重新解析）
	listingTimeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "listing_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("listing_time_idx"),
	}

	indexes := []mongo.IndexModel{
		conversationIndex,
		senderTimeIndex,
		receiverTimeIndex,
		unreadIndex,
		listingTimeIndex,
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetIndexStats 獲取索引統計信息
func GetIndexStats(ctx context.Context, db *mongo.Database) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	cursor, err := db.Collection("messages").Indexes().List(ctx)
	if err != nil {
		return nil, err
	}

	var indexes []bson.M
	if err = cursor.All(ctx, &indexes); err != nil {
		return nil, err
	}
	stats["messages_indexes"] = indexes

	return stats, nil
}
