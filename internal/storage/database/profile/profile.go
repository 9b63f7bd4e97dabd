package profile

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Repository 用戶資料倉儲接口.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
}

// Profile 用戶公開資料快照.
// 只保留訊息列表需要顯示的欄位（名稱與頭像）.
type Profile struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	PhotoURL  string    `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	UpdatedAt time.Time `bson:"updated_at" json:"-"`
}

// ProfileStore 用戶資料存儲實作.
type ProfileStore struct {
	collection *mongo.Collection
}

// NewProfileStore 創建新的用戶資料存儲.
func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{
		collection: db.Collection("profiles"),
	}
}

// GetByID 根據 ID 獲取用戶資料，找不到回傳 nil.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}

// GetByIDs 批量獲取用戶資料，回傳 id 到資料的映射.
// 不存在的 id 不會出現在結果中.
func (s *ProfileStore) GetByIDs(ctx context.Context, ids []string) (map[string]*Profile, error) {
	result := make(map[string]*Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var p Profile
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		result[p.ID] = &p
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Upsert 寫入或更新用戶資料快照.
func (s *ProfileStore) Upsert(ctx context.Context, p *Profile) error {
	p.UpdatedAt = time.Now()

	filter := bson.M{"_id": p.ID}
	update := bson.M{"$set": bson.M{
		"name":       p.Name,
		"photo_url":  p.PhotoURL,
		"updated_at": p.UpdatedAt,
	}}

	opts := options.UpdateOne().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx, filter, update, opts)
	return err
}
