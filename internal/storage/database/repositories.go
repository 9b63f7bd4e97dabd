package database

import (
	"context"

	"uninest-messaging/internal/storage/database/message"
	"uninest-messaging/internal/storage/database/profile"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Repositories 聚合所有存儲層實作.
type Repositories struct {
	Messages *message.MessageStore
	Profiles *profile.ProfileStore
}

// NewRepositories 創建存儲層集合.
func NewRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Messages: message.NewMessageStore(db),
		Profiles: profile.NewProfileStore(db),
	}
}

// EnsureIndexes 創建所有集合的索引.
func (r *Repositories) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return message.CreateIndexes(ctx, db)
}
