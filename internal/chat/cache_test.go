package chat

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestListThreads_PopulatesAndServesCache(t *testing.T) {
	store := newFakeMessageStore()
	cache := newFakeThreadCache()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	store.seedMessage("m1", "L1", "bob", "alice", "哈囉", base, nil)

	agg := NewThreadAggregator(store, newFakeProfileStore(), cache, 0)

	first, err := agg.ListThreads(context.Background(), "alice")
	if err != nil {
		t.Fatalf("取得執行緒失敗: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("預期 1 個執行緒, 得到 %d", len(first))
	}
	if !cache.has("alice") {
		t.Fatal("第一次查詢後應寫入快取")
	}

	// 快取在 TTL 內直接命中，跳過重新推導
	store.seedMessage("m2", "L2", "carol", "alice", "新對話", base.Add(time.Minute), nil)

	second, err := agg.ListThreads(context.Background(), "alice")
	if err != nil {
		t.Fatalf("取得執行緒失敗: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("快取命中時不該看到新寫入, 得到 %d 個執行緒", len(second))
	}
}

func TestSendMessage_InvalidatesBothThreadCaches(t *testing.T) {
	store := newFakeMessageStore()
	cache := newFakeThreadCache()
	cache.Set(context.Background(), "alice", []*Thread{})
	cache.Set(context.Background(), "bob", []*Thread{})

	svc := NewConversationService(store, newFakeProfileStore(), nil, cache, 0)

	if _, err := svc.SendMessage(context.Background(), "alice", "L123", "bob", "哈囉", ""); err != nil {
		t.Fatalf("發送失敗: %v", err)
	}

	if cache.has("alice") || cache.has("bob") {
		t.Error("發送後雙方的執行緒快取都應失效")
	}
}

func TestMarkRead_InvalidatesViewerCacheOnlyWhenChanged(t *testing.T) {
	store := newFakeMessageStore()
	cache := newFakeThreadCache()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	store.seedMessage("m1", "L123", "bob", "alice", "未讀", base, nil)
	cache.Set(context.Background(), "alice", []*Thread{})

	tracker := NewReadTracker(store, cache)

	count, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("標記已讀失敗: %v", err)
	}
	if count != 1 {
		t.Fatalf("預期標記 1 筆, 得到 %d", count)
	}
	if cache.has("alice") {
		t.Error("標記已讀後檢視者的快取應失效")
	}

	// 沒有東西被標記時不需要動快取
	cache.Set(context.Background(), "alice", []*Thread{})
	if _, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob"); err != nil {
		t.Fatalf("重複標記失敗: %v", err)
	}
	if !cache.has("alice") {
		t.Error("沒有訊息被更新時快取不該失效")
	}
}

func TestRedisThreadCache_RoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("跳過測試：無法連接到 Redis: %v", err)
	}

	cache := NewRedisThreadCache(client, 30*time.Second)
	userID := "cache-test-alice"
	defer cache.Invalidate(ctx, userID)

	threads := []*Thread{{
		ListingID:   "L123",
		Peer:        UserSnapshot{ID: "bob", Name: "Bob Chen"},
		UnreadCount: 2,
	}}

	cache.Set(ctx, userID, threads)

	got, ok := cache.Get(ctx, userID)
	if !ok {
		t.Fatal("寫入後應能讀回快取")
	}
	if len(got) != 1 || got[0].ListingID != "L123" || got[0].UnreadCount != 2 {
		t.Errorf("快取內容不符, 得到 %+v", got[0])
	}

	cache.Invalidate(ctx, userID)
	if _, ok := cache.Get(ctx, userID); ok {
		t.Error("失效後不該再命中")
	}
}
