package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMarkRead_OnlyPeerDirection(t *testing.T) {
	store := newFakeMessageStore()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	// bob 發給 alice 兩則未讀，alice 發給 bob 一則未讀
	store.seedMessage("m1", "L123", "bob", "alice", "一", base, nil)
	store.seedMessage("m2", "L123", "bob", "alice", "二", base.Add(time.Minute), nil)
	store.seedMessage("m3", "L123", "alice", "bob", "回覆", base.Add(2*time.Minute), nil)

	tracker := NewReadTracker(store, nil)

	count, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("標記已讀失敗: %v", err)
	}
	if count != 2 {
		t.Errorf("預期標記 2 則, 得到 %d", count)
	}

	// 對方發來的被標記，自己發出的不動
	if store.readAtOf("m1") == nil || store.readAtOf("m2") == nil {
		t.Error("bob 發來的訊息應該已標記")
	}
	if store.readAtOf("m3") != nil {
		t.Error("alice 自己發的訊息不該被標記")
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	store := newFakeMessageStore()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	store.seedMessage("m1", "L123", "bob", "alice", "一", base, nil)

	tracker := NewReadTracker(store, nil)

	if _, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob"); err != nil {
		t.Fatalf("第一次標記失敗: %v", err)
	}
	firstReadAt := store.readAtOf("m1")
	if firstReadAt == nil {
		t.Fatal("第一次標記後 read_at 應該有值")
	}

	// 重複標記：筆數為 0，時間戳不變
	count, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("第二次標記失敗: %v", err)
	}
	if count != 0 {
		t.Errorf("重複標記預期 0 則, 得到 %d", count)
	}
	if !store.readAtOf("m1").Equal(*firstReadAt) {
		t.Error("重複標記不該改動已寫入的已讀時間戳")
	}
}

func TestMarkRead_ScopedToListing(t *testing.T) {
	store := newFakeMessageStore()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	store.seedMessage("m1", "L123", "bob", "alice", "這間", base, nil)
	store.seedMessage("m2", "L456", "bob", "alice", "另一間", base, nil)

	tracker := NewReadTracker(store, nil)

	count, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("標記已讀失敗: %v", err)
	}
	if count != 1 {
		t.Errorf("預期只標記 L123 的 1 則, 得到 %d", count)
	}
	if store.readAtOf("m2") != nil {
		t.Error("其他房源的對話不該被標記")
	}
}

func TestMarkRead_StoreFailure(t *testing.T) {
	store := newFakeMessageStore()
	store.markErr = errors.New("connection reset")

	tracker := NewReadTracker(store, nil)

	_, err := tracker.MarkRead(context.Background(), "alice", "L123", "bob")
	var dataErr *DataAccessError
	if !errors.As(err, &dataErr) {
		t.Fatalf("預期 DataAccessError, 得到 %v", err)
	}
}

func TestUnreadTotal(t *testing.T) {
	store := newFakeMessageStore()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	readAt := base.Add(time.Minute)

	store.seedMessage("m1", "L123", "bob", "alice", "一", base, nil)
	store.seedMessage("m2", "L456", "carol", "alice", "二", base, nil)
	store.seedMessage("m3", "L123", "bob", "alice", "已讀", base, &readAt)
	store.seedMessage("m4", "L123", "alice", "bob", "發出", base, nil)

	tracker := NewReadTracker(store, nil)

	count, err := tracker.UnreadTotal(context.Background(), "alice")
	if err != nil {
		t.Fatalf("查詢未讀總數失敗: %v", err)
	}
	if count != 2 {
		t.Errorf("預期未讀總數 2, 得到 %d", count)
	}
}
