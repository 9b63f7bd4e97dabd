package livefeed

import (
	"context"
	"testing"
	"time"
)

func receiveEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event, open := <-sub.Events():
		if !open {
			t.Fatal("訂閱通道被關閉")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("等待通知逾時")
		return Event{}
	}
}

func TestMemoryFeed_PublishSubscribe(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	sub, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}
	defer sub.Close() //nolint:errcheck

	want := Event{MessageID: "m1", ListingID: "L123", SenderID: "alice", ReceiverID: "bob"}
	if err := feed.Publish(context.Background(), want); err != nil {
		t.Fatalf("發布失敗: %v", err)
	}

	got := receiveEvent(t, sub)
	if got != want {
		t.Errorf("收到的通知不符: %+v vs %+v", got, want)
	}
}

func TestMemoryFeed_ScopedByListing(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	sub, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}
	defer sub.Close() //nolint:errcheck

	// 其他房源的通知不該進來
	other := Event{MessageID: "x1", ListingID: "L456", SenderID: "alice", ReceiverID: "bob"}
	if err := feed.Publish(context.Background(), other); err != nil {
		t.Fatalf("發布失敗: %v", err)
	}
	mine := Event{MessageID: "m1", ListingID: "L123", SenderID: "alice", ReceiverID: "bob"}
	if err := feed.Publish(context.Background(), mine); err != nil {
		t.Fatalf("發布失敗: %v", err)
	}

	got := receiveEvent(t, sub)
	if got.MessageID != "m1" {
		t.Errorf("只該收到自己房源的通知, 得到 %s", got.MessageID)
	}
}

func TestMemoryFeed_MultipleSubscribers(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	sub1, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}
	defer sub1.Close() //nolint:errcheck

	sub2, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}
	defer sub2.Close() //nolint:errcheck

	event := Event{MessageID: "m1", ListingID: "L123", SenderID: "alice", ReceiverID: "bob"}
	if err := feed.Publish(context.Background(), event); err != nil {
		t.Fatalf("發布失敗: %v", err)
	}

	if got := receiveEvent(t, sub1); got.MessageID != "m1" {
		t.Errorf("sub1 收到的通知不符: %+v", got)
	}
	if got := receiveEvent(t, sub2); got.MessageID != "m1" {
		t.Errorf("sub2 收到的通知不符: %+v", got)
	}
}

func TestMemoryFeed_CloseSubscription(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	sub, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("取消訂閱失敗: %v", err)
	}
	// 重複關閉安全
	if err := sub.Close(); err != nil {
		t.Fatalf("重複關閉應該安全: %v", err)
	}

	// 關閉後發布不會 panic 也不會投遞
	event := Event{MessageID: "m1", ListingID: "L123"}
	if err := feed.Publish(context.Background(), event); err != nil {
		t.Fatalf("發布失敗: %v", err)
	}

	if _, open := <-sub.Events(); open {
		t.Error("關閉後的通道不該還有通知")
	}
}

func TestMemoryFeed_ContextCancelUnsubscribes(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := feed.Subscribe(ctx, "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}

	cancel()

	// context 取消後訂閱通道最終會被關閉
	select {
	case _, open := <-sub.Events():
		if open {
			t.Error("取消後不該再收到通知")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("取消後訂閱通道應該被關閉")
	}
}

func TestMemoryFeed_DropsWhenBufferFull(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close() //nolint:errcheck

	sub, err := feed.Subscribe(context.Background(), "L123")
	if err != nil {
		t.Fatalf("訂閱失敗: %v", err)
	}
	defer sub.Close() //nolint:errcheck

	// 塞爆緩衝區，Publish 不能阻塞
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			feed.Publish(context.Background(), Event{MessageID: "m", ListingID: "L123"}) //nolint:errcheck
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("緩衝區滿時 Publish 不該阻塞")
	}
}
