package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"uninest-messaging/internal/livefeed"
)

type sessionFixture struct {
	store      *fakeMessageStore
	feed       *livefeed.MemoryFeed
	controller *SessionController
}

func newSessionFixture() *sessionFixture {
	store := newFakeMessageStore()
	feed := livefeed.NewMemoryFeed()
	conversations := NewConversationService(store, newFakeProfileStore(), feed, nil, 0)
	reads := NewReadTracker(store, nil)

	return &sessionFixture{
		store:      store,
		feed:       feed,
		controller: NewSessionController(conversations, reads, feed),
	}
}

func (f *sessionFixture) close() {
	f.feed.Close() //nolint:errcheck
}

func waitForEvent(t *testing.T, session *Session) *MessageView {
	t.Helper()
	select {
	case view, open := <-session.Events():
		if !open {
			t.Fatal("事件通道被關閉")
		}
		return view
	case <-time.After(2 * time.Second):
		t.Fatal("等待即時訊息逾時")
		return nil
	}
}

func TestSessionOpen_LoadsHistoryAndMarksRead(t *testing.T) {
	f := newSessionFixture()
	defer f.close()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	f.store.seedMessage("m1", "L123", "alice", "bob", "請問房子還在嗎", base, nil)
	f.store.seedMessage("m2", "L123", "bob", "alice", "還在喔", base.Add(time.Minute), nil)

	session, err := f.controller.Open(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	messages := session.Messages()
	if len(messages) != 2 {
		t.Fatalf("預期歷史 2 則, 得到 %d", len(messages))
	}
	if messages[0].ID != "m1" || messages[1].ID != "m2" {
		t.Errorf("歷史順序不符: %s, %s", messages[0].ID, messages[1].ID)
	}

	// 打開對話即視為已讀
	if f.store.readAtOf("m2") == nil {
		t.Error("開啟會話後對方的未讀訊息應被標記已讀")
	}
	if f.store.readAtOf("m1") != nil {
		t.Error("自己發的訊息不該被標記")
	}
}

func TestSession_LiveMessageDelivery(t *testing.T) {
	f := newSessionFixture()
	defer f.close()

	// 情境：bob 開著 L123 的對話視窗，alice 發訊息過來
	session, err := f.controller.Open(context.Background(), "bob", "L123", "alice")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	sent, err := f.controller.conversations.SendMessage(context.Background(), "alice", "L123", "bob", "請問房子還在嗎", "")
	if err != nil {
		t.Fatalf("發送失敗: %v", err)
	}

	view := waitForEvent(t, session)
	if view.ID != sent.ID {
		t.Errorf("收到的訊息 ID 不符: %s vs %s", view.ID, sent.ID)
	}
	if view.Content != "請問房子還在嗎" {
		t.Errorf("收到的內容不符: %q", view.Content)
	}

	// 視窗開著，收到的訊息立即變已讀
	if f.store.readAtOf(sent.ID) == nil {
		t.Error("會話開著時收到的訊息應立即標記已讀")
	}

	// 本地快照也要包含新訊息
	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != sent.ID {
		t.Errorf("快照應包含新訊息, 得到 %d 則", len(messages))
	}
}

func TestSession_IgnoresOtherConversations(t *testing.T) {
	f := newSessionFixture()
	defer f.close()

	session, err := f.controller.Open(context.Background(), "bob", "L123", "alice")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	// 同房源但不同對話（carol -> bob），不該出現在這個會話
	if _, err := f.controller.conversations.SendMessage(context.Background(), "carol", "L123", "bob", "無關訊息", ""); err != nil {
		t.Fatalf("發送失敗: %v", err)
	}
	// 這則才是會話內的
	sent, err := f.controller.conversations.SendMessage(context.Background(), "alice", "L123", "bob", "哈囉", "")
	if err != nil {
		t.Fatalf("發送失敗: %v", err)
	}

	view := waitForEvent(t, session)
	if view.ID != sent.ID {
		t.Errorf("應該只收到會話內的訊息, 得到 %s", view.ID)
	}
}

func TestSession_DeduplicatesByMessageID(t *testing.T) {
	f := newSessionFixture()
	defer f.close()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	f.store.seedMessage("m1", "L123", "alice", "bob", "歷史訊息", base, nil)

	session, err := f.controller.Open(context.Background(), "bob", "L123", "alice")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	// 重送歷史訊息的通知（訂閱與載入歷史之間的重疊情況）
	event := livefeed.Event{MessageID: "m1", ListingID: "L123", SenderID: "alice", ReceiverID: "bob"}
	if err := f.feed.Publish(context.Background(), event); err != nil {
		t.Fatalf("發布通知失敗: %v", err)
	}

	// 再發一則新訊息
	sent, err := f.controller.conversations.SendMessage(context.Background(), "alice", "L123", "bob", "新訊息", "")
	if err != nil {
		t.Fatalf("發送失敗: %v", err)
	}

	// 只會收到新訊息，重複通知被去重
	view := waitForEvent(t, session)
	if view.ID != sent.ID {
		t.Errorf("重複通知應被去重, 收到 %s", view.ID)
	}

	messages := session.Messages()
	if len(messages) != 2 {
		t.Errorf("快照應該只有 2 則（歷史 + 新訊息）, 得到 %d", len(messages))
	}
}

func TestSessionSend_OptimisticConfirm(t *testing.T) {
	f := newSessionFixture()
	defer f.close()

	session, err := f.controller.Open(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	view, err := session.Send(context.Background(), "請問房子還在嗎")
	if err != nil {
		t.Fatalf("發送失敗: %v", err)
	}
	if view.Pending {
		t.Error("確認後的訊息不該是 pending")
	}

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("快照預期 1 則, 得到 %d", len(messages))
	}
	if messages[0].ID != view.ID || messages[0].Pending {
		t.Errorf("快照應是確認後的版本: %+v", messages[0])
	}

	// 自己發的訊息不會從通知通道再回來一次
	select {
	case dup := <-session.Events():
		t.Errorf("自己發的訊息不該重複投遞: %+v", dup)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSessionSend_FailureRollsBack(t *testing.T) {
	f := newSessionFixture()
	defer f.close()

	session, err := f.controller.Open(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}
	defer session.Close() //nolint:errcheck

	f.store.insertErr = errors.New("write concern timeout")

	_, err = session.Send(context.Background(), "這則會失敗")
	var sendErr *SendFailedError
	if !errors.As(err, &sendErr) {
		t.Fatalf("預期 SendFailedError, 得到 %v", err)
	}
	if sendErr.Content != "這則會失敗" {
		t.Errorf("錯誤應攜帶原始內容, 得到 %q", sendErr.Content)
	}

	// 樂觀更新被回滾，快照不留殘影
	if messages := session.Messages(); len(messages) != 0 {
		t.Errorf("失敗後快照應為空, 得到 %d 則", len(messages))
	}

	// 存儲恢復後可以重試
	f.store.insertErr = nil
	if _, err := session.Send(context.Background(), sendErr.Content); err != nil {
		t.Fatalf("重試應該成功: %v", err)
	}
	if messages := session.Messages(); len(messages) != 1 {
		t.Errorf("重試後快照預期 1 則, 得到 %d", len(messages))
	}
}

func TestSessionClose_Teardown(t *testing.T) {
	f := newSessionFixture()
	defer f.close()

	session, err := f.controller.Open(context.Background(), "alice", "L123", "bob")
	if err != nil {
		t.Fatalf("開啟會話失敗: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("關閉會話失敗: %v", err)
	}
	// 重複關閉安全
	if err := session.Close(); err != nil {
		t.Fatalf("重複關閉應該安全: %v", err)
	}

	// 通道最終會被關閉
	select {
	case _, open := <-session.Events():
		if open {
			t.Error("關閉後不該再收到訊息")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("關閉後事件通道應該被關閉")
	}
}
