package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"uninest-messaging/internal/constants"
	"uninest-messaging/internal/platform/logger"

	"github.com/nats-io/nats.go"
)

// NATSFeed 基於 NATS 的即時通知通道.
// 每個房源對應一個 subject（<prefix>.listing.<listing_id>），
// 多實例部署時所有閘道都會收到通知.
type NATSFeed struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSFeed 創建 NATS 通知通道.
func NewNATSFeed(conn *nats.Conn, subjectPrefix string) *NATSFeed {
	if subjectPrefix == "" {
		subjectPrefix = "uninest.messaging"
	}
	return &NATSFeed{
		conn:          conn,
		subjectPrefix: subjectPrefix,
	}
}

// subject 房源對應的 NATS subject.
func (f *NATSFeed) subject(listingID string) string {
	return fmt.Sprintf("%s.listing.%s", f.subjectPrefix, listingID)
}

// Publish 發布新訊息插入通知.
func (f *NATSFeed) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := f.conn.Publish(f.subject(event.ListingID), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Subscribe 訂閱某個房源底下的插入通知.
func (f *NATSFeed) Subscribe(ctx context.Context, listingID string) (Subscription, error) {
	events := make(chan Event, constants.MessageChannelBuffer)
	sub := &natsSubscription{events: events}

	natsSub, err := f.conn.Subscribe(f.subject(listingID), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warning(context.Background(), "解析即時通知失敗",
				logger.WithListingID(listingID),
				logger.WithDetails(map[string]interface{}{"error": err.Error()}))
			return
		}

		sub.deliver(event)
	})
	if err != nil {
		close(events)
		return nil, fmt.Errorf("subscribe listing %s: %w", listingID, err)
	}

	sub.natsSub = natsSub

	// context 結束時自動取消訂閱
	go func() {
		<-ctx.Done()
		sub.Close() //nolint:errcheck
	}()

	return sub, nil
}

// Close 關閉通道.
// NATS 連接由 driver 層管理，這裡不負責斷開.
func (f *NATSFeed) Close() error {
	return nil
}

// natsSubscription NATS 訂閱的封裝.
type natsSubscription struct {
	natsSub *nats.Subscription
	events  chan Event

	mu     sync.Mutex
	closed bool
}

// deliver 投遞通知，通道滿時丟棄（訂閱方靠重新解析補齊）.
func (s *natsSubscription) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- event:
	default:
		logger.Warning(context.Background(), "即時通知通道已滿，丟棄通知",
			logger.WithListingID(event.ListingID),
			logger.WithMessageID(event.MessageID))
	}
}

// Events 通知通道.
func (s *natsSubscription) Events() <-chan Event {
	return s.events
}

// Close 取消訂閱.
func (s *natsSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.natsSub != nil {
		err = s.natsSub.Unsubscribe()
	}
	close(s.events)

	return err
}
