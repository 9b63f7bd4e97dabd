package livefeed

import (
	"context"
	"sync"

	"uninest-messaging/internal/constants"
)

// MemoryFeed 進程內的即時通知通道.
// 單實例部署或測試時使用，不依賴外部服務.
type MemoryFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{} // listing_id -> 訂閱集合
	closed bool
}

// NewMemoryFeed 創建進程內通知通道.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish 發布新訊息插入通知.
func (f *MemoryFeed) Publish(_ context.Context, event Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil
	}

	for sub := range f.subs[event.ListingID] {
		sub.deliver(event)
	}

	return nil
}

// Subscribe 訂閱某個房源底下的插入通知.
func (f *MemoryFeed) Subscribe(ctx context.Context, listingID string) (Subscription, error) {
	sub := &memorySubscription{
		feed:      f,
		listingID: listingID,
		events:    make(chan Event, constants.MessageChannelBuffer),
	}

	f.mu.Lock()
	if f.subs[listingID] == nil {
		f.subs[listingID] = make(map[*memorySubscription]struct{})
	}
	f.subs[listingID][sub] = struct{}{}
	f.mu.Unlock()

	// context 結束時自動取消訂閱
	go func() {
		<-ctx.Done()
		sub.Close() //nolint:errcheck
	}()

	return sub, nil
}

// Close 關閉通道並清理所有訂閱.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true

	var all []*memorySubscription
	for _, set := range f.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	f.subs = make(map[string]map[*memorySubscription]struct{})
	f.mu.Unlock()

	for _, sub := range all {
		sub.closeChannel()
	}

	return nil
}

// remove 從訂閱集合中移除.
func (f *MemoryFeed) remove(sub *memorySubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if set, ok := f.subs[sub.listingID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(f.subs, sub.listingID)
		}
	}
}

// memorySubscription 進程內訂閱.
type memorySubscription struct {
	feed      *MemoryFeed
	listingID string
	events    chan Event

	mu     sync.Mutex
	closed bool
}

// deliver 投遞通知，通道滿時丟棄.
func (s *memorySubscription) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- event:
	default:
	}
}

// Events 通知通道.
func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

// Close 取消訂閱.
func (s *memorySubscription) Close() error {
	s.feed.remove(s)
	s.closeChannel()
	return nil
}

// closeChannel 關閉通道，保證只關一次.
func (s *memorySubscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
