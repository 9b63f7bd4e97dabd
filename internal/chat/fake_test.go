package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"uninest-messaging/internal/storage/database/message"
	"uninest-messaging/internal/storage/database/profile"
)

// fakeMessageStore 測試用的記憶體訊息存儲.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages []*message.Message
	nextSeq  int

	insertErr error
	listErr   error
	markErr   error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{}
}

func (s *fakeMessageStore) Insert(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}

	if m.ID == "" {
		s.nextSeq++
		m.ID = fmt.Sprintf("msg-%04d", s.nextSeq)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	clone := *m
	s.messages = append(s.messages, &clone)
	return nil
}

func (s *fakeMessageStore) GetByID(_ context.Context, id string) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			clone := *m
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("not found: %s", id)
}

func (s *fakeMessageStore) ListForUser(_ context.Context, userID string, limit int64) ([]*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var result []*message.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			clone := *m
			result = append(result, &clone)
		}
	}

	sortAscending(result)
	return trimToNewest(result, limit), nil
}

func (s *fakeMessageStore) ListConversation(_ context.Context, listingID, userA, userB string, limit int64) ([]*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var result []*message.Message
	for _, m := range s.messages {
		if m.ListingID != listingID {
			continue
		}
		forward := m.SenderID == userA && m.ReceiverID == userB
		backward := m.SenderID == userB && m.ReceiverID == userA
		if forward || backward {
			clone := *m
			result = append(result, &clone)
		}
	}

	sortAscending(result)
	return trimToNewest(result, limit), nil
}

func (s *fakeMessageStore) MarkConversationRead(_ context.Context, listingID, senderID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markErr != nil {
		return 0, s.markErr
	}

	now := time.Now()
	var count int64
	for _, m := range s.messages {
		if m.ListingID == listingID && m.SenderID == senderID && m.ReceiverID == receiverID && m.ReadAt == nil {
			readAt := now
			m.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) CountUnreadForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, m := range s.messages {
		if m.ReceiverID == userID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// readAtOf 直接讀取某筆訊息的已讀時間戳（測試斷言用）.
func (s *fakeMessageStore) readAtOf(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m.ReadAt
		}
	}
	return nil
}

// trimToNewest 依倉儲契約套用上限：保留升序尾端最新的一段.
func trimToNewest(msgs []*message.Message, limit int64) []*message.Message {
	if limit > 0 && int64(len(msgs)) > limit {
		return msgs[int64(len(msgs))-limit:]
	}
	return msgs
}

func sortAscending(msgs []*message.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// seedMessage 直接塞一筆訊息進存儲.
func (s *fakeMessageStore) seedMessage(id, listingID, senderID, receiverID, content string, createdAt time.Time, readAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, &message.Message{
		ID:         id,
		ListingID:  listingID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  createdAt,
		ReadAt:     readAt,
	})
}

// fakeProfileStore 測試用的記憶體用戶資料存儲.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
	getErr   error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*profile.Profile)}
}

func (s *fakeProfileStore) GetByID(_ context.Context, id string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.profiles[id], nil
}

func (s *fakeProfileStore) GetByIDs(_ context.Context, ids []string) (map[string]*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}

	result := make(map[string]*profile.Profile)
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *fakeProfileStore) Upsert(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.ID] = p
	return nil
}

// fakeThreadCache 測試用的記憶體執行緒快取.
type fakeThreadCache struct {
	mu      sync.Mutex
	entries map[string][]*Thread
}

func newFakeThreadCache() *fakeThreadCache {
	return &fakeThreadCache{entries: make(map[string][]*Thread)}
}

func (c *fakeThreadCache) Get(_ context.Context, userID string) ([]*Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	threads, ok := c.entries[userID]
	return threads, ok
}

func (c *fakeThreadCache) Set(_ context.Context, userID string, threads []*Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = threads
}

func (c *fakeThreadCache) Invalidate(_ context.Context, userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range userIDs {
		delete(c.entries, id)
	}
}

// has 檢查某用戶是否有快取條目（測試斷言用）.
func (c *fakeThreadCache) has(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[userID]
	return ok
}
