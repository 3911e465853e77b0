package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/libchat"
	"github.com/coregx/libchat/model"
)

// memStore is a minimal in-memory store backing the messenger under test.
// Only the operations the REST handlers exercise are populated.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]model.Message
	subs     map[string]model.Subscription
	topics   map[string]model.Topic
	presence map[int64]model.Presence
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[int64]model.Message),
		subs:     make(map[string]model.Subscription),
		topics:   make(map[string]model.Topic),
		presence: make(map[int64]model.Presence),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Load(_ context.Context, id int64) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return model.Message{}, libchat.ErrNoData
	}
	return m, nil
}

func (s *memStore) Save(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.id()
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *memStore) FindConversation(_ context.Context, _, _ int64, _ int) ([]model.Message, error) {
	return nil, nil
}

func (s *memStore) FindRecentByTopic(_ context.Context, _ string, _ int) ([]model.Message, error) {
	return nil, nil
}

func (s *memStore) FindUndeliveredForReceiver(_ context.Context, _ int64) ([]model.Message, error) {
	return nil, nil
}

func (s *memStore) FindUndeliveredForTopic(_ context.Context, _ string) ([]model.Message, error) {
	return nil, nil
}

func (s *memStore) Find(_ context.Context, userID int64, topic string) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[topic]
	if !ok || sub.UserID != userID {
		return model.Subscription{}, libchat.ErrNoData
	}
	return sub, nil
}

func (s *memStore) FindByTopic(_ context.Context, _ string) ([]model.Subscription, error) {
	return nil, nil
}

func (s *memStore) FindByUser(_ context.Context, _ int64) ([]model.Subscription, error) {
	return nil, nil
}

func (s *memStore) Delete(_ context.Context, _ int64, _ string) error {
	return nil
}

func (s *memStore) GetByName(_ context.Context, name string) (model.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return model.Topic{}, libchat.ErrNoData
	}
	return t, nil
}

func (s *memStore) List(_ context.Context) ([]model.Topic, error) {
	return nil, nil
}

func (s *memStore) Get(_ context.Context, userID int64) (model.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[userID]
	if !ok {
		return model.Presence{}, libchat.ErrNoData
	}
	return p, nil
}

func (s *memStore) Upsert(_ context.Context, p model.Presence) (model.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.presence[p.UserID]; ok {
		p.ID = existing.ID
	} else if p.ID == 0 {
		p.ID = s.id()
	}
	s.presence[p.UserID] = p
	return p, nil
}

type memSubscriptionView struct{ *memStore }

func (v memSubscriptionView) Save(_ context.Context, sub model.Subscription) (model.Subscription, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = v.id()
	}
	v.subs[sub.Topic] = sub
	return sub, nil
}

type memTopicView struct{ *memStore }

func (v memTopicView) Load(_ context.Context, id int64) (model.Topic, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Topic{}, libchat.ErrNoData
}

func (v memTopicView) Save(_ context.Context, t model.Topic) (model.Topic, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.ID == 0 {
		t.ID = v.id()
	}
	v.topics[t.Name] = t
	return t, nil
}

func newTestHandler(t *testing.T) (*Handler, *memStore) {
	t.Helper()

	store := newMemStore()
	engine, err := libchat.NewDeliveryEngine(
		libchat.WithRepositories(store, memSubscriptionView{store}, memTopicView{store}, store),
		libchat.WithRegistry(libchat.NewConnectionRegistry()),
		libchat.WithLogger(&libchat.NoopLogger{}),
	)
	require.NoError(t, err)

	messenger, err := libchat.NewMessenger(
		libchat.WithMessengerEngine(engine),
		libchat.WithMessengerRepositories(store, memSubscriptionView{store}, memTopicView{store}, store),
		libchat.WithMessengerLogger(&libchat.NoopLogger{}),
	)
	require.NoError(t, err)

	return NewHandler(messenger, &libchat.NoopLogger{}), store
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) SuccessResponse {
	t.Helper()

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandlePresence_NeverConnected(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/presence?userId=9", nil)
	rec := httptest.NewRecorder()
	handler.HandlePresence(rec, req)

	require.Equal(t, 200, rec.Code)
	resp := decodeSuccess(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Never connected", resp.Message)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["online"])
}

func TestHandlePresence_KnownUser(t *testing.T) {
	handler, store := newTestHandler(t)

	now := time.Now().UTC().Truncate(time.Second)
	store.presence[9] = model.Presence{ID: 1, UserID: 9, Connected: true, LastConnectedAt: now}

	req := httptest.NewRequest("GET", "/api/v1/presence?userId=9", nil)
	rec := httptest.NewRecorder()
	handler.HandlePresence(rec, req)

	require.Equal(t, 200, rec.Code)
	resp := decodeSuccess(t, rec)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["online"])
	assert.NotEmpty(t, data["lastConnectedAt"])
}

func TestHandlePresence_MissingUserID(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/presence", nil)
	rec := httptest.NewRecorder()
	handler.HandlePresence(rec, req)

	assert.Equal(t, 400, rec.Code)
}
