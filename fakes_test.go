package libchat

import (
	"context"
	"sort"
	"sync"

	"github.com/coregx/libchat/model"
)

// In-memory repository fakes shared by the delivery engine and facade tests.

type memMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	msgs   map[int64]model.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{msgs: make(map[int64]model.Message)}
}

func (r *memMessageRepo) Load(_ context.Context, id int64) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.msgs[id]
	if !ok {
		return model.Message{}, ErrNoData
	}
	return msg, nil
}

func (r *memMessageRepo) Save(_ context.Context, m model.Message) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.msgs[m.ID] = m
	return m, nil
}

func (r *memMessageRepo) all(filter func(model.Message) bool, newestFirst bool, limit int) []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, m := range r.msgs {
		if filter(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memMessageRepo) FindConversation(_ context.Context, userA, userB int64, limit int) ([]model.Message, error) {
	return r.all(func(m model.Message) bool {
		if !m.IsPrivate() {
			return false
		}
		recv := m.ReceiverID.Int64
		return (m.SenderID == userA && recv == userB) || (m.SenderID == userB && recv == userA)
	}, true, limit), nil
}

func (r *memMessageRepo) FindRecentByTopic(_ context.Context, topic string, limit int) ([]model.Message, error) {
	return r.all(func(m model.Message) bool {
		return m.IsGroup() && m.Topic.String == topic
	}, true, limit), nil
}

func (r *memMessageRepo) FindUndeliveredForReceiver(_ context.Context, receiverID int64) ([]model.Message, error) {
	return r.all(func(m model.Message) bool {
		return m.IsPrivate() && m.ReceiverID.Int64 == receiverID && !m.Delivered
	}, false, 0), nil
}

func (r *memMessageRepo) FindUndeliveredForTopic(_ context.Context, topic string) ([]model.Message, error) {
	return r.all(func(m model.Message) bool {
		return m.IsGroup() && m.Topic.String == topic && !m.Delivered
	}, false, 0), nil
}

type subKey struct {
	userID int64
	topic  string
}

type memSubscriptionRepo struct {
	mu     sync.Mutex
	nextID int64
	subs   map[subKey]model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[subKey]model.Subscription)}
}

func (r *memSubscriptionRepo) Find(_ context.Context, userID int64, topic string) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subKey{userID, topic}]
	if !ok {
		return model.Subscription{}, ErrNoData
	}
	return sub, nil
}

func (r *memSubscriptionRepo) FindByTopic(_ context.Context, topic string) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for k, s := range r.subs {
		if k.topic == topic {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memSubscriptionRepo) FindByUser(_ context.Context, userID int64) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for k, s := range r.subs {
		if k.userID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memSubscriptionRepo) Save(_ context.Context, s model.Subscription) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
	}
	r.subs[subKey{s.UserID, s.Topic}] = s
	return s, nil
}

func (r *memSubscriptionRepo) Delete(_ context.Context, userID int64, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, subKey{userID, topic})
	return nil
}

type memTopicRepo struct {
	mu     sync.Mutex
	nextID int64
	topics map[string]model.Topic
}

func newMemTopicRepo() *memTopicRepo {
	return &memTopicRepo{topics: make(map[string]model.Topic)}
}

func (r *memTopicRepo) Load(_ context.Context, id int64) (model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Topic{}, ErrNoData
}

func (r *memTopicRepo) GetByName(_ context.Context, name string) (model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[name]
	if !ok {
		return model.Topic{}, ErrNoData
	}
	return t, nil
}

func (r *memTopicRepo) Save(_ context.Context, t model.Topic) (model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	}
	r.topics[t.Name] = t
	return t, nil
}

func (r *memTopicRepo) List(_ context.Context) ([]model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Topic
	for _, t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPresenceRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]model.Presence
}

func newMemPresenceRepo() *memPresenceRepo {
	return &memPresenceRepo{records: make(map[int64]model.Presence)}
}

func (r *memPresenceRepo) Get(_ context.Context, userID int64) (model.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[userID]
	if !ok {
		return model.Presence{}, ErrNoData
	}
	return p, nil
}

func (r *memPresenceRepo) Upsert(_ context.Context, p model.Presence) (model.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	r.records[p.UserID] = p
	return p, nil
}

type memUserDirectory struct {
	ids []int64
}

func (d *memUserDirectory) Exists(_ context.Context, userID int64) (bool, error) {
	for _, id := range d.ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (d *memUserDirectory) ListIDs(_ context.Context) ([]int64, error) {
	return d.ids, nil
}

// recordingNotifications captures notification callbacks for assertions.
type recordingNotifications struct {
	NoOpNotificationService
	mu               sync.Mutex
	deliveryFailures int
	presenceChanges  int
	subsCreated      int
	subsRemoved      int
}

func (n *recordingNotifications) NotifyDeliveryFailure(_ context.Context, _ model.Message, _ int64, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveryFailures++
	return nil
}

func (n *recordingNotifications) NotifyPresenceChanged(_ context.Context, _ model.Presence) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.presenceChanges++
	return nil
}

func (n *recordingNotifications) NotifySubscriptionCreated(_ context.Context, _ model.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subsCreated++
	return nil
}

func (n *recordingNotifications) NotifySubscriptionRemoved(_ context.Context, _ int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subsRemoved++
	return nil
}

// testEnv bundles an engine with its fakes for test setup.
type testEnv struct {
	engine        *DeliveryEngine
	registry      *ConnectionRegistry
	messages      *memMessageRepo
	subscriptions *memSubscriptionRepo
	topics        *memTopicRepo
	presence      *memPresenceRepo
	notifications *recordingNotifications
}

func newTestEnv(t interface{ Fatalf(string, ...any) }, extra ...Option) *testEnv {
	env := &testEnv{
		registry:      NewConnectionRegistry(),
		messages:      newMemMessageRepo(),
		subscriptions: newMemSubscriptionRepo(),
		topics:        newMemTopicRepo(),
		presence:      newMemPresenceRepo(),
		notifications: &recordingNotifications{},
	}

	opts := append([]Option{
		WithRepositories(env.messages, env.subscriptions, env.topics, env.presence),
		WithRegistry(env.registry),
		WithLogger(&NoopLogger{}),
		WithNotifications(env.notifications),
	}, extra...)

	engine, err := NewDeliveryEngine(opts...)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	env.engine = engine
	return env
}
