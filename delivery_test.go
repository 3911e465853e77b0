package libchat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/libchat/model"
)

func decodeFrames(t *testing.T, conn *stubConn) []map[string]any {
	t.Helper()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	out := make([]map[string]any, 0, len(conn.frames))
	for _, raw := range conn.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func lastFrame(t *testing.T, conn *stubConn) map[string]any {
	t.Helper()
	frames := decodeFrames(t, conn)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

func TestNewDeliveryEngine_RequiresDependencies(t *testing.T) {
	_, err := NewDeliveryEngine()
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err))

	_, err = NewDeliveryEngine(
		WithRepositories(newMemMessageRepo(), newMemSubscriptionRepo(), newMemTopicRepo(), newMemPresenceRepo()),
		WithRegistry(NewConnectionRegistry()),
	)
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err))
}

func TestConnect_AcknowledgesAndRecordsPresence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, conn))

	frames := decodeFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, "connected", frames[0]["status"])
	assert.Equal(t, "1", frames[0]["userId"])

	presence, err := env.presence.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, presence.Connected)
	assert.WithinDuration(t, time.Now(), presence.LastConnectedAt, time.Second)
	assert.Equal(t, 1, env.notifications.presenceChanges)
}

func TestConnect_ReplacesPriorConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := &stubConn{}
	second := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, first))
	require.NoError(t, env.engine.Connect(ctx, 1, second))

	assert.False(t, first.IsLive())
	got, ok := env.registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestDisconnect_UpdatesPresence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, conn))
	require.NoError(t, env.engine.Disconnect(ctx, 1, conn))

	presence, err := env.presence.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, presence.Connected)

	_, ok := env.registry.Lookup(1)
	assert.False(t, ok)
}

func TestDisconnect_StaleHandleIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := &stubConn{}
	fresh := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, stale))
	require.NoError(t, env.engine.Connect(ctx, 1, fresh))

	// The evicted connection's close must not mark the user offline
	require.NoError(t, env.engine.Disconnect(ctx, 1, stale))

	presence, err := env.presence.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, presence.Connected)

	got, ok := env.registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestSendPrivate_ReceiverOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, sender))

	err := env.engine.HandleFrame(ctx, 1, []byte(`{"senderId":1,"receiverId":2,"content":"hi"}`))
	require.NoError(t, err)

	// Sender is told the receiver is offline
	frame := lastFrame(t, sender)
	assert.Equal(t, "offline", frame["status"])
	assert.Equal(t, "2", frame["receiverId"])

	// Message persisted undelivered
	msgs, err := env.messages.FindUndeliveredForReceiver(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.False(t, msgs[0].Delivered)
}

func TestSendPrivate_ReplayOnReconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, sender))
	require.NoError(t, env.engine.HandleFrame(ctx, 1, []byte(`{"senderId":1,"receiverId":2,"content":"hi"}`)))

	// Receiver connects later: the pending message is replayed before the ack
	receiver := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 2, receiver))

	frames := decodeFrames(t, receiver)
	require.Len(t, frames, 2)
	assert.Equal(t, "hi", frames[0]["content"])
	assert.Equal(t, "connected", frames[1]["status"])

	msgs, err := env.messages.FindConversation(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Delivered)

	// Replay happens once: a second reconnect delivers nothing new
	receiver2 := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 2, receiver2))
	frames = decodeFrames(t, receiver2)
	require.Len(t, frames, 1)
	assert.Equal(t, "connected", frames[0]["status"])
}

func TestSendPrivate_LiveDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &stubConn{}
	receiver := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, sender))
	require.NoError(t, env.engine.Connect(ctx, 2, receiver))

	require.NoError(t, env.engine.HandleFrame(ctx, 1, []byte(`{"senderId":1,"receiverId":2,"content":"hello"}`)))

	// Receiver got the message
	frame := lastFrame(t, receiver)
	assert.Equal(t, "hello", frame["content"])
	assert.EqualValues(t, 1, frame["senderId"])

	// Sender's own client reflects the confirmed send
	frame = lastFrame(t, sender)
	assert.Equal(t, "hello", frame["content"])

	msgs, err := env.messages.FindConversation(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Delivered)
}

func TestSendPrivate_DeadHandleTreatedAsOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &stubConn{}
	receiver := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, sender))
	require.NoError(t, env.engine.Connect(ctx, 2, receiver))
	receiver.Close() // registered but dead

	require.NoError(t, env.engine.HandleFrame(ctx, 1, []byte(`{"senderId":1,"receiverId":2,"content":"hi"}`)))

	frame := lastFrame(t, sender)
	assert.Equal(t, "offline", frame["status"])

	msgs, err := env.messages.FindUndeliveredForReceiver(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, env.notifications.deliveryFailures)
}

func TestSendPrivate_IdentityMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 1, conn))

	err := env.engine.HandleFrame(ctx, 1, []byte(`{"senderId":9,"receiverId":2,"content":"spoof"}`))
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	frame := lastFrame(t, conn)
	assert.Contains(t, frame["error"], "does not match")

	msgs, err := env.messages.FindConversation(ctx, 9, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendPrivate_UnknownReceiverWithDirectory(t *testing.T) {
	env := newTestEnv(t, WithUserDirectory(&memUserDirectory{ids: []int64{1}}))
	ctx := context.Background()

	_, _, err := env.engine.SendPrivate(ctx, 1, 404, "hi")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, ErrorCode(err))
}

func TestSendPrivate_DedupCoalescesIdenticalContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, _, err := env.engine.SendPrivate(ctx, 1, 2, "hi")
	require.NoError(t, err)

	second, _, err := env.engine.SendPrivate(ctx, 1, 2, "hi")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	msgs, err := env.messages.FindConversation(ctx, 1, 2, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendPrivate_DedupIgnoresOtherSenderAndContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, _, err := env.engine.SendPrivate(ctx, 1, 2, "hi")
	require.NoError(t, err)

	// Different content: new row
	second, _, err := env.engine.SendPrivate(ctx, 1, 2, "bye")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Same content, other direction: new row
	third, _, err := env.engine.SendPrivate(ctx, 2, 1, "hi")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestSendPrivate_DedupWindowExpires(t *testing.T) {
	env := newTestEnv(t, WithDedupWindow(time.Minute))
	ctx := context.Background()

	// A stale message outside the window must not coalesce
	stale := model.NewPrivateMessage(1, 2, "hi")
	stale.CreatedAt = time.Now().Add(-2 * time.Minute)
	stale, err := env.messages.Save(ctx, stale)
	require.NoError(t, err)

	fresh, _, err := env.engine.SendPrivate(ctx, 1, 2, "hi")
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)

	// The just-created message is inside the window and coalesces
	again, _, err := env.engine.SendPrivate(ctx, 1, 2, "hi")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, again.ID)
}

func TestSendGroup_TopicMustExist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 7, conn))

	err := env.engine.HandleFrame(ctx, 7, []byte(`{"senderId":7,"topic":"ghost","content":"hi"}`))
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, ErrorCode(err))

	frame := lastFrame(t, conn)
	assert.Contains(t, frame["error"], "topic not found")

	msgs, err := env.messages.FindRecentByTopic(ctx, "ghost", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendGroup_SenderMustBeSubscribed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)

	_, _, err = env.engine.SendGroup(ctx, 7, "dev", "hi")
	require.Error(t, err)
	assert.Equal(t, ErrCodeAuthorization, ErrorCode(err))

	msgs, findErr := env.messages.FindRecentByTopic(ctx, "dev", 0)
	require.NoError(t, findErr)
	assert.Empty(t, msgs)
}

func TestSendGroup_DeliveredIffAnySubscriberLive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)

	for _, userID := range []int64{1, 2, 3} {
		_, err := env.subscriptions.Save(ctx, model.NewSubscription(userID, "dev"))
		require.NoError(t, err)
	}

	// Only subscriber 2 is live besides the posting sender being offline
	live := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 2, live))

	msg, delivered, err := env.engine.SendGroup(ctx, 1, "dev", "standup")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.True(t, msg.Delivered)

	frame := lastFrame(t, live)
	assert.Equal(t, "standup", frame["content"])
	assert.Equal(t, "dev", frame["topic"])
}

func TestSendGroup_AllSubscribersOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)
	_, err = env.subscriptions.Save(ctx, model.NewSubscription(1, "dev"))
	require.NoError(t, err)

	msg, delivered, err := env.engine.SendGroup(ctx, 1, "dev", "anyone here?")
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.False(t, msg.Delivered)
}

func TestSubscribe_UnknownTopic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}

	require.NoError(t, env.engine.Connect(ctx, 5, conn))

	err := env.engine.HandleFrame(ctx, 5, []byte("subscribe:announcements"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, ErrorCode(err))

	_, findErr := env.subscriptions.Find(ctx, 5, "announcements")
	assert.True(t, IsNoData(findErr))
}

func TestSubscribe_AcksAndReplaysTopicHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("announcements", 1, ""))
	require.NoError(t, err)

	// Undelivered history predating the subscription
	pending := model.NewTopicMessage(1, "announcements", "new arrivals")
	pending, err = env.messages.Save(ctx, pending)
	require.NoError(t, err)

	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 5, conn))
	require.NoError(t, env.engine.HandleFrame(ctx, 5, []byte("subscribe:announcements")))

	frames := decodeFrames(t, conn)
	require.Len(t, frames, 3) // connected, subscribed, replayed message
	assert.Equal(t, "subscribed", frames[1]["status"])
	assert.Equal(t, "new arrivals", frames[2]["content"])

	stored, err := env.messages.Load(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, stored.Delivered)

	_, err = env.subscriptions.Find(ctx, 5, "announcements")
	assert.NoError(t, err)
	assert.Equal(t, 1, env.notifications.subsCreated)
}

func TestSubscribe_ExistingSubscriptionStillAcked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)

	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 5, conn))
	require.NoError(t, env.engine.Subscribe(ctx, 5, "dev"))
	require.NoError(t, env.engine.Subscribe(ctx, 5, "dev"))

	// No duplicate row, both calls acked
	subs, err := env.subscriptions.FindByUser(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, 1, env.notifications.subsCreated)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)
	require.NoError(t, env.engine.Subscribe(ctx, 5, "dev"))

	require.NoError(t, env.engine.Unsubscribe(ctx, 5, "dev"))
	require.NoError(t, env.engine.Unsubscribe(ctx, 5, "dev"))

	_, findErr := env.subscriptions.Find(ctx, 5, "dev")
	assert.True(t, IsNoData(findErr))
}

func TestMarkRead_UnknownMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 1, conn))

	err := env.engine.HandleFrame(ctx, 1, []byte("read:999"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, ErrorCode(err))
}

func TestMarkRead_PrivateReceiverOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	msg, err := env.messages.Save(ctx, model.NewPrivateMessage(1, 2, "hi"))
	require.NoError(t, err)

	// Not the receiver
	err = env.engine.MarkRead(ctx, 3, msg.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeAuthorization, ErrorCode(err))

	// The receiver
	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 2, conn))
	require.NoError(t, env.engine.MarkRead(ctx, 2, msg.ID))

	stored, err := env.messages.Load(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)

	frame := lastFrame(t, conn)
	assert.Equal(t, "read", frame["status"])
}

func TestMarkRead_TopicMessageByAnySubscriber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	msg, err := env.messages.Save(ctx, model.NewTopicMessage(1, "dev", "standup"))
	require.NoError(t, err)

	// No membership re-check on read
	require.NoError(t, env.engine.MarkRead(ctx, 42, msg.ID))

	stored, err := env.messages.Load(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
}

func TestHandleFrame_MalformedFrameKeepsConnectionState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 1, conn))

	err := env.engine.HandleFrame(ctx, 1, []byte("bogus"))
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	frame := lastFrame(t, conn)
	assert.Contains(t, frame, "error")

	// Connection stays registered
	_, ok := env.registry.Lookup(1)
	assert.True(t, ok)
}

func TestConnect_ReplaysSubscribedTopics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.topics.Save(ctx, model.NewTopic("dev", 1, ""))
	require.NoError(t, err)
	_, err = env.subscriptions.Save(ctx, model.NewSubscription(5, "dev"))
	require.NoError(t, err)

	pending, err := env.messages.Save(ctx, model.NewTopicMessage(1, "dev", "missed this"))
	require.NoError(t, err)

	conn := &stubConn{}
	require.NoError(t, env.engine.Connect(ctx, 5, conn))

	frames := decodeFrames(t, conn)
	require.Len(t, frames, 2)
	assert.Equal(t, "missed this", frames[0]["content"])
	assert.Equal(t, "connected", frames[1]["status"])

	stored, err := env.messages.Load(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, stored.Delivered)
}
