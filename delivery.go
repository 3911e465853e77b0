package libchat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/libchat/model"
)

// DeliveryEngine is the protocol state machine of the messaging core. It
// accepts inbound frames, classifies them, persists messages and
// subscriptions, and pushes outbound frames to live connections through the
// connection registry - or defers to storage when the target is absent.
//
// The engine is stateless per frame: the only protocol state is the identity
// bound at handshake, which every inbound message frame must match.
//
// Key responsibilities:
//   - Handshake bookkeeping: registry entry, durable presence, pending replay
//   - Private message path with store-and-forward for offline receivers
//   - Group message path with subscriber fan-out
//   - Subscribe/unsubscribe with retroactive topic history replay
//   - Content-based duplicate suppression (configurable window)
//
// Thread safety: safe for concurrent use from independent connection
// goroutines; the registry is the only shared state.
type DeliveryEngine struct {
	messageRepo         MessageRepository
	subscriptionRepo    SubscriptionRepository
	topicRepo           TopicRepository
	presenceRepo        PresenceRepository
	registry            *ConnectionRegistry
	userDirectory       UserDirectory
	logger              Logger
	notificationService NotificationService
	dedupWindow         time.Duration
	dedupScanLimit      int
}

// NewDeliveryEngine creates a new delivery engine with the provided options.
//
// Required options:
//   - WithRepositories: message, subscription, topic, and presence repositories
//   - WithRegistry: the shared connection registry
//   - WithLogger: logger instance
//
// Optional options:
//   - WithUserDirectory: receiver existence checks (default: none)
//   - WithDedupWindow: duplicate suppression window (default: unbounded)
//   - WithDedupScanLimit: messages inspected per dedup scan (default: 50)
//   - WithNotifications: event notifications (default: none)
func NewDeliveryEngine(opts ...Option) (*DeliveryEngine, error) {
	e := &DeliveryEngine{
		dedupScanLimit:      50,
		notificationService: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	// Validate required dependencies
	if e.messageRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageRepository is required (use WithRepositories)")
	}
	if e.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithRepositories)")
	}
	if e.topicRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicRepository is required (use WithRepositories)")
	}
	if e.presenceRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "PresenceRepository is required (use WithRepositories)")
	}
	if e.registry == nil {
		return nil, NewError(ErrCodeConfiguration, "ConnectionRegistry is required (use WithRegistry)")
	}
	if e.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	return e, nil
}

// Registry returns the connection registry the engine routes through.
func (e *DeliveryEngine) Registry() *ConnectionRegistry {
	return e.registry
}

// Connect performs the post-handshake sequence for a user whose identity has
// already been established by the transport: register the handle (closing any
// evicted predecessor), upsert durable presence, replay pending messages, then
// acknowledge with a connected frame.
func (e *DeliveryEngine) Connect(ctx context.Context, userID int64, conn Conn) error {
	if prev, replaced := e.registry.Register(userID, conn); replaced {
		e.logger.Infof("Replacing live connection for user %d", userID)
		if err := prev.Close(); err != nil {
			e.logger.Debugf("Failed to close replaced connection for user %d: %v", userID, err)
		}
	}

	if err := e.markConnected(ctx, userID); err != nil {
		// Presence is best-effort bookkeeping; the session stays up.
		e.logger.Errorf("Failed to update presence for user %d: %v", userID, err)
	}

	e.replayPrivate(ctx, userID, conn)
	e.replayUserTopics(ctx, userID, conn)

	if err := conn.Send(ConnectedFrame(userID)); err != nil {
		return NewErrorWithCause(ErrCodeDelivery, "failed to send connected acknowledgement", err)
	}

	e.logger.Infof("User %d connected", userID)
	return nil
}

// Disconnect removes the handle from the registry and records the durable
// disconnect. A stale handle (already replaced by a newer connection) is
// ignored entirely, so a late close cannot mark a reconnected user offline.
func (e *DeliveryEngine) Disconnect(ctx context.Context, userID int64, conn Conn) error {
	if !e.registry.Unregister(userID, conn) {
		e.logger.Debugf("Ignoring stale disconnect for user %d", userID)
		return nil
	}

	presence, err := e.presenceRepo.Get(ctx, userID)
	if err != nil {
		if IsNoData(err) {
			return nil
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load presence", err)
	}

	presence.MarkDisconnected()
	presence, err = e.presenceRepo.Upsert(ctx, presence)
	if err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to save presence", err)
	}

	if err := e.notificationService.NotifyPresenceChanged(ctx, presence); err != nil {
		e.logger.Warnf("Failed to send presence notification: %v", err)
	}

	e.logger.Infof("User %d disconnected", userID)
	return nil
}

// HandleFrame processes one inbound text frame from the connection bound to
// userID. Protocol, authorization, and not-found failures are answered with an
// error frame on the sender's connection; the connection stays open. The
// returned error is for transport-side logging.
func (e *DeliveryEngine) HandleFrame(ctx context.Context, userID int64, raw []byte) error {
	frame, err := ParseFrame(raw)
	if err != nil {
		e.sendError(userID, err)
		return err
	}

	switch f := frame.(type) {
	case PrivateMessageFrame:
		if f.SenderID != userID {
			err = NewError(ErrCodeProtocol,
				fmt.Sprintf("senderId %d does not match connection identity %d", f.SenderID, userID))
			break
		}
		_, _, err = e.SendPrivate(ctx, userID, f.ReceiverID, f.Content)

	case GroupMessageFrame:
		if f.SenderID != userID {
			err = NewError(ErrCodeProtocol,
				fmt.Sprintf("senderId %d does not match connection identity %d", f.SenderID, userID))
			break
		}
		_, _, err = e.SendGroup(ctx, userID, f.Topic, f.Content)

	case SubscribeFrame:
		err = e.Subscribe(ctx, userID, f.Topic)

	case UnsubscribeFrame:
		err = e.Unsubscribe(ctx, userID, f.Topic)

	case MarkReadFrame:
		err = e.MarkRead(ctx, userID, f.MessageID)

	default:
		err = NewError(ErrCodeProtocol, "unhandled frame type")
	}

	if err != nil {
		e.sendError(userID, err)
	}
	return err
}

// SendPrivate runs the private message path for a message from senderID to
// receiverID. If the receiver holds a live connection the frame is pushed to
// the receiver, echoed back to the sender, and the message is marked
// delivered; otherwise the message waits undelivered in storage and the
// sender receives an offline status frame.
//
// Duplicate suppression: if a recent message in the pair's history has the
// same sender and identical content (within the configured window), that
// message is reused instead of creating a new row.
//
// Returns the persisted message and whether it was delivered live.
func (e *DeliveryEngine) SendPrivate(ctx context.Context, senderID, receiverID int64, content string) (model.Message, bool, error) {
	if receiverID <= 0 {
		return model.Message{}, false, NewError(ErrCodeProtocol, "receiverId must be a positive numeric identity")
	}
	if content == "" {
		return model.Message{}, false, NewError(ErrCodeProtocol, "content must not be empty")
	}

	if e.userDirectory != nil {
		exists, err := e.userDirectory.Exists(ctx, receiverID)
		if err != nil {
			return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to check receiver", err)
		}
		if !exists {
			return model.Message{}, false, NewError(ErrCodeNotFound, fmt.Sprintf("unknown user: %d", receiverID))
		}
	}

	recent, err := e.messageRepo.FindConversation(ctx, senderID, receiverID, e.dedupScanLimit)
	if err != nil && !IsNoData(err) {
		return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to load conversation", err)
	}

	msg, reused := e.findDuplicate(recent, senderID, content)
	if !reused {
		msg, err = e.messageRepo.Save(ctx, model.NewPrivateMessage(senderID, receiverID, content))
		if err != nil {
			return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to save message", err)
		}
		e.logger.Debugf("Message created: id=%d, sender=%d, receiver=%d", msg.ID, senderID, receiverID)
	} else {
		e.logger.Debugf("Duplicate coalesced: id=%d, sender=%d, receiver=%d", msg.ID, senderID, receiverID)
	}

	receiverConn, online := e.registry.Lookup(receiverID)
	if !online {
		e.sendToUser(senderID, OfflineFrame(receiverID))
		e.logger.Infof("Receiver %d offline, message %d stored for replay", receiverID, msg.ID)
		return msg, false, nil
	}

	if err := receiverConn.Send(MessageFrame(msg)); err != nil {
		e.deliveryFailed(ctx, msg, receiverID, err)
		e.sendToUser(senderID, OfflineFrame(receiverID))
		return msg, false, nil
	}

	// Echo the confirmed send back to the sender's own client.
	e.sendToUser(senderID, MessageFrame(msg))

	if !msg.Delivered {
		msg.MarkDelivered()
		msg, err = e.messageRepo.Save(ctx, msg)
		if err != nil {
			return msg, true, NewErrorWithCause(ErrCodeDatabase, "failed to mark message delivered", err)
		}
	}

	e.logger.Infof("Delivered message %d to user %d", msg.ID, receiverID)
	return msg, true, nil
}

// SendGroup runs the group message path for a message from senderID to a
// topic. The topic must exist and the sender must hold a subscription to it
// (senders self-subscribe before posting; there is no implicit membership).
// The frame fans out to every current subscriber with a live connection,
// including the sender. The message is marked delivered if at least one
// subscriber received it live.
//
// Returns the persisted message and whether at least one live push succeeded.
func (e *DeliveryEngine) SendGroup(ctx context.Context, senderID int64, topic, content string) (model.Message, bool, error) {
	if content == "" {
		return model.Message{}, false, NewError(ErrCodeProtocol, "content must not be empty")
	}

	if _, err := e.topicRepo.GetByName(ctx, topic); err != nil {
		if IsNoData(err) {
			return model.Message{}, false, NewError(ErrCodeNotFound, fmt.Sprintf("topic not found: %s", topic))
		}
		return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to load topic", err)
	}

	if _, err := e.subscriptionRepo.Find(ctx, senderID, topic); err != nil {
		if IsNoData(err) {
			return model.Message{}, false, NewError(ErrCodeAuthorization,
				fmt.Sprintf("user %d is not subscribed to topic %s", senderID, topic))
		}
		return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to check subscription", err)
	}

	recent, err := e.messageRepo.FindRecentByTopic(ctx, topic, e.dedupScanLimit)
	if err != nil && !IsNoData(err) {
		return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to load topic history", err)
	}

	msg, reused := e.findDuplicate(recent, senderID, content)
	if !reused {
		msg, err = e.messageRepo.Save(ctx, model.NewTopicMessage(senderID, topic, content))
		if err != nil {
			return model.Message{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to save message", err)
		}
		e.logger.Debugf("Message created: id=%d, sender=%d, topic=%s", msg.ID, senderID, topic)
	} else {
		e.logger.Debugf("Duplicate coalesced: id=%d, sender=%d, topic=%s", msg.ID, senderID, topic)
	}

	subscriptions, err := e.subscriptionRepo.FindByTopic(ctx, topic)
	if err != nil && !IsNoData(err) {
		return msg, false, NewErrorWithCause(ErrCodeDatabase, "failed to load subscriptions", err)
	}

	pushed := 0
	for _, sub := range subscriptions {
		conn, ok := e.registry.Lookup(sub.UserID)
		if !ok {
			continue
		}
		if err := conn.Send(MessageFrame(msg)); err != nil {
			e.deliveryFailed(ctx, msg, sub.UserID, err)
			continue
		}
		pushed++
	}

	if pushed > 0 && !msg.Delivered {
		msg.MarkDelivered()
		msg, err = e.messageRepo.Save(ctx, msg)
		if err != nil {
			return msg, true, NewErrorWithCause(ErrCodeDatabase, "failed to mark message delivered", err)
		}
	}

	e.logger.Infof("Posted message %d to topic %s (%d/%d subscribers live)",
		msg.ID, topic, pushed, len(subscriptions))
	return msg, pushed > 0, nil
}

// Subscribe creates a subscription for (userID, topic) if one does not already
// exist, acknowledges it, then replays all currently undelivered topic
// messages to the subscriber's connection. A late subscriber retroactively
// receives topic history that predates the subscription.
func (e *DeliveryEngine) Subscribe(ctx context.Context, userID int64, topic string) error {
	if _, err := e.topicRepo.GetByName(ctx, topic); err != nil {
		if IsNoData(err) {
			return NewError(ErrCodeNotFound, fmt.Sprintf("topic not found: %s", topic))
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load topic", err)
	}

	_, err := e.subscriptionRepo.Find(ctx, userID, topic)
	switch {
	case err == nil:
		e.logger.Debugf("User %d already subscribed to topic %s", userID, topic)
	case IsNoData(err):
		sub, saveErr := e.subscriptionRepo.Save(ctx, model.NewSubscription(userID, topic))
		if saveErr != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to save subscription", saveErr)
		}
		if notifyErr := e.notificationService.NotifySubscriptionCreated(ctx, sub); notifyErr != nil {
			e.logger.Warnf("Failed to send subscription notification: %v", notifyErr)
		}
		e.logger.Infof("User %d subscribed to topic %s", userID, topic)
	default:
		return NewErrorWithCause(ErrCodeDatabase, "failed to check subscription", err)
	}

	e.sendToUser(userID, SubscribedFrame(topic))

	if conn, ok := e.registry.Lookup(userID); ok {
		e.replayTopic(ctx, topic, conn)
	}
	return nil
}

// Unsubscribe deletes the subscription row for (userID, topic) and
// acknowledges. Unsubscribing an absent row is not an error.
func (e *DeliveryEngine) Unsubscribe(ctx context.Context, userID int64, topic string) error {
	if err := e.subscriptionRepo.Delete(ctx, userID, topic); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to delete subscription", err)
	}

	if err := e.notificationService.NotifySubscriptionRemoved(ctx, userID, topic); err != nil {
		e.logger.Warnf("Failed to send unsubscribe notification: %v", err)
	}

	e.sendToUser(userID, UnsubscribedFrame(topic))
	e.logger.Infof("User %d unsubscribed from topic %s", userID, topic)
	return nil
}

// MarkRead flips the read flag of a message. The caller must be the private
// receiver of the message, or the message must be a topic message (any
// subscriber may mark a topic message read).
func (e *DeliveryEngine) MarkRead(ctx context.Context, userID, messageID int64) error {
	msg, err := e.messageRepo.Load(ctx, messageID)
	if err != nil {
		if IsNoData(err) {
			return NewError(ErrCodeNotFound, fmt.Sprintf("unknown message id: %d", messageID))
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load message", err)
	}

	if msg.IsPrivate() && msg.ReceiverID.Int64 != userID {
		return NewError(ErrCodeAuthorization,
			fmt.Sprintf("user %d is not the receiver of message %d", userID, messageID))
	}

	if !msg.Read {
		msg.MarkRead()
		if _, err := e.messageRepo.Save(ctx, msg); err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to mark message read", err)
		}
	}

	e.sendToUser(userID, ReadFrame(messageID))
	return nil
}

// findDuplicate applies the dedup heuristic to a newest-first slice of recent
// messages: the most recent message with the same sender and identical content
// (within the window, when one is configured) is "the" message. This is a
// replay guard, not a strict idempotency key.
func (e *DeliveryEngine) findDuplicate(recent []model.Message, senderID int64, content string) (model.Message, bool) {
	for _, m := range recent {
		if m.SenderID != senderID || m.Content != content {
			continue
		}
		if e.dedupWindow > 0 && time.Since(m.CreatedAt) > e.dedupWindow {
			continue
		}
		return m, true
	}
	return model.Message{}, false
}

// replayPrivate pushes all undelivered private messages for userID to conn,
// marking each delivered as it is sent.
func (e *DeliveryEngine) replayPrivate(ctx context.Context, userID int64, conn Conn) {
	pending, err := e.messageRepo.FindUndeliveredForReceiver(ctx, userID)
	if err != nil {
		if !IsNoData(err) {
			e.logger.Errorf("Failed to load pending messages for user %d: %v", userID, err)
		}
		return
	}

	replayed := 0
	for _, msg := range pending {
		if err := conn.Send(MessageFrame(msg)); err != nil {
			e.deliveryFailed(ctx, msg, userID, err)
			continue
		}
		msg.MarkDelivered()
		if _, err := e.messageRepo.Save(ctx, msg); err != nil {
			e.logger.Errorf("Failed to mark message %d delivered: %v", msg.ID, err)
			continue
		}
		replayed++
	}

	if replayed > 0 {
		e.logger.Infof("Replayed %d pending private messages to user %d", replayed, userID)
	}
}

// replayUserTopics replays undelivered messages of every topic userID is
// subscribed to.
func (e *DeliveryEngine) replayUserTopics(ctx context.Context, userID int64, conn Conn) {
	subscriptions, err := e.subscriptionRepo.FindByUser(ctx, userID)
	if err != nil {
		if !IsNoData(err) {
			e.logger.Errorf("Failed to load subscriptions for user %d: %v", userID, err)
		}
		return
	}

	for _, sub := range subscriptions {
		e.replayTopic(ctx, sub.Topic, conn)
	}
}

// replayTopic pushes all undelivered messages of a topic to conn, marking each
// delivered as it is sent.
func (e *DeliveryEngine) replayTopic(ctx context.Context, topic string, conn Conn) {
	pending, err := e.messageRepo.FindUndeliveredForTopic(ctx, topic)
	if err != nil {
		if !IsNoData(err) {
			e.logger.Errorf("Failed to load pending messages for topic %s: %v", topic, err)
		}
		return
	}

	for _, msg := range pending {
		if err := conn.Send(MessageFrame(msg)); err != nil {
			e.logger.Warnf("Failed to replay message %d for topic %s: %v", msg.ID, topic, err)
			continue
		}
		msg.MarkDelivered()
		if _, err := e.messageRepo.Save(ctx, msg); err != nil {
			e.logger.Errorf("Failed to mark message %d delivered: %v", msg.ID, err)
		}
	}
}

// deliveryFailed handles a push to a registered-but-dead connection: logged
// and notified, the message simply stays undelivered for later replay. A
// single connection's failure never affects other connections.
func (e *DeliveryEngine) deliveryFailed(ctx context.Context, msg model.Message, recipientID int64, err error) {
	e.logger.Warnf("Delivery of message %d to user %d failed: %v", msg.ID, recipientID, err)
	if notifyErr := e.notificationService.NotifyDeliveryFailure(ctx, msg, recipientID, err); notifyErr != nil {
		e.logger.Warnf("Failed to send delivery failure notification: %v", notifyErr)
	}
}

// sendToUser pushes a frame to userID's live connection, if any. Best-effort:
// a missing or dead connection is not an error at this layer.
func (e *DeliveryEngine) sendToUser(userID int64, frame []byte) {
	conn, ok := e.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := conn.Send(frame); err != nil {
		e.logger.Debugf("Failed to push frame to user %d: %v", userID, err)
	}
}

// sendError answers a failed inbound frame with an error frame on the
// originating connection. Database errors are reported generically so internal
// details stay out of the wire.
func (e *DeliveryEngine) sendError(userID int64, err error) {
	text := "internal error"
	var libchatErr *Error
	if errors.As(err, &libchatErr) && libchatErr.Code != ErrCodeDatabase {
		text = libchatErr.Message
	}
	e.sendToUser(userID, ErrorFrame(text))
}

// markConnected upserts the durable presence record for a connecting user.
func (e *DeliveryEngine) markConnected(ctx context.Context, userID int64) error {
	presence, err := e.presenceRepo.Get(ctx, userID)
	switch {
	case err == nil:
		presence.Connected = true
		presence.LastConnectedAt = time.Now()
	case IsNoData(err):
		presence = model.NewPresence(userID)
	default:
		return NewErrorWithCause(ErrCodeDatabase, "failed to load presence", err)
	}

	presence, err = e.presenceRepo.Upsert(ctx, presence)
	if err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to save presence", err)
	}

	if err := e.notificationService.NotifyPresenceChanged(ctx, presence); err != nil {
		e.logger.Warnf("Failed to send presence notification: %v", err)
	}
	return nil
}
