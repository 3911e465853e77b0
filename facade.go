package libchat

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/libchat/model"
)

// Messenger is the synchronous facade used by the rest of the application
// (surrounding services, administrative tooling) to originate messages and
// manage topics without dealing with the wire protocol. Every call that needs
// to reach a live client re-enters the delivery engine, so the facade and the
// live-connection protocol share one delivery code path.
//
// Thread safety: safe for concurrent use.
type Messenger struct {
	engine           *DeliveryEngine
	messageRepo      MessageRepository
	subscriptionRepo SubscriptionRepository
	topicRepo        TopicRepository
	presenceRepo     PresenceRepository
	userDirectory    UserDirectory
	logger           Logger
}

// MessengerOption is a function that configures a Messenger.
type MessengerOption func(*Messenger) error

// NewMessenger creates a new Messenger with the provided options.
//
// Required options:
//   - WithMessengerEngine: the delivery engine
//   - WithMessengerRepositories: message, subscription, topic, and presence repositories
//   - WithMessengerLogger: logger instance
//
// Optional options:
//   - WithMessengerUserDirectory: user enumeration for admin dashboard views
func NewMessenger(opts ...MessengerOption) (*Messenger, error) {
	m := &Messenger{}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply messenger option", err)
		}
	}

	// Validate required dependencies
	if m.engine == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryEngine is required (use WithMessengerEngine)")
	}
	if m.messageRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageRepository is required (use WithMessengerRepositories)")
	}
	if m.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithMessengerRepositories)")
	}
	if m.topicRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicRepository is required (use WithMessengerRepositories)")
	}
	if m.presenceRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "PresenceRepository is required (use WithMessengerRepositories)")
	}
	if m.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithMessengerLogger)")
	}

	return m, nil
}

// WithMessengerEngine sets the delivery engine the facade routes through.
func WithMessengerEngine(engine *DeliveryEngine) MessengerOption {
	return func(m *Messenger) error {
		if engine == nil {
			return fmt.Errorf("engine cannot be nil")
		}
		m.engine = engine
		return nil
	}
}

// WithMessengerRepositories sets the required repository dependencies.
func WithMessengerRepositories(
	messageRepo MessageRepository,
	subscriptionRepo SubscriptionRepository,
	topicRepo TopicRepository,
	presenceRepo PresenceRepository,
) MessengerOption {
	return func(m *Messenger) error {
		if messageRepo == nil {
			return fmt.Errorf("messageRepo cannot be nil")
		}
		if subscriptionRepo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}
		if topicRepo == nil {
			return fmt.Errorf("topicRepo cannot be nil")
		}
		if presenceRepo == nil {
			return fmt.Errorf("presenceRepo cannot be nil")
		}

		m.messageRepo = messageRepo
		m.subscriptionRepo = subscriptionRepo
		m.topicRepo = topicRepo
		m.presenceRepo = presenceRepo
		return nil
	}
}

// WithMessengerLogger sets the logger instance.
func WithMessengerLogger(logger Logger) MessengerOption {
	return func(m *Messenger) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// WithMessengerUserDirectory sets the collaborator used to enumerate users for
// the admin dashboard view. Required only for FetchAdminConversations.
func WithMessengerUserDirectory(directory UserDirectory) MessengerOption {
	return func(m *Messenger) error {
		if directory == nil {
			return fmt.Errorf("user directory cannot be nil")
		}
		m.userDirectory = directory
		return nil
	}
}

// SendPrivateRequest represents a request to send a private message.
type SendPrivateRequest struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

// Validate implements request validation.
func (r SendPrivateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SenderID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ReceiverID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Content, validation.Required),
	)
}

// SendGroupRequest represents a request to post a message to a topic.
type SendGroupRequest struct {
	SenderID int64  `json:"senderId"`
	Topic    string `json:"topic"`
	Content  string `json:"content"`
}

// Validate implements request validation.
func (r SendGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SenderID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Topic, validation.Required, validation.Length(1, 190)),
		validation.Field(&r.Content, validation.Required),
	)
}

// CreateTopicRequest represents an administrative request to create a topic.
type CreateTopicRequest struct {
	Name        string `json:"name"`
	CreatorID   int64  `json:"creatorId"`
	Description string `json:"description"`
}

// Validate implements request validation.
func (r CreateTopicRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 190)),
		validation.Field(&r.CreatorID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Description, validation.Length(0, 1000)),
	)
}

// SendPrivate sends a private message through the delivery engine. If the
// receiver is connected the message is pushed live; otherwise it waits in
// storage for replay on the receiver's next connect.
//
// Returns the persisted message (Delivered reflects the live push outcome).
func (m *Messenger) SendPrivate(ctx context.Context, req SendPrivateRequest) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid send request", err)
	}

	msg, delivered, err := m.engine.SendPrivate(ctx, req.SenderID, req.ReceiverID, req.Content)
	if err != nil {
		return nil, err
	}

	m.logger.Infof("Facade sent private message %d (sender=%d, receiver=%d, delivered=%t)",
		msg.ID, req.SenderID, req.ReceiverID, delivered)
	return &msg, nil
}

// SendGroup posts a message to a topic through the delivery engine. The sender
// must already be subscribed to the topic.
func (m *Messenger) SendGroup(ctx context.Context, req SendGroupRequest) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid send request", err)
	}

	msg, delivered, err := m.engine.SendGroup(ctx, req.SenderID, req.Topic, req.Content)
	if err != nil {
		return nil, err
	}

	m.logger.Infof("Facade posted message %d to topic %s (sender=%d, delivered=%t)",
		msg.ID, req.Topic, req.SenderID, delivered)
	return &msg, nil
}

// Subscribe subscribes a user to a topic, replaying undelivered topic history
// to the user's live connection, if any.
func (m *Messenger) Subscribe(ctx context.Context, userID int64, topic string) error {
	if userID <= 0 {
		return NewError(ErrCodeValidation, "user ID is required")
	}
	if topic == "" {
		return NewError(ErrCodeValidation, "topic is required")
	}
	return m.engine.Subscribe(ctx, userID, topic)
}

// Unsubscribe removes a user's subscription to a topic. Idempotent.
func (m *Messenger) Unsubscribe(ctx context.Context, userID int64, topic string) error {
	if userID <= 0 {
		return NewError(ErrCodeValidation, "user ID is required")
	}
	if topic == "" {
		return NewError(ErrCodeValidation, "topic is required")
	}
	return m.engine.Unsubscribe(ctx, userID, topic)
}

// ListSubscriptions returns all subscriptions held by a user.
// Returns empty slice if none found (not an error).
func (m *Messenger) ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error) {
	if userID <= 0 {
		return nil, NewError(ErrCodeValidation, "user ID is required")
	}

	subscriptions, err := m.subscriptionRepo.FindByUser(ctx, userID)
	if err != nil {
		if IsNoData(err) {
			return []model.Subscription{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load subscriptions", err)
	}
	return subscriptions, nil
}

// ListTopics returns the full topic catalog.
func (m *Messenger) ListTopics(ctx context.Context) ([]model.Topic, error) {
	topics, err := m.topicRepo.List(ctx)
	if err != nil {
		if IsNoData(err) {
			return []model.Topic{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load topics", err)
	}
	return topics, nil
}

// CreateTopic creates a new topic. Administrative operation; the name must be
// unique. If a topic with the same name already exists, returns the existing
// topic.
func (m *Messenger) CreateTopic(ctx context.Context, req CreateTopicRequest) (*model.Topic, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid topic request", err)
	}

	existing, err := m.topicRepo.GetByName(ctx, req.Name)
	if err == nil {
		m.logger.Warnf("Topic already exists: %s", req.Name)
		return &existing, nil
	}
	if !IsNoData(err) {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to check topic", err)
	}

	topic, err := m.topicRepo.Save(ctx, model.NewTopic(req.Name, req.CreatorID, req.Description))
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to save topic", err)
	}

	m.logger.Infof("Topic created: id=%d, name=%s, creator=%d", topic.ID, topic.Name, topic.CreatorID)
	return &topic, nil
}

// RemoveUserFromTopic forcibly removes a user's subscription to a topic.
// Administrative operation; the removed user's live connection, if any,
// receives an unsubscribed frame through the delivery engine.
func (m *Messenger) RemoveUserFromTopic(ctx context.Context, userID int64, topic string) error {
	if userID <= 0 {
		return NewError(ErrCodeValidation, "user ID is required")
	}
	if topic == "" {
		return NewError(ErrCodeValidation, "topic is required")
	}

	if err := m.engine.Unsubscribe(ctx, userID, topic); err != nil {
		return err
	}

	m.logger.Infof("User %d removed from topic %s by admin action", userID, topic)
	return nil
}

// Conversation is one private message thread between two users, newest first.
type Conversation struct {
	UserA    int64           `json:"userA"`
	UserB    int64           `json:"userB"`
	Messages []model.Message `json:"messages"`
}

// FetchConversation returns the private messages exchanged between two users,
// newest first, up to limit (0 = no limit).
func (m *Messenger) FetchConversation(ctx context.Context, userA, userB int64, limit int) (*Conversation, error) {
	if userA <= 0 || userB <= 0 {
		return nil, NewError(ErrCodeValidation, "both user IDs are required")
	}

	messages, err := m.messageRepo.FindConversation(ctx, userA, userB, limit)
	if err != nil && !IsNoData(err) {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load conversation", err)
	}

	return &Conversation{UserA: userA, UserB: userB, Messages: messages}, nil
}

// FetchAdminConversations returns one conversation thread per non-admin user
// against the admin identity, for support-style dashboards. Requires a user
// directory (WithMessengerUserDirectory).
func (m *Messenger) FetchAdminConversations(ctx context.Context, adminID int64) ([]Conversation, error) {
	if adminID <= 0 {
		return nil, NewError(ErrCodeValidation, "admin ID is required")
	}
	if m.userDirectory == nil {
		return nil, NewError(ErrCodeConfiguration, "user directory is required for admin conversations")
	}

	userIDs, err := m.userDirectory.ListIDs(ctx)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list users", err)
	}

	conversations := make([]Conversation, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == adminID {
			continue
		}
		conv, err := m.FetchConversation(ctx, adminID, userID, 0)
		if err != nil {
			m.logger.Errorf("Failed to load conversation with user %d: %v", userID, err)
			continue
		}
		conversations = append(conversations, *conv)
	}

	return conversations, nil
}

// IsOnline reports a user's durable presence state. This consults the
// presence store, not the live registry.
func (m *Messenger) IsOnline(ctx context.Context, userID int64) (bool, error) {
	presence, err := m.presenceRepo.Get(ctx, userID)
	if err != nil {
		if IsNoData(err) {
			return false, nil
		}
		return false, NewErrorWithCause(ErrCodeDatabase, "failed to load presence", err)
	}
	return presence.Connected, nil
}

// LastSeen returns a user's last-connected time from the presence store.
// Returns a NOT_FOUND error if the user has never connected.
func (m *Messenger) LastSeen(ctx context.Context, userID int64) (*model.Presence, error) {
	presence, err := m.presenceRepo.Get(ctx, userID)
	if err != nil {
		if IsNoData(err) {
			return nil, NewErrorWithCause(ErrCodeNotFound, fmt.Sprintf("no presence record for user %d", userID), err)
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load presence", err)
	}
	return &presence, nil
}
