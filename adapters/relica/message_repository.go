package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/libchat"
	"github.com/coregx/libchat/model"
	"github.com/coregx/relica"
)

// MessageRepository implements libchat.MessageRepository using Relica.
type MessageRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewMessageRepository creates a new MessageRepository with default table prefix.
func NewMessageRepository(sqlDB *sql.DB, driverName string) *MessageRepository {
	return &MessageRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "chat_"}
}

// NewMessageRepositoryWithPrefix creates a new MessageRepository with custom table prefix.
func NewMessageRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *MessageRepository {
	return &MessageRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *MessageRepository) tableName() string {
	return r.tablePrefix + "message"
}

// Load retrieves a message by ID.
func (r *MessageRepository) Load(ctx context.Context, id int64) (model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return msg, libchat.ErrNoData
	}
	if err != nil {
		return msg, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load message", err)
	}
	return msg, nil
}

// Save creates or updates a message.
func (r *MessageRepository) Save(ctx context.Context, m model.Message) (model.Message, error) {
	if m.ID == 0 {
		// Insert new message using Model() API
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to insert message", err)
		}
		// m.ID is auto-populated by Model().Insert()
		return m, nil
	}

	// Update existing message (delivered/read flag flips)
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to update message", err)
	}
	return m, nil
}

// FindConversation retrieves private messages between two users in either
// direction, newest first.
func (r *MessageRepository) FindConversation(ctx context.Context, userA, userB int64, limit int) ([]model.Message, error) {
	var messages []model.Message
	q := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		OrderBy("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.All(&messages); err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load conversation", err)
	}
	return messages, nil
}

// FindRecentByTopic retrieves messages posted to a topic, newest first.
func (r *MessageRepository) FindRecentByTopic(ctx context.Context, topic string, limit int) ([]model.Message, error) {
	var messages []model.Message
	q := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("topic = ?", topic).
		OrderBy("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.All(&messages); err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load topic history", err)
	}
	return messages, nil
}

// FindUndeliveredForReceiver retrieves undelivered private messages for a
// user, oldest first (replay order).
func (r *MessageRepository) FindUndeliveredForReceiver(ctx context.Context, receiverID int64) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("receiver_id = ? AND delivered = ?", receiverID, false).
		OrderBy("created_at ASC, id ASC").
		All(&messages)
	if err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load undelivered messages", err)
	}
	return messages, nil
}

// FindUndeliveredForTopic retrieves undelivered topic messages, oldest first
// (replay order).
func (r *MessageRepository) FindUndeliveredForTopic(ctx context.Context, topic string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("topic = ? AND delivered = ?", topic, false).
		OrderBy("created_at ASC, id ASC").
		All(&messages)
	if err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load undelivered topic messages", err)
	}
	return messages, nil
}
