package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/libchat"
	"github.com/coregx/libchat/model"
	"github.com/coregx/relica"
)

// SubscriptionRepository implements libchat.SubscriptionRepository using Relica.
type SubscriptionRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "chat_"}
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriptionRepository) tableName() string {
	return r.tablePrefix + "subscription"
}

// Find retrieves the subscription for a (user, topic) pair.
func (r *SubscriptionRepository) Find(ctx context.Context, userID int64, topic string) (model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ? AND topic = ?", userID, topic).
		One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, libchat.ErrNoData
	}
	if err != nil {
		return sub, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load subscription", err)
	}
	return sub, nil
}

// FindByTopic retrieves the fan-out list for a topic.
func (r *SubscriptionRepository) FindByTopic(ctx context.Context, topic string) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("topic = ?", topic).
		OrderBy("created_at ASC").
		All(&subs)
	if err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load topic subscriptions", err)
	}
	return subs, nil
}

// FindByUser retrieves all subscriptions held by a user.
func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID int64) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ?", userID).
		OrderBy("created_at ASC").
		All(&subs)
	if err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load user subscriptions", err)
	}
	return subs, nil
}

// Save creates or updates a subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, s model.Subscription) (model.Subscription, error) {
	if s.ID == 0 {
		err := r.db.WithContext(ctx).Model(&s).Table(r.tableName()).Insert()
		if err != nil {
			return s, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to insert subscription", err)
		}
		return s, nil
	}

	err := r.db.WithContext(ctx).Model(&s).Table(r.tableName()).Update()
	if err != nil {
		return s, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to update subscription", err)
	}
	return s, nil
}

// Delete removes the subscription row for a (user, topic) pair.
// Deleting an absent row is not an error.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID int64, topic string) error {
	sub, err := r.Find(ctx, userID, topic)
	if err != nil {
		if libchat.IsNoData(err) {
			return nil
		}
		return err
	}

	// Delete using Model() API - auto WHERE id = ?
	if err := r.db.WithContext(ctx).Model(&sub).Table(r.tableName()).Delete(); err != nil {
		return libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to delete subscription", err)
	}
	return nil
}
