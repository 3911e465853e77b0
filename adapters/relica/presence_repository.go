package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/libchat"
	"github.com/coregx/libchat/model"
	"github.com/coregx/relica"
)

// PresenceRepository implements libchat.PresenceRepository using Relica.
type PresenceRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewPresenceRepository creates a new PresenceRepository with default table prefix.
func NewPresenceRepository(sqlDB *sql.DB, driverName string) *PresenceRepository {
	return &PresenceRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "chat_"}
}

// NewPresenceRepositoryWithPrefix creates a new PresenceRepository with custom table prefix.
func NewPresenceRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *PresenceRepository {
	return &PresenceRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *PresenceRepository) tableName() string {
	return r.tablePrefix + "presence"
}

// Get retrieves the presence row for a user.
func (r *PresenceRepository) Get(ctx context.Context, userID int64) (model.Presence, error) {
	var p model.Presence
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ?", userID).
		One(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return p, libchat.ErrNoData
	}
	if err != nil {
		return p, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to load presence", err)
	}
	return p, nil
}

// Upsert creates or replaces the presence row for p.UserID.
func (r *PresenceRepository) Upsert(ctx context.Context, p model.Presence) (model.Presence, error) {
	existing, err := r.Get(ctx, p.UserID)
	if err != nil {
		if !libchat.IsNoData(err) {
			return p, err
		}
		if insErr := r.db.WithContext(ctx).Model(&p).Table(r.tableName()).Insert(); insErr != nil {
			return p, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to insert presence", insErr)
		}
		return p, nil
	}

	p.ID = existing.ID
	if updErr := r.db.WithContext(ctx).Model(&p).Table(r.tableName()).Update(); updErr != nil {
		return p, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to update presence", updErr)
	}
	return p, nil
}
