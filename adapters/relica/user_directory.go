package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/libchat"
	"github.com/coregx/relica"
)

// UserDirectory implements libchat.UserDirectory against an existing
// application user table. The table only needs an integer id column.
type UserDirectory struct {
	db        *relica.DB
	tableName string
}

// NewUserDirectory creates a UserDirectory backed by the "user" table.
func NewUserDirectory(sqlDB *sql.DB, driverName string) *UserDirectory {
	return &UserDirectory{db: relica.WrapDB(sqlDB, driverName), tableName: "user"}
}

// NewUserDirectoryWithTable creates a UserDirectory backed by a custom table.
func NewUserDirectoryWithTable(sqlDB *sql.DB, driverName, table string) *UserDirectory {
	return &UserDirectory{db: relica.WrapDB(sqlDB, driverName), tableName: table}
}

// Exists reports whether a user with the given ID is present.
func (d *UserDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := d.db.WithContext(ctx).Select("COUNT(*)").
		From(d.tableName).
		Where("id = ?", userID).
		One(&count)
	if err != nil {
		return false, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to check user existence", err)
	}
	return count > 0, nil
}

// ListIDs returns all user IDs in ascending order.
func (d *UserDirectory) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.WithContext(ctx).Select("id").
		From(d.tableName).
		OrderBy("id ASC").
		All(&ids)
	if err != nil {
		return nil, libchat.NewErrorWithCause(libchat.ErrCodeDatabase, "failed to list user ids", err)
	}
	return ids, nil
}
