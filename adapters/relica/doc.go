// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// This package provides production-ready implementations of all libchat repository interfaces:
//   - MessageRepository
//   - SubscriptionRepository
//   - TopicRepository
//   - PresenceRepository
//   - UserDirectory
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/libchat"
//	    "github.com/coregx/libchat/adapters/relica"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	// Open database connection
//	db, err := sql.Open("mysql", "user:pass@tcp(localhost:3306)/libchat_db?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create repositories (driverName should be "mysql", "postgres", or "sqlite3")
//	repos := relica.NewRepositories(db, "mysql")
//
//	// Create the delivery engine
//	engine, err := libchat.NewDeliveryEngine(
//	    libchat.WithRepositories(repos.Message, repos.Subscription, repos.Topic, repos.Presence),
//	    libchat.WithRegistry(libchat.NewConnectionRegistry()),
//	    libchat.WithLogger(logger),
//	)
package relica
