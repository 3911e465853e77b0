// Package libchat provides a real-time messaging and presence core for Go
// applications: a connection registry, a store-and-forward
// delivery pipeline for private and topic messages, and a subscribe/unsubscribe
// pub-sub layer, all driven by a single long-lived connection per user.
//
// Works both as a library for embedding in your application AND as a standalone
// chat server (see cmd/chat-server).
//
// # Features
//
//   - Store-and-Forward Delivery: messages to offline recipients are persisted
//     and replayed on their next connect or subscribe
//   - At-Least-Once Semantics with content-based duplicate suppression
//     (configurable dedup window)
//   - Single Live Connection per user with last-connect-wins replacement
//   - Durable Presence tracking alongside the in-memory registry
//   - Topic Messaging with explicit subscriber lists and retroactive history
//     replay for late subscribers
//   - Repository Pattern for clean data access abstraction
//   - Options Pattern for service construction
//   - Pluggable Logger and NotificationService
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters
//   - Embedded Migrations for easy database setup
//
// # Quick Start
//
// First, connect to the database and apply migrations:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/libchat"
//	    "github.com/coregx/libchat/adapters/relica"
//	    "github.com/coregx/libchat/ws"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	db, _ := sql.Open("mysql", "user:pass@tcp(localhost:3306)/libchat?parseTime=true")
//
// Use production-ready Relica adapters:
//
//	// Create all repositories at once
//	repos := relica.NewRepositories(db, "mysql")
//
//	// Shared in-memory registry of live connections
//	registry := libchat.NewConnectionRegistry()
//
//	// Create the delivery engine with the Options Pattern
//	engine, _ := libchat.NewDeliveryEngine(
//	    libchat.WithRepositories(repos.Message, repos.Subscription, repos.Topic, repos.Presence),
//	    libchat.WithRegistry(registry),
//	    libchat.WithLogger(logger),
//	)
//
//	// Synchronous facade for other subsystems
//	messenger, _ := libchat.NewMessenger(
//	    libchat.WithMessengerEngine(engine),
//	    libchat.WithMessengerRepositories(repos.Message, repos.Subscription, repos.Topic, repos.Presence),
//	    libchat.WithMessengerLogger(logger),
//	)
//
// Send a private message from another subsystem:
//
//	msg, err := messenger.SendPrivate(ctx, libchat.SendPrivateRequest{
//	    SenderID:   1,
//	    ReceiverID: 2,
//	    Content:    "Your reserved book is available.",
//	})
//
// Serve the live WebSocket endpoint:
//
//	http.Handle("/chat", ws.NewHandler(engine, logger))
//
// # Wire Protocol
//
// Inbound text frames on the /chat connection:
//
//	{"senderId":N,"receiverId":M,"content":"..."}   private message
//	{"senderId":N,"topic":"t","content":"..."}      group message
//	subscribe:<topic>                               join topic
//	unsubscribe:<topic>                             leave topic
//	read:<messageId>                                mark read
//
// Outbound frames are JSON status/error objects plus serialized messages; see
// frame.go for the full set.
//
// # Architecture
//
// The delivery engine is the single protocol state machine: inbound frames and
// facade calls share one code path through the connection registry. The
// registry is the only state shared across connection goroutines; all durable
// state lives behind repository interfaces.
package libchat
