// Package main provides the chat server executable with the WebSocket
// endpoint and HTTP API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coregx/libchat"
	relicaadapters "github.com/coregx/libchat/adapters/relica"
	"github.com/coregx/libchat/cmd/chat-server/internal/api"
	"github.com/coregx/libchat/cmd/chat-server/internal/config"
	"github.com/coregx/libchat/ws"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SimpleLogger implements libchat.Logger for standard logging.
type SimpleLogger struct{}

func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}
func (l *SimpleLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
func (l *SimpleLogger) Info(message string) {
	log.Printf("[INFO] %s", message)
}

func main() {
	log.Println("🚀 Starting Chat Server v0.1.0...")

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("📝 Configuration loaded:")
	log.Printf("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("   Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	log.Printf("   Dedup window: %ds (0 = unbounded)", cfg.Chat.DedupWindowSeconds)
	log.Printf("   Send queue size: %d", cfg.Chat.SendQueueSize)

	// Connect to database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	// Create logger
	logger := &SimpleLogger{}

	// Create repositories using Relica adapters
	var repos *relicaadapters.Repositories
	if cfg.Database.Prefix != "" {
		repos = relicaadapters.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	} else {
		repos = relicaadapters.NewRepositories(db, cfg.Database.Driver)
	}
	log.Println("✅ Repositories initialized (Relica adapters)")

	// Create notification service
	var notificationService libchat.NotificationService
	if cfg.Chat.EnableNotifications {
		notificationService = libchat.NewLoggingNotificationService(logger)
	} else {
		notificationService = &libchat.NoOpNotificationService{}
	}

	// Create connection registry and delivery engine
	registry := libchat.NewConnectionRegistry()

	engineOpts := []libchat.Option{
		libchat.WithRepositories(repos.Message, repos.Subscription, repos.Topic, repos.Presence),
		libchat.WithRegistry(registry),
		libchat.WithLogger(logger),
		libchat.WithNotifications(notificationService),
		libchat.WithDedupScanLimit(cfg.Chat.DedupScanLimit),
	}
	if cfg.Chat.DedupWindowSeconds > 0 {
		engineOpts = append(engineOpts,
			libchat.WithDedupWindow(time.Duration(cfg.Chat.DedupWindowSeconds)*time.Second))
	}

	var directory libchat.UserDirectory
	if cfg.Chat.UserTable != "" {
		directory = relicaadapters.NewUserDirectoryWithTable(db, cfg.Database.Driver, cfg.Chat.UserTable)
		engineOpts = append(engineOpts, libchat.WithUserDirectory(directory))
	}

	engine, err := libchat.NewDeliveryEngine(engineOpts...)
	if err != nil {
		log.Fatalf("Failed to create delivery engine: %v", err)
	}
	log.Println("✅ DeliveryEngine created")

	// Create Messenger facade for the REST API
	messengerOpts := []libchat.MessengerOption{
		libchat.WithMessengerEngine(engine),
		libchat.WithMessengerRepositories(repos.Message, repos.Subscription, repos.Topic, repos.Presence),
		libchat.WithMessengerLogger(logger),
	}
	if directory != nil {
		messengerOpts = append(messengerOpts, libchat.WithMessengerUserDirectory(directory))
	}

	messenger, err := libchat.NewMessenger(messengerOpts...)
	if err != nil {
		log.Fatalf("Failed to create messenger: %v", err)
	}
	log.Println("✅ Messenger facade created")

	// Create WebSocket handler
	wsHandler, err := ws.NewHandler(engine,
		ws.WithLogger(logger),
		ws.WithSendQueueSize(cfg.Chat.SendQueueSize),
	)
	if err != nil {
		log.Fatalf("Failed to create websocket handler: %v", err)
	}

	// Create API handler
	handler := api.NewHandler(messenger, logger)

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.Handle("/chat", wsHandler)
	mux.HandleFunc("/api/v1/messages", handler.HandleSendMessage)
	mux.HandleFunc("/api/v1/topics", handler.HandleTopics)
	mux.HandleFunc("/api/v1/subscriptions", handler.HandleSubscriptions)
	mux.HandleFunc("/api/v1/conversations", handler.HandleConversation)
	mux.HandleFunc("/api/v1/conversations/admin", handler.HandleAdminConversations)
	mux.HandleFunc("/api/v1/presence", handler.HandlePresence)
	mux.HandleFunc("/api/v1/health", handler.HandleHealth)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     loggingMiddleware(mux, logger),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket connections.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🌐 HTTP server listening on %s", addr)
		log.Println("📡 Endpoints:")
		log.Println("   WS     /chat?userId=N")
		log.Println("   POST   /api/v1/messages")
		log.Println("   POST   /api/v1/topics")
		log.Println("   GET    /api/v1/topics")
		log.Println("   GET    /api/v1/subscriptions?userId=N")
		log.Println("   POST   /api/v1/subscriptions")
		log.Println("   DELETE /api/v1/subscriptions?userId=N&topic=t")
		log.Println("   GET    /api/v1/conversations?userA=N&userB=M")
		log.Println("   GET    /api/v1/conversations/admin?adminId=N")
		log.Println("   GET    /api/v1/presence?userId=N")
		log.Println("   GET    /api/v1/health")
		log.Println()
		log.Println("✅ Chat Server is ready!")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Close live connections so clients reconnect elsewhere, then stop HTTP.
	registry.Range(func(_ int64, conn libchat.Conn) bool {
		_ = conn.Close()
		return true
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger libchat.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
