package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coregx/libchat"
)

type contextKey string

// userIDContextKey carries the authenticated user ID placed by upstream
// middleware.
const userIDContextKey contextKey = "libchat.userID"

// ContextWithUserID returns a context carrying the authenticated user ID.
// Authentication middleware should call this before handing the request to
// the Handler.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts the authenticated user ID, if present.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

// Handler is the WebSocket endpoint. It binds an identity to each accepted
// socket, runs the connect/read/disconnect lifecycle against the delivery
// engine, and rejects anonymous connection attempts before they reach the
// connection registry.
type Handler struct {
	engine    *libchat.DeliveryEngine
	logger    libchat.Logger
	queueSize int
	upgrader  websocket.Upgrader
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler) error

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(logger libchat.Logger) HandlerOption {
	return func(h *Handler) error {
		if logger == nil {
			return libchat.NewError(libchat.ErrCodeConfiguration, "logger cannot be nil")
		}
		h.logger = logger
		return nil
	}
}

// WithSendQueueSize sets the per-connection outbound queue capacity.
func WithSendQueueSize(n int) HandlerOption {
	return func(h *Handler) error {
		if n <= 0 {
			return libchat.NewError(libchat.ErrCodeConfiguration, "send queue size must be positive")
		}
		h.queueSize = n
		return nil
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default accepts
// all origins; deployments behind a browser-facing edge should restrict it.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) error {
		if fn == nil {
			return libchat.NewError(libchat.ErrCodeConfiguration, "origin check cannot be nil")
		}
		h.upgrader.CheckOrigin = fn
		return nil
	}
}

// NewHandler creates a WebSocket handler bound to engine.
func NewHandler(engine *libchat.DeliveryEngine, opts ...HandlerOption) (*Handler, error) {
	if engine == nil {
		return nil, libchat.NewError(libchat.ErrCodeConfiguration, "delivery engine is required")
	}

	h := &Handler{
		engine:    engine,
		logger:    &libchat.NoopLogger{},
		queueSize: DefaultSendQueueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ServeHTTP upgrades the request and runs the connection lifecycle. The
// identity comes from the userId query parameter or, when set by auth
// middleware, from the request context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, authenticated := h.identify(r)

	wsc, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	if !authenticated {
		h.rejectAnonymous(wsc)
		return
	}

	conn := newConn(wsc, h.queueSize)
	go conn.writePump()

	h.session(r.Context(), userID, conn)
}

// session runs the connect/read/disconnect lifecycle for an authenticated
// user. A failed connect is unwound through Disconnect so the registry and
// the presence row do not keep pointing at a dead handle.
func (h *Handler) session(ctx context.Context, userID int64, conn *Conn) {
	if err := h.engine.Connect(ctx, userID, conn); err != nil {
		h.logger.Errorf("connect failed for user %d: %v", userID, err)
		if derr := h.engine.Disconnect(ctx, userID, conn); derr != nil {
			h.logger.Errorf("cleanup after failed connect for user %d: %v", userID, derr)
		}
		_ = conn.Close()
		return
	}
	h.logger.Infof("client connected: user %d", userID)

	conn.readLoop(func(raw []byte) {
		if err := h.engine.HandleFrame(ctx, userID, raw); err != nil {
			h.logger.Debugf("frame rejected for user %d: %v", userID, err)
		}
	})

	if err := h.engine.Disconnect(ctx, userID, conn); err != nil {
		h.logger.Errorf("disconnect failed for user %d: %v", userID, err)
	}
	h.logger.Infof("client disconnected: user %d", userID)
}

// identify resolves the user ID for the request. The context takes
// precedence so auth middleware can override the query parameter.
func (h *Handler) identify(r *http.Request) (int64, bool) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return id, true
	}

	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// rejectAnonymous tells the peer why it is being dropped, then closes with a
// policy violation so well-behaved clients do not reconnect blindly.
func (h *Handler) rejectAnonymous(wsc *websocket.Conn) {
	deadline := time.Now().Add(writeWait)
	_ = wsc.SetWriteDeadline(deadline)
	_ = wsc.WriteMessage(websocket.TextMessage,
		[]byte(`{"error":"Authentication required. Anonymous users cannot use the chat service."}`))
	_ = wsc.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"),
		deadline)
	_ = wsc.Close()
	h.logger.Info("rejected anonymous connection attempt")
}
