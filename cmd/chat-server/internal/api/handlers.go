// Package api provides HTTP handlers for the chat server REST API.
//
// The REST surface covers the administrative and read-side operations;
// real-time messaging itself runs over the WebSocket endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coregx/libchat"
	"github.com/coregx/libchat/model"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	messenger *libchat.Messenger
	logger    libchat.Logger
}

// NewHandler creates a new API handler.
func NewHandler(messenger *libchat.Messenger, logger libchat.Logger) *Handler {
	return &Handler{
		messenger: messenger,
		logger:    logger,
	}
}

// SendMessageRequest represents a message send request. Exactly one of
// receiverId and topic must be set.
type SendMessageRequest struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Content    string `json:"content"`
}

// CreateTopicRequest represents a topic creation request.
type CreateTopicRequest struct {
	Name        string `json:"name"`
	CreatorID   int64  `json:"creatorId"`
	Description string `json:"description"`
}

// SubscribeRequest represents a subscription creation request.
type SubscribeRequest struct {
	UserID int64  `json:"userId"`
	Topic  string `json:"topic"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleSendMessage handles POST /api/v1/messages
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	if (req.ReceiverID == 0) == (req.Topic == "") {
		h.respondError(w, http.StatusBadRequest, "exactly one of receiverId and topic is required", "VALIDATION_ERROR")
		return
	}

	var (
		msg *model.Message
		err error
	)
	if req.ReceiverID != 0 {
		msg, err = h.messenger.SendPrivate(r.Context(), libchat.SendPrivateRequest{
			SenderID:   req.SenderID,
			ReceiverID: req.ReceiverID,
			Content:    req.Content,
		})
	} else {
		msg, err = h.messenger.SendGroup(r.Context(), libchat.SendGroupRequest{
			SenderID: req.SenderID,
			Topic:    req.Topic,
			Content:  req.Content,
		})
	}

	if err != nil {
		h.respondEngineError(w, err, "Failed to send message", "SEND_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusCreated, msg, "Message accepted")
}

// HandleTopics handles POST and GET /api/v1/topics
func (h *Handler) HandleTopics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTopic(w, r)
	case http.MethodGet:
		h.listTopics(w, r)
	default:
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (h *Handler) createTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	topic, err := h.messenger.CreateTopic(r.Context(), libchat.CreateTopicRequest{
		Name:        req.Name,
		CreatorID:   req.CreatorID,
		Description: req.Description,
	})
	if err != nil {
		h.respondEngineError(w, err, "Failed to create topic", "TOPIC_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusCreated, topic, "Topic ready")
}

func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.messenger.ListTopics(r.Context())
	if err != nil {
		h.logger.Errorf("Failed to list topics: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list topics", "LIST_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, topics, "")
}

// HandleSubscriptions handles GET, POST and DELETE /api/v1/subscriptions
func (h *Handler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSubscriptions(w, r)
	case http.MethodPost:
		h.subscribe(w, r)
	case http.MethodDelete:
		h.unsubscribe(w, r)
	default:
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, "userId is required", "VALIDATION_ERROR")
		return
	}

	subs, err := h.messenger.ListSubscriptions(r.Context(), userID)
	if err != nil {
		h.logger.Errorf("Failed to list subscriptions: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list subscriptions", "LIST_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, subs, "")
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if req.UserID <= 0 || req.Topic == "" {
		h.respondError(w, http.StatusBadRequest, "userId and topic are required", "VALIDATION_ERROR")
		return
	}

	if err := h.messenger.Subscribe(r.Context(), req.UserID, req.Topic); err != nil {
		h.respondEngineError(w, err, "Failed to subscribe", "SUBSCRIBE_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusCreated, nil, "Subscribed")
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, "userId is required", "VALIDATION_ERROR")
		return
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		h.respondError(w, http.StatusBadRequest, "topic is required", "VALIDATION_ERROR")
		return
	}

	if err := h.messenger.RemoveUserFromTopic(r.Context(), userID, topic); err != nil {
		h.respondEngineError(w, err, "Failed to unsubscribe", "UNSUBSCRIBE_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, nil, "Unsubscribed")
}

// HandleConversation handles GET /api/v1/conversations?userA=N&userB=M&limit=K
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	userA, errA := strconv.ParseInt(r.URL.Query().Get("userA"), 10, 64)
	userB, errB := strconv.ParseInt(r.URL.Query().Get("userB"), 10, 64)
	if errA != nil || errB != nil || userA <= 0 || userB <= 0 {
		h.respondError(w, http.StatusBadRequest, "userA and userB are required", "VALIDATION_ERROR")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	conv, err := h.messenger.FetchConversation(r.Context(), userA, userB, limit)
	if err != nil {
		h.logger.Errorf("Failed to fetch conversation: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch conversation", "FETCH_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, conv, "")
}

// HandleAdminConversations handles GET /api/v1/conversations/admin?adminId=N
func (h *Handler) HandleAdminConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	adminID, err := strconv.ParseInt(r.URL.Query().Get("adminId"), 10, 64)
	if err != nil || adminID <= 0 {
		h.respondError(w, http.StatusBadRequest, "adminId is required", "VALIDATION_ERROR")
		return
	}

	convs, err := h.messenger.FetchAdminConversations(r.Context(), adminID)
	if err != nil {
		h.respondEngineError(w, err, "Failed to fetch conversations", "FETCH_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, convs, "")
}

// HandlePresence handles GET /api/v1/presence?userId=N
func (h *Handler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, "userId is required", "VALIDATION_ERROR")
		return
	}

	presence, err := h.messenger.LastSeen(r.Context(), userID)
	if err != nil {
		if libchat.ErrorCode(err) == libchat.ErrCodeNotFound {
			h.respondSuccess(w, http.StatusOK, map[string]interface{}{"online": false}, "Never connected")
			return
		}
		h.logger.Errorf("Failed to fetch presence: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch presence", "FETCH_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"online":          presence.Connected,
		"lastConnectedAt": presence.LastConnectedAt,
	}, "")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "0.1.0",
	}

	h.respondSuccess(w, http.StatusOK, health, "")
}

// respondEngineError maps coded engine errors onto HTTP statuses.
func (h *Handler) respondEngineError(w http.ResponseWriter, err error, fallback, fallbackCode string) {
	code := libchat.ErrorCode(err)
	switch code {
	case libchat.ErrCodeValidation, libchat.ErrCodeProtocol:
		h.respondError(w, http.StatusBadRequest, err.Error(), code)
	case libchat.ErrCodeNotFound:
		h.respondError(w, http.StatusNotFound, err.Error(), code)
	case libchat.ErrCodeAuthorization:
		h.respondError(w, http.StatusForbidden, err.Error(), code)
	default:
		h.logger.Errorf("%s: %v", fallback, err)
		h.respondError(w, http.StatusInternalServerError, fallback, fallbackCode)
	}
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
