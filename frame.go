package libchat

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/coregx/libchat/model"
)

// Frame is the parse result for one inbound text frame. Exactly one concrete
// type is produced per frame:
//
//	PrivateMessageFrame | GroupMessageFrame | SubscribeFrame |
//	UnsubscribeFrame | MarkReadFrame
//
// Parsing happens in a single step (ParseFrame); dispatch switches
// exhaustively over the concrete types.
type Frame interface {
	frame()
}

// PrivateMessageFrame is an inbound private message:
// {"senderId":N,"receiverId":M,"content":"..."}.
type PrivateMessageFrame struct {
	SenderID   int64
	ReceiverID int64
	Content    string
}

// GroupMessageFrame is an inbound group message:
// {"senderId":N,"topic":"t","content":"..."}.
type GroupMessageFrame struct {
	SenderID int64
	Topic    string
	Content  string
}

// SubscribeFrame is the subscribe:<topic> command.
type SubscribeFrame struct {
	Topic string
}

// UnsubscribeFrame is the unsubscribe:<topic> command.
type UnsubscribeFrame struct {
	Topic string
}

// MarkReadFrame is the read:<messageId> command.
type MarkReadFrame struct {
	MessageID int64
}

func (PrivateMessageFrame) frame() {}
func (GroupMessageFrame) frame()   {}
func (SubscribeFrame) frame()      {}
func (UnsubscribeFrame) frame()    {}
func (MarkReadFrame) frame()       {}

const (
	subscribePrefix   = "subscribe:"
	unsubscribePrefix = "unsubscribe:"
	readPrefix        = "read:"
)

// inboundMessage is the wire shape of a structured message frame.
// Exactly one of ReceiverID/Topic must be present.
type inboundMessage struct {
	SenderID   int64   `json:"senderId"`
	ReceiverID *int64  `json:"receiverId"`
	Topic      *string `json:"topic"`
	Content    string  `json:"content"`
}

// ParseFrame classifies one inbound text frame. A frame starting with '{' is a
// structured message frame; otherwise it must be one of the command forms.
// Anything else is a protocol error.
func ParseFrame(raw []byte) (Frame, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, NewError(ErrCodeProtocol, "empty frame")
	}

	if strings.HasPrefix(text, "{") {
		var in inboundMessage
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, NewErrorWithCause(ErrCodeProtocol, "malformed message frame", err)
		}
		switch {
		case in.ReceiverID != nil && in.Topic != nil:
			return nil, NewError(ErrCodeProtocol, "message frame must carry either receiverId or topic, not both")
		case in.ReceiverID != nil:
			return PrivateMessageFrame{
				SenderID:   in.SenderID,
				ReceiverID: *in.ReceiverID,
				Content:    in.Content,
			}, nil
		case in.Topic != nil:
			return GroupMessageFrame{
				SenderID: in.SenderID,
				Topic:    *in.Topic,
				Content:  in.Content,
			}, nil
		default:
			return nil, NewError(ErrCodeProtocol, "message frame missing receiverId or topic")
		}
	}

	switch {
	case strings.HasPrefix(text, subscribePrefix):
		topic := text[len(subscribePrefix):]
		if topic == "" {
			return nil, NewError(ErrCodeProtocol, "subscribe command missing topic")
		}
		return SubscribeFrame{Topic: topic}, nil

	case strings.HasPrefix(text, unsubscribePrefix):
		topic := text[len(unsubscribePrefix):]
		if topic == "" {
			return nil, NewError(ErrCodeProtocol, "unsubscribe command missing topic")
		}
		return UnsubscribeFrame{Topic: topic}, nil

	case strings.HasPrefix(text, readPrefix):
		id, err := strconv.ParseInt(text[len(readPrefix):], 10, 64)
		if err != nil {
			return nil, NewErrorWithCause(ErrCodeProtocol, "read command requires a numeric message id", err)
		}
		return MarkReadFrame{MessageID: id}, nil
	}

	return nil, NewError(ErrCodeProtocol, "unknown command: "+text)
}

// Outbound frame shapes. User and message IDs travel as strings in status
// frames, matching the wire protocol.

type statusFrame struct {
	Status     string `json:"status"`
	UserID     string `json:"userId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	Topic      string `json:"topic,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// outboundMessage is the wire shape of a delivered message (live push or
// replay). Timestamps travel as epoch millis.
type outboundMessage struct {
	ID         int64   `json:"id"`
	SenderID   int64   `json:"senderId"`
	ReceiverID *int64  `json:"receiverId,omitempty"`
	Topic      *string `json:"topic,omitempty"`
	Content    string  `json:"content"`
	Timestamp  int64   `json:"timestamp"`
	Delivered  bool    `json:"delivered"`
	Read       bool    `json:"read"`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All frame shapes marshal cleanly; this indicates a programming error.
		panic(err)
	}
	return b
}

// ConnectedFrame is the handshake acknowledgement carrying the bound identity.
func ConnectedFrame(userID int64) []byte {
	return mustJSON(statusFrame{Status: "connected", UserID: strconv.FormatInt(userID, 10)})
}

// ErrorFrame reports a protocol or authorization error to the originating
// connection.
func ErrorFrame(message string) []byte {
	return mustJSON(errorFrame{Error: message})
}

// OfflineFrame tells the sender that a private recipient is offline and the
// message waits in storage.
func OfflineFrame(receiverID int64) []byte {
	return mustJSON(statusFrame{Status: "offline", ReceiverID: strconv.FormatInt(receiverID, 10)})
}

// SubscribedFrame acknowledges a subscribe command.
func SubscribedFrame(topic string) []byte {
	return mustJSON(statusFrame{Status: "subscribed", Topic: topic})
}

// UnsubscribedFrame acknowledges an unsubscribe command.
func UnsubscribedFrame(topic string) []byte {
	return mustJSON(statusFrame{Status: "unsubscribed", Topic: topic})
}

// ReadFrame acknowledges a mark-as-read command.
func ReadFrame(messageID int64) []byte {
	return mustJSON(statusFrame{Status: "read", MessageID: strconv.FormatInt(messageID, 10)})
}

// MessageFrame serializes a message for live push or replay.
func MessageFrame(m model.Message) []byte {
	out := outboundMessage{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.CreatedAt.UnixMilli(),
		Delivered: m.Delivered,
		Read:      m.Read,
	}
	if m.ReceiverID.Valid {
		id := m.ReceiverID.Int64
		out.ReceiverID = &id
	}
	if m.Topic.Valid {
		topic := m.Topic.String
		out.Topic = &topic
	}
	return mustJSON(out)
}
