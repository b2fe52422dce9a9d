package domain

import (
	"encoding/json"
	"time"
)

// SocketEvent realtime event name on the upstream backend connection
type SocketEvent string

const (
	// EventNewMessage upstream event new-message
	EventNewMessage SocketEvent = "new-message"
	// EventChatAssigned upstream event chat-assigned
	EventChatAssigned SocketEvent = "chat-assigned"
	// EventChatResolved upstream event chat-resolved
	EventChatResolved SocketEvent = "chat-resolved"
	// EventChatClosed upstream event chat-closed
	EventChatClosed SocketEvent = "chat-closed"
	// EventMessageRead upstream event chat-message-read
	EventMessageRead SocketEvent = "chat-message-read"
	// EventUserTyping upstream event user-typing
	EventUserTyping SocketEvent = "user-typing"

	// EmitJoinUser client emitted join-user
	EmitJoinUser SocketEvent = "join-user"
	// EmitJoinChat client emitted join-chat
	EmitJoinChat SocketEvent = "join-chat"
	// EmitLeaveChat client emitted leave-chat
	EmitLeaveChat SocketEvent = "leave-chat"
	// EmitSendMessage client emitted send-message
	EmitSendMessage SocketEvent = "send-message"
	// EmitTyping client emitted typing
	EmitTyping SocketEvent = "typing"
	// EmitUpdateStatus client emitted update-chat-status
	EmitUpdateStatus SocketEvent = "update-chat-status"
)

// Envelope wire frame of the upstream websocket, {"event": ..., "data": ...}
type Envelope struct {
	Event SocketEvent     `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageEvent payload of new-message
type MessageEvent struct {
	ChatID    string    `json:"chatId"`
	Message   Message   `json:"message"`
	SenderID  string    `json:"senderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent payload of chat-assigned / chat-resolved / chat-closed
type StatusEvent struct {
	ChatID     string     `json:"chatId"`
	Status     ChatStatus `json:"status"`
	AssignedTo string     `json:"assignedTo,omitempty"`
}

// ReadEvent payload of chat-message-read
type ReadEvent struct {
	ChatID string `json:"chatId"`
	Reader string `json:"reader,omitempty"`
}

// TypingEvent payload of user-typing
type TypingEvent struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name,omitempty"`
	Typing bool   `json:"isTyping"`
}

// Dashboard websocket actions (console <-> browser)

// Action dashboard websocket request action
type Action string

const (
	// OpenChat dashboard action open_chat
	OpenChat Action = "open_chat"
	// LeaveChat dashboard action leave_chat
	LeaveChat Action = "leave_chat"
	// SendMessage dashboard action send_message
	SendMessage Action = "send_message"
	// MarkRead dashboard action mark_read
	MarkRead Action = "mark_read"
	// Typing dashboard action typing
	Typing Action = "typing"
	// UpdateStatus dashboard action update_status
	UpdateStatus Action = "update_status"
	// GetRoster dashboard action get_roster
	GetRoster Action = "get_roster"

	// NotifyMessage dashboard push action notify_message
	NotifyMessage Action = "notify_message"
	// NotifyStatus dashboard push action notify_status
	NotifyStatus Action = "notify_status"
	// NotifyRoster dashboard push action notify_roster
	NotifyRoster Action = "notify_roster"
	// NotifyRead dashboard push action notify_read
	NotifyRead Action = "notify_read"
	// NotifyConnection dashboard push action notify_connection
	NotifyConnection Action = "notify_connection"
	// NotifyTyping dashboard push action notify_typing
	NotifyTyping Action = "notify_typing"
)

// WSRequest dashboard websocket Request
type WSRequest struct {
	Action  string `json:"action"`
	ChatID  string `json:"chat_id,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	Typing  bool   `json:"typing,omitempty"`
}

// WSResponse dashboard websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
