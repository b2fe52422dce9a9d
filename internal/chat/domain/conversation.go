package domain

import "time"

// ChatStatus definition conversation lifecycle state
type ChatStatus string

const (
	//StatusWaiting customer waiting to be picked up
	StatusWaiting ChatStatus = "waiting"
	//StatusActive an agent is handling the conversation
	StatusActive ChatStatus = "active"
	//StatusResolved closed with an answer, terminal
	StatusResolved ChatStatus = "resolved"
	//StatusClosed closed without resolution, terminal
	StatusClosed ChatStatus = "closed"
)

// ChatPriority definition conversation priority
type ChatPriority string

const (
	//PriorityLow low priority
	PriorityLow ChatPriority = "low"
	//PriorityMedium medium priority
	PriorityMedium ChatPriority = "medium"
	//PriorityHigh high priority
	PriorityHigh ChatPriority = "high"
	//PriorityUrgent urgent priority
	PriorityUrgent ChatPriority = "urgent"
)

// CanTransition report whether status may move to next. Forward only,
// reopening a resolved or closed conversation is not modeled.
func (s ChatStatus) CanTransition(next ChatStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusActive || next == StatusResolved || next == StatusClosed
	case StatusActive:
		return next == StatusResolved || next == StatusClosed
	default:
		// resolved / closed are terminal
		return false
	}
}

// Terminal report whether the status accepts no further transitions
func (s ChatStatus) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Customer participant descriptor of a conversation
type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Key stable roster key of the customer, email first then session id
func (c Customer) Key() string {
	if c.Email != "" {
		return c.Email
	}
	return c.SessionID
}

// Chat one support conversation with its ordered transcript.
// LastActivity is always >= the timestamp of the last appended message.
type Chat struct {
	ID           string       `json:"_id"`
	Customer     Customer     `json:"customer"`
	AssignedTo   string       `json:"assignedTo,omitempty"`
	Status       ChatStatus   `json:"status"`
	Priority     ChatPriority `json:"priority"`
	Category     string       `json:"category,omitempty"`
	Messages     []Message    `json:"messages"`
	LastActivity time.Time    `json:"lastActivity"`
}

// UnreadFromCustomer count customer-originated messages not yet read
func (ch Chat) UnreadFromCustomer() int {
	n := 0
	for _, m := range ch.Messages {
		if !m.IsRead && m.FromCustomer(ch.Customer) {
			n++
		}
	}
	return n
}

// LastMessageTime timestamp of the newest message, zero when empty
func (ch Chat) LastMessageTime() time.Time {
	if len(ch.Messages) == 0 {
		return time.Time{}
	}
	return ch.Messages[len(ch.Messages)-1].CreatedAt
}

// RosterEntry derived conversation list row, one per distinct customer.
// Not persisted, always rebuildable from the chats it aggregates.
type RosterEntry struct {
	CustomerKey     string    `json:"customer_key"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	ChatIDs         []string  `json:"chat_ids"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageTime time.Time `json:"last_message_time"`
	LastActivity    time.Time `json:"last_activity"`
}
