package domain

import "time"

// MessageType definition message content kind
type MessageType string

const (
	//MessageTypeText plain text message
	MessageTypeText MessageType = "text"
	//MessageTypeImage image message
	MessageTypeImage MessageType = "image"
	//MessageTypeFile file message
	MessageTypeFile MessageType = "file"
	//MessageTypeSystem system generated message
	MessageTypeSystem MessageType = "system"
)

// CustomerSenderName coarse role discriminator used by the backend when a
// customer writes without a profile name
const CustomerSenderName = "Customer"

// Sender describes who wrote a message, name doubles as role discriminator
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Attachment file attached to a message, stored by the backend
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message one chat transcript entry. ID is empty until the backend acks.
type Message struct {
	ID          string       `json:"_id,omitempty"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	MessageType MessageType  `json:"messageType"`
	IsRead      bool         `json:"isRead"`
	CreatedAt   time.Time    `json:"createdAt"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// FromCustomer report whether the message was written by the conversation's
// customer rather than an agent
func (m Message) FromCustomer(c Customer) bool {
	if m.Sender.Name == CustomerSenderName {
		return true
	}
	if m.Sender.Email != "" && c.Email != "" && m.Sender.Email == c.Email {
		return true
	}
	return c.Name != "" && m.Sender.Name == c.Name
}

// SameMessage structural duplicate check: same server id, or same content and
// sender with timestamps within one second. The send path can echo a message
// back before the backend has assigned it an id, so the id alone is not enough.
func (m Message) SameMessage(other Message) bool {
	if m.ID != "" && other.ID != "" && m.ID == other.ID {
		return true
	}
	if m.Content != other.Content || m.Sender.Name != other.Sender.Name {
		return false
	}
	delta := m.CreatedAt.Sub(other.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= time.Second
}
