package app

import (
	"context"
	"errors"
	"sync"

	"shop_support_console/internal/chat/dedupe"
	"shop_support_console/internal/chat/domain"
	"shop_support_console/internal/chat/repository"
	"shop_support_console/pkg/logger"

	"go.uber.org/zap"
)

// ErrStaleConversation the response landed after the agent switched away,
// it must not touch the currently displayed conversation
var ErrStaleConversation = errors.New("conversation switched while loading")

// ErrNoConversation no conversation is open in this session
var ErrNoConversation = errors.New("no open conversation")

// Transcript session-scoped store of the one conversation an agent has open.
// Inbound realtime events are the only thing that appends messages; REST
// responses never do, otherwise the echo would double-apply.
type Transcript struct {
	backend repository.ChatBackend
	socket  repository.SocketGateway
	filter  *dedupe.Filter

	mu        sync.Mutex
	pendingID string
	current   *domain.Chat
}

// NewTranscript create an empty transcript session with its own dedupe filter
func NewTranscript(backend repository.ChatBackend, socket repository.SocketGateway) *Transcript {
	return &Transcript{
		backend: backend,
		socket:  socket,
		filter:  dedupe.NewFilter(),
	}
}

// Open load a conversation from the backend and make it current. The filter
// is re-seeded from the returned messages so echoes of history are absorbed.
// When the agent switches again before the response lands, the late response
// is discarded (ErrStaleConversation).
func (t *Transcript) Open(ctx context.Context, chatID string) (domain.Chat, error) {
	t.mu.Lock()
	t.pendingID = chatID
	t.mu.Unlock()

	ch, err := t.backend.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingID != chatID {
		logger.Log.Info("discarding stale conversation load", zap.String("chat_id", chatID))
		return domain.Chat{}, ErrStaleConversation
	}
	t.current = ch
	t.filter.SeedFromMessages(ch.ID, ch.Messages)
	return t.snapshotLocked(), nil
}

// Clear drop the open conversation and its dedupe state
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingID = ""
	t.current = nil
	t.filter.Reset()
}

// CurrentID id of the open conversation, empty when none
func (t *Transcript) CurrentID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.ID
}

// Snapshot copy of the open conversation for rendering
func (t *Transcript) Snapshot() (domain.Chat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return domain.Chat{}, false
	}
	return t.snapshotLocked(), true
}

func (t *Transcript) snapshotLocked() domain.Chat {
	ch := *t.current
	ch.Messages = make([]domain.Message, len(t.current.Messages))
	copy(ch.Messages, t.current.Messages)
	return ch
}

// AppendIfNovel run an inbound event through the dedupe filter and the
// structural re-check, append only when genuinely new. Events for other
// conversations are ignored, the backend's fan-out is not strictly scoped.
// Returns true when the transcript changed.
func (t *Transcript) AppendIfNovel(ev domain.MessageEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || ev.ChatID != t.current.ID {
		return false
	}

	fp := dedupe.Fingerprint(ev)
	if t.filter.Seen(fp) {
		return false
	}
	t.filter.MarkSeen(fp)

	// the fingerprint misses the case where the server-assigned id arrives
	// after an echoed copy without one, so re-check structurally
	for _, m := range t.current.Messages {
		if m.SameMessage(ev.Message) {
			return false
		}
	}

	t.current.Messages = append(t.current.Messages, ev.Message)
	if ev.Message.CreatedAt.After(t.current.LastActivity) {
		t.current.LastActivity = ev.Message.CreatedAt
	}
	return true
}

// MarkAllReadForSender optimistic local read flip for matching messages,
// ahead of and independent of server confirmation
func (t *Transcript) MarkAllReadForSender(pred func(domain.Message) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return 0
	}
	n := 0
	for i := range t.current.Messages {
		if !t.current.Messages[i].IsRead && pred(t.current.Messages[i]) {
			t.current.Messages[i].IsRead = true
			n++
		}
	}
	return n
}

// MarkCustomerRead flip every customer-originated message to read
func (t *Transcript) MarkCustomerRead() int {
	t.mu.Lock()
	cust := domain.Customer{}
	if t.current != nil {
		cust = t.current.Customer
	}
	t.mu.Unlock()
	return t.MarkAllReadForSender(func(m domain.Message) bool {
		return m.FromCustomer(cust)
	})
}

// ApplyAgentRead the customer read our side, flip agent messages
func (t *Transcript) ApplyAgentRead(ev domain.ReadEvent) int {
	t.mu.Lock()
	if t.current == nil || ev.ChatID != t.current.ID {
		t.mu.Unlock()
		return 0
	}
	cust := t.current.Customer
	t.mu.Unlock()
	return t.MarkAllReadForSender(func(m domain.Message) bool {
		return !m.FromCustomer(cust)
	})
}

// ApplyStatus forward-only status transition driven by a realtime event
func (t *Transcript) ApplyStatus(ev domain.StatusEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || ev.ChatID != t.current.ID {
		return false
	}
	if ev.AssignedTo != "" {
		t.current.AssignedTo = ev.AssignedTo
	}
	if ev.Status == "" || ev.Status == t.current.Status {
		return false
	}
	if !t.current.Status.CanTransition(ev.Status) {
		logger.Log.Warn("ignoring invalid status transition",
			zap.String("chat_id", ev.ChatID),
			zap.String("from", string(t.current.Status)),
			zap.String("to", string(ev.Status)))
		return false
	}
	t.current.Status = ev.Status
	return true
}

// Send persist the message through the backend and nudge the room over the
// socket. Deliberately does NOT append locally, the realtime echo is the only
// mutation path. A failure surfaces to the caller, there is nothing to roll
// back because nothing optimistic was applied.
func (t *Transcript) Send(ctx context.Context, chatID string, sender domain.Sender, content string) error {
	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return ErrNoConversation
	}
	if t.current.ID != chatID {
		t.mu.Unlock()
		return ErrStaleConversation
	}
	t.mu.Unlock()

	if err := t.backend.SendAgentMessage(ctx, chatID, sender, content); err != nil {
		return err
	}
	if err := t.socket.Emit(domain.EmitSendMessage, map[string]interface{}{
		"chatId":  chatID,
		"sender":  sender,
		"content": content,
	}); err != nil {
		// backend accepted it, the echo will still arrive over the room
		logger.Log.Errorf("send-message emit failed:", err, zap.String("chat_id", chatID))
	}
	return nil
}
