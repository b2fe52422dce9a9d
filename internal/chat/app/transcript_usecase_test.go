package app

import (
	"context"
	"testing"
	"time"

	"shop_support_console/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func customerMsg(id, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:          id,
		Sender:      domain.Sender{Name: domain.CustomerSenderName},
		Content:     content,
		MessageType: domain.MessageTypeText,
		CreatedAt:   at,
	}
}

func openTestChat(t *testing.T, tr *Transcript, backend *MockChatBackend, ch *domain.Chat) {
	t.Helper()
	backend.On("GetChat", mock.Anything, ch.ID).Return(ch, nil).Once()
	_, err := tr.Open(context.Background(), ch.ID)
	assert.NoError(t, err)
}

func TestTranscriptOpenSeedsFilter(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())

	now := time.Now()
	ch := &domain.Chat{
		ID:       "chat-1",
		Customer: domain.Customer{Name: "Kim", Email: "kim@example.com"},
		Status:   domain.StatusActive,
		Messages: []domain.Message{customerMsg("m1", "brake noise", now)},
	}
	openTestChat(t, tr, backend, ch)

	// the realtime echo of already loaded history must not re-append
	applied := tr.AppendIfNovel(domain.MessageEvent{ChatID: "chat-1", Message: customerMsg("m1", "brake noise", now)})
	assert.False(t, applied)

	snap, ok := tr.Snapshot()
	assert.True(t, ok)
	assert.Len(t, snap.Messages, 1)
}

func TestTranscriptDuplicateEventIdempotent(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())
	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusActive})

	ev := domain.MessageEvent{ChatID: "chat-1", Message: customerMsg("m2", "any update?", time.Now())}
	assert.True(t, tr.AppendIfNovel(ev))
	assert.False(t, tr.AppendIfNovel(ev), "applying the same event twice changes nothing")

	snap, _ := tr.Snapshot()
	assert.Len(t, snap.Messages, 1)
}

func TestTranscriptEchoBeforeIDAssigned(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())
	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusActive})

	now := time.Now()
	echo := domain.MessageEvent{ChatID: "chat-1", Message: customerMsg("", "done today?", now)}
	assert.True(t, tr.AppendIfNovel(echo))

	// the persisted copy arrives with a server id, fingerprints differ but the
	// structural re-check still recognizes it
	persisted := domain.MessageEvent{ChatID: "chat-1", Message: customerMsg("m9", "done today?", now.Add(400*time.Millisecond))}
	assert.False(t, tr.AppendIfNovel(persisted))

	snap, _ := tr.Snapshot()
	assert.Len(t, snap.Messages, 1)
}

func TestTranscriptIgnoresOtherConversations(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())
	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusActive})

	applied := tr.AppendIfNovel(domain.MessageEvent{ChatID: "chat-2", Message: customerMsg("m1", "hi", time.Now())})
	assert.False(t, applied)
}

func TestTranscriptStaleOpenDiscarded(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())
	ctx := context.Background()

	chatA := &domain.Chat{ID: "chat-a", Status: domain.StatusActive}
	chatB := &domain.Chat{ID: "chat-b", Status: domain.StatusActive}

	// the agent switches to chat-b while chat-a is still loading
	backend.On("GetChat", mock.Anything, "chat-a").Run(func(args mock.Arguments) {
		_, err := tr.Open(ctx, "chat-b")
		assert.NoError(t, err)
	}).Return(chatA, nil).Once()
	backend.On("GetChat", mock.Anything, "chat-b").Return(chatB, nil).Once()

	_, err := tr.Open(ctx, "chat-a")
	assert.ErrorIs(t, err, ErrStaleConversation)
	assert.Equal(t, "chat-b", tr.CurrentID(), "the late response must not clobber the new conversation")
}

func TestTranscriptSendDoesNotAppend(t *testing.T) {
	backend := new(MockChatBackend)
	socket := newFakeSocketGateway()
	tr := NewTranscript(backend, socket)
	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusActive})

	sender := domain.Sender{Name: "Agent Lee"}
	backend.On("SendAgentMessage", mock.Anything, "chat-1", sender, "on its way").Return(nil).Once()

	assert.NoError(t, tr.Send(context.Background(), "chat-1", sender, "on its way"))
	assert.Equal(t, 1, socket.emitted(domain.EmitSendMessage))

	snap, _ := tr.Snapshot()
	assert.Empty(t, snap.Messages, "only the realtime echo appends")

	// the echo arrives and appends exactly once
	echo := domain.MessageEvent{ChatID: "chat-1", Message: domain.Message{
		Sender: sender, Content: "on its way", CreatedAt: time.Now(),
	}}
	assert.True(t, tr.AppendIfNovel(echo))
	snap, _ = tr.Snapshot()
	assert.Len(t, snap.Messages, 1)
	backend.AssertExpectations(t)
}

func TestTranscriptSendWithoutConversation(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())

	err := tr.Send(context.Background(), "chat-1", domain.Sender{Name: "Agent Lee"}, "hello?")
	assert.ErrorIs(t, err, ErrNoConversation)

	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusActive})
	err = tr.Send(context.Background(), "chat-9", domain.Sender{Name: "Agent Lee"}, "hello?")
	assert.ErrorIs(t, err, ErrStaleConversation)
}

func TestTranscriptDuplicateOfReadMessageStaysRead(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())

	now := time.Now()
	ch := &domain.Chat{
		ID:       "chat-1",
		Customer: domain.Customer{Name: "Kim"},
		Status:   domain.StatusActive,
		Messages: []domain.Message{customerMsg("m1", "car ready?", now)},
	}
	openTestChat(t, tr, backend, ch)

	assert.Equal(t, 1, tr.MarkCustomerRead())

	// a redelivered copy without the server id must neither duplicate the
	// message nor resurrect the unread state
	dup := domain.MessageEvent{ChatID: "chat-1", Message: customerMsg("", "car ready?", now)}
	assert.False(t, tr.AppendIfNovel(dup))

	snap, _ := tr.Snapshot()
	assert.Len(t, snap.Messages, 1)
	assert.True(t, snap.Messages[0].IsRead)
}

func TestTranscriptApplyAgentRead(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())

	now := time.Now()
	ch := &domain.Chat{
		ID:       "chat-1",
		Customer: domain.Customer{Name: "Kim"},
		Status:   domain.StatusActive,
		Messages: []domain.Message{
			customerMsg("m1", "car ready?", now),
			{ID: "m2", Sender: domain.Sender{Name: "Agent Lee"}, Content: "almost", CreatedAt: now},
		},
	}
	openTestChat(t, tr, backend, ch)

	// the customer read our side, only agent messages flip
	assert.Equal(t, 1, tr.ApplyAgentRead(domain.ReadEvent{ChatID: "chat-1"}))
	snap, _ := tr.Snapshot()
	assert.False(t, snap.Messages[0].IsRead)
	assert.True(t, snap.Messages[1].IsRead)
}

func TestTranscriptApplyStatus(t *testing.T) {
	backend := new(MockChatBackend)
	tr := NewTranscript(backend, newFakeSocketGateway())
	openTestChat(t, tr, backend, &domain.Chat{ID: "chat-1", Status: domain.StatusWaiting})

	assert.True(t, tr.ApplyStatus(domain.StatusEvent{ChatID: "chat-1", Status: domain.StatusActive, AssignedTo: "agent-7"}))
	snap, _ := tr.Snapshot()
	assert.Equal(t, domain.StatusActive, snap.Status)
	assert.Equal(t, "agent-7", snap.AssignedTo)

	assert.True(t, tr.ApplyStatus(domain.StatusEvent{ChatID: "chat-1", Status: domain.StatusResolved}))
	assert.False(t, tr.ApplyStatus(domain.StatusEvent{ChatID: "chat-1", Status: domain.StatusActive}), "terminal states accept nothing")
}
