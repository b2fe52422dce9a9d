package dedupe

import (
	"fmt"
	"testing"
	"time"

	"shop_support_console/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func msgEvent(id, content, sender string, at time.Time) domain.MessageEvent {
	return domain.MessageEvent{
		ChatID: "chat-1",
		Message: domain.Message{
			ID:        id,
			Sender:    domain.Sender{Name: sender},
			Content:   content,
			CreatedAt: at,
		},
	}
}

func TestFingerprint(t *testing.T) {
	now := time.Now()

	withID := Fingerprint(msgEvent("m1", "hello", "Customer", now))
	assert.Equal(t, "id:m1", withID)

	// without server id the fallback is content + sender + second timestamp
	a := Fingerprint(msgEvent("", "hello", "Customer", now))
	b := Fingerprint(msgEvent("", "hello", "Customer", now.Add(300*time.Millisecond)))
	assert.Equal(t, a, b, "sub-second echo must collapse to one fingerprint")

	c := Fingerprint(msgEvent("", "hello", "Agent", now))
	assert.NotEqual(t, a, c, "different sender is a different message")

	// the id and the fallback never collide: the id form is prefixed
	assert.NotEqual(t, withID, a)
}

func TestFilterSeenMarkSeen(t *testing.T) {
	f := NewFilter()

	assert.False(t, f.Seen("id:m1"))
	f.MarkSeen("id:m1")
	assert.True(t, f.Seen("id:m1"))

	// marking again does not grow the tracked set
	f.MarkSeen("id:m1")
	assert.Equal(t, 1, f.Len())
}

func TestFilterEviction(t *testing.T) {
	f := NewFilterWithLimit(10)

	for i := 0; i < 11; i++ {
		f.MarkSeen(fmt.Sprintf("id:m%d", i))
	}

	// crossing the high water mark drops the oldest half
	assert.LessOrEqual(t, f.Len(), 10)
	assert.False(t, f.Seen("id:m0"))
	assert.True(t, f.Seen("id:m10"), "the newest fingerprint survives eviction")
}

func TestFilterReset(t *testing.T) {
	f := NewFilter()
	f.MarkSeen("id:m1")
	f.Reset()
	assert.False(t, f.Seen("id:m1"))
	assert.Equal(t, 0, f.Len())
}

func TestSeedFromMessages(t *testing.T) {
	f := NewFilter()
	f.MarkSeen("id:stale")

	now := time.Now()
	msgs := []domain.Message{
		{ID: "m1", Sender: domain.Sender{Name: "Customer"}, Content: "hi", CreatedAt: now},
		{Sender: domain.Sender{Name: "Customer"}, Content: "still there?", CreatedAt: now},
	}
	f.SeedFromMessages("chat-1", msgs)

	// seeding replaces whatever the previous conversation left behind
	assert.False(t, f.Seen("id:stale"))
	assert.True(t, f.Seen("id:m1"))
	assert.True(t, f.Seen(Fingerprint(msgEvent("", "still there?", "Customer", now))))
}
