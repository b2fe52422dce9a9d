package app

import (
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const typingTTL = 6 * time.Second

// TypingTracker ephemeral who-is-typing state per conversation. Entries
// expire on their own, a customer who stops typing just ages out.
type TypingTracker struct {
	cache *cache.Cache
}

// NewTypingTracker create the tracker
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		cache: cache.New(typingTTL, time.Minute),
	}
}

func typingKey(chatID, name string) string {
	return chatID + "|" + name
}

// SetTyping record or clear a typing signal
func (t *TypingTracker) SetTyping(chatID, name string, typing bool) {
	if name == "" {
		return
	}
	if typing {
		t.cache.SetDefault(typingKey(chatID, name), struct{}{})
	} else {
		t.cache.Delete(typingKey(chatID, name))
	}
}

// ActiveNames who is currently typing in a conversation
func (t *TypingTracker) ActiveNames(chatID string) []string {
	prefix := chatID + "|"
	var names []string
	for key := range t.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	return names
}
