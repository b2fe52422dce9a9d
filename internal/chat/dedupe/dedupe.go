// Package dedupe gates inbound realtime events so each one is applied to
// local state at most once. The transport does not promise exactly-once or
// in-order delivery, so every consumer runs events through a Filter first.
package dedupe

import (
	"fmt"
	"sync"

	"shop_support_console/internal/chat/domain"
)

// DefaultHighWater eviction threshold of tracked fingerprints
const DefaultHighWater = 500

// Fingerprint derive the stable identity of a realtime message event.
// The server message id wins when present. The send path can echo a message
// back before the id is assigned, so fall back to content + sender + second
// resolution timestamp. Collisions on the fallback are accepted best effort.
func Fingerprint(ev domain.MessageEvent) string {
	if ev.Message.ID != "" {
		return "id:" + ev.Message.ID
	}
	return fmt.Sprintf("%s|%s|%d", ev.Message.Content, ev.Message.Sender.Name, ev.Message.CreatedAt.Unix())
}

// Filter bounded set of already applied event fingerprints. Explicitly
// constructed and injected, never a package singleton, so tests stay
// deterministic and a logout can drop the whole thing.
type Filter struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	order     []string
	highWater int
}

// NewFilter create a Filter with the default high water mark
func NewFilter() *Filter {
	return NewFilterWithLimit(DefaultHighWater)
}

// NewFilterWithLimit create a Filter evicting above limit
func NewFilterWithLimit(limit int) *Filter {
	if limit < 2 {
		limit = 2
	}
	return &Filter{
		seen:      make(map[string]struct{}),
		order:     make([]string, 0, limit),
		highWater: limit,
	}
}

// Seen report whether fp was already marked
func (f *Filter) Seen(fp string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[fp]
	return ok
}

// MarkSeen record fp, evicting the oldest half above the high water mark.
// Approximate LRU is fine here, duplicates arrive close together in time.
func (f *Filter) MarkSeen(fp string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[fp]; ok {
		return
	}
	f.seen[fp] = struct{}{}
	f.order = append(f.order, fp)

	if len(f.order) > f.highWater {
		drop := f.order[:len(f.order)/2]
		for _, old := range drop {
			delete(f.seen, old)
		}
		kept := f.order[len(f.order)/2:]
		f.order = append(make([]string, 0, f.highWater), kept...)
	}
}

// Len current tracked fingerprint count
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Reset drop everything, used when the open conversation changes
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[string]struct{})
	f.order = f.order[:0]
}

// SeedFromMessages reset then mark every message of a freshly loaded
// transcript, so the realtime echo of history does not re-append
func (f *Filter) SeedFromMessages(chatID string, msgs []domain.Message) {
	f.Reset()
	for _, m := range msgs {
		f.MarkSeen(Fingerprint(domain.MessageEvent{ChatID: chatID, Message: m}))
	}
}
