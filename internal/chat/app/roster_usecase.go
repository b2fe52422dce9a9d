package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop_support_console/internal/chat/domain"
	"shop_support_console/internal/chat/repository"
	"shop_support_console/pkg"
	"shop_support_console/pkg/logger"

	"go.uber.org/zap"
)

// RosterUseCase ordered view of active conversations, one entry per distinct
// customer. The full recompute from the chat snapshot is authoritative;
// ApplyIncoming is only a latency optimization the periodic reconciliation
// can always override. Unread counts are always recounted from the message
// set, never blindly incremented, so the three update paths cannot drift
// apart for long.
type RosterUseCase struct {
	backend repository.ChatBackend

	mu      sync.Mutex
	chats   map[string]domain.Chat // snapshot by chat id
	entries []domain.RosterEntry   // sorted view
}

// NewRosterUseCase create an empty roster
func NewRosterUseCase(backend repository.ChatBackend) *RosterUseCase {
	return &RosterUseCase{
		backend: backend,
		chats:   make(map[string]domain.Chat),
	}
}

// RecomputeOrder replace the snapshot with chats and rebuild the sorted view.
// Read state already applied locally is carried over: a message we flipped to
// read stays read even when the backend copy still says unread, so a reload
// can never resurrect unread badges without a genuinely new message.
func (r *RosterUseCase) RecomputeOrder(chats []domain.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]domain.Chat, len(chats))
	for _, ch := range chats {
		if prev, ok := r.chats[ch.ID]; ok {
			carryReadState(&ch, prev)
		}
		next[ch.ID] = ch
	}
	r.chats = next
	r.rebuildLocked()
}

// carryReadState keep IsRead=true for messages we already marked locally
func carryReadState(ch *domain.Chat, prev domain.Chat) {
	for i := range ch.Messages {
		if ch.Messages[i].IsRead {
			continue
		}
		for _, old := range prev.Messages {
			if old.IsRead && old.SameMessage(ch.Messages[i]) {
				ch.Messages[i].IsRead = true
				break
			}
		}
	}
}

// ApplyIncoming incremental fast path for one realtime message. The message
// is merged into the snapshot chat (structural dup check included) and the
// view is rebuilt, which bumps the owning entry toward the front. Unknown
// chats get a placeholder entry until the next reconciliation fills in the
// real customer record.
func (r *RosterUseCase) ApplyIncoming(ev domain.MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.chats[ev.ChatID]
	if !ok {
		ch = domain.Chat{
			ID:     ev.ChatID,
			Status: domain.StatusWaiting,
			Customer: domain.Customer{
				Name:      ev.Message.Sender.Name,
				Email:     ev.Message.Sender.Email,
				SessionID: ev.SenderID,
			},
		}
	}

	for _, m := range ch.Messages {
		if m.SameMessage(ev.Message) {
			return
		}
	}
	ch.Messages = append(ch.Messages, ev.Message)
	if ev.Message.CreatedAt.After(ch.LastActivity) {
		ch.LastActivity = ev.Message.CreatedAt
	}
	r.chats[ch.ID] = ch
	r.rebuildLocked()
}

// ApplyRead zero the unread state of a conversation. Resolving the owning
// entry from a chat id alone is ambiguous, so this flips the snapshot and
// falls back to a full rebuild rather than a targeted decrement.
func (r *RosterUseCase) ApplyRead(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.chats[chatID]
	if !ok {
		return
	}
	for i := range ch.Messages {
		if ch.Messages[i].FromCustomer(ch.Customer) {
			ch.Messages[i].IsRead = true
		}
	}
	r.chats[chatID] = ch
	r.rebuildLocked()
}

// ApplyStatus track assignment / resolution from realtime events
func (r *RosterUseCase) ApplyStatus(ev domain.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.chats[ev.ChatID]
	if !ok {
		return
	}
	if ev.AssignedTo != "" {
		ch.AssignedTo = ev.AssignedTo
	}
	if ev.Status != "" && ch.Status.CanTransition(ev.Status) {
		ch.Status = ev.Status
	}
	r.chats[ev.ChatID] = ch
	r.rebuildLocked()
}

// Entries sorted copy of the conversation list
func (r *RosterUseCase) Entries() []domain.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RosterEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reconcile pull the full list from the backend and recompute, correcting
// whatever drift the incremental paths accumulated
func (r *RosterUseCase) Reconcile(ctx context.Context) error {
	chats, err := r.backend.ListChats(ctx, repository.ListFilter{})
	if err != nil {
		return err
	}
	r.RecomputeOrder(chats)
	return nil
}

// StartReconciler run Reconcile on a fixed interval until ctx is cancelled
func (r *RosterUseCase) StartReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Reconcile(ctx); err != nil {
					logger.Log.Errorf("roster reconcile failed:", err)
				}
			case <-ctx.Done():
				logger.Log.Info("roster reconciler stopped")
				return
			}
		}
	}()
	logger.Log.Info("roster reconciler started", zap.Duration("interval", interval))
}

// rebuildLocked group chats by customer key and re-sort. Entries with unread
// messages sort strictly before read ones regardless of recency, then by
// most recent message time.
func (r *RosterUseCase) rebuildLocked() {
	byKey := make(map[string]*domain.RosterEntry)
	for _, ch := range r.chats {
		key := ch.Customer.Key()
		if key == "" {
			key = ch.ID
		}
		entry, ok := byKey[key]
		if !ok {
			entry = &domain.RosterEntry{
				CustomerKey: key,
				Name:        ch.Customer.Name,
				Email:       ch.Customer.Email,
			}
			byKey[key] = entry
		}
		entry.ChatIDs = append(entry.ChatIDs, ch.ID)
		entry.UnreadCount += ch.UnreadFromCustomer()
		if lm := ch.LastMessageTime(); lm.After(entry.LastMessageTime) {
			entry.LastMessageTime = lm
		}
		if ch.LastActivity.After(entry.LastActivity) {
			entry.LastActivity = ch.LastActivity
		}
		if entry.Name == "" {
			entry.Name = ch.Customer.Name
		}
	}

	entries := make([]domain.RosterEntry, 0, len(byKey))
	for _, e := range byKey {
		sort.Strings(e.ChatIDs)
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		iUnread := entries[i].UnreadCount > 0
		jUnread := entries[j].UnreadCount > 0
		if iUnread != jUnread {
			return iUnread
		}
		ti := entries[i].LastMessageTime
		tj := entries[j].LastMessageTime
		if ti.IsZero() {
			ti = entries[i].LastActivity
		}
		if tj.IsZero() {
			tj = entries[j].LastActivity
		}
		return ti.After(tj)
	})
	r.entries = entries
}

// OwnsChat report whether the entry aggregates the given conversation
func OwnsChat(e domain.RosterEntry, chatID string) bool {
	return pkg.Contains(e.ChatIDs, chatID)
}
