package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shop_support_console/internal/chat/domain"
	"shop_support_console/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SocketGateway realtime connection to the external chat backend. One
// persistent connection per console process; subscribers get events in
// registration order and must still filter by chat id, the backend's room
// fan-out is not assumed strictly scoped.
type SocketGateway interface {
	Connect(ctx context.Context)
	Disconnect()
	JoinChat(chatID string)
	LeaveChat(chatID string)
	Emit(event domain.SocketEvent, payload interface{}) error
	OnMessage(fn func(domain.MessageEvent)) func()
	OnStatusChange(fn func(domain.StatusEvent)) func()
	OnMessageRead(fn func(domain.ReadEvent)) func()
	OnTyping(fn func(domain.TypingEvent)) func()
	OnConnectionChange(fn func(bool)) func()
}

type messageSub struct {
	id int
	fn func(domain.MessageEvent)
}
type statusSub struct {
	id int
	fn func(domain.StatusEvent)
}
type readSub struct {
	id int
	fn func(domain.ReadEvent)
}
type typingSub struct {
	id int
	fn func(domain.TypingEvent)
}
type connSub struct {
	id int
	fn func(bool)
}

// UpstreamSocket gorilla/websocket implementation of SocketGateway with a
// bounded reconnect loop. Connect never returns an error, connectivity is
// reported through OnConnectionChange only.
type UpstreamSocket struct {
	socketURL     string
	agentID       string
	dialTimeout   time.Duration
	retryCount    int
	retryInterval time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	started    bool
	cancel     context.CancelFunc
	joined     map[string]struct{}
	lastNotify *bool

	nextSubID  int
	msgSubs    []messageSub
	statusSubs []statusSub
	readSubs   []readSub
	typingSubs []typingSub
	connSubs   []connSub
}

// NewUpstreamSocket create the gateway, not yet connected
func NewUpstreamSocket(socketURL, agentID string, dialTimeout time.Duration, retryCount int, retryInterval time.Duration) *UpstreamSocket {
	if dialTimeout <= 0 {
		dialTimeout = 20 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 3 * time.Second
	}
	if retryCount <= 0 {
		retryCount = 5
	}
	return &UpstreamSocket{
		socketURL:     socketURL,
		agentID:       agentID,
		dialTimeout:   dialTimeout,
		retryCount:    retryCount,
		retryInterval: retryInterval,
		joined:        make(map[string]struct{}),
	}
}

// Connect start the connection loop. Idempotent, a second call while the
// loop is running is a no-op.
func (s *UpstreamSocket) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)
}

// Disconnect tear down the connection and connection-scoped state only,
// subscribers stay registered
func (s *UpstreamSocket) Disconnect() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	conn := s.conn
	s.conn = nil
	s.started = false
	s.joined = make(map[string]struct{})
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasConnected {
		s.notifyConnection(false)
	}
	logger.Log.Info("upstream socket disconnected", zap.String("url", s.socketURL))
}

func (s *UpstreamSocket) run(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: s.dialTimeout}
		conn, _, err := dialer.DialContext(ctx, s.socketURL, nil)
		if err != nil {
			failures++
			logger.Log.Errorf("upstream socket dial failed:", err, zap.Int("attempt", failures))
			if failures > s.retryCount {
				logger.Log.Error("upstream socket gave up reconnecting",
					zap.Int("retry_count", s.retryCount))
				return
			}
			select {
			case <-time.After(s.retryInterval):
			case <-ctx.Done():
				return
			}
			continue
		}
		failures = 0

		s.mu.Lock()
		s.conn = conn
		s.connected = true
		rejoin := make([]string, 0, len(s.joined))
		for id := range s.joined {
			rejoin = append(rejoin, id)
		}
		s.mu.Unlock()

		logger.Log.Info("upstream socket connected", zap.String("url", s.socketURL))
		s.notifyConnection(true)

		// identify then re-enter the rooms the views care about
		_ = s.Emit(domain.EmitJoinUser, map[string]string{"userId": s.agentID})
		for _, id := range rejoin {
			_ = s.Emit(domain.EmitJoinChat, map[string]string{"chatId": id})
		}

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.connected = false
		s.mu.Unlock()
		s.notifyConnection(false)

		if ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(s.retryInterval):
		case <-ctx.Done():
			return
		}
	}
}

func (s *UpstreamSocket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("upstream socket closed:", err)
			} else if ctx.Err() == nil {
				logger.Log.Errorf("upstream socket read error:", err)
			}
			return
		}
		s.dispatch(env)
	}
}

func (s *UpstreamSocket) dispatch(env domain.Envelope) {
	switch env.Event {
	case domain.EventNewMessage:
		var ev domain.MessageEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Log.Errorf("bad new-message payload:", err)
			return
		}
		for _, sub := range s.snapshotMessageSubs() {
			sub.fn(ev)
		}

	case domain.EventChatAssigned, domain.EventChatResolved, domain.EventChatClosed:
		var ev domain.StatusEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Log.Errorf("bad status payload:", err)
			return
		}
		if ev.Status == "" {
			switch env.Event {
			case domain.EventChatAssigned:
				ev.Status = domain.StatusActive
			case domain.EventChatResolved:
				ev.Status = domain.StatusResolved
			case domain.EventChatClosed:
				ev.Status = domain.StatusClosed
			}
		}
		for _, sub := range s.snapshotStatusSubs() {
			sub.fn(ev)
		}

	case domain.EventMessageRead:
		var ev domain.ReadEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Log.Errorf("bad chat-message-read payload:", err)
			return
		}
		for _, sub := range s.snapshotReadSubs() {
			sub.fn(ev)
		}

	case domain.EventUserTyping:
		var ev domain.TypingEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Log.Errorf("bad user-typing payload:", err)
			return
		}
		for _, sub := range s.snapshotTypingSubs() {
			sub.fn(ev)
		}

	default:
		logger.Log.Debug("ignoring unknown upstream event", zap.String("event", string(env.Event)))
	}
}

// Emit send an event frame upstream. Write failures are logged and returned,
// the reconnect loop owns recovery.
func (s *UpstreamSocket) Emit(event domain.SocketEvent, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("upstream socket not connected")
	}
	if err := s.conn.WriteJSON(domain.Envelope{Event: event, Data: data}); err != nil {
		logger.Log.Errorf("upstream socket write error:", err, zap.String("event", string(event)))
		return err
	}
	return nil
}

// JoinChat scope interest to a conversation, remembered across reconnects
func (s *UpstreamSocket) JoinChat(chatID string) {
	s.mu.Lock()
	s.joined[chatID] = struct{}{}
	s.mu.Unlock()
	_ = s.Emit(domain.EmitJoinChat, map[string]string{"chatId": chatID})
}

// LeaveChat drop interest in a conversation
func (s *UpstreamSocket) LeaveChat(chatID string) {
	s.mu.Lock()
	delete(s.joined, chatID)
	s.mu.Unlock()
	_ = s.Emit(domain.EmitLeaveChat, map[string]string{"chatId": chatID})
}

// OnMessage subscribe to new-message, returns the unsubscribe func
func (s *UpstreamSocket) OnMessage(fn func(domain.MessageEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.msgSubs = append(s.msgSubs, messageSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.msgSubs {
			if sub.id == id {
				s.msgSubs = append(s.msgSubs[:i], s.msgSubs[i+1:]...)
				return
			}
		}
	}
}

// OnStatusChange subscribe to chat-assigned / chat-resolved / chat-closed
func (s *UpstreamSocket) OnStatusChange(fn func(domain.StatusEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.statusSubs = append(s.statusSubs, statusSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.statusSubs {
			if sub.id == id {
				s.statusSubs = append(s.statusSubs[:i], s.statusSubs[i+1:]...)
				return
			}
		}
	}
}

// OnMessageRead subscribe to chat-message-read
func (s *UpstreamSocket) OnMessageRead(fn func(domain.ReadEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.readSubs = append(s.readSubs, readSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.readSubs {
			if sub.id == id {
				s.readSubs = append(s.readSubs[:i], s.readSubs[i+1:]...)
				return
			}
		}
	}
}

// OnTyping subscribe to user-typing
func (s *UpstreamSocket) OnTyping(fn func(domain.TypingEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.typingSubs = append(s.typingSubs, typingSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.typingSubs {
			if sub.id == id {
				s.typingSubs = append(s.typingSubs[:i], s.typingSubs[i+1:]...)
				return
			}
		}
	}
}

// OnConnectionChange subscribe to the connectivity flag
func (s *UpstreamSocket) OnConnectionChange(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.connSubs = append(s.connSubs, connSub{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.connSubs {
			if sub.id == id {
				s.connSubs = append(s.connSubs[:i], s.connSubs[i+1:]...)
				return
			}
		}
	}
}

// notifyConnection fan out a connectivity flip, consecutive repeats are
// swallowed so teardown racing the read loop can't double-report
func (s *UpstreamSocket) notifyConnection(up bool) {
	s.mu.Lock()
	if s.lastNotify != nil && *s.lastNotify == up {
		s.mu.Unlock()
		return
	}
	state := up
	s.lastNotify = &state
	subs := make([]connSub, len(s.connSubs))
	copy(subs, s.connSubs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(up)
	}
}

func (s *UpstreamSocket) snapshotMessageSubs() []messageSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]messageSub, len(s.msgSubs))
	copy(subs, s.msgSubs)
	return subs
}

func (s *UpstreamSocket) snapshotStatusSubs() []statusSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]statusSub, len(s.statusSubs))
	copy(subs, s.statusSubs)
	return subs
}

func (s *UpstreamSocket) snapshotReadSubs() []readSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]readSub, len(s.readSubs))
	copy(subs, s.readSubs)
	return subs
}

func (s *UpstreamSocket) snapshotTypingSubs() []typingSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]typingSub, len(s.typingSubs))
	copy(subs, s.typingSubs)
	return subs
}
