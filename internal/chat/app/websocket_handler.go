package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"shop_support_console/internal/chat/domain"
	"shop_support_console/internal/chat/repository"
	"shop_support_console/pkg"
	errprocess "shop_support_console/pkg/err"
	"shop_support_console/pkg/logger"
	"shop_support_console/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsoleWebsocketHandler dashboard websocket entry point, one session per
// connected agent browser
type ConsoleWebsocketHandler struct {
	backend repository.ChatBackend
	socket  repository.SocketGateway
	roster  *RosterUseCase
	pubsub  repository.PubSub
	typing  *TypingTracker
}

// NewConsoleWebsocketHandler create ConsoleWebsocketHandler
func NewConsoleWebsocketHandler(
	backend repository.ChatBackend,
	socket repository.SocketGateway,
	roster *RosterUseCase,
	pubsub repository.PubSub,
	typing *TypingTracker,
) *ConsoleWebsocketHandler {
	return &ConsoleWebsocketHandler{
		backend: backend,
		socket:  socket,
		roster:  roster,
		pubsub:  pubsub,
		typing:  typing,
	}
}

// session per-connection state. Writes are serialized, the pubsub
// subscriptions and the request loop all push frames to the same conn.
type session struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	sessionID  string
	agentID    string
	transcript *Transcript
	chatCancel context.CancelFunc
}

func (s *session) send(resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Errorf("marshal response error:", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

// HandleConnection run one dashboard session until the browser goes away
func (h *ConsoleWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenAgent := conn.Locals(middlewares.TokenAgentID)
	agentID, ok := tokenAgent.(string)
	logger.Log.Info("websocket handle agentID", zap.String("agentID", agentID), zap.String("ok", strconv.FormatBool(ok)))

	ticker := time.NewTicker(time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	sess := &session{
		conn:       conn,
		sessionID:  uuid.NewString(),
		agentID:    agentID,
		transcript: NewTranscript(h.backend, h.socket),
	}
	logger.Log.Info("websocket session start",
		zap.String("sessionID", sess.sessionID),
		zap.String("agentID", agentID))

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close",
			zap.String("sessionID", sess.sessionID),
			zap.String("agentID", agentID))
		if sess.chatCancel != nil {
			sess.chatCancel()
		}
		conn.Close()
		cancel()
	}()

	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("agentID", agentID))
		return nil
	})

	// conversation list pushes are session-wide, not tied to the open chat
	h.pubsub.Subscribe(ctxClose, repository.RosterChannel, func(resp domain.WSResponse) {
		sess.send(resp)
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				sess.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				sess.writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			sess.send(domain.WSResponse{Action: "error", Success: false, Error: "unknown message type"})
			continue
		}
		h.textMessageAction(ctx, ctxClose, sess, message)
	}
}

func (h *ConsoleWebsocketHandler) textMessageAction(ctx, sessCtx context.Context, sess *session, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err)
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	// load a conversation and follow its realtime pushes
	case string(domain.OpenChat):
		ch, err := h.openChat(ctx, sessCtx, sess, req.ChatID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["chat"] = ch
			resp.Payload["typing"] = h.typing.ActiveNames(req.ChatID)
		}

	case string(domain.LeaveChat):
		h.leaveChat(sess)
		resp.Success = true
		resp.Payload["left"] = req.ChatID

	// persist through the backend, the realtime echo appends locally
	case string(domain.SendMessage):
		sender := domain.Sender{Name: sess.agentID}
		if err := sess.transcript.Send(ctx, req.ChatID, sender, req.Content); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	case string(domain.MarkRead):
		if err := h.backend.MarkRead(ctx, req.ChatID); err != nil {
			resp.Error = err.Error()
		} else {
			sess.transcript.MarkCustomerRead()
			h.roster.ApplyRead(req.ChatID)
			resp.Success = true
		}

	case string(domain.Typing):
		err := h.socket.Emit(domain.EmitTyping, map[string]interface{}{
			"chatId":   req.ChatID,
			"name":     sess.agentID,
			"isTyping": req.Typing,
		})
		resp.Success = err == nil
		if err != nil {
			resp.Error = err.Error()
		}

	case string(domain.UpdateStatus):
		if err := h.updateStatus(ctx, sess, req); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	case string(domain.GetRoster):
		resp.Success = true
		resp.Payload["entries"] = h.roster.Entries()

	default:
		resp.Error = "unknown action"
	}

	if resp.Error != "" {
		logger.Log.Error("websocket err ",
			zap.String("AgentID", sess.agentID),
			zap.String("Action", req.Action),
			zap.String("err", resp.Error))
	}
	sess.send(resp)
}

// openChat switch the session to another conversation. The previous chat's
// subscription is cancelled first so its late pushes can't touch the new
// transcript; the transcript itself also rejects events for other chat ids.
func (h *ConsoleWebsocketHandler) openChat(ctx, sessCtx context.Context, sess *session, chatID string) (domain.Chat, error) {
	if prev := sess.transcript.CurrentID(); prev != "" && prev != chatID {
		h.leaveChat(sess)
	} else if sess.chatCancel != nil {
		// re-opening the same chat, the previous subscription must go first
		// or every fan-out would reach the browser twice
		sess.chatCancel()
		sess.chatCancel = nil
	}

	if _, err := sess.transcript.Open(ctx, chatID); err != nil {
		return domain.Chat{}, err
	}

	h.socket.JoinChat(chatID)

	// optimistic read state for immediate UI feedback, server confirmation
	// arrives separately
	if err := h.backend.MarkRead(ctx, chatID); err != nil {
		logger.Log.Errorf("mark-read failed on open:", err, zap.String("chat_id", chatID))
	}
	sess.transcript.MarkCustomerRead()
	h.roster.ApplyRead(chatID)

	chatCtx, cancel := context.WithCancel(sessCtx)
	sess.chatCancel = cancel
	h.pubsub.Subscribe(chatCtx, repository.ChatChannel(chatID), func(resp domain.WSResponse) {
		h.forwardChatPush(sess, resp)
	})

	snap, _ := sess.transcript.Snapshot()
	return snap, nil
}

func (h *ConsoleWebsocketHandler) leaveChat(sess *session) {
	if sess.chatCancel != nil {
		sess.chatCancel()
		sess.chatCancel = nil
	}
	if prev := sess.transcript.CurrentID(); prev != "" {
		h.socket.LeaveChat(prev)
	}
	sess.transcript.Clear()
}

// forwardChatPush apply a fanned-out event to the session transcript, then
// forward to the browser. Duplicates die here instead of flickering the UI.
func (h *ConsoleWebsocketHandler) forwardChatPush(sess *session, resp domain.WSResponse) {
	switch resp.Action {
	case string(domain.NotifyMessage):
		ev, ok := messageEventFromPayload(resp.Payload)
		if !ok {
			return
		}
		// duplicate or stale conversation events are absorbed silently
		if !sess.transcript.AppendIfNovel(ev) {
			return
		}
		sess.send(resp)

	case string(domain.NotifyStatus):
		ev := statusEventFromPayload(resp.Payload)
		sess.transcript.ApplyStatus(ev)
		sess.send(resp)

	case string(domain.NotifyRead):
		var ev domain.ReadEvent
		if v, ok := resp.Payload["chat_id"].(string); ok {
			ev.ChatID = v
		}
		sess.transcript.ApplyAgentRead(ev)
		sess.send(resp)

	default:
		sess.send(resp)
	}
}

// messageEventFromPayload round-trip the fan-out payload back into the event
func messageEventFromPayload(payload map[string]interface{}) (domain.MessageEvent, bool) {
	b, err := json.Marshal(payload)
	if err != nil {
		return domain.MessageEvent{}, false
	}
	var raw struct {
		ChatID    string         `json:"chat_id"`
		Message   domain.Message `json:"message"`
		SenderID  string         `json:"sender_id"`
		Timestamp time.Time      `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return domain.MessageEvent{}, false
	}
	return domain.MessageEvent{
		ChatID:    raw.ChatID,
		Message:   raw.Message,
		SenderID:  raw.SenderID,
		Timestamp: raw.Timestamp,
	}, raw.ChatID != ""
}

func statusEventFromPayload(payload map[string]interface{}) domain.StatusEvent {
	var ev domain.StatusEvent
	if v, ok := payload["chat_id"].(string); ok {
		ev.ChatID = v
	}
	if v, ok := payload["status"].(string); ok {
		ev.Status = domain.ChatStatus(v)
	}
	if v, ok := payload["assigned_to"].(string); ok {
		ev.AssignedTo = v
	}
	return ev
}

func errInvalidStatus(s string) error {
	return errprocess.Set("invalid status update: " + s)
}

func errInvalidTransition(from, to domain.ChatStatus) error {
	return errprocess.Set(fmt.Sprintf("invalid status transition %s -> %s", from, to))
}

var allowedStatusUpdates = []string{
	string(domain.StatusActive),
	string(domain.StatusResolved),
	string(domain.StatusClosed),
}

// updateStatus drive the forward-only lifecycle through the backend. Local
// state is not touched here, the chat-assigned / chat-resolved / chat-closed
// event is the source of truth.
func (h *ConsoleWebsocketHandler) updateStatus(ctx context.Context, sess *session, req domain.WSRequest) error {
	if !pkg.Contains(allowedStatusUpdates, req.Status) {
		return errInvalidStatus(req.Status)
	}

	if snap, ok := sess.transcript.Snapshot(); ok && snap.ID == req.ChatID {
		if !snap.Status.CanTransition(domain.ChatStatus(req.Status)) {
			return errInvalidTransition(snap.Status, domain.ChatStatus(req.Status))
		}
	}

	var err error
	switch domain.ChatStatus(req.Status) {
	case domain.StatusActive:
		err = h.backend.Assign(ctx, req.ChatID, sess.agentID)
	case domain.StatusResolved:
		err = h.backend.Resolve(ctx, req.ChatID)
	case domain.StatusClosed:
		err = h.backend.Close(ctx, req.ChatID)
	}
	if err != nil {
		return err
	}

	if emitErr := h.socket.Emit(domain.EmitUpdateStatus, map[string]interface{}{
		"chatId": req.ChatID,
		"status": req.Status,
	}); emitErr != nil {
		logger.Log.Errorf("update-chat-status emit failed:", emitErr)
	}
	return nil
}
