package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop_support_console/internal/chat/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func mustEnvelope(t *testing.T, event domain.SocketEvent, payload interface{}) domain.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	return domain.Envelope{Event: event, Data: data}
}

// wsTestServer upgrades one connection and pushes the given frames after the
// join-user handshake
func wsTestServer(t *testing.T, frames []domain.Envelope) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join domain.Envelope
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		assert.Equal(t, domain.EmitJoinUser, join.Event)

		for _, frame := range frames {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
		// keep the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestUpstreamSocketDeliversMessages(t *testing.T) {
	ev := domain.MessageEvent{
		ChatID:  "chat-1",
		Message: domain.Message{ID: "m1", Sender: domain.Sender{Name: domain.CustomerSenderName}, Content: "hi"},
	}
	srv := wsTestServer(t, []domain.Envelope{mustEnvelope(t, domain.EventNewMessage, ev)})
	defer srv.Close()

	s := NewUpstreamSocket(wsURL(srv), "console-1", time.Second, 1, 100*time.Millisecond)
	got := make(chan domain.MessageEvent, 1)
	s.OnMessage(func(ev domain.MessageEvent) { got <- ev })

	s.Connect(context.Background())
	defer s.Disconnect()

	select {
	case ev := <-got:
		assert.Equal(t, "chat-1", ev.ChatID)
		assert.Equal(t, "m1", ev.Message.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestUpstreamSocketConnectionFlag(t *testing.T) {
	srv := wsTestServer(t, nil)
	defer srv.Close()

	s := NewUpstreamSocket(wsURL(srv), "console-1", time.Second, 1, 100*time.Millisecond)
	flags := make(chan bool, 4)
	s.OnConnectionChange(func(up bool) { flags <- up })

	s.Connect(context.Background())

	select {
	case up := <-flags:
		assert.True(t, up)
	case <-time.After(3 * time.Second):
		t.Fatal("never connected")
	}

	s.Disconnect()
	select {
	case up := <-flags:
		assert.False(t, up)
	case <-time.After(3 * time.Second):
		t.Fatal("disconnect not reported")
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	s := NewUpstreamSocket("ws://127.0.0.1:1/socket", "console-1", time.Second, 1, time.Second)
	err := s.Emit(domain.EmitTyping, map[string]string{"chatId": "chat-1"})
	assert.Error(t, err)
}

func TestNotifyConnectionSwallowsRepeats(t *testing.T) {
	s := NewUpstreamSocket("ws://unused", "console-1", 0, 0, 0)

	var got []bool
	s.OnConnectionChange(func(up bool) { got = append(got, up) })

	// teardown and the read loop can both report the drop, subscribers see
	// each flip once
	s.notifyConnection(true)
	s.notifyConnection(true)
	s.notifyConnection(false)
	s.notifyConnection(false)
	s.notifyConnection(true)

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestDispatchStatusDefaults(t *testing.T) {
	s := NewUpstreamSocket("ws://unused", "console-1", 0, 0, 0)

	var got []domain.StatusEvent
	s.OnStatusChange(func(ev domain.StatusEvent) { got = append(got, ev) })

	// the backend omits the status field on lifecycle events, the event name
	// itself carries the transition
	s.dispatch(mustEnvelope(t, domain.EventChatAssigned, domain.StatusEvent{ChatID: "chat-1", AssignedTo: "agent-7"}))
	s.dispatch(mustEnvelope(t, domain.EventChatResolved, domain.StatusEvent{ChatID: "chat-1"}))
	s.dispatch(mustEnvelope(t, domain.EventChatClosed, domain.StatusEvent{ChatID: "chat-2"}))

	assert.Len(t, got, 3)
	assert.Equal(t, domain.StatusActive, got[0].Status)
	assert.Equal(t, "agent-7", got[0].AssignedTo)
	assert.Equal(t, domain.StatusResolved, got[1].Status)
	assert.Equal(t, domain.StatusClosed, got[2].Status)
}

func TestDispatchUnsubscribe(t *testing.T) {
	s := NewUpstreamSocket("ws://unused", "console-1", 0, 0, 0)

	var first, second []string
	unsub := s.OnMessage(func(ev domain.MessageEvent) { first = append(first, ev.ChatID) })
	s.OnMessage(func(ev domain.MessageEvent) { second = append(second, ev.ChatID) })

	ev := domain.MessageEvent{ChatID: "chat-1", Message: domain.Message{ID: "m1"}}
	s.dispatch(mustEnvelope(t, domain.EventNewMessage, ev))

	unsub()
	s.dispatch(mustEnvelope(t, domain.EventNewMessage, ev))

	assert.Equal(t, []string{"chat-1"}, first, "unsubscribed handler stops receiving")
	assert.Equal(t, []string{"chat-1", "chat-1"}, second)
}

func TestDispatchIgnoresMalformedPayload(t *testing.T) {
	s := NewUpstreamSocket("ws://unused", "console-1", 0, 0, 0)

	called := false
	s.OnMessage(func(ev domain.MessageEvent) { called = true })

	s.dispatch(domain.Envelope{Event: domain.EventNewMessage, Data: json.RawMessage(`{"chatId":42}`)})
	assert.False(t, called)
}
