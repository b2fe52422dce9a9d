package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"shop_support_console/internal/chat/domain"
	"shop_support_console/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Log = logger.Initialize("test", os.TempDir())
	os.Exit(m.Run())
}

func TestListChatsSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		// the second record has a non-string id, the third has none
		w.Write([]byte(`{"success":true,"data":[
			{"_id":"chat-1","customer":{"name":"Kim"},"status":"active","messages":[]},
			{"_id":42},
			{"customer":{"name":"ghost"}}
		]}`))
	}))
	defer srv.Close()

	backend := NewChatBackend(srv.URL, "service-token")
	chats, err := backend.ListChats(context.Background(), ListFilter{Status: "active"})

	assert.NoError(t, err)
	assert.Len(t, chats, 1, "malformed records are dropped, not fatal")
	assert.Equal(t, "chat-1", chats[0].ID)
}

func TestGetChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/chat-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"_id":"chat-1","status":"waiting","customer":{"name":"Kim","email":"kim@example.com"}}}`))
	}))
	defer srv.Close()

	backend := NewChatBackend(srv.URL, "service-token")
	ch, err := backend.GetChat(context.Background(), "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, "chat-1", ch.ID)
	assert.Equal(t, "kim@example.com", ch.Customer.Email)
}

func TestBackendRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"success":false,"message":"chat already resolved"}`))
	}))
	defer srv.Close()

	backend := NewChatBackend(srv.URL, "service-token")
	err := backend.Resolve(context.Background(), "chat-1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chat already resolved")
}

func TestSendAgentMessage(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/chat-1/messages", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	backend := NewChatBackend(srv.URL, "service-token")
	err := backend.SendAgentMessage(context.Background(), "chat-1",
		domain.Sender{Name: "Agent Lee"}, "parts arrived")

	assert.NoError(t, err)
	assert.Contains(t, string(gotBody), `"content":"parts arrived"`)
	assert.Contains(t, string(gotBody), `"messageType":"text"`)
}

func TestMarkReadUsesPut(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/chat/chat-1/mark-read", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	backend := NewChatBackend(srv.URL, "service-token")
	assert.NoError(t, backend.MarkRead(context.Background(), "chat-1"))
	assert.True(t, called)
}
