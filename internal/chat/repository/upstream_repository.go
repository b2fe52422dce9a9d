package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"shop_support_console/internal/chat/domain"
	errprocess "shop_support_console/pkg/err"

	"github.com/go-resty/resty/v2"
)

// ListFilter query filters of GET /chat
type ListFilter struct {
	Status   string
	Category string
	Priority string
	Search   string
	Page     int
	Limit    int
}

// ChatBackend REST surface of the external chat backend. The console never
// owns conversation state, the backend does; requests here must not be used
// to mutate the local transcript (the realtime echo is the mutation path).
type ChatBackend interface {
	ListChats(ctx context.Context, filter ListFilter) ([]domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	CreateChat(ctx context.Context, customer domain.Customer, content string) (*domain.Chat, error)
	SendAgentMessage(ctx context.Context, chatID string, sender domain.Sender, content string) error
	SendCustomerMessage(ctx context.Context, chatID string, content string) error
	MarkRead(ctx context.Context, chatID string) error
	Assign(ctx context.Context, chatID, agentID string) error
	Resolve(ctx context.Context, chatID string) error
	Close(ctx context.Context, chatID string) error
}

// apiEnvelope every backend response is {success, data, message}
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

type restChatBackend struct {
	client *resty.Client
}

// NewChatBackend create the resty client against baseURL, bearer token on
// every call. Token refresh is owned by whoever hands us the token.
func NewChatBackend(baseURL, token string) ChatBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &restChatBackend{client: client}
}

func (r *restChatBackend) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var env apiEnvelope
	req := r.client.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return errprocess.Set(fmt.Sprintf("chat backend %s %s: %s", method, path, msg))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *restChatBackend) ListChats(ctx context.Context, filter ListFilter) ([]domain.Chat, error) {
	var env apiEnvelope
	req := r.client.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if filter.Status != "" {
		req.SetQueryParam("status", filter.Status)
	}
	if filter.Category != "" {
		req.SetQueryParam("category", filter.Category)
	}
	if filter.Priority != "" {
		req.SetQueryParam("priority", filter.Priority)
	}
	if filter.Search != "" {
		req.SetQueryParam("search", filter.Search)
	}
	if filter.Page > 0 {
		req.SetQueryParam("page", fmt.Sprintf("%d", filter.Page))
	}
	if filter.Limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", filter.Limit))
	}

	resp, err := req.Get("/chat")
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !env.Success {
		return nil, errprocess.Set(fmt.Sprintf("chat backend GET /chat: %s", resp.Status()))
	}

	// one malformed conversation record must not blank the whole list
	var raw []json.RawMessage
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(raw))
	for _, item := range raw {
		var ch domain.Chat
		if err := json.Unmarshal(item, &ch); err != nil || ch.ID == "" {
			continue
		}
		chats = append(chats, ch)
	}
	return chats, nil
}

func (r *restChatBackend) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var ch domain.Chat
	if err := r.do(ctx, resty.MethodGet, "/chat/"+chatID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *restChatBackend) CreateChat(ctx context.Context, customer domain.Customer, content string) (*domain.Chat, error) {
	body := map[string]interface{}{
		"customer": customer,
		"message":  content,
	}
	var ch domain.Chat
	if err := r.do(ctx, resty.MethodPost, "/chat", body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *restChatBackend) SendAgentMessage(ctx context.Context, chatID string, sender domain.Sender, content string) error {
	body := map[string]interface{}{
		"sender":      sender,
		"content":     content,
		"messageType": domain.MessageTypeText,
	}
	return r.do(ctx, resty.MethodPost, "/chat/"+chatID+"/messages", body, nil)
}

func (r *restChatBackend) SendCustomerMessage(ctx context.Context, chatID string, content string) error {
	body := map[string]interface{}{
		"content":     content,
		"messageType": domain.MessageTypeText,
	}
	return r.do(ctx, resty.MethodPost, "/chat/"+chatID+"/customer-messages", body, nil)
}

func (r *restChatBackend) MarkRead(ctx context.Context, chatID string) error {
	return r.do(ctx, resty.MethodPut, "/chat/"+chatID+"/mark-read", nil, nil)
}

func (r *restChatBackend) Assign(ctx context.Context, chatID, agentID string) error {
	body := map[string]interface{}{"assignedTo": agentID}
	return r.do(ctx, resty.MethodPut, "/chat/"+chatID+"/assign", body, nil)
}

func (r *restChatBackend) Resolve(ctx context.Context, chatID string) error {
	return r.do(ctx, resty.MethodPut, "/chat/"+chatID+"/resolve", nil, nil)
}

func (r *restChatBackend) Close(ctx context.Context, chatID string) error {
	return r.do(ctx, resty.MethodPut, "/chat/"+chatID+"/close", nil, nil)
}
