package app

import (
	"shop_support_console/internal/chat/domain"
	"shop_support_console/internal/chat/repository"
	"shop_support_console/pkg/logger"
	"shop_support_console/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SupportHandler REST surface of the support chat screens
type SupportHandler struct {
	backend repository.ChatBackend
	roster  *RosterUseCase
}

// NewSupportHandler create SupportHandler
func NewSupportHandler(backend repository.ChatBackend, roster *RosterUseCase) *SupportHandler {
	return &SupportHandler{
		backend: backend,
		roster:  roster,
	}
}

// GetRoster conversation list, unread first then by recency
// @Summary Conversation list
// @Description Ordered conversation list, unread customers first
// @Tags Support
// @Produce json
// @Success 200 {object} []domain.RosterEntry "roster entries"
// @Router /support/roster [get]
func (h *SupportHandler) GetRoster(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"entries": h.roster.Entries()})
}

// ListChats proxy of the backend chat list with filters
// @Summary List conversations
// @Description Filterable, paginated conversation list from the chat backend
// @Tags Support
// @Produce json
// @Param status query string false "status filter"
// @Param category query string false "category filter"
// @Param priority query string false "priority filter"
// @Param search query string false "search text"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} []domain.Chat "conversations"
// @Failure 502 {object} string "backend error"
// @Router /support/chats [get]
func (h *SupportHandler) ListChats(c *fiber.Ctx) error {
	filter := repository.ListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		Page:     c.QueryInt("page"),
		Limit:    c.QueryInt("limit"),
	}
	chats, err := h.backend.ListChats(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// CreateChat open a conversation on behalf of a walk-in or phone customer
// @Summary Create conversation
// @Tags Support
// @Accept json
// @Produce json
// @Success 200 {object} domain.Chat "created conversation"
// @Failure 400 {object} string "request error"
// @Failure 502 {object} string "backend error"
// @Router /support/chats [post]
func (h *SupportHandler) CreateChat(c *fiber.Ctx) error {
	type request struct {
		Customer domain.Customer `json:"customer"`
		Message  string          `json:"message"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	ch, err := h.backend.CreateChat(c.Context(), req.Customer, req.Message)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	logger.Log.Info("chat created", zap.String("chat_id", ch.ID))
	return c.JSON(ch)
}

// GetChat one conversation with its transcript
// @Summary Get conversation
// @Tags Support
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} domain.Chat "conversation"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id} [get]
func (h *SupportHandler) GetChat(c *fiber.Ctx) error {
	ch, err := h.backend.GetChat(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ch)
}

// PostMessage agent send. The response never feeds the transcript, the
// realtime echo does.
// @Summary Send agent message
// @Tags Support
// @Accept json
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} string "sent"
// @Failure 400 {object} string "request error"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id}/messages [post]
func (h *SupportHandler) PostMessage(c *fiber.Ctx) error {
	type request struct {
		Content string `json:"content"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	agentID, _ := c.Locals(middlewares.TokenAgentID).(string)
	sender := domain.Sender{Name: agentID}
	if err := h.backend.SendAgentMessage(c.Context(), c.Params("id"), sender, req.Content); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "sent"})
}

// MarkRead flip unread customer messages of a conversation
// @Summary Mark conversation read
// @Tags Support
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} string "ok"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id}/mark-read [put]
func (h *SupportHandler) MarkRead(c *fiber.Ctx) error {
	chatID := c.Params("id")
	if err := h.backend.MarkRead(c.Context(), chatID); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	h.roster.ApplyRead(chatID)
	return c.JSON(fiber.Map{"message": "ok"})
}

// Assign take or hand over a conversation
// @Summary Assign conversation
// @Tags Support
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} string "ok"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id}/assign [put]
func (h *SupportHandler) Assign(c *fiber.Ctx) error {
	agentID, _ := c.Locals(middlewares.TokenAgentID).(string)
	if err := h.backend.Assign(c.Context(), c.Params("id"), agentID); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "ok"})
}

// Resolve close a conversation with an answer
// @Summary Resolve conversation
// @Tags Support
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} string "ok"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id}/resolve [put]
func (h *SupportHandler) Resolve(c *fiber.Ctx) error {
	if err := h.backend.Resolve(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	logger.Log.Info("chat resolved", zap.String("chat_id", c.Params("id")))
	return c.JSON(fiber.Map{"message": "ok"})
}

// Close close a conversation without resolution
// @Summary Close conversation
// @Tags Support
// @Produce json
// @Param id path string true "chat id"
// @Success 200 {object} string "ok"
// @Failure 502 {object} string "backend error"
// @Router /support/chats/{id}/close [put]
func (h *SupportHandler) Close(c *fiber.Ctx) error {
	if err := h.backend.Close(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	logger.Log.Info("chat closed", zap.String("chat_id", c.Params("id")))
	return c.JSON(fiber.Map{"message": "ok"})
}
