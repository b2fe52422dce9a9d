package router

import (
	"context"

	"shop_support_console/internal/chat/app"
	"shop_support_console/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register support chat routes
// @title Shop Support Console API
// @version 1.0
// @description Support console for the shop admin dashboard
// @BasePath /
func RegisterRoutes(r *fiber.App, consoleWebsocket *app.ConsoleWebsocketHandler, supportHandler *app.SupportHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		consoleWebsocket.HandleConnection(context.Background(), c)
	}))

	support := r.Group("/support")
	support.Get("/roster", supportHandler.GetRoster)
	support.Get("/chats", supportHandler.ListChats)
	support.Post("/chats", supportHandler.CreateChat)
	support.Get("/chats/:id", supportHandler.GetChat)
	support.Post("/chats/:id/messages", supportHandler.PostMessage)
	support.Put("/chats/:id/mark-read", supportHandler.MarkRead)
	support.Put("/chats/:id/assign", supportHandler.Assign)
	support.Put("/chats/:id/resolve", supportHandler.Resolve)
	support.Put("/chats/:id/close", supportHandler.Close)
}
