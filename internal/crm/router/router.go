package router

import (
	"shop_support_console/internal/crm/app"
	"shop_support_console/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes register customer screen routes
func RegisterRoutes(r *fiber.App, crmHandler *app.CRMHandler) {
	crm := r.Group("/crm", middlewares.JWTMiddleware())
	crm.Get("/customers", crmHandler.ListCustomers)
	crm.Get("/customers/:id", crmHandler.GetCustomer)
	crm.Post("/customers", crmHandler.CreateCustomer)
	crm.Put("/customers/:id", crmHandler.UpdateCustomer)
	crm.Delete("/customers/:id", crmHandler.DeleteCustomer)
}
