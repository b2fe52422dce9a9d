package app

import (
	"shop_support_console/internal/crm/domain"
	"shop_support_console/internal/crm/repository"

	"github.com/gofiber/fiber/v2"
)

// CRMHandler customer screen HTTP handlers
type CRMHandler struct {
	backend repository.CRMBackend
}

// NewCRMHandler create CRMHandler
func NewCRMHandler(backend repository.CRMBackend) *CRMHandler {
	return &CRMHandler{backend: backend}
}

// ListCustomers customer list for the dashboard table
// @Summary List customers
// @Tags CRM
// @Produce json
// @Param search query string false "search text"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} []domain.Customer "customers"
// @Failure 502 {object} string "backend error"
// @Router /crm/customers [get]
func (h *CRMHandler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.backend.ListCustomers(c.Context(), c.Query("search"), c.QueryInt("page"), c.QueryInt("limit"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"customers": customers})
}

// GetCustomer one customer with vehicles
// @Summary Get customer
// @Tags CRM
// @Produce json
// @Param id path string true "customer id"
// @Success 200 {object} domain.Customer "customer"
// @Failure 502 {object} string "backend error"
// @Router /crm/customers/{id} [get]
func (h *CRMHandler) GetCustomer(c *fiber.Ctx) error {
	cust, err := h.backend.GetCustomer(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(cust)
}

// CreateCustomer create from the customer modal form
// @Summary Create customer
// @Tags CRM
// @Accept json
// @Produce json
// @Success 200 {object} domain.Customer "created customer"
// @Failure 400 {object} string "request error"
// @Failure 502 {object} string "backend error"
// @Router /crm/customers [post]
func (h *CRMHandler) CreateCustomer(c *fiber.Ctx) error {
	var cust domain.Customer
	if err := c.BodyParser(&cust); err != nil || cust.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	created, err := h.backend.CreateCustomer(c.Context(), cust)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(created)
}

// UpdateCustomer save the customer modal form
// @Summary Update customer
// @Tags CRM
// @Accept json
// @Produce json
// @Param id path string true "customer id"
// @Success 200 {object} string "ok"
// @Failure 400 {object} string "request error"
// @Failure 502 {object} string "backend error"
// @Router /crm/customers/{id} [put]
func (h *CRMHandler) UpdateCustomer(c *fiber.Ctx) error {
	var cust domain.Customer
	if err := c.BodyParser(&cust); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	cust.ID = c.Params("id")
	if err := h.backend.UpdateCustomer(c.Context(), cust); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "ok"})
}

// DeleteCustomer remove a customer record
// @Summary Delete customer
// @Tags CRM
// @Produce json
// @Param id path string true "customer id"
// @Success 200 {object} string "ok"
// @Failure 502 {object} string "backend error"
// @Router /crm/customers/{id} [delete]
func (h *CRMHandler) DeleteCustomer(c *fiber.Ctx) error {
	if err := h.backend.DeleteCustomer(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "ok"})
}
