package main

import (
	"shop_support_console/internal/chat/router"

	"github.com/gofiber/fiber/v2"
)

// used to init swagger docs for the console routes
// swag init output ./docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, nil, nil)
}
