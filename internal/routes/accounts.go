package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/account"
)

// RegisterAccountRoutes wires endpoints acting on the caller's own account.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	accounts := r.Group("/accounts")
	accounts.Get("/overview", h.Overview)
	accounts.Put("/transaction-secret", h.SetSecret)
	accounts.Delete("/close", h.Close)
}
