package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/identity"
)

// RegisterIdentityRoutes wires the public registration endpoint.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/users", h.Register)
}
