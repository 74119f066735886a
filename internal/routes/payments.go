package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/payments"
)

// RegisterPaymentRoutes wires transfer and history endpoints. guards run in
// front of send-funds only.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, guards ...fiber.Handler) {
	txns := r.Group("/transactions")
	txns.Post("/send-funds", append(guards, h.SendFunds)...)
	txns.Post("/history", h.History)
	txns.Post("/statement", h.Statement)
}
