package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/validation"
)

// Handler exposes account HTTP endpoints for the authenticated owner.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type secretRequest struct {
	TransactionSecret string `json:"transactionSecret" validate:"required,pin4"`
}

type overviewResponse struct {
	AccountNumber string `json:"accountNumber"`
	Balance       string `json:"balance"`
	Tier          string `json:"tier"`
	Status        string `json:"status"`
}

func toResponse(o Overview) overviewResponse {
	return overviewResponse{
		AccountNumber: o.AccountNumber,
		Balance:       o.Balance.StringFixed(2),
		Tier:          string(o.Tier),
		Status:        string(o.Status),
	}
}

// Overview returns the caller's balance, number, tier and status.
func (h *Handler) Overview(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	overview, err := h.service.Overview(c.UserContext(), uid)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(overview))
}

// SetSecret replaces the caller's transaction secret.
func (h *Handler) SetSecret(c *fiber.Ctx) error {
	var req secretRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.SetSecret(c.UserContext(), uid, req.TransactionSecret); err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "transaction secret updated"})
}

// Close closes the caller's account once its balance is cleared.
func (h *Handler) Close(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	overview, err := h.service.Close(c.UserContext(), uid)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(overview))
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrInvalidSecret):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBalanceNotCleared):
		return fiber.NewError(http.StatusConflict, "account balance must be zero before closing")
	default:
		return err
	}
}
