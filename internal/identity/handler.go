package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundstransfer/internal/validation"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
}

type registerResponse struct {
	UserID        string `json:"userId"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	AccountNumber string `json:"accountNumber"`
	Status        string `json:"status"`
	Tier          string `json:"tier"`
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	user, acct, err := h.service.Register(c.UserContext(), Registration{FullName: req.FullName, Email: req.Email, Phone: req.Phone})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return fiber.NewError(http.StatusConflict, "user already registered")
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(registerResponse{
		UserID:        user.ID,
		FullName:      user.FullName,
		Email:         user.Email,
		AccountNumber: acct.AccountNumber,
		Status:        string(acct.Status),
		Tier:          string(acct.Tier),
	})
}
