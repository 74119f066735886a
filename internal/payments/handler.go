package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/fundstransfer/internal/account"
	"github.com/congo-pay/fundstransfer/internal/ledger"
	"github.com/congo-pay/fundstransfer/internal/validation"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	SenderAccountNumber   string      `json:"senderAccountNumber" validate:"required,len=9,numeric"`
	ReceiverAccountNumber string      `json:"receiverAccountNumber" validate:"required,len=9,numeric"`
	Amount                json.Number `json:"amount" validate:"required,money"`
	TransactionSecret     string      `json:"transactionSecret" validate:"required,pin4"`
	Description           string      `json:"description" validate:"max=255"`
}

type periodRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtefield=StartTime"`
}

type entryResponse struct {
	Timestamp        time.Time `json:"timestamp"`
	Amount           string    `json:"amount"`
	CounterpartyName string    `json:"counterpartyName"`
	Type             EntryType `json:"type"`
	Reference        string    `json:"reference"`
}

type statementRowResponse struct {
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"createdAt"`
	Amount       string    `json:"amount"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`
	Description  string    `json:"description,omitempty"`
}

// SendFunds processes an account-to-account transfer.
func (h *Handler) SendFunds(c *fiber.Ctx) error {
	var req transferRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	uid, _ := c.Locals("user_id").(string)

	receipt, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                amount,
		TransactionSecret:     req.TransactionSecret,
		Description:           req.Description,
		RequestorUserID:       uid,
	})
	if err != nil {
		return statusError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":   "Transfer successful",
		"status":    StateDone,
		"reference": receipt.Reference,
	})
}

// History returns a page of the caller's transactions.
func (h *Handler) History(c *fiber.Ctx) error {
	var req periodRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	entries, err := h.service.History(c.UserContext(), HistoryQuery{
		OwnerID: uid,
		Period:  Period{From: req.StartTime, To: req.EndTime},
		Page:    c.QueryInt("page", 0),
		Size:    c.QueryInt("size", defaultPageSize),
	})
	if err != nil {
		return statusError(err)
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			Timestamp:        e.Timestamp,
			Amount:           e.Amount.StringFixed(2),
			CounterpartyName: e.CounterpartyName,
			Type:             e.Type,
			Reference:        e.Reference,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Statement exports the caller's ordered transactions for a period.
func (h *Handler) Statement(c *fiber.Ctx) error {
	var req periodRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	stmt, err := h.service.Statement(c.UserContext(), uid, Period{From: req.StartTime, To: req.EndTime})
	if err != nil {
		return statusError(err)
	}

	rows := make([]statementRowResponse, 0, len(stmt.Rows))
	for _, r := range stmt.Rows {
		rows = append(rows, statementRowResponse{
			Reference:    r.Reference,
			CreatedAt:    r.CreatedAt,
			Amount:       r.Amount.StringFixed(2),
			SenderName:   r.SenderName,
			ReceiverName: r.ReceiverName,
			Description:  r.Description,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"accountNumber": stmt.AccountNumber,
		"holderName":    stmt.HolderName,
		"startTime":     stmt.Period.From,
		"endTime":       stmt.Period.To,
		"transactions":  rows,
	})
}

// statusError translates orchestrator failures. Sender and receiver lookups
// share one message so a response never says which side was missing.
func statusError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotOwner), errors.Is(err, account.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrNoTransactions):
		return fiber.NewError(http.StatusNotFound, "no transactions found")
	case errors.Is(err, account.ErrNotActivated):
		return fiber.NewError(http.StatusForbidden, "account not activated")
	case errors.Is(err, ErrSecretMismatch):
		return fiber.NewError(http.StatusUnauthorized, "transfer authorization failed")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient funds")
	default:
		return fiber.NewError(http.StatusInternalServerError, "transfer could not be completed")
	}
}
