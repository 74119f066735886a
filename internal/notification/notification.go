package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies an alert relative to its recipient.
type Kind string

const (
	KindCredit Kind = "CREDIT"
	KindDebit  Kind = "DEBIT"
)

// Medium is the delivery medium of a message.
type Medium string

const (
	MediumEmail Medium = "email"
	MediumSMS   Medium = "sms"
)

// Address picks the contact address used by the medium.
func (m Medium) Address(c Contact) string {
	switch m {
	case MediumEmail:
		return c.Email
	case MediumSMS:
		return c.Phone
	default:
		return ""
	}
}

// Event is handed off by a completed transfer. Balances are the post-transfer values.
type Event struct {
	SenderID        string
	ReceiverID      string
	SenderName      string
	ReceiverName    string
	SenderBalance   decimal.Decimal
	ReceiverBalance decimal.Decimal
	Amount          decimal.Decimal
	Reference       string
	OccurredAt      time.Time
}

// Contact is where a user can be reached.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Directory resolves user ids to contacts.
type Directory interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// Message describes a notification payload.
type Message struct {
	Kind        Kind      `json:"kind"`
	Medium      Medium    `json:"medium"`
	Destination string    `json:"destination"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Reference   string    `json:"reference"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// Channel binds a medium to the notifier carrying it.
type Channel struct {
	Medium   Medium
	Notifier Notifier
}

// alert is one recipient's side of a transfer.
type alert struct {
	kind    Kind
	userID  string
	subject string
	body    string
}

func alertsFor(e Event) []alert {
	return []alert{
		{
			kind:    KindDebit,
			userID:  e.SenderID,
			subject: "DEBIT ALERT",
			body: fmt.Sprintf("Money Out! You have sent USD%s to %s. You have USD%s",
				e.Amount.StringFixed(2), e.ReceiverName, e.SenderBalance.StringFixed(2)),
		},
		{
			kind:    KindCredit,
			userID:  e.ReceiverID,
			subject: "CREDIT ALERT",
			body: fmt.Sprintf("Money In! You have been credited USD%s from %s. You have USD%s",
				e.Amount.StringFixed(2), e.SenderName, e.ReceiverBalance.StringFixed(2)),
		},
	}
}
