package validation

import (
	"encoding/json"
	"errors"
	"testing"
)

type sample struct {
	Email  string      `json:"email" validate:"required,email"`
	Secret string      `json:"transactionSecret" validate:"required,pin4"`
	Amount json.Number `json:"amount" validate:"required,money"`
}

func TestStructAcceptsValidInput(t *testing.T) {
	in := sample{Email: "ada@example.com", Secret: "0420", Amount: "12.50"}
	if err := Struct(in); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestStructReportsEveryField(t *testing.T) {
	in := sample{Email: "nope", Secret: "12a4", Amount: "-3"}
	err := Struct(in)

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Details) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", verr.Details)
	}
	fields := map[string]string{}
	for _, d := range verr.Details {
		fields[d.Field] = d.Type
	}
	if fields["email"] != "email" || fields["transactionSecret"] != "pin4" || fields["amount"] != "money" {
		t.Fatalf("unexpected field errors: %+v", fields)
	}
}

func TestMoneyRejectsZero(t *testing.T) {
	in := sample{Email: "ada@example.com", Secret: "1234", Amount: "0.00"}
	if err := Struct(in); err == nil {
		t.Fatalf("expected zero amount to be rejected")
	}
}

func TestMoneyRejectsSubCentPrecision(t *testing.T) {
	for _, amount := range []json.Number{"1.005", "0.001", "10.999"} {
		in := sample{Email: "ada@example.com", Secret: "1234", Amount: amount}
		if err := Struct(in); err == nil {
			t.Fatalf("expected %s to be rejected", amount)
		}
	}
	for _, amount := range []json.Number{"1.5", "1.50", "1.500", "7"} {
		in := sample{Email: "ada@example.com", Secret: "1234", Amount: amount}
		if err := Struct(in); err != nil {
			t.Fatalf("expected %s to be accepted, got %v", amount, err)
		}
	}
}
