package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodType classifies a payment method.
type PaymentMethodType string

const (
	PaymentCredit PaymentMethodType = "credit"
	PaymentDebit  PaymentMethodType = "debit"
	PaymentCash   PaymentMethodType = "cash"
	PaymentPix    PaymentMethodType = "pix"
	PaymentOther  PaymentMethodType = "other"
)

// PaymentMethod is a user-owned way of paying. CreditMode is nil until the
// user chooses how a credit card is tracked.
type PaymentMethod struct {
	ID         string
	UserID     string
	Name       string
	Type       PaymentMethodType
	CreditMode *bool
}

// IsCredit reports whether the method is a credit card.
func (p PaymentMethod) IsCredit() bool {
	return p.Type == PaymentCredit
}

// ModeUnset reports whether a credit card still needs a tracking mode.
func (p PaymentMethod) ModeUnset() bool {
	return p.IsCredit() && p.CreditMode == nil
}

// InstallmentEligible reports whether installment plans can target p.
func (p PaymentMethod) InstallmentEligible() bool {
	return p.IsCredit() && p.CreditMode != nil && *p.CreditMode
}

// Transaction is a ledger row.
type Transaction struct {
	ID                   string
	ReadableID           string
	UserID               string
	Type                 TransactionType
	Amount               decimal.Decimal
	Description          string
	Category             string
	PaymentMethodID      string
	Date                 time.Time
	CreatedAt            time.Time
	InstallmentPaymentID string
}

// PlanStatus is the lifecycle state of an installment plan.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
)

// InstallmentPlan is a purchase split across monthly payments.
type InstallmentPlan struct {
	ID                string
	UserID            string
	PaymentMethodID   string
	Description       string
	Category          string
	TotalAmount       decimal.Decimal
	InstallmentAmount decimal.Decimal
	Installments      int
	FirstDueDate      time.Time
	Status            PlanStatus
	CreatedAt         time.Time
}

// PaymentStatus is the state of one installment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// InstallmentPayment is one installment of a plan.
type InstallmentPayment struct {
	PlanID        string
	Number        int
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        PaymentStatus
	TransactionID string
}

// Budget is a monthly spending limit for a category.
type Budget struct {
	UserID   string
	Category string
	Amount   decimal.Decimal
}

// LearnedPattern maps a generalized message to the intent the completion
// capability produced for it.
type LearnedPattern struct {
	UserID     string
	Pattern    string
	Action     Action
	Entities   Entities
	Confidence float64
	UsageCount int
	UpdatedAt  time.Time
}
