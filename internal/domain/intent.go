package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action names a financial operation a message can resolve to.
type Action string

const (
	ActionUnknown           Action = "unknown"
	ActionAddExpense        Action = "add_expense"
	ActionAddIncome         Action = "add_income"
	ActionShowExpenses      Action = "show_expenses"
	ActionShowReport        Action = "show_report"
	ActionEditTransaction   Action = "edit_transaction"
	ActionDeleteTransaction Action = "delete_transaction"
	ActionSetBudget         Action = "set_budget"
	ActionCreateInstallment Action = "create_installment"
	ActionListInstallments  Action = "list_installments"
	ActionDeleteInstallment Action = "delete_installment"
	ActionSetCreditMode     Action = "set_credit_mode"
	ActionHelp              Action = "help"
	ActionLogin             Action = "login"
	ActionLogout            Action = "logout"
	ActionCancel            Action = "cancel"

	// Flow outcomes that never come out of a parser but are reported in metrics.
	ActionSelectCreditMode         Action = "select_credit_mode"
	ActionCancelInstallment        Action = "create_installment_cancelled"
	ActionCancelInstallmentRemoval Action = "delete_installment_cancelled"
	ActionRejectDuplicate          Action = "duplicate_rejected"
)

// KnownActions lists every action a strategy may resolve to.
var KnownActions = []Action{
	ActionAddExpense, ActionAddIncome, ActionShowExpenses, ActionShowReport,
	ActionEditTransaction, ActionDeleteTransaction, ActionSetBudget,
	ActionCreateInstallment, ActionListInstallments, ActionDeleteInstallment,
	ActionSetCreditMode, ActionHelp, ActionLogin, ActionLogout, ActionCancel,
}

// IsKnown reports whether a is one of KnownActions.
func (a Action) IsKnown() bool {
	for _, k := range KnownActions {
		if a == k {
			return true
		}
	}
	return false
}

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

// TransactionItem is one entry of a multi-transaction message.
type TransactionItem struct {
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Date          *time.Time      `json:"date,omitempty"`
}

// Entities are the structured fields extracted from a message. Every field is
// optional; handlers validate what they need.
type Entities struct {
	Type           TransactionType   `json:"type,omitempty"`
	Amount         *decimal.Decimal  `json:"amount,omitempty"`
	Description    string            `json:"description,omitempty"`
	Category       string            `json:"category,omitempty"`
	PaymentMethod  string            `json:"paymentMethod,omitempty"`
	Installments   int               `json:"installments,omitempty"`
	TransactionID  string            `json:"transactionId,omitempty"`
	DescriptionRef string            `json:"descriptionRef,omitempty"`
	Date           *time.Time        `json:"date,omitempty"`
	CreditMode     *bool             `json:"creditMode,omitempty"`
	Items          []TransactionItem `json:"items,omitempty"`

	// Force skips duplicate detection; set when the user already confirmed.
	Force bool `json:"force,omitempty"`
}

// ResolvedIntent is the single output of the interpretation cascade.
type ResolvedIntent struct {
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}

// Unknown returns the intent every strategy falls back to.
func Unknown() ResolvedIntent {
	return ResolvedIntent{Action: ActionUnknown}
}

// IsBatch reports whether the intent carries more than one transaction.
func (i ResolvedIntent) IsBatch() bool {
	return len(i.Entities.Items) > 1
}
