package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ContextKind tags the variant of a PendingContext.
type ContextKind string

const (
	KindModeSelection         ContextKind = "mode_selection"
	KindInstallmentCreation   ContextKind = "installment_creation"
	KindInstallmentDeletion   ContextKind = "installment_deletion"
	KindCorrection            ContextKind = "correction"
	KindDuplicateConfirmation ContextKind = "duplicate_confirmation"
)

// PendingContext is the partial progress of a multi-message flow. A
// conversant has at most one.
type PendingContext interface {
	Kind() ContextKind
	Meta() ContextMeta
}

// ContextMeta is shared by every PendingContext variant.
type ContextMeta struct {
	UserID    string    `json:"userId"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m ContextMeta) Meta() ContextMeta { return m }

// ModeSelectionContext waits for the user to pick how a credit card is
// tracked. Pending is the transaction to replay once the mode is set.
type ModeSelectionContext struct {
	ContextMeta
	PaymentMethodID   string          `json:"paymentMethodId"`
	PaymentMethodName string          `json:"paymentMethodName"`
	Pending           *ResolvedIntent `json:"pending,omitempty"`
}

func (*ModeSelectionContext) Kind() ContextKind { return KindModeSelection }

// CardCandidate is one card offered during installment disambiguation.
type CardCandidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstallmentCreationContext waits for the user to pick the card.
type InstallmentCreationContext struct {
	ContextMeta
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
	Description  string          `json:"description"`
	Category     string          `json:"category,omitempty"`
	FirstDueDate time.Time       `json:"firstDueDate"`
	Candidates   []CardCandidate `json:"candidates"`
}

func (*InstallmentCreationContext) Kind() ContextKind { return KindInstallmentCreation }

// DeletionStep is the position inside the installment deletion flow.
type DeletionStep string

const (
	StepAwaitingSelection    DeletionStep = "awaiting_selection"
	StepAwaitingConfirmation DeletionStep = "awaiting_confirmation"
)

// PlanSummary is the part of a plan shown while deleting it.
type PlanSummary struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Installments int             `json:"installments"`
}

// InstallmentDeletionContext tracks the list -> select -> confirm flow.
type InstallmentDeletionContext struct {
	ContextMeta
	Step     DeletionStep  `json:"step"`
	Plans    []PlanSummary `json:"plans"`
	Selected *PlanSummary  `json:"selected,omitempty"`
}

func (*InstallmentDeletionContext) Kind() ContextKind { return KindInstallmentDeletion }

// CorrectionContext remembers an intent guessed by the completion capability
// so the next message can correct it.
type CorrectionContext struct {
	ContextMeta
	Intent        ResolvedIntent `json:"intent"`
	TransactionID string         `json:"transactionId,omitempty"`
}

func (*CorrectionContext) Kind() ContextKind { return KindCorrection }

// DuplicateConfirmationContext holds a transaction flagged as a possible
// duplicate until the user answers yes, no or a new value.
type DuplicateConfirmationContext struct {
	ContextMeta
	Intent     ResolvedIntent `json:"intent"`
	ExistingID string         `json:"existingId"`
}

func (*DuplicateConfirmationContext) Kind() ContextKind { return KindDuplicateConfirmation }

// MarshalContext encodes a PendingContext for storage.
func MarshalContext(pc PendingContext) (ContextKind, []byte, error) {
	if pc == nil {
		return "", nil, fmt.Errorf("domain: nil pending context")
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		return "", nil, fmt.Errorf("domain: marshal %s context: %w", pc.Kind(), err)
	}
	return pc.Kind(), raw, nil
}

// UnmarshalContext decodes a stored PendingContext of the given kind.
func UnmarshalContext(kind ContextKind, raw []byte) (PendingContext, error) {
	var pc PendingContext
	switch kind {
	case KindModeSelection:
		pc = &ModeSelectionContext{}
	case KindInstallmentCreation:
		pc = &InstallmentCreationContext{}
	case KindInstallmentDeletion:
		pc = &InstallmentDeletionContext{}
	case KindCorrection:
		pc = &CorrectionContext{}
	case KindDuplicateConfirmation:
		pc = &DuplicateConfirmationContext{}
	default:
		return nil, fmt.Errorf("domain: unknown context kind %q", kind)
	}
	if err := json.Unmarshal(raw, pc); err != nil {
		return nil, fmt.Errorf("domain: unmarshal %s context: %w", kind, err)
	}
	return pc, nil
}
