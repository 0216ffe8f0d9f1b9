package cascade

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/domain"
)

// intentGuess is the JSON the completion capability is constrained to.
type intentGuess struct {
	Action     string        `json:"action"`
	Confidence float64       `json:"confidence"`
	Entities   guessEntities `json:"entities"`
}

type guessEntities struct {
	Type          *string          `json:"type"`
	Amount        *decimal.Decimal `json:"amount"`
	Description   *string          `json:"description"`
	Category      *string          `json:"category"`
	PaymentMethod *string          `json:"paymentMethod"`
	Installments  *int             `json:"installments"`
	TransactionID *string          `json:"transactionId"`
	Date          *string          `json:"date"`
}

type promptContext struct {
	locale string
	today  time.Time
}

func buildPromptMessages(pc promptContext, text string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt()},
		{Role: domain.RoleSystem, Content: buildUserContextPrompt(pc)},
		{Role: domain.RoleUser, Content: normalizePromptInput(text)},
	}
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You interpret chat messages sent to a personal finance assistant used in Brazil.",
		"",
		"Task:",
		"Classify the message into exactly one action and extract its fields.",
		"",
		"Actions:",
		actionList(),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func actionList() string {
	names := make([]string, len(domain.KnownActions))
	for i, a := range domain.KnownActions {
		names[i] = "- " + string(a)
	}
	return strings.Join(names, "\n")
}

func buildUserContextPrompt(pc promptContext) string {
	return fmt.Sprintf("Today: %s\nUser locale: %s", pc.today.Format("2006-01-02"), pc.locale)
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Messages are usually Brazilian Portuguese; amounts are in reais.",
		"2) Use \"unknown\" when the message is not about the user's finances.",
		"3) Amounts are plain numbers with a dot as decimal separator.",
		"4) Dates are YYYY-MM-DD; resolve relative dates against Today.",
		"5) Set a field to null when the message does not state it. Never invent values.",
		"6) confidence is between 0 and 1.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys action (string), confidence (number) and entities (object). " +
		"entities has keys type, amount, description, category, paymentMethod, installments, transactionId and date."
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func parseIntentGuess(raw string) (intentGuess, error) {
	var out intentGuess
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return intentGuess{}, fmt.Errorf("cascade: decode intent guess: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return intentGuess{}, errors.New("cascade: decode intent guess: multiple JSON values")
		}
		return intentGuess{}, fmt.Errorf("cascade: decode intent guess trailing data: %w", err)
	}
	if strings.TrimSpace(out.Action) == "" {
		return intentGuess{}, errors.New("cascade: intent guess missing action")
	}
	return out, nil
}

func (g intentGuess) toIntent() domain.ResolvedIntent {
	conf := g.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	action := domain.Action(strings.TrimSpace(g.Action))
	e := g.Entities
	var out domain.Entities
	out.Type = transactionType(action, deref(e.Type))
	out.Amount = e.Amount
	out.Description = deref(e.Description)
	out.Category = deref(e.Category)
	out.PaymentMethod = deref(e.PaymentMethod)
	if e.Installments != nil {
		out.Installments = *e.Installments
	}
	out.TransactionID = strings.TrimPrefix(deref(e.TransactionID), "#")
	if e.Date != nil {
		if d, err := time.Parse("2006-01-02", *e.Date); err == nil {
			out.Date = &d
		}
	}
	return domain.ResolvedIntent{
		Action:     action,
		Confidence: conf,
		Entities:   out,
	}
}

// transactionType keeps only expense or income. Adding actions always carry
// their own type; other actions drop an unrecognised one.
func transactionType(action domain.Action, raw string) domain.TransactionType {
	switch action {
	case domain.ActionAddExpense:
		return domain.TransactionExpense
	case domain.ActionAddIncome:
		return domain.TransactionIncome
	}
	switch t := domain.TransactionType(strings.ToLower(raw)); t {
	case domain.TransactionExpense, domain.TransactionIncome:
		return t
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
