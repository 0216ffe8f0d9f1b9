// Package parser is the deterministic, rule-based interpreter: explicit
// slash commands, keyword tables and entity extraction. It never fails; it
// always returns its best guess with a confidence.
package parser

import (
	"strings"
	"time"

	"finbot/internal/domain"
	"finbot/internal/textnorm"
)

// Confidence levels the rule tables assign.
const (
	confCommand  = 0.95
	confExact    = 0.9
	confKeyword  = 0.85
	confWeak     = 0.6
	confPartial  = 0.5
	confNoSignal = 0.0
)

// Parser turns free text into a ResolvedIntent.
type Parser struct {
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock replaces time.Now for relative dates ("ontem").
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the best-effort intent for text.
func (p *Parser) Parse(text string) domain.ResolvedIntent {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Unknown()
	}
	if strings.HasPrefix(text, "/") {
		return p.parseCommand(text)
	}
	if intent, ok := p.parseBatch(text); ok {
		return intent
	}
	return p.parsePhrase(text)
}

func (p *Parser) parsePhrase(text string) domain.ResolvedIntent {
	a := p.analyze(text)
	n := a.norm

	switch {
	case in(helpWords, n) || strings.HasPrefix(n, "ajuda ") || strings.HasPrefix(n, "help "):
		return intent(domain.ActionHelp, confExact, domain.Entities{})
	case in(loginWords, n):
		return intent(domain.ActionLogin, confExact, domain.Entities{})
	case in(logoutWords, n):
		return intent(domain.ActionLogout, confExact, domain.Entities{})
	case in(cancelWords, n):
		return intent(domain.ActionCancel, confExact, domain.Entities{})
	}

	mentionsInstallment := containsAny(a.words, installmentWords) || a.installments > 0
	switch {
	case mentionsInstallment && containsAny(a.words, deleteVerbs):
		return intent(domain.ActionDeleteInstallment, confExact, domain.Entities{})
	case a.installments > 0 && a.amount != nil:
		return intent(domain.ActionCreateInstallment, confExact, installmentEntities(a))
	case mentionsInstallment && a.amount != nil:
		// "parcelei 600" without a count: clearly installments, count missing.
		return intent(domain.ActionCreateInstallment, confPartial, installmentEntities(a))
	case mentionsInstallment:
		return intent(domain.ActionListInstallments, confKeyword, domain.Entities{})
	case containsAny(a.words, budgetWords) && a.amount != nil:
		return intent(domain.ActionSetBudget, confKeyword, domain.Entities{
			Amount:   a.amount,
			Category: budgetCategory(a),
		})
	case containsAny(a.words, modeWords) && (containsAny(a.words, creditModeWords) || containsAny(a.words, simpleModeWords)):
		return intent(domain.ActionSetCreditMode, confKeyword, modeEntities(a))
	case a.amount == nil && containsAny(a.words, reportWords):
		return intent(domain.ActionShowReport, confKeyword, domain.Entities{})
	case a.amount == nil && containsPhrase(n, listExpensesPhrases):
		return intent(domain.ActionShowExpenses, confKeyword, domain.Entities{})
	case a.amount != nil && a.income && !a.expense:
		return intent(domain.ActionAddIncome, confKeyword, transactionEntities(a, domain.TransactionIncome))
	case a.amount != nil && a.expense:
		return intent(domain.ActionAddExpense, confKeyword, transactionEntities(a, domain.TransactionExpense))
	case a.amount != nil && a.description != "" && a.amountCount == 1:
		return intent(domain.ActionAddExpense, confWeak, transactionEntities(a, domain.TransactionExpense))
	}
	return domain.ResolvedIntent{Action: domain.ActionUnknown, Confidence: confNoSignal}
}

// parseBatch reads one transaction per line when at least two lines carry an
// amount.
func (p *Parser) parseBatch(text string) (domain.ResolvedIntent, bool) {
	lines := strings.Split(text, "\n")
	var items []domain.TransactionItem
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		a := p.analyze(line)
		if a.amount == nil {
			continue
		}
		typ := domain.TransactionExpense
		if a.income && !a.expense {
			typ = domain.TransactionIncome
		}
		items = append(items, domain.TransactionItem{
			Type:          typ,
			Amount:        *a.amount,
			Description:   a.description,
			Category:      categoryOrDefault(a.category),
			PaymentMethod: a.paymentMethod,
			Date:          a.date,
		})
	}
	if len(items) < 2 {
		return domain.ResolvedIntent{}, false
	}
	action := domain.ActionAddExpense
	allIncome := true
	for _, it := range items {
		if it.Type != domain.TransactionIncome {
			allIncome = false
			break
		}
	}
	if allIncome {
		action = domain.ActionAddIncome
	}
	return intent(action, confKeyword, domain.Entities{Items: items}), true
}

// ExtractTransaction reads transaction fields out of free text without
// deciding an action. Used to apply corrections and duplicate edits.
func (p *Parser) ExtractTransaction(text string) domain.Entities {
	a := p.analyze(text)
	e := domain.Entities{
		Amount:        a.amount,
		PaymentMethod: a.paymentMethod,
		Date:          a.date,
	}
	if a.explicitCat {
		e.Category = a.category
	}
	return e
}

// Generalize turns a message into a reusable pattern: normalized, with every
// amount replaced by a placeholder.
func Generalize(text string) string {
	toks := tokenize(text)
	words := make([]string, 0, len(toks))
	for _, t := range toks {
		switch {
		case amountToken.MatchString(t.norm):
			words = append(words, "{amount}")
		case in(currencyWords, t.norm):
		default:
			words = append(words, t.norm)
		}
	}
	return strings.Join(words, " ")
}

func intent(action domain.Action, conf float64, e domain.Entities) domain.ResolvedIntent {
	return domain.ResolvedIntent{Action: action, Confidence: conf, Entities: e}
}

func transactionEntities(a analysis, typ domain.TransactionType) domain.Entities {
	category := a.category
	if typ == domain.TransactionIncome && category == "" {
		category = "Renda"
	}
	return domain.Entities{
		Type:          typ,
		Amount:        a.amount,
		Description:   a.description,
		Category:      categoryOrDefault(category),
		PaymentMethod: a.paymentMethod,
		Date:          a.date,
	}
}

func installmentEntities(a analysis) domain.Entities {
	return domain.Entities{
		Type:          domain.TransactionExpense,
		Amount:        a.amount,
		Installments:  a.installments,
		Description:   stripWords(a.description, installmentWords),
		Category:      categoryOrDefault(a.category),
		PaymentMethod: a.paymentMethod,
		Date:          a.date,
	}
}

func modeEntities(a analysis) domain.Entities {
	mode := !containsAny(a.words, simpleModeWords)
	method := a.paymentMethod
	if method == "Crédito" || method == "Débito" {
		method = ""
	}
	if method == "" {
		method = stripWords(a.description, modeWords, creditModeWords, simpleModeWords)
	}
	return domain.Entities{PaymentMethod: method, CreditMode: &mode}
}

func budgetCategory(a analysis) string {
	if a.explicitCat {
		return a.category
	}
	rest := stripWords(a.description, budgetWords)
	if rest == "" {
		return a.category
	}
	return titleCase(rest)
}

func categoryOrDefault(c string) string {
	if c == "" {
		return DefaultCategory
	}
	return c
}

// stripWords removes vocabulary words and edge stopwords from a phrase.
func stripWords(s string, vocabs ...map[string]struct{}) string {
	toks := tokenize(s)
	for i := range toks {
		for _, vocab := range vocabs {
			if in(vocab, toks[i].norm) {
				toks[i].used = true
			}
		}
	}
	return describe(toks)
}

// IsCorrection reports whether text reads as "no, that was wrong".
func IsCorrection(text string) bool {
	n := textnorm.Normalize(text)
	for _, m := range correctionMarkers {
		if strings.HasPrefix(n, m) || n == strings.TrimSpace(m) {
			return true
		}
	}
	return false
}
