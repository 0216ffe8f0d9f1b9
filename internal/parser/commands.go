package parser

import (
	"strings"

	"finbot/internal/domain"
	"finbot/internal/textnorm"
)

type commandSpec struct {
	action domain.Action
	// args says how the remainder of the line is read.
	args func(p *Parser, rest string) (domain.Entities, bool)
}

var commands = map[string]commandSpec{
	"ajuda":              {action: domain.ActionHelp},
	"help":               {action: domain.ActionHelp},
	"start":              {action: domain.ActionHelp},
	"login":              {action: domain.ActionLogin},
	"entrar":             {action: domain.ActionLogin},
	"logout":             {action: domain.ActionLogout},
	"sair":               {action: domain.ActionLogout},
	"cancelar":           {action: domain.ActionCancel},
	"cancel":             {action: domain.ActionCancel},
	"gasto":              {action: domain.ActionAddExpense, args: expenseArgs},
	"despesa":            {action: domain.ActionAddExpense, args: expenseArgs},
	"add":                {action: domain.ActionAddExpense, args: expenseArgs},
	"expense":            {action: domain.ActionAddExpense, args: expenseArgs},
	"receita":            {action: domain.ActionAddIncome, args: incomeArgs},
	"income":             {action: domain.ActionAddIncome, args: incomeArgs},
	"gastos":             {action: domain.ActionShowExpenses},
	"extrato":            {action: domain.ActionShowExpenses},
	"expenses":           {action: domain.ActionShowExpenses},
	"relatorio":          {action: domain.ActionShowReport},
	"report":             {action: domain.ActionShowReport},
	"orcamento":          {action: domain.ActionSetBudget, args: budgetArgs},
	"budget":             {action: domain.ActionSetBudget, args: budgetArgs},
	"parcelar":           {action: domain.ActionCreateInstallment, args: installmentArgs},
	"installment":        {action: domain.ActionCreateInstallment, args: installmentArgs},
	"parcelas":           {action: domain.ActionListInstallments},
	"installments":       {action: domain.ActionListInstallments},
	"excluir_parcela":    {action: domain.ActionDeleteInstallment},
	"delete_installment": {action: domain.ActionDeleteInstallment},
	"editar":             {action: domain.ActionEditTransaction, args: editArgs},
	"edit":               {action: domain.ActionEditTransaction, args: editArgs},
	"apagar":             {action: domain.ActionDeleteTransaction, args: referenceArgs},
	"excluir":            {action: domain.ActionDeleteTransaction, args: referenceArgs},
	"delete":             {action: domain.ActionDeleteTransaction, args: referenceArgs},
	"modo":               {action: domain.ActionSetCreditMode, args: modeArgs},
	"mode":               {action: domain.ActionSetCreditMode, args: modeArgs},
}

// parseCommand handles "/name args". Unknown commands resolve to unknown
// with no confidence; a known command with unusable arguments keeps its
// action at partial confidence.
func (p *Parser) parseCommand(text string) domain.ResolvedIntent {
	name, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	entry, ok := commands[textnorm.Normalize(name)]
	if !ok {
		return domain.ResolvedIntent{Action: domain.ActionUnknown, Confidence: confNoSignal}
	}
	if entry.args == nil {
		return intent(entry.action, 1, domain.Entities{})
	}
	e, ok := entry.args(p, strings.TrimSpace(rest))
	if !ok {
		return intent(entry.action, confPartial, e)
	}
	return intent(entry.action, confCommand, e)
}

func expenseArgs(p *Parser, rest string) (domain.Entities, bool) {
	a := p.analyze(rest)
	return transactionEntities(a, domain.TransactionExpense), a.amount != nil
}

func incomeArgs(p *Parser, rest string) (domain.Entities, bool) {
	a := p.analyze(rest)
	return transactionEntities(a, domain.TransactionIncome), a.amount != nil
}

func budgetArgs(p *Parser, rest string) (domain.Entities, bool) {
	a := p.analyze(rest)
	e := domain.Entities{Amount: a.amount, Category: budgetCategory(a)}
	return e, a.amount != nil && e.Category != ""
}

// installmentArgs reads "/parcelar <valor> <n|nx> [descrição]".
func installmentArgs(p *Parser, rest string) (domain.Entities, bool) {
	fields := strings.Fields(rest)
	if len(fields) >= 2 && !strings.HasSuffix(strings.ToLower(fields[1]), "x") {
		fields[1] += "x"
	}
	a := p.analyze(strings.Join(fields, " "))
	return installmentEntities(a), a.amount != nil && a.installments > 0
}

func editArgs(p *Parser, rest string) (domain.Entities, bool) {
	e, ok := referenceArgs(p, rest)
	a := p.analyze(rest)
	e.Amount = a.amount
	e.Date = a.date
	if a.explicitCat {
		e.Category = a.category
	}
	return e, ok && (e.Amount != nil || e.Category != "" || e.Date != nil)
}

// referenceArgs reads a readable id, with or without "#".
func referenceArgs(p *Parser, rest string) (domain.Entities, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return domain.Entities{}, false
	}
	id := strings.TrimPrefix(fields[0], "#")
	if len(id) != 6 {
		return domain.Entities{DescriptionRef: rest}, false
	}
	return domain.Entities{TransactionID: strings.ToUpper(id)}, true
}

func modeArgs(p *Parser, rest string) (domain.Entities, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return domain.Entities{}, false
	}
	last := textnorm.Normalize(fields[len(fields)-1])
	e := domain.Entities{}
	switch {
	case in(creditModeWords, last):
		on := true
		e.CreditMode = &on
		fields = fields[:len(fields)-1]
	case in(simpleModeWords, last):
		off := false
		e.CreditMode = &off
		fields = fields[:len(fields)-1]
	}
	e.PaymentMethod = stripWords(strings.Join(fields, " "), cardWords)
	return e, e.PaymentMethod != ""
}
