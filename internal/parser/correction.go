package parser

import (
	"strings"

	"finbot/internal/domain"
)

// Weights of the correction detector signals.
const (
	weightVerb     = 0.35
	weightID       = 0.45
	weightRef      = 0.2
	weightNewValue = 0.1
)

// correctionExclusions are topics owned by other actions.
var correctionExclusions = set(
	"parcela", "parcelas", "parcelamento", "parcelamentos", "installment", "installments",
	"modo", "mode", "orcamento", "budget",
)

var valueMarkers = set("para", "pra", "pro", "to", "por")

// DetectCorrection recognizes references to an earlier transaction, by
// readable id ("#A1B2C3") or by description ("corrige o almoço para 45").
// The confidence is the sum of the signals present; callers decide the
// threshold.
func (p *Parser) DetectCorrection(text string) domain.ResolvedIntent {
	a := p.analyze(text)
	if containsAny(a.words, correctionExclusions) {
		return domain.Unknown()
	}

	verbAt, deleting := -1, false
	for i, w := range a.words {
		if in(deleteVerbs, w) {
			verbAt, deleting = i, true
			break
		}
		if in(editVerbs, w) || in(categoryWords, w) {
			verbAt = i
			break
		}
	}
	if a.readableID == "" && (verbAt < 0 || a.expense || a.income) {
		return domain.Unknown()
	}

	conf := 0.0
	e := domain.Entities{TransactionID: a.readableID}
	if verbAt >= 0 {
		conf += weightVerb
	}
	if a.readableID != "" {
		conf += weightID
	} else if ref := descriptionRef(a.words, verbAt); ref != "" {
		e.DescriptionRef = ref
		conf += weightRef
	}

	if !deleting {
		e.Amount = a.amount
		if containsAny(a.words, categoryWords) || a.amount == nil {
			if c := valueAfterMarker(a.words); c != "" {
				e.Category = titleCase(c)
			}
		}
		if e.Category == "" && a.explicitCat {
			e.Category = a.category
		}
		e.Date = a.date
		if e.Amount != nil || e.Category != "" || e.Date != nil {
			conf += weightNewValue
		}
	}

	action := domain.ActionEditTransaction
	if deleting {
		action = domain.ActionDeleteTransaction
	}
	if conf > 1 {
		conf = 1
	}
	return domain.ResolvedIntent{Action: action, Confidence: conf, Entities: e}
}

// descriptionRef reads the words after the verb up to a value marker,
// an amount or the end, skipping articles.
func descriptionRef(words []string, verbAt int) string {
	if verbAt < 0 {
		return ""
	}
	var ref []string
	for _, w := range words[verbAt+1:] {
		if in(valueMarkers, w) || amountToken.MatchString(w) {
			break
		}
		if len(ref) == 0 && (in(articles, w) || in(categoryWords, w)) {
			continue
		}
		ref = append(ref, w)
	}
	return strings.Join(ref, " ")
}

// valueAfterMarker returns the words following the last "para"/"to".
func valueAfterMarker(words []string) string {
	for i := len(words) - 1; i >= 0; i-- {
		if in(valueMarkers, words[i]) {
			rest := words[i+1:]
			if len(rest) == 0 || amountToken.MatchString(rest[0]) {
				return ""
			}
			return strings.Join(rest, " ")
		}
	}
	return ""
}
