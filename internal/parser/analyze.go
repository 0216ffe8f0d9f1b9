package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finbot/internal/money"
	"finbot/internal/textnorm"
)

var (
	amountToken      = regexp.MustCompile(`^(?:r\$)?(\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)(?:reais|r\$)?$`)
	installmentToken = regexp.MustCompile(`^(\d{1,2})x$`)
	dateToken        = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?$`)
	readableIDToken  = regexp.MustCompile(`^#([a-z0-9]{6})$`)
)

// token is one whitespace-separated word in both spellings.
type token struct {
	raw  string
	norm string
	used bool
}

// analysis is everything the rule tables can read off one phrase.
type analysis struct {
	norm          string
	amount        *decimal.Decimal
	amountCount   int
	installments  int
	date          *time.Time
	paymentMethod string
	category      string
	explicitCat   bool
	description   string
	readableID    string
	income        bool
	expense       bool
	words         []string
}

func tokenize(text string) []token {
	fields := strings.Fields(text)
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		raw := strings.Trim(f, "!?;:\"'()[]{}")
		raw = strings.TrimRight(raw, ".,")
		if raw == "" {
			continue
		}
		out = append(out, token{raw: raw, norm: textnorm.Normalize(raw)})
	}
	return out
}

func (p *Parser) analyze(text string) analysis {
	toks := tokenize(text)
	a := analysis{norm: textnorm.Normalize(text)}
	for _, t := range toks {
		a.words = append(a.words, t.norm)
	}

	for i := range toks {
		t := &toks[i]
		if t.used {
			continue
		}
		switch {
		case readableIDToken.MatchString(t.norm):
			a.readableID = strings.ToUpper(readableIDToken.FindStringSubmatch(t.norm)[1])
			t.used = true
		case installmentToken.MatchString(t.norm):
			n, _ := strconv.Atoi(installmentToken.FindStringSubmatch(t.norm)[1])
			a.installments = n
			t.used = true
		case dateToken.MatchString(t.norm):
			if d, ok := p.parseDate(t.norm); ok {
				a.date = &d
				t.used = true
			}
		case t.norm == "ontem" || t.norm == "yesterday":
			d := p.today().AddDate(0, 0, -1)
			a.date = &d
			t.used = true
		case t.norm == "hoje" || t.norm == "today":
			d := p.today()
			a.date = &d
			t.used = true
		case in(categoryWords, t.norm) && i+1 < len(toks):
			j := i + 1
			if in(edgeStopwords, toks[j].norm) && j+1 < len(toks) {
				j++
			}
			if readableIDToken.MatchString(toks[j].norm) || amountToken.MatchString(toks[j].norm) {
				continue
			}
			a.category = titleCase(toks[j].raw)
			a.explicitCat = true
			t.used = true
			toks[j].used = true
			for k := i + 1; k < j; k++ {
				toks[k].used = true
			}
		case in(cardWords, t.norm) && i+1 < len(toks):
			j := i + 1
			if in(edgeStopwords, toks[j].norm) && j+1 < len(toks) {
				j++
			}
			if !amountToken.MatchString(toks[j].norm) {
				a.paymentMethod = toks[j].raw
				for k := i; k <= j; k++ {
					toks[k].used = true
				}
			}
		case paymentTokens[t.norm] != "" && a.paymentMethod == "":
			a.paymentMethod = paymentTokens[t.norm]
			t.used = true
		case in(incomeVerbs, t.norm):
			a.income = true
			t.used = true
		case in(expenseVerbs, t.norm):
			a.expense = true
			t.used = true
		case in(incomeNouns, t.norm):
			a.income = true
		case in(currencyWords, t.norm):
			t.used = true
		case amountToken.MatchString(t.norm):
			if i+1 < len(toks) && in(installmentUnits, toks[i+1].norm) {
				if n, err := strconv.Atoi(t.norm); err == nil && n >= 1 && n <= 99 {
					a.installments = n
					t.used = true
					toks[i+1].used = true
					continue
				}
			}
			if i > 0 && toks[i-1].norm == "em" && a.installments == 0 && a.amount != nil {
				// "600 em 3" reads as installments when an amount is already known.
				if n, err := strconv.Atoi(t.norm); err == nil && n >= 1 && n <= 60 {
					a.installments = n
					t.used = true
					continue
				}
			}
			v, err := money.Parse(amountToken.FindStringSubmatch(t.norm)[1])
			if err != nil {
				continue
			}
			a.amountCount++
			if a.amount == nil {
				a.amount = &v
			}
			t.used = true
		}
	}

	a.description = describe(toks)
	if !a.explicitCat {
		a.category = inferCategory(a.description, a.norm)
	}
	return a
}

// describe joins the unused words, trimming stopwords at both edges.
func describe(toks []token) string {
	rest := make([]token, 0, len(toks))
	for _, t := range toks {
		if !t.used {
			rest = append(rest, t)
		}
	}
	for len(rest) > 0 && in(edgeStopwords, rest[0].norm) {
		rest = rest[1:]
	}
	for len(rest) > 0 && in(edgeStopwords, rest[len(rest)-1].norm) {
		rest = rest[:len(rest)-1]
	}
	words := make([]string, len(rest))
	for i, t := range rest {
		words[i] = t.raw
	}
	return strings.Join(words, " ")
}

// inferCategory maps keywords in the description (or the whole text) to a
// category name.
func inferCategory(description, whole string) string {
	for _, hay := range []string{textnorm.Normalize(description), whole} {
		if hay == "" {
			continue
		}
		padded := " " + hay + " "
		for _, rule := range categoryRules {
			for _, kw := range rule.keywords {
				if strings.Contains(padded, " "+kw+" ") {
					return rule.name
				}
			}
		}
	}
	return ""
}

func (p *Parser) today() time.Time {
	now := p.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (p *Parser) parseDate(s string) (time.Time, bool) {
	m := dateToken.FindStringSubmatch(s)
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := p.now().Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.now().Location())
	if d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func containsAny(words []string, vocab map[string]struct{}) bool {
	for _, w := range words {
		if in(vocab, w) {
			return true
		}
	}
	return false
}

func containsPhrase(norm string, phrases []string) bool {
	padded := " " + norm + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
