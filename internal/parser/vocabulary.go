package parser

// Every word list holds normalized (accent-free, lower-case) words.

var helpWords = set("ajuda", "help", "menu", "comandos", "commands", "oi", "ola", "hello", "hi", "inicio", "start")

var loginWords = set("login", "entrar", "conectar", "sign in", "signin")

var logoutWords = set("logout", "sair", "desconectar", "sign out", "signout")

var cancelWords = set("cancelar", "cancel", "cancela")

var expenseVerbs = set(
	"gastei", "gasto", "gasta", "paguei", "pago", "paga", "comprei", "compra", "compras",
	"despesa", "debitei", "spent", "spend", "paid", "pay", "bought", "buy", "expense",
)

var incomeVerbs = set(
	"recebi", "ganhei", "receita", "entrada", "entrou", "caiu", "received", "earned", "income", "got",
)

// incomeNouns signal income but stay in the description.
var incomeNouns = set("salario", "salary", "freela", "freelance", "reembolso", "refund", "dividendos")

var installmentWords = set("parcela", "parcelas", "parcelamento", "parcelamentos", "parcelado", "parcelada", "parcelei", "installment", "installments")

var installmentUnits = set("parcelas", "vezes", "installments", "times", "x")

var deleteVerbs = set(
	"apagar", "apaga", "apague", "excluir", "exclui", "exclua", "deletar", "deleta", "delete",
	"remover", "remove", "remova", "tirar", "tira",
)

var editVerbs = set(
	"corrigir", "corrige", "corrija", "alterar", "altera", "altere", "mudar", "muda", "mude",
	"editar", "edita", "edite", "trocar", "troca", "troque", "atualizar", "atualiza",
	"fix", "change", "edit", "update", "correct",
)

var categoryWords = set("categoria", "category")

var reportWords = set("relatorio", "resumo", "balanco", "report", "summary", "saldo", "balance")

var listExpensesPhrases = []string{
	"meus gastos", "minhas despesas", "extrato", "ultimos gastos", "ultimas transacoes",
	"gastos do mes", "ver gastos", "listar gastos", "my expenses", "list expenses", "show expenses",
	"transacoes", "transactions", "gastos",
}

var budgetWords = set("orcamento", "budget", "limite", "teto")

var modeWords = set("modo", "mode")

var creditModeWords = set("credito", "credit", "1")

var simpleModeWords = set("simples", "simple", "2")

var currencyWords = set("reais", "real", "r$", "brl", "conto", "contos", "pila", "pilas")

var cardWords = set("cartao", "card")

var paymentTokens = map[string]string{
	"pix":      "Pix",
	"dinheiro": "Dinheiro",
	"especie":  "Dinheiro",
	"cash":     "Dinheiro",
	"debito":   "Débito",
	"debit":    "Débito",
	"credito":  "Crédito",
	"credit":   "Crédito",
}

// edgeStopwords are dropped from the start and end of descriptions.
var edgeStopwords = set(
	"no", "na", "nos", "nas", "em", "de", "do", "da", "dos", "das", "com", "o", "a", "os", "as",
	"um", "uma", "pra", "para", "pro", "por", "e", "que", "hoje", "ontem",
	"on", "at", "for", "the", "an", "in", "with", "of", "to", "and", "today", "yesterday",
)

// articles are skipped when reading a description reference after a verb.
var articles = set("o", "a", "os", "as", "do", "da", "no", "na", "aquele", "aquela", "meu", "minha", "the", "my", "that", "gasto", "transacao", "despesa", "lancamento")

var correctionMarkers = []string{
	"nao", "errado", "errou", "na verdade", "corrig", "era ", "foi ", "wrong", "actually", "not ",
}

type categoryRule struct {
	name     string
	keywords []string
}

// categoryRules are checked in order; the first keyword hit wins.
var categoryRules = []categoryRule{
	{"Salário", []string{"salario", "salary", "pagamento mensal", "holerite"}},
	{"Alimentação", []string{"almoco", "jantar", "janta", "cafe", "lanche", "restaurante", "mercado", "supermercado", "ifood", "padaria", "pizza", "comida", "food", "lunch", "dinner", "breakfast", "groceries", "acai"}},
	{"Transporte", []string{"uber", "taxi", "onibus", "metro", "gasolina", "combustivel", "estacionamento", "pedagio", "bus", "gas", "fuel", "parking"}},
	{"Moradia", []string{"aluguel", "condominio", "luz", "energia", "agua", "internet", "rent", "iptu"}},
	{"Saúde", []string{"farmacia", "remedio", "medico", "consulta", "dentista", "exame", "academia", "pharmacy", "doctor", "gym"}},
	{"Lazer", []string{"cinema", "netflix", "spotify", "bar", "show", "viagem", "passeio", "jogo", "cerveja", "movie", "travel"}},
	{"Educação", []string{"curso", "livro", "escola", "faculdade", "mensalidade", "course", "book", "school"}},
	{"Compras", []string{"roupa", "tenis", "celular", "notebook", "presente", "loja", "shopping", "amazon", "clothes", "phone"}},
}

// DefaultCategory is used when nothing matches.
const DefaultCategory = "Outros"

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func in(m map[string]struct{}, w string) bool {
	_, ok := m[w]
	return ok
}
