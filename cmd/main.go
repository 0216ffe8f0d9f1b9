package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"finbot/handler"
	"finbot/internal/auth"
	"finbot/internal/cascade"
	"finbot/internal/convstate"
	"finbot/internal/executor"
	"finbot/internal/flows"
	"finbot/internal/i18n"
	"finbot/internal/integrations/openai"
	"finbot/internal/integrations/paramstore"
	"finbot/internal/metrics"
	"finbot/internal/parser"
	"finbot/internal/repository"
	"finbot/internal/usecase"
)

const defaultOpenAIModel = "gpt-4o-mini"

func main() {
	ctx := context.Background()
	logger := newLogger(envString("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	// ---- Configuration (read only here) ----
	ledgerTable := mustEnv(logger, "LEDGER_TABLE")
	paramPrefix := mustEnv(logger, "PARAM_PREFIX")
	defaultLocale := envString("DEFAULT_LOCALE", i18n.DefaultLocale)
	aiEnabled := envBool("AI_ENABLED", true)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)
	stateBackend := envString("STATE_BACKEND", "dynamodb")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(logger, "failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal(logger, "failed to create SSM client", err)
	}
	params, err := paramstore.NewCache(ssmClient)
	if err != nil {
		fatal(logger, "failed to create parameter cache", err)
	}
	ledger, err := repository.New(awsdynamodb.NewFromConfig(cfg), ledgerTable)
	if err != nil {
		fatal(logger, "failed to create ledger client", err)
	}

	var store convstate.Store
	switch stateBackend {
	case "memory":
		store = convstate.NewMemory()
	case "dynamodb":
		store, err = repository.NewConversationStates(ledger, convstate.TTL)
		if err != nil {
			fatal(logger, "failed to create conversation state store", err)
		}
	default:
		logger.Fatal("unknown STATE_BACKEND", zap.String("value", stateBackend))
	}

	catalog, err := i18n.Load(defaultLocale)
	if err != nil {
		fatal(logger, "failed to load message catalog", err)
	}
	analytics := metrics.NewAnalytics(logger)

	gate, err := auth.NewGate(ledger, logger)
	if err != nil {
		fatal(logger, "failed to create authorization gate", err)
	}

	// ---- Flows & executor ----
	fd := flows.Deps{Store: store, Ledger: ledger, Translator: catalog, Analytics: analytics, Logger: logger}
	modes, err := flows.NewModeSelection(fd)
	if err != nil {
		fatal(logger, "failed to create mode selection flow", err)
	}
	installments, err := flows.NewInstallmentCreation(fd)
	if err != nil {
		fatal(logger, "failed to create installment creation flow", err)
	}
	deletions, err := flows.NewInstallmentDeletion(fd)
	if err != nil {
		fatal(logger, "failed to create installment deletion flow", err)
	}
	exec, err := executor.New(executor.Deps{
		Ledger:       ledger,
		Gate:         gate,
		Store:        store,
		Modes:        modes,
		Installments: installments,
		Deletions:    deletions,
		Translator:   catalog,
		Analytics:    analytics,
		Logger:       logger,
	})
	if err != nil {
		fatal(logger, "failed to create executor", err)
	}

	// ---- Cascade ----
	sd := cascade.StrategyDeps{
		Parser:       parser.New(),
		Store:        store,
		Patterns:     ledger,
		Modes:        modes,
		Installments: installments,
		Deletions:    deletions,
		Translator:   catalog,
		Analytics:    analytics,
		Logger:       logger,
	}
	if aiEnabled {
		completer, err := openai.NewClient(params, paramPrefix)
		if err != nil {
			fatal(logger, "failed to create OpenAI client", err)
		}
		sd.Completer = completer
		sd.Model = func(ctx context.Context) (string, error) {
			return paramstore.StringOr(ctx, params, paramstore.Path(paramPrefix, "config/openai_model"), defaultOpenAIModel)
		}
	}
	strategies, err := cascade.Strategies(sd)
	if err != nil {
		fatal(logger, "failed to build strategies", err)
	}
	recorder, err := metrics.NewRecorder(ledger, logger)
	if err != nil {
		fatal(logger, "failed to create metrics recorder", err)
	}
	resolver, err := cascade.NewResolver(cascade.Config{
		Strategies: strategies,
		Gate:       gate,
		Store:      store,
		Executor:   exec,
		Metrics:    recorder,
		Translator: catalog,
		Logger:     logger,
	})
	if err != nil {
		fatal(logger, "failed to create resolver", err)
	}

	// ---- Handler ----
	svc, err := usecase.NewService(resolver, catalog, usecase.Options{
		Metrics:          recorder,
		DefaultLocale:    defaultLocale,
		MaxMessageLength: maxMessageLen,
		Logger:           logger,
	})
	if err != nil {
		fatal(logger, "failed to create message service", err)
	}
	h, err := handler.NewHandler(svc, handler.WithLogger(logger))
	if err != nil {
		fatal(logger, "failed to create handler", err)
	}

	logger.Info("starting webhook", zap.String("state_backend", stateBackend), zap.Bool("ai_enabled", aiEnabled))
	lambda.Start(h.Handle)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func fatal(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}

func mustEnv(logger *zap.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Error("required environment variable is not set", zap.String("key", key))
		_ = logger.Sync()
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
