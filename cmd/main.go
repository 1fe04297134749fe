package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"order-agent/handler"
	"order-agent/internal/integrations/openai"
	"order-agent/internal/integrations/paramstore"
	"order-agent/internal/integrations/twilio"
	"order-agent/internal/notify"
	"order-agent/internal/ratelimit"
	"order-agent/internal/repository"
	"order-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tableName := mustEnv("TABLE_NAME")
	paramPrefix := mustEnv("PARAM_PREFIX")
	aiCallLimit := envInt("AI_CALL_LIMIT", ratelimit.DefaultLimit)
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 12)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 500)
	cacheTTL := envDuration("CATALOG_CACHE_TTL", 5*time.Minute)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
	if err != nil {
		slog.Error("failed to create table client", "err", err)
		os.Exit(1)
	}
	menus, err := repository.NewMenuCache(store, cacheTTL)
	if err != nil {
		slog.Error("failed to create menu cache", "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	sms, err := twilio.NewParamSender(ssmClient, paramPrefix+"/twilio")
	if err != nil {
		slog.Error("failed to create SMS sender", "err", err)
		os.Exit(1)
	}
	alerts := notify.NewDispatcher(sms, 0)

	// ---- Use cases ----
	finalizer, err := usecase.NewFinalizer(store, alerts)
	if err != nil {
		slog.Error("failed to create order finalizer", "err", err)
		os.Exit(1)
	}
	conversation, err := usecase.NewConversation(usecase.Dependencies{
		Menus:       menus,
		Finalizer:   finalizer,
		Limiter:     ratelimit.New(aiCallLimit),
		LLM:         openaiClient,
		Params:      ssmClient,
		ParamPrefix: paramPrefix,
		Notifier:    alerts,
		Sessions:    store,
	}, usecase.Options{
		MaxContextItems:  maxContextItems,
		MaxMessageLength: maxMessageLen,
	})
	if err != nil {
		slog.Error("failed to create conversation service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(conversation)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, e events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// The runtime freezes the process after returning; flush alerts first.
		defer alerts.Wait()
		return h.Handle(ctx, e)
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
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

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v)
		return def
	}
	return d
}
