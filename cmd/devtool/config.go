package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"order-agent/internal/integrations/openai"
	"order-agent/internal/notify"
	"order-agent/internal/ratelimit"
	"order-agent/internal/repository"
	"order-agent/internal/usecase"
)

const (
	devParamPrefix  = "/devtool"
	menuReloadEvery = 5 * time.Second
	defaultPrompt   = "You are the friendly order assistant of a small home bakery. " +
		"Orders are picked up at the bakery; payment happens at pickup."
)

type devConfig struct {
	Port          string
	AllowedOrigin string
	MenuFile      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	Prompt        string
	AICallLimit   int
}

func loadConfig() devConfig {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", envFile, "err", err)
	}
	cfg := devConfig{
		Port:          getEnvDefault("PORT", "8080"),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", "*"),
		MenuFile:      getEnvDefault("MENU_FILE", "config/menu.example.yaml"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Prompt:        getEnvDefault("ASSISTANT_PROMPT", defaultPrompt),
		AICallLimit:   getEnvIntDefault("AI_CALL_LIMIT", ratelimit.DefaultLimit),
	}
	if menuFile != "" {
		cfg.MenuFile = menuFile
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

// memParams serves Parameter Store names from memory so the production
// settings and token lookups run unchanged.
type memParams map[string]string

func (m memParams) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("devtool: parameter %q is not set", name)
	}
	return v, nil
}

func (m memParams) GetParameters(_ context.Context, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := m[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

func newParams(cfg devConfig) (memParams, error) {
	token, err := json.Marshal(map[string]string{"token": cfg.OpenAIKey})
	if err != nil {
		return nil, err
	}
	return memParams{
		devParamPrefix + "/assistant_prompt":    cfg.Prompt,
		devParamPrefix + "/config/openai_model": cfg.OpenAIModel,
		devParamPrefix + "/open-ai-token":       string(token),
	}, nil
}

// buildConversation wires the engine to local collaborators. Without an
// OpenAI key the assistant runs rule-based only. The returned dispatcher must
// be drained before exit.
func buildConversation(cfg devConfig) (*usecase.Conversation, *notify.Dispatcher, error) {
	fileMenu, err := repository.NewFileMenu(cfg.MenuFile)
	if err != nil {
		return nil, nil, err
	}
	menus, err := repository.NewMenuCache(fileMenu, menuReloadEvery)
	if err != nil {
		return nil, nil, err
	}
	alerts := notify.NewDispatcher(logSender{}, 0)
	finalizer, err := usecase.NewFinalizer(repository.LogRecorder{}, alerts)
	if err != nil {
		return nil, nil, err
	}

	deps := usecase.Dependencies{
		Menus:     menus,
		Finalizer: finalizer,
		Limiter:   ratelimit.New(cfg.AICallLimit),
		Notifier:  alerts,
		Sessions:  repository.NewMemorySessions(),
	}
	if cfg.OpenAIKey != "" {
		params, err := newParams(cfg)
		if err != nil {
			return nil, nil, err
		}
		var opts []openai.Option
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		llm, err := openai.NewClient(params, devParamPrefix, opts...)
		if err != nil {
			return nil, nil, err
		}
		deps.LLM = llm
		deps.Params = params
		deps.ParamPrefix = devParamPrefix
	} else {
		slog.Info("OPENAI_API_KEY not set, running without AI")
	}

	conv, err := usecase.NewConversation(deps, usecase.Options{})
	if err != nil {
		return nil, nil, err
	}
	return conv, alerts, nil
}

// logSender prints owner alerts instead of sending SMS.
type logSender struct{}

func (logSender) Send(_ context.Context, a notify.Alert) error {
	slog.Info("owner alert", "kind", a.Kind, "sessionID", a.SessionID, "subject", a.Subject, "body", a.Body)
	return nil
}
