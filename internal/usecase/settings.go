package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ParamGetter reads a batch of parameters. Unknown names are absent from
// the result.
type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type settings struct {
	assistantPrompt string
	model           string
}

// settingsLoader loads the AI settings once per process. A failed load is
// retried on the next call.
type settingsLoader struct {
	params ParamGetter
	prefix string

	mu     sync.RWMutex
	loaded bool
	cached settings
}

func newSettingsLoader(params ParamGetter, prefix string) (*settingsLoader, error) {
	if params == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &settingsLoader{params: params, prefix: prefix}, nil
}

func (l *settingsLoader) get(ctx context.Context) (settings, error) {
	l.mu.RLock()
	if l.loaded {
		s := l.cached
		l.mu.RUnlock()
		return s, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.cached, nil
	}

	promptName := l.prefix + "/assistant_prompt"
	modelName := l.prefix + "/config/openai_model"
	vals, err := l.params.GetParameters(ctx, promptName, modelName)
	if err != nil {
		return settings{}, fmt.Errorf("usecase: load settings: %w", err)
	}
	model := strings.TrimSpace(vals[modelName])
	if model == "" {
		return settings{}, fmt.Errorf("usecase: load settings: parameter %s is missing", modelName)
	}
	prompt := strings.TrimSpace(vals[promptName])
	if prompt == "" {
		return settings{}, fmt.Errorf("usecase: load settings: parameter %s is missing", promptName)
	}

	l.cached = settings{assistantPrompt: prompt, model: model}
	l.loaded = true
	return l.cached, nil
}
