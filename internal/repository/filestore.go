package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"order-agent/internal/domain"
)

// FileMenu reads the menu from a YAML file on every load. It backs local
// development; wrap it in a MenuCache to avoid re-reading the file.
type FileMenu struct {
	path string
}

func NewFileMenu(path string) (*FileMenu, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: menu file path must not be empty")
	}
	return &FileMenu{path: path}, nil
}

func (f *FileMenu) LoadMenu(_ context.Context) (*domain.Menu, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("repository: read menu file: %w", err)
	}
	return ParseMenu(raw)
}

type yamlProduct struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Price       float64  `yaml:"price"`
	Unit        string   `yaml:"unit"`
	Description string   `yaml:"description"`
	Ingredients []string `yaml:"ingredients"`
	Available   *bool    `yaml:"available"`
}

// ParseMenu decodes a YAML menu document. Products default to available
// unless the document says otherwise.
func ParseMenu(raw []byte) (*domain.Menu, error) {
	var doc struct {
		Products  []yamlProduct           `yaml:"products"`
		Aliases   map[string]string       `yaml:"aliases"`
		Knowledge []domain.KnowledgeEntry `yaml:"faq"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("repository: decode menu yaml: %w", err)
	}

	menu := &domain.Menu{Aliases: doc.Aliases, Knowledge: doc.Knowledge}
	for i, p := range doc.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("repository: menu product %d has no name", i+1)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("repository: menu product %q has a negative price", p.Name)
		}
		prod := domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Unit:        p.Unit,
			Description: p.Description,
			Ingredients: p.Ingredients,
			Available:   p.Available == nil || *p.Available,
		}
		if prod.ID == "" {
			prod.ID = fmt.Sprintf("p%d", i+1)
		}
		menu.Products = append(menu.Products, prod)
	}
	return menu, nil
}

// MemorySessions is a process-local session store.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]*domain.Session)}
}

func (m *MemorySessions) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemorySessions) SaveSession(_ context.Context, s *domain.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("repository: SaveSession: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// LogRecorder records orders to the log only. It is used when no table is
// configured.
type LogRecorder struct{}

func (LogRecorder) RecordOrder(_ context.Context, po domain.PlacedOrder) (string, error) {
	slog.Info("order recorded",
		"orderID", po.ID,
		"sessionID", po.SessionID,
		"lines", len(po.Order.Lines),
		"total", po.Order.Total,
	)
	return po.ID, nil
}
