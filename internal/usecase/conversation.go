package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
	"order-agent/internal/extract"
	"order-agent/internal/knowledge"
	"order-agent/internal/ratelimit"
)

const (
	defaultMaxContext    = 12
	defaultMaxMessageLen = 500
)

// MenuSource returns the current menu. Implementations return the same
// pointer for as long as the menu is unchanged.
type MenuSource interface {
	LoadMenu(ctx context.Context) (*domain.Menu, error)
}

type LLMClient interface {
	ChatJSON(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type RateLimiter interface {
	Check(sessionID string) ratelimit.Decision
	Increment(sessionID string)
}

// SessionStore loads and saves sessions for Chat. GetSession returns nil
// without error for an unknown id.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
}

// Dependencies are the collaborators of a Conversation. LLM, Notifier and
// Sessions are optional; without an LLM the assistant answers from the
// knowledge base only.
type Dependencies struct {
	Menus       MenuSource
	Finalizer   *Finalizer
	Limiter     RateLimiter
	LLM         LLMClient
	Params      ParamGetter
	ParamPrefix string
	Notifier    Notifier
	Sessions    SessionStore
}

type Options struct {
	MaxContextItems  int
	MaxMessageLength int
}

// Conversation is the ordering state machine. It is safe for concurrent use;
// messages of one session are processed one at a time.
type Conversation struct {
	menus     MenuSource
	finalizer *Finalizer
	limiter   RateLimiter
	llm       LLMClient
	settings  *settingsLoader
	notifier  Notifier
	sessions  SessionStore

	maxContextItems int
	maxMessageLen   int

	locks *sessionLocks

	toolkitMu sync.Mutex
	toolkit   *toolkit
}

type ChatInput struct {
	Message   string
	SessionID string
}

type Reply struct {
	Response string
	Session  *domain.Session
}

// toolkit holds the matchers built from one menu snapshot.
type toolkit struct {
	menu      *domain.Menu
	index     *catalog.Index
	extractor *extract.Extractor
	search    *knowledge.Searcher
}

func NewConversation(d Dependencies, opts Options) (*Conversation, error) {
	if d.Menus == nil {
		return nil, errors.New("usecase: menu source must not be nil")
	}
	if d.Finalizer == nil {
		return nil, errors.New("usecase: finalizer must not be nil")
	}
	if d.Limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	c := &Conversation{
		menus:           d.Menus,
		finalizer:       d.Finalizer,
		limiter:         d.Limiter,
		llm:             d.LLM,
		notifier:        d.Notifier,
		sessions:        d.Sessions,
		maxContextItems: opts.MaxContextItems,
		maxMessageLen:   opts.MaxMessageLength,
		locks:           newSessionLocks(),
	}
	if d.LLM != nil {
		loader, err := newSettingsLoader(d.Params, d.ParamPrefix)
		if err != nil {
			return nil, err
		}
		c.settings = loader
	}
	if c.maxContextItems <= 0 {
		c.maxContextItems = defaultMaxContext
	}
	if c.maxMessageLen <= 0 {
		c.maxMessageLen = defaultMaxMessageLen
	}
	return c, nil
}

// Chat loads the session named by in.SessionID, processes the message and
// saves the result. An empty or unknown session id starts a new session.
func (c *Conversation) Chat(ctx context.Context, in ChatInput) (Reply, error) {
	if c.sessions == nil {
		return Reply{}, newError(ErrorInternal, "session_store_missing", nil)
	}
	text, err := c.validateMessage(in.Message)
	if err != nil {
		return Reply{}, err
	}

	var s *domain.Session
	if id := strings.TrimSpace(in.SessionID); id != "" {
		unlock := c.locks.lock(id)
		defer unlock()
		s, err = c.sessions.GetSession(ctx, id)
		if err != nil {
			return Reply{}, newError(ErrorInternal, "session_load_error", err)
		}
	}
	if s == nil {
		s = domain.NewSession(newUUID())
	}

	reply := c.process(ctx, text, s)
	if err := c.sessions.SaveSession(ctx, reply.Session); err != nil {
		return Reply{}, newError(ErrorInternal, "session_save_error", err)
	}
	return reply, nil
}

// ProcessMessage handles one customer message against session and returns
// the reply with the updated session. A nil session starts a new one. The
// given session is not modified.
func (c *Conversation) ProcessMessage(ctx context.Context, text string, session *domain.Session) (Reply, error) {
	text, err := c.validateMessage(text)
	if err != nil {
		return Reply{}, err
	}
	var s *domain.Session
	if session == nil {
		s = domain.NewSession(newUUID())
	} else {
		s = session.Clone()
		if err := s.Normalize(); err != nil {
			return Reply{}, newError(ErrorInvalidInput, "invalid_session", err)
		}
	}

	unlock := c.locks.lock(s.ID)
	defer unlock()
	return c.process(ctx, text, s), nil
}

// Menu returns the products currently available.
func (c *Conversation) Menu(ctx context.Context) ([]domain.Product, error) {
	tk, err := c.loadToolkit(ctx)
	if err != nil {
		return nil, newError(ErrorUpstream, "menu_unavailable", err)
	}
	return tk.index.ListAvailable(), nil
}

func (c *Conversation) validateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > c.maxMessageLen {
		return "", newError(ErrorInvalidInput, "message_too_long", nil)
	}
	return text, nil
}

// process runs one turn on s, which the caller owns exclusively. A failing
// handler leaves the session as it was before dispatch.
func (c *Conversation) process(ctx context.Context, text string, s *domain.Session) Reply {
	s.Append(domain.RoleUser, text)
	snapshot := s.Clone()

	response, err := c.dispatch(ctx, text, s)
	if err != nil {
		slog.Error("usecase: message handling failed", "err", err, "sessionID", s.ID, "state", snapshot.State)
		s = snapshot
		response = apologyMessage
	}
	s.Append(domain.RoleAssistant, response)
	return Reply{Response: response, Session: s}
}

func (c *Conversation) dispatch(ctx context.Context, text string, s *domain.Session) (string, error) {
	tk, err := c.loadToolkit(ctx)
	if err != nil {
		return "", err
	}
	t := newTurn(c, tk, s, text)
	from := s.State

	var response string
	switch s.State {
	case domain.StateCollectingOrder:
		response, err = t.collectingOrder(ctx)
	case domain.StateCollectingName:
		response, err = t.collectingName(ctx)
	case domain.StateCollectingEmail:
		response, err = t.collectingEmail(ctx)
	case domain.StateConfirmingOrder:
		response, err = t.confirmingOrder(ctx)
	default:
		response, err = t.idle(ctx)
	}
	if err != nil {
		return "", err
	}
	slog.Debug("usecase: transition", "sessionID", s.ID, "from", from, "to", s.State, "intent", t.intent)
	return response, nil
}

// loadToolkit returns matchers for the current menu, rebuilding them only
// when the menu source hands out a new snapshot.
func (c *Conversation) loadToolkit(ctx context.Context) (*toolkit, error) {
	menu, err := c.menus.LoadMenu(ctx)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		menu = &domain.Menu{}
	}

	c.toolkitMu.Lock()
	defer c.toolkitMu.Unlock()
	if c.toolkit != nil && c.toolkit.menu == menu {
		return c.toolkit, nil
	}
	index := catalog.NewIndex(menu.Products, menu.Aliases)
	var ai extract.AI
	if c.llm != nil {
		ai = extractionAI{c}
	}
	c.toolkit = &toolkit{
		menu:      menu,
		index:     index,
		extractor: extract.New(index, ai),
		search:    knowledge.NewSearcher(menu.Knowledge),
	}
	slog.Debug("usecase: menu indexed", "products", index.Len(), "faq", len(menu.Knowledge))
	return c.toolkit, nil
}

// extractionAI adapts the LLM client to the extractor. The caller is
// responsible for the rate limit.
type extractionAI struct{ c *Conversation }

func (a extractionAI) CompleteJSON(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	cfg, err := a.c.settings.get(ctx)
	if err != nil {
		return "", err
	}
	return a.c.llm.ChatJSON(ctx, cfg.model, messages)
}

var newUUID = func() string {
	return uuid.NewString()
}
