package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/genai"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const maxMessageLength = 4000

type historyStore interface {
	ChatKey(userID, sessionID string) string
	AppendList(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error
	ListRange(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

type completer interface {
	Complete(ctx context.Context, messages []genai.Message) (string, error)
}

// Service answers marketplace questions and keeps per-session history in Redis.
type Service interface {
	Chat(ctx context.Context, userID uuid.UUID, input ChatInput) (*ChatOutput, error)
	Reset(ctx context.Context, userID uuid.UUID, sessionID string) error
}

// ChatInput is one user turn. An empty SessionID starts a new conversation.
type ChatInput struct {
	SessionID string
	Message   string
}

// ChatOutput carries the reply and the session it belongs to.
type ChatOutput struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Config tunes prompt and retention.
type Config struct {
	SystemPrompt string
	SessionTTL   time.Duration
	MaxTurns     int
}

type service struct {
	history historyStore
	llm     completer
	cfg     Config
	logg    *logger.Logger
}

// NewService wires the assistant against a history store and a completion client.
func NewService(history historyStore, llm completer, cfg Config, logg *logger.Logger) (Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history store required")
	}
	if llm == nil {
		return nil, fmt.Errorf("completion client required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 20
	}
	return &service{history: history, llm: llm, cfg: cfg, logg: logg}, nil
}

func (s *service) Chat(ctx context.Context, userID uuid.UUID, input ChatInput) (*ChatOutput, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	if len(message) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	sessionID, err := resolveSession(input.SessionID)
	if err != nil {
		return nil, err
	}

	key := s.history.ChatKey(userID.String(), sessionID)
	past, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	prompt := make([]genai.Message, 0, len(past)+2)
	if s.cfg.SystemPrompt != "" {
		prompt = append(prompt, genai.Message{Role: genai.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	prompt = append(prompt, past...)
	prompt = append(prompt, genai.Message{Role: genai.RoleUser, Content: message})

	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assistant unavailable")
	}

	userTurn, _ := json.Marshal(genai.Message{Role: genai.RoleUser, Content: message})
	assistantTurn, _ := json.Marshal(genai.Message{Role: genai.RoleAssistant, Content: reply})
	maxEntries := int64(s.cfg.MaxTurns * 2)
	if err := s.history.AppendList(ctx, key, maxEntries, s.cfg.SessionTTL, string(userTurn), string(assistantTurn)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist chat history")
	}

	return &ChatOutput{SessionID: sessionID, Reply: reply}, nil
}

func (s *service) Reset(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := uuid.Parse(strings.TrimSpace(sessionID)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid session id")
	}
	key := s.history.ChatKey(userID.String(), strings.TrimSpace(sessionID))
	if err := s.history.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset chat history")
	}
	return nil
}

func (s *service) load(ctx context.Context, key string) ([]genai.Message, error) {
	raw, err := s.history.ListRange(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat history")
	}
	out := make([]genai.Message, 0, len(raw))
	for _, entry := range raw {
		var msg genai.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "chat_key", key), "skipping malformed chat entry")
			}
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func resolveSession(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.NewString(), nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid session id")
	}
	return parsed.String(), nil
}
