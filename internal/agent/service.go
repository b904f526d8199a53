// Package agent drives the text-generation service: plan synthesis, chat and
// per-user credentials.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

const (
	recentReviewLimit    = 3
	recentCompletedDays  = 7
	recentCompletedLimit = 20
	chatHistoryLimit     = 10
	testMaxTokens        = 10

	// ChatFallbackReply is returned when the service answers without content.
	ChatFallbackReply = "抱歉，我暂时无法回答这个问题。"
)

const chatPersona = `你是一个专业的考研学习助手，专门帮助考研学生解答学习问题。你的特点：

1. 专业知识：精通考研各科目（政治、英语、数学、专业课）的知识点和考试技巧
2. 学习方法：熟悉各种高效学习方法、记忆技巧、时间管理方法
3. 心理辅导：能够帮助学生缓解考研压力，调整心态
4. 经验分享：了解考研流程、院校选择、复试准备等

回答要求：
- 回答要简洁明了，重点突出
- 给出具体可操作的建议
- 适当使用emoji让回答更生动
- 如果是学科问题，要给出详细的解题思路
- 鼓励学生，保持积极正面的态度`

// Store is the slice of the record store the AI features read and write.
type Store interface {
	GetAIConfig(ctx context.Context, ownerID int64) (*domain.AIConfig, error)
	UpsertAIConfig(ctx context.Context, c *domain.AIConfig) error
	GetPreference(ctx context.Context, ownerID int64) (*domain.Preference, error)
	ListReviews(ctx context.Context, ownerID int64, limit int) ([]*domain.Review, error)
	ListCompletedTasksSince(ctx context.Context, ownerID int64, since string, limit int) ([]*domain.Task, error)
}

// Options tunes calls to the text-generation service.
type Options struct {
	PlanMaxTokens   int
	ChatMaxTokens   int
	Temperature     float64
	DefaultModel    string
	DefaultEndpoint string
}

// DefaultOptions returns the budgets used when none are configured.
func DefaultOptions() Options {
	return Options{
		PlanMaxTokens:   1000,
		ChatMaxTokens:   2000,
		Temperature:     0.7,
		DefaultModel:    domain.DefaultAIModel,
		DefaultEndpoint: domain.DefaultAIEndpoint,
	}
}

// Service implements plan generation, chat and credential management.
type Service struct {
	store Store
	llm   Completer
	opts  Options
	now   func() time.Time
}

// NewService creates a Service. Zero fields of opts take DefaultOptions values.
func NewService(store Store, llm Completer, opts Options) *Service {
	def := DefaultOptions()
	if opts.PlanMaxTokens <= 0 {
		opts.PlanMaxTokens = def.PlanMaxTokens
	}
	if opts.ChatMaxTokens <= 0 {
		opts.ChatMaxTokens = def.ChatMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = def.Temperature
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = def.DefaultModel
	}
	if opts.DefaultEndpoint == "" {
		opts.DefaultEndpoint = def.DefaultEndpoint
	}
	return &Service{store: store, llm: llm, opts: opts, now: time.Now}
}

// ConfigView is the client-facing form of an AI credential. The key is masked.
type ConfigView struct {
	Configured   bool       `json:"configured"`
	APIKeyMasked string     `json:"api_key_masked"`
	Model        string     `json:"model_name"`
	Endpoint     string     `json:"api_endpoint"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// SaveConfigInput is a credential update. Empty model and endpoint take defaults.
type SaveConfigInput struct {
	APIKey   string `json:"api_key"`
	Model    string `json:"model_name"`
	Endpoint string `json:"api_endpoint"`
}

func (s *Service) view(cfg *domain.AIConfig) *ConfigView {
	if cfg == nil {
		return &ConfigView{Model: s.opts.DefaultModel, Endpoint: s.opts.DefaultEndpoint}
	}
	updated := cfg.UpdatedAt
	return &ConfigView{
		Configured:   cfg.Configured(),
		APIKeyMasked: cfg.MaskedKey(),
		Model:        cfg.Model,
		Endpoint:     cfg.Endpoint,
		UpdatedAt:    &updated,
	}
}

// GetConfig returns the owner's masked credential, or defaults when none is saved.
func (s *Service) GetConfig(ctx context.Context, ownerID int64) (*ConfigView, error) {
	cfg, err := s.store.GetAIConfig(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load ai config: %w", err)
	}
	return s.view(cfg), nil
}

// SaveConfig stores the owner's credential.
func (s *Service) SaveConfig(ctx context.Context, ownerID int64, in SaveConfigInput) (*ConfigView, error) {
	key := strings.TrimSpace(in.APIKey)
	if key == "" {
		return nil, domain.NewValidationError("api_key", "must not be empty")
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.opts.DefaultModel
	}
	endpoint := strings.TrimSpace(in.Endpoint)
	if endpoint == "" {
		endpoint = s.opts.DefaultEndpoint
	}
	if u, err := url.Parse(endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewValidationError("api_endpoint", "must be an http(s) URL")
	}

	cfg := &domain.AIConfig{UserID: ownerID, APIKey: key, Model: model, Endpoint: endpoint}
	if err := s.store.UpsertAIConfig(ctx, cfg); err != nil {
		return nil, err
	}
	slog.Info("AI config saved", "user_id", ownerID, "model", model)
	return s.view(cfg), nil
}

// credential loads the owner's credential or fails with ErrNotConfigured.
func (s *Service) credential(ctx context.Context, ownerID int64) (*domain.AIConfig, error) {
	cfg, err := s.store.GetAIConfig(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load ai config: %w", err)
	}
	if !cfg.Configured() {
		return nil, domain.ErrNotConfigured
	}
	return cfg, nil
}

// TestConnection sends a minimal prompt with the saved credential.
func (s *Service) TestConnection(ctx context.Context, ownerID int64) error {
	cfg, err := s.credential(ctx, ownerID)
	if err != nil {
		return err
	}
	_, err = s.llm.Complete(ctx, cfg, CompletionRequest{
		Messages:    []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "你好"}},
		MaxTokens:   testMaxTokens,
		Temperature: s.opts.Temperature,
	})
	return err
}

// GeneratePlan asks the text-generation service for a day plan built from
// the owner's preferences and recent history. The service is called exactly
// once; failures are not retried.
func (s *Service) GeneratePlan(ctx context.Context, ownerID int64, req domain.PlanRequest) ([]domain.TaskSuggestion, error) {
	cfg, err := s.credential(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	pc, err := s.planContext(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	prompt := RenderPlanPrompt(*pc)

	raw, err := s.llm.Complete(ctx, cfg, CompletionRequest{
		Messages:    []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: prompt}},
		MaxTokens:   s.opts.PlanMaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	suggestions, err := ParseSuggestions(raw)
	if err != nil {
		var mal *domain.MalformedSuggestionsError
		if errors.As(err, &mal) {
			slog.Warn("Rejected plan reply", "user_id", ownerID, "reason", mal.Reason, "raw", compactJSON(raw))
		}
		return nil, err
	}
	slog.Info("Plan generated", "user_id", ownerID, "suggestions", len(suggestions))
	return suggestions, nil
}

func (s *Service) planContext(ctx context.Context, ownerID int64, req domain.PlanRequest) (*PlanContext, error) {
	today := s.now()

	pref, err := s.store.GetPreference(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}
	if pref == nil {
		pref = domain.DefaultPreference(ownerID)
	}

	reviews, err := s.store.ListReviews(ctx, ownerID, recentReviewLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent reviews: %w", err)
	}

	since := today.AddDate(0, 0, -recentCompletedDays).Format(domain.DateLayout)
	completed, err := s.store.ListCompletedTasksSince(ctx, ownerID, since, recentCompletedLimit)
	if err != nil {
		return nil, fmt.Errorf("load completed tasks: %w", err)
	}

	return &PlanContext{
		Preference: pref,
		Reviews:    reviews,
		Completed:  completed,
		Request:    req,
		Today:      today,
	}, nil
}

// Chat relays message, preceded by the persona and the most recent history
// turns, and returns the reply text. An empty reply becomes ChatFallbackReply.
func (s *Service) Chat(ctx context.Context, ownerID int64, message string, history []domain.ChatMessage) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.NewValidationError("message", "must not be empty")
	}
	cfg, err := s.credential(ctx, ownerID)
	if err != nil {
		return "", err
	}

	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.ChatRoleSystem, Content: chatPersona})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: message})

	reply, err := s.llm.Complete(ctx, cfg, CompletionRequest{
		Messages:    messages,
		MaxTokens:   s.opts.ChatMaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return ChatFallbackReply, nil
	}
	return reply, nil
}
