package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hearthd/hearth/internal/config"
)

// OpenAIClient talks to any endpoint speaking the OpenAI
// chat-completions protocol. Calls are single-attempt: the suggestion
// loop comes back around on its own cadence, so a retry here would
// only pile on a struggling provider.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIClient builds a client from model config. Returns
// ErrModelUnavailable when the API key is missing.
func NewOpenAIClient(cfg config.ModelConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: model api_key is not set", ErrModelUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(apiCfg),
		model:       cfg.Name,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: 0.7,
		logger:      logger.With("component", "llm"),
	}, nil
}

// Complete sends one chat-completion request. All failures, including
// an empty reply, come back as *CallFailure.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.logger.Warn("model call failed", "model", c.model, "err", err)
		return "", &CallFailure{Model: c.model, Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("model returned empty response", "model", c.model)
		return "", &CallFailure{Model: c.model, Err: errors.New("empty response")}
	}

	c.logger.Debug("model call complete",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}
