// Package llm 封装 OpenAI 兼容的对话补全后端。
package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/baiyu-dev/ragkb/types"
)

// Client 对话补全接口
type Client interface {
	// Complete 以 system + user 两段消息发起一次补全
	Complete(ctx context.Context, req Request) (string, error)
}

// Request 一次补全请求
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Config LLM 后端配置
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	RatePerSecond float64
}

// OpenAIClient 基于 OpenAI 兼容接口的实现
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIClient 创建对话补全客户端
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)+1),
		logger:  logger.With(zap.String("component", "llm")),
	}
}

// Complete 实现 Client
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", types.NewError(types.ErrBackendUnavailable, "chat completion failed").
			WithRetryable(true).WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrBackendUnavailable, "chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
