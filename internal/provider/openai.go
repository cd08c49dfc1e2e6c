package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ldelacroix/polyglossia/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = "You are a professional translator for a multilingual essay site. Follow the instructions in each request exactly and return only what is asked for."

// openAIBackend 基于 go-openai 库的默认后端
type openAIBackend struct {
	client      *openai.Client
	temperature float32
	logger      *zap.Logger
}

func newOpenAIBackend(cfg *config.Config, logger *zap.Logger) *openAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		// go-openai 的 API 后缀以斜杠开头，去掉结尾斜杠避免出现双斜杠
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.RequestTimeout > 0 {
		clientCfg.HTTPClient.Timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}

	return &openAIBackend{
		client:      openai.NewClientWithConfig(clientCfg),
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
}

// Generate 执行一次聊天补全请求
func (b *openAIBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: b.temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	choice := resp.Choices[0]
	truncated := choice.FinishReason == openai.FinishReasonLength
	if truncated {
		b.logger.Warn("generation truncated by output limit",
			zap.String("model", resp.Model),
			zap.Int("completionTokens", resp.Usage.CompletionTokens))
	}

	return &Response{
		Text:      choice.Message.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Truncated: truncated,
	}, nil
}

// Name 返回后端名称
func (b *openAIBackend) Name() string {
	return "openai"
}
