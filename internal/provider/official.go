package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ldelacroix/polyglossia/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// officialBackend 基于 OpenAI 官方 SDK 的后端
type officialBackend struct {
	client      openai.Client
	temperature float64
	logger      *zap.Logger
}

func newOfficialBackend(cfg *config.Config, logger *zap.Logger) *officialBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.RequestTimeout)*time.Second))
	}

	return &officialBackend{
		client:      openai.NewClient(opts...),
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Generate 执行一次聊天补全请求
func (b *officialBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(req.Prompt),
		},
		Model: openai.ChatModel(req.Model),
	}
	if b.temperature > 0 {
		params.Temperature = openai.Float(b.temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	choice := completion.Choices[0]
	truncated := string(choice.FinishReason) == "length"
	if truncated {
		b.logger.Warn("generation truncated by output limit",
			zap.String("model", completion.Model),
			zap.Int64("completionTokens", completion.Usage.CompletionTokens))
	}

	return &Response{
		Text:      choice.Message.Content,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
		Truncated: truncated,
	}, nil
}

// Name 返回后端名称
func (b *officialBackend) Name() string {
	return "openai-official"
}
