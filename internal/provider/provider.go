package provider

import (
	"context"
	"fmt"

	"github.com/ldelacroix/polyglossia/internal/config"
	"go.uber.org/zap"
)

// Request 一次生成请求
type Request struct {
	Model     string // 模型 ID
	Prompt    string // 完整提示词
	MaxTokens int    // 最大输出 token 数
}

// Response 一次生成的结果
type Response struct {
	Text      string // 生成的文本
	TokensIn  int    // 输入 token 数
	TokensOut int    // 输出 token 数
	Truncated bool   // 输出是否因达到长度上限被截断
}

// Backend 是注入流水线的生成能力。实现必须把"输出被截断"
// 作为响应的一部分上报，而不是当作错误返回。
type Backend interface {
	// Generate 执行一次阻塞的生成调用
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name 返回后端名称
	Name() string
}

// New 根据配置创建生成后端
func New(cfg *config.Config, logger *zap.Logger) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("环境变量 %s 中没有 API Key", cfg.APIKeyEnv)
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAIBackend(cfg, logger), nil
	case "openai-official":
		return newOfficialBackend(cfg, logger), nil
	default:
		return nil, fmt.Errorf("不支持的提供商: %s", cfg.Provider)
	}
}
