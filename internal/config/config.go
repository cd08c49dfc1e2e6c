package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config 保存翻译流水线的所有配置
type Config struct {
	// 生成后端配置
	Provider        string  `mapstructure:"provider"`          // openai 或 openai-official
	Model           string  `mapstructure:"model"`             // 模型 ID
	APIKeyEnv       string  `mapstructure:"api_key_env"`       // 存放 API Key 的环境变量名
	APIKey          string  `mapstructure:"-"`                 // 从环境变量解析出的 API Key
	BaseURL         string  `mapstructure:"base_url"`          // 自定义 API 端点（可选）
	MaxOutputTokens int     `mapstructure:"max_output_tokens"` // 单次生成的最大输出 token 数
	Temperature     float64 `mapstructure:"temperature"`
	RequestTimeout  int     `mapstructure:"request_timeout"` // 请求超时时间（秒）

	// 路径配置
	ContentDir  string `mapstructure:"content_dir"`  // 源文档与批次定义所在目录
	LocalesDir  string `mapstructure:"locales_dir"`  // 已发布译文目录
	GlossaryDir string `mapstructure:"glossary_dir"` // 术语表缓存目录
	LogDir      string `mapstructure:"log_dir"`      // 运行日志目录

	// 语言配置
	SourceLang string   `mapstructure:"source_lang"` // 源语言代码
	Languages  []string `mapstructure:"languages"`   // 默认目标语言列表

	// 流水线轮次配置
	MaxRetryRounds    int `mapstructure:"max_retry_rounds"`    // 技术校验重试轮数（不含首轮）
	MaxSemanticRounds int `mapstructure:"max_semantic_rounds"` // 语义审查轮数上限

	// 结构校验策略
	LengthRatioMin       float64  `mapstructure:"length_ratio_min"`
	LengthRatioMax       float64  `mapstructure:"length_ratio_max"`
	DenseRatioMin        float64  `mapstructure:"dense_ratio_min"` // 高信息密度文字的放宽下限
	DenseRatioMax        float64  `mapstructure:"dense_ratio_max"`
	DenseScripts         []string `mapstructure:"dense_scripts"`          // 单字信息密度高的语言代码
	UntranslatedMinRunes int      `mapstructure:"untranslated_min_runes"` // 未翻译检测的最小字符数
	UntranslatedMaxShare float64  `mapstructure:"untranslated_max_share"` // 允许与源文相同的最大比例

	// 受保护字符串
	ProtectedNames  []string `mapstructure:"protected_names"`  // 人名，允许屈折变化但词干必须保留
	ProtectedTitles []string `mapstructure:"protected_titles"` // 作品标题，必须逐字保留

	// 术语表基础词汇
	BaseGlossaryTerms []string `mapstructure:"base_glossary_terms"`

	// 正文批次的上下文配置
	ContextWindow   int `mapstructure:"context_window"`    // 向前后各取多少个同批次键
	ContextMaxWidth int `mapstructure:"context_max_width"` // 每条上下文摘录的最大显示宽度

	Debug bool `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置，文件不存在时使用内置默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("polyglossia")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "polyglossia"))
		}
		// 找不到默认配置文件不算错误
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.APIKey = os.Getenv(cfg.APIKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 检查配置的基本一致性
func (c *Config) Validate() error {
	if c.Provider != "openai" && c.Provider != "openai-official" {
		return fmt.Errorf("不支持的提供商: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("缺少 model 配置")
	}
	if c.MaxRetryRounds < 0 || c.MaxSemanticRounds < 0 {
		return fmt.Errorf("重试轮数不能为负数")
	}
	if c.LengthRatioMin <= 0 || c.LengthRatioMax <= c.LengthRatioMin {
		return fmt.Errorf("长度比例区间无效: [%v, %v]", c.LengthRatioMin, c.LengthRatioMax)
	}
	if c.DenseRatioMin <= 0 || c.DenseRatioMax <= c.DenseRatioMin {
		return fmt.Errorf("高密度文字长度比例区间无效: [%v, %v]", c.DenseRatioMin, c.DenseRatioMax)
	}
	if c.UntranslatedMaxShare <= 0 || c.UntranslatedMaxShare >= 1 {
		return fmt.Errorf("untranslated_max_share 必须在 (0, 1) 区间内")
	}
	return nil
}

// SourcePath 返回源文档路径
func (c *Config) SourcePath() string {
	return filepath.Join(c.ContentDir, c.SourceLang+".json")
}

// BatchesPath 返回批次定义文件路径
func (c *Config) BatchesPath() string {
	return filepath.Join(c.ContentDir, "batches.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o")
	v.SetDefault("api_key_env", "OPENAI_API_KEY")
	v.SetDefault("max_output_tokens", 4096)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("request_timeout", 300)

	v.SetDefault("content_dir", "content")
	v.SetDefault("locales_dir", "locales")
	v.SetDefault("glossary_dir", "glossaries")
	v.SetDefault("log_dir", "logs")

	v.SetDefault("source_lang", "en")
	v.SetDefault("languages", []string{"fr", "de", "es"})

	v.SetDefault("max_retry_rounds", 2)
	v.SetDefault("max_semantic_rounds", 2)

	v.SetDefault("length_ratio_min", 0.5)
	v.SetDefault("length_ratio_max", 2.0)
	v.SetDefault("dense_ratio_min", 0.3)
	v.SetDefault("dense_ratio_max", 3.0)
	v.SetDefault("dense_scripts", []string{"zh", "ja", "ko"})
	v.SetDefault("untranslated_min_runes", 25)
	v.SetDefault("untranslated_max_share", 0.3)

	v.SetDefault("protected_names", []string{
		"Byung-Chul Han",
		"Walter Benjamin",
		"Roland Barthes",
	})
	v.SetDefault("protected_titles", []string{
		"The Burnout Society",
		"The Transparency Society",
	})
	v.SetDefault("base_glossary_terms", []string{
		"attention economy",
		"burnout",
		"contemplation",
		"digital hygiene",
		"slowness",
	})

	v.SetDefault("context_window", 2)
	v.SetDefault("context_max_width", 280)

	v.SetDefault("debug", false)
}
