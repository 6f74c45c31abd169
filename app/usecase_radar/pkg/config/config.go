package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Research    ResearchConfig    `yaml:"research"`
	Aggregate   AggregateConfig   `yaml:"aggregate"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Policy      PolicyConfig      `yaml:"policy"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Output      OutputConfig      `yaml:"output"`
	Server      ServerConfig      `yaml:"server"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	Provider        string   `yaml:"provider"` // openai or gemini
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	Model           string   `yaml:"model"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Temperature     *float32 `yaml:"temperature"` // 未配置时为 0.2，显式 0 保留
	Timeout         int      `yaml:"timeout"`     // 秒
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider        string        `yaml:"provider"`
	Tavily          TavilyConfig  `yaml:"tavily"`
	SearXNG         SearXNGConfig `yaml:"searxng"`
	MaxResults      int           `yaml:"max_results"`
	Timeout         int           `yaml:"timeout"` // 单次请求超时，秒
	Retries         int           `yaml:"retries"` // 负数表示不重试
	BackoffMillis   int           `yaml:"backoff_ms"`
	Enrich          bool          `yaml:"enrich_short_snippets"`
	MinSnippetChars int           `yaml:"min_snippet_chars"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey      string `yaml:"api_key"`
	SearchDepth string `yaml:"search_depth"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// ResearchConfig 并行调研配置
type ResearchConfig struct {
	Deadline  int `yaml:"deadline"`  // 秒
	CacheTTL  int `yaml:"cache_ttl"` // 秒，0 使用默认值，负数关闭缓存
	CacheSize int `yaml:"cache_size"`
}

// AggregateConfig 上下文聚合配置
type AggregateConfig struct {
	MaxDetails   int `yaml:"max_details"`
	DetailChars  int `yaml:"detail_chars"`
	SummaryChars int `yaml:"summary_chars"`
}

// PromptConfig Prompt 组装配置
type PromptConfig struct {
	MaxTokens       int `yaml:"max_tokens"`
	CharsPerToken   int `yaml:"chars_per_token"`
	DetailsPerTopic int `yaml:"details_per_topic"`
	UseCaseCount    int `yaml:"use_case_count"`
}

// PolicyConfig 降级策略
type PolicyConfig struct {
	FailOnEmptyUseCases bool `yaml:"fail_on_empty_use_cases"`
	MinPopulatedTopics  int  `yaml:"min_populated_topics"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// OutputConfig 报告输出配置
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// LoadConfig 从指定路径加载配置，.env 与环境变量覆盖文件中的凭据
func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Search.Tavily.APIKey, "TAVILY_API_KEY")
	setString(&c.Search.SearXNG.BaseURL, "SEARXNG_BASE_URL")
	setString(&c.Search.Provider, "SEARCH_PROVIDER")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	if strings.EqualFold(c.LLM.Provider, "gemini") {
		setString(&c.LLM.APIKey, "GEMINI_API_KEY")
	}
	setString(&c.DB.Host, "DATABASE_HOST")
	setString(&c.DB.User, "DATABASE_USER")
	setString(&c.DB.Password, "DATABASE_PASSWORD")
	setString(&c.DB.Name, "DATABASE_NAME")
	if v := strings.TrimSpace(os.Getenv("DATABASE_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.DB.Port = port
		}
	}
	setString(&c.Output.Dir, "REPORTS_DIR")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// ApplyDefaults 为未配置的项填充默认值
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = 1000
	}
	if c.LLM.Temperature == nil || *c.LLM.Temperature < 0 {
		t := float32(0.2)
		c.LLM.Temperature = &t
	} else if *c.LLM.Temperature > 0.3 {
		t := float32(0.3)
		c.LLM.Temperature = &t
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60
	}

	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 10
	}
	// 负数表示不重试
	if c.Search.Retries == 0 {
		c.Search.Retries = 2
	}
	if c.Search.BackoffMillis <= 0 {
		c.Search.BackoffMillis = 500
	}
	if c.Search.MinSnippetChars <= 0 {
		c.Search.MinSnippetChars = 200
	}
	if c.Search.Tavily.SearchDepth == "" {
		c.Search.Tavily.SearchDepth = "advanced"
	}

	if c.Research.Deadline <= 0 {
		c.Research.Deadline = 30
	}
	if c.Research.CacheTTL == 0 {
		c.Research.CacheTTL = 3600
	}
	if c.Research.CacheSize <= 0 {
		c.Research.CacheSize = 128
	}

	if c.Aggregate.MaxDetails <= 0 {
		c.Aggregate.MaxDetails = 5
	}
	if c.Aggregate.DetailChars <= 0 {
		c.Aggregate.DetailChars = 500
	}
	if c.Aggregate.SummaryChars <= 0 {
		c.Aggregate.SummaryChars = 300
	}

	if c.Prompt.MaxTokens <= 0 {
		c.Prompt.MaxTokens = 2048
	}
	if c.Prompt.CharsPerToken <= 0 {
		c.Prompt.CharsPerToken = 4
	}
	if c.Prompt.DetailsPerTopic <= 0 {
		c.Prompt.DetailsPerTopic = 3
	}
	if c.Prompt.UseCaseCount <= 0 {
		c.Prompt.UseCaseCount = 5
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 3
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}

// Validate 检查必需的凭据
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Search.Provider) {
	case "", "tavily":
		if c.Search.Tavily.APIKey == "" {
			problems = append(problems, "tavily api key is missing (search.tavily.api_key or TAVILY_API_KEY)")
		}
	case "searxng":
		if c.Search.SearXNG.BaseURL == "" {
			problems = append(problems, "searxng base url is missing")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown search provider: %s", c.Search.Provider))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider: %s", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm model is missing")
	}
	if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		problems = append(problems, "llm api key is missing")
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// SearchRetries 单次搜索的重试次数
func (c *Config) SearchRetries() int {
	if c.Search.Retries < 0 {
		return 0
	}
	return c.Search.Retries
}

// SearchTimeout 单次搜索超时
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.Timeout) * time.Second
}

// SearchBackoff 重试退避基数
func (c *Config) SearchBackoff() time.Duration {
	return time.Duration(c.Search.BackoffMillis) * time.Millisecond
}

// ResearchDeadline 并行调研的全局截止时间
func (c *Config) ResearchDeadline() time.Duration {
	return time.Duration(c.Research.Deadline) * time.Second
}

// CacheTTL 调研缓存有效期，<=0 表示关闭缓存
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Research.CacheTTL) * time.Second
}

// GenerationTemperature 生成温度，0 表示确定性采样
func (c *Config) GenerationTemperature() float32 {
	if c.LLM.Temperature == nil {
		return 0.2
	}
	return *c.LLM.Temperature
}

// GenerationTimeout 生成调用的墙钟预算
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

// DBEnabled 是否配置了数据库
func (c *Config) DBEnabled() bool {
	return c.DB.Host != ""
}
