package generation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
)

// Open 根据配置创建生成客户端，调用方负责 Close
func Open(ctx context.Context, cfg *config.Config) (*Client, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "openai":
		backend, err = NewOpenAIBackend(ctx, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	case "gemini":
		backend, err = NewGeminiBackend(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Concurrency.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Concurrency.RPM)/60.0), 1)
	}

	return NewClient(backend, Options{
		Params: Params{
			MaxTokens:   cfg.LLM.MaxOutputTokens,
			Temperature: cfg.GenerationTemperature(),
		},
		Timeout: cfg.GenerationTimeout(),
		Limiter: limiter,
	}), nil
}
