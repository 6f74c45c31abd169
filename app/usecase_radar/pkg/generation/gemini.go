package generation

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend Google Gemini API 后端
type GeminiBackend struct {
	cli   *genai.Client
	model string
}

// NewGeminiBackend 创建 Gemini 客户端，apiKey 为空时 SDK 从 GEMINI_API_KEY 读取
func NewGeminiBackend(ctx context.Context, apiKey, modelName string) (*GeminiBackend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini 初始化失败: %w", err)
	}
	return &GeminiBackend{cli: cli, model: modelName}, nil
}

func (g *GeminiBackend) Name() string { return "gemini:" + g.model }

// Complete implements Backend
func (g *GeminiBackend) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	temperature := p.Temperature
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: int32(p.MaxTokens),
		},
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close genai.Client 不持有需要释放的资源
func (g *GeminiBackend) Close() error { return nil }
