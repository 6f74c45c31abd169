package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// OpenAIBackend 兼容 OpenAI 协议的对话模型（eino）
type OpenAIBackend struct {
	chatModel model.BaseChatModel
	name      string
}

// NewOpenAIBackend 初始化 eino ChatModel
func NewOpenAIBackend(ctx context.Context, baseURL, apiKey, modelName string) (*OpenAIBackend, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return &OpenAIBackend{chatModel: chatModel, name: "openai:" + modelName}, nil
}

// NewChatModelBackend 使用已有的 ChatModel，便于测试替换
func NewChatModelBackend(cm model.BaseChatModel, name string) *OpenAIBackend {
	return &OpenAIBackend{chatModel: cm, name: name}
}

func (b *OpenAIBackend) Name() string { return b.name }

// Complete implements Backend
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: "You are an enterprise AI strategy consultant. Follow the requested output format exactly."},
		{Role: schema.User, Content: prompt},
	}

	resp, err := b.chatModel.Generate(ctx, messages,
		model.WithMaxTokens(p.MaxTokens),
		model.WithTemperature(p.Temperature),
	)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (b *OpenAIBackend) Close() error { return nil }
