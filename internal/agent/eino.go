package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoConfig configures an OpenAI-compatible chat model.
type EinoConfig struct {
	APIKey    string
	BaseURL   string // empty for api.openai.com
	Model     string
	MaxTokens int
}

// chatGenerator is the part of an eino chat model used here.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoProvider sends prompts through an eino chat model at temperature 0.
type EinoProvider struct {
	cm    chatGenerator
	model string
}

func NewEinoProvider(ctx context.Context, cfg EinoConfig) (*EinoProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the LLM agent")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	temp := float32(0)
	mc := &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &temp,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxTokens = &maxTokens
	}

	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &EinoProvider{cm: cm, model: cfg.Model}, nil
}

func (p *EinoProvider) Name() string { return "openai:" + p.model }

func (p *EinoProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, imageURLs []string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		userMessage(userPrompt, imageURLs),
	}
	out, err := p.cm.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("empty response from %s", p.model)
	}
	return out.Content, nil
}

// userMessage attaches images as multi-part content when there are any.
func userMessage(text string, imageURLs []string) *schema.Message {
	if len(imageURLs) == 0 {
		return schema.UserMessage(text)
	}
	parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: text}}
	for _, u := range imageURLs {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:    u,
				Detail: schema.ImageURLDetailHigh,
			},
		})
	}
	return &schema.Message{Role: schema.User, MultiContent: parts}
}
