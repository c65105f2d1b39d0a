package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIMaxTokens   = 8192
)

// OpenAIProvider calls the OpenAI Chat Completions API. It also serves
// OpenAI-compatible gateways such as OpenRouter.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		name:   "openai",
	}
}

// NewOpenAICompatibleProvider creates a provider for an OpenAI-compatible API
// at baseURL, reported under name.
func NewOpenAICompatibleProvider(name, apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   name,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if apiReq.Model == "" {
		apiReq.Model = p.model
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = openAIMaxTokens
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, toOpenAIMessage(msg))
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			return nil, newStatusError(p.name, apiErr.HTTPStatusCode, apiErr.Message, nil)
		}
		return nil, err
	}

	out := &CompletionResponse{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.Finish = finishReason(string(resp.Choices[0].FinishReason))
	}
	return out, nil
}

// toOpenAIMessage uses the multi-part content form when the message carries
// images; Content and MultiContent are mutually exclusive.
func toOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	if len(msg.Images) == 0 {
		return openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: msg.Content,
	}}
	for _, img := range msg.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURI(),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	return openai.ChatCompletionMessage{Role: string(msg.Role), MultiContent: parts}
}
