package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicAPIURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 8192
)

// AnthropicProvider calls the Anthropic Messages API. Images are sent as
// base64 image blocks ahead of the prompt text.
type AnthropicProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, model string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		url:    anthropicAPIURL,
		client: newHTTPClient(),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

// anthropicMessage content is either a plain string or a list of
// anthropicBlock values when images are attached.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if apiReq.Model == "" {
		apiReq.Model = p.model
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = anthropicMaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: "user", Content: anthropicUserContent(msg)})
		case RoleAssistant:
			apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: "assistant", Content: msg.Content})
		}
	}
	apiReq.System = strings.Join(system, "\n\n")

	header := http.Header{
		"X-Api-Key":         []string{p.apiKey},
		"Anthropic-Version": []string{anthropicVersion},
	}
	status, raw, err := postJSON(ctx, p.client, p.Name(), p.url, header, apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(raw, &apiResp)
	if status != http.StatusOK {
		var message string
		if decodeErr == nil && apiResp.Error != nil {
			message = apiResp.Error.Message
		}
		return nil, newStatusError(p.Name(), status, message, raw)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding anthropic response: %w", decodeErr)
	}

	var content strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:      content.String(),
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		Model:        apiResp.Model,
		Finish:       finishReason(apiResp.StopReason),
	}, nil
}

// anthropicUserContent puts images before the text, which is the order the
// API recommends for image questions.
func anthropicUserContent(msg Message) any {
	if len(msg.Images) == 0 {
		return msg.Content
	}
	blocks := make([]anthropicBlock, 0, len(msg.Images)+1)
	for _, img := range msg.Images {
		blocks = append(blocks, anthropicBlock{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: img.MIMEType,
				Data:      img.Data,
			},
		})
	}
	return append(blocks, anthropicBlock{Type: "text", Text: msg.Content})
}
