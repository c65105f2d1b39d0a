package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaProvider calls a local Ollama server's chat API. The model must be
// a vision model such as llava or llama3.2-vision for sketches to be read.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider creates an Ollama provider for the server at baseURL.
func NewOllamaProvider(baseURL string, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// ollamaMessage images are bare base64 strings.
type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Model           string        `json:"model"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := ollamaChatRequest{
		Model: req.Model,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if apiReq.Model == "" {
		apiReq.Model = p.model
	}
	for _, msg := range req.Messages {
		m := ollamaMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Role == RoleUser {
			for _, img := range msg.Images {
				m.Images = append(m.Images, img.Data)
			}
		}
		apiReq.Messages = append(apiReq.Messages, m)
	}

	status, raw, err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/api/chat", nil, apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp ollamaChatResponse
	decodeErr := json.Unmarshal(raw, &apiResp)
	if status != http.StatusOK {
		return nil, newStatusError(p.Name(), status, apiResp.Error, raw)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", decodeErr)
	}

	return &CompletionResponse{
		Content:      apiResp.Message.Content,
		InputTokens:  apiResp.PromptEvalCount,
		OutputTokens: apiResp.EvalCount,
		Model:        apiResp.Model,
		Finish:       finishReason(apiResp.DoneReason),
	}, nil
}
