package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleProvider calls the Gemini generateContent API. Images attached to
// user messages are sent as inline data parts after the text.
type GoogleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(apiKey string, model string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: googleAPIBaseURL,
		client:  newHTTPClient(),
	}
}

// WithBaseURL points the provider at a different models endpoint.
func (p *GoogleProvider) WithBaseURL(url string) *GoogleProvider {
	p.baseURL = strings.TrimSuffix(url, "/")
	return p
}

func (p *GoogleProvider) Name() string {
	return "google"
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	var system []geminiPart
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: msg.Content})
		case RoleUser:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Role: "user", Parts: geminiUserParts(msg)})
		case RoleAssistant:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(system) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: system}
	}

	// The key goes in a header so it never shows up in logged URLs.
	header := http.Header{"X-Goog-Api-Key": []string{p.apiKey}}
	url := fmt.Sprintf("%s/%s:generateContent", p.baseURL, model)
	status, raw, err := postJSON(ctx, p.client, p.Name(), url, header, apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp geminiResponse
	decodeErr := json.Unmarshal(raw, &apiResp)
	if status != http.StatusOK {
		var message string
		if decodeErr == nil && apiResp.Error != nil {
			message = apiResp.Error.Message
		}
		return nil, newStatusError(p.Name(), status, message, raw)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", decodeErr)
	}

	if len(apiResp.Candidates) == 0 {
		if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini blocked the prompt: %s", apiResp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	first := apiResp.Candidates[0]
	var content strings.Builder
	if first.Content != nil {
		for _, part := range first.Content.Parts {
			content.WriteString(part.Text)
		}
	}

	resp := &CompletionResponse{
		Content: content.String(),
		Model:   model,
		Finish:  finishReason(first.FinishReason),
	}
	if apiResp.ModelVersion != "" {
		resp.Model = apiResp.ModelVersion
	}
	if apiResp.UsageMetadata != nil {
		resp.InputTokens = apiResp.UsageMetadata.PromptTokenCount
		resp.OutputTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}
	return resp, nil
}

// geminiUserParts returns the message text followed by its images.
func geminiUserParts(msg Message) []geminiPart {
	parts := []geminiPart{{Text: msg.Content}}
	for _, img := range msg.Images {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MIMEType: img.MIMEType, Data: img.Data},
		})
	}
	return parts
}
