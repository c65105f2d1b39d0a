// Package llm sends sketch images to vision-capable chat models and returns
// their text completions.
package llm

import "context"

// Provider is one model API.
type Provider interface {
	// Complete sends the conversation and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the provider type, e.g. "google".
	Name() string
}

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a message. Data is base64 without a
// data-URI prefix.
type Image struct {
	MIMEType string
	Data     string
}

// DataURI returns the image as a data URI.
func (i Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + i.Data
}

// Message is a single turn. Images are only sent with user messages.
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// CompletionRequest contains the parameters for a completion. An empty
// Model uses the provider's default.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// FinishReason is the normalized reason a model stopped producing output.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishLength   FinishReason = "length"
	FinishFiltered FinishReason = "filtered"
	FinishOther    FinishReason = "other"
)

// CompletionResponse contains the result of a completion.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	Finish       FinishReason
}

// Truncated reports whether the output was cut off by the token limit.
func (r *CompletionResponse) Truncated() bool {
	return r.Finish == FinishLength
}

// finishReason maps a provider's stop reason onto FinishReason.
func finishReason(raw string) FinishReason {
	switch raw {
	case "":
		return ""
	case "stop", "STOP", "end_turn", "stop_sequence":
		return FinishStop
	case "length", "MAX_TOKENS", "max_tokens":
		return FinishLength
	case "content_filter", "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "refusal":
		return FinishFiltered
	default:
		return FinishOther
	}
}
