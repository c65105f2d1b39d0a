// Package generate turns a sketch image into Tailwind HTML by asking a
// vision model, falling back through an ordered list of models.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/ziadkadry99/draw2ui/internal/llm"
	"github.com/ziadkadry99/draw2ui/internal/raster"
)

// DefaultModels is the fallback order used when none is configured.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}

var (
	// ErrNoImage is returned when a request carries no image.
	ErrNoImage = errors.New("no image provided")
	// ErrMissingCredentials is returned when no model could be configured
	// because API keys are absent.
	ErrMissingCredentials = errors.New("GOOGLE_API_KEY or GEMINI_API_KEY is not configured")
	// ErrAllModelsFailed wraps the last model error once every candidate
	// has failed.
	ErrAllModelsFailed = errors.New("all model candidates failed")
)

// Request is the generation payload. Image is a data URI or bare base64.
type Request struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	Theme  string `json:"theme"`
}

// Generator produces HTML for a sketch.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Candidate is one model to try, served by a provider.
type Candidate struct {
	Provider llm.Provider
	Model    string
}

func (c Candidate) String() string {
	return c.Provider.Name() + ":" + c.Model
}

// Service calls the candidates in order until one returns markup.
type Service struct {
	candidates  []Candidate
	configErr   error
	maxTokens   int
	temperature float64
}

// Option configures a Service.
type Option func(*Service)

// WithMaxTokens caps the model output length.
func WithMaxTokens(n int) Option {
	return func(s *Service) { s.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// NewService creates a Service over explicit candidates.
func NewService(candidates []Candidate, opts ...Option) *Service {
	s := &Service{candidates: candidates, maxTokens: 8192, temperature: 0.2}
	for _, opt := range opts {
		opt(s)
	}
	if len(candidates) == 0 {
		s.configErr = ErrMissingCredentials
	}
	return s
}

// CandidatesConfig describes the model list to build.
type CandidatesConfig struct {
	// Provider is used for entries without a "provider:" prefix.
	Provider string
	// Models are "model" or "provider:model" entries, in fallback order.
	Models            []string
	RequestsPerMinute int
}

// BuildCandidates creates providers for each configured model. Entries whose
// provider lacks credentials are skipped; other errors abort.
func BuildCandidates(cfg CandidatesConfig) ([]Candidate, error) {
	defaultProvider := cfg.Provider
	if defaultProvider == "" {
		defaultProvider = "google"
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels
	}

	providers := make(map[string]llm.Provider)
	var candidates []Candidate
	for _, entry := range models {
		providerType, model := defaultProvider, entry
		if p, m, ok := strings.Cut(entry, ":"); ok && isProvider(p) {
			providerType, model = p, m
		}

		provider, ok := providers[providerType]
		if !ok {
			var err error
			provider, err = llm.NewProvider(providerType, model)
			if errors.Is(err, llm.ErrMissingAPIKey) {
				log.Printf("generate: skipping %s: %v", entry, err)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("configuring %s: %w", entry, err)
			}
			provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerMinute)
			providers[providerType] = provider
		}
		candidates = append(candidates, Candidate{Provider: provider, Model: model})
	}
	return candidates, nil
}

func isProvider(name string) bool {
	for _, p := range llm.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// Candidates returns the configured fallback order.
func (s *Service) Candidates() []Candidate {
	return s.candidates
}

// Generate validates req, then asks each candidate in turn. A failing
// candidate is logged and the next one tried; no candidate is retried.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if req.Image == "" {
		return "", ErrNoImage
	}
	if s.configErr != nil {
		return "", s.configErr
	}

	payload, mimeType := raster.StripDataURI(req.Image)
	msg := llm.Message{
		Role:    llm.RoleUser,
		Content: BuildPrompt(req.Prompt, req.Theme),
		Images:  []llm.Image{{MIMEType: mimeType, Data: payload}},
	}

	var lastErr error
	for _, c := range s.candidates {
		resp, err := c.Provider.Complete(ctx, llm.CompletionRequest{
			Model:       c.Model,
			Messages:    []llm.Message{msg},
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		})
		if err == nil && strings.TrimSpace(resp.Content) == "" {
			err = errors.New("empty response")
		}
		if err != nil {
			if errors.Is(err, llm.ErrRateLimited) {
				log.Printf("generate: model %s is rate limited, trying the next one", c)
			} else {
				log.Printf("generate: model %s failed: %v", c, err)
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if resp.Truncated() {
			log.Printf("generate: model %s hit the %d token limit, markup may be incomplete", c, s.maxTokens)
		}
		log.Printf("generate: model %s succeeded (%d in / %d out tokens, ~$%.4f)",
			c, resp.InputTokens, resp.OutputTokens,
			llm.EstimateCost(c.Model, resp.InputTokens, resp.OutputTokens))
		return StripFences(resp.Content), nil
	}

	return "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

var fencePattern = regexp.MustCompile("```(?:html)?")

// StripFences removes markdown code fence markers and surrounding
// whitespace from model output.
func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}
