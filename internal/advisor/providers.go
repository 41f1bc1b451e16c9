package advisor

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	DefaultOpenAIModel = openai.GPT4o
	DefaultGeminiModel = "gemini-2.0-flash"
)

// OpenAI completes prompts with the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI completer. baseURL overrides the API endpoint
// when non-empty.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini completer.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// Settings selects and configures the model provider.
type Settings struct {
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
}

// ProviderName resolves an empty Provider to whichever key is set, OpenAI
// first.
func (s Settings) ProviderName() string {
	if s.Provider != "" {
		return strings.ToLower(s.Provider)
	}
	if s.OpenAIKey == "" && s.GeminiKey != "" {
		return "gemini"
	}
	return "openai"
}

// NewCompleter builds the completer for s.ProviderName().
func NewCompleter(ctx context.Context, s Settings) (Completer, error) {
	switch name := s.ProviderName(); name {
	case "openai":
		return NewOpenAI(s.OpenAIKey, s.OpenAIModel, s.OpenAIBaseURL)
	case "gemini":
		return NewGemini(ctx, s.GeminiKey, s.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown advisor provider %q", name)
	}
}
