// Package imagegen generates subscription artwork with a Replicate model.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/replicate/replicate-go"
)

const (
	// DefaultModel is the Replicate model used when none is configured.
	DefaultModel = "black-forest-labs/flux-schnell"

	// FallbackImageURL is served whenever generation produces nothing usable.
	FallbackImageURL = "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcQ2zbGvCe-Ihgi4DETbEND8RPM0xX40AOI84Q&s"

	fallbackMessage = "Could not generate a valid image"
)

// ErrPromptRequired is returned for an empty prompt.
var ErrPromptRequired = errors.New("Image prompt is required")

// Runner runs a model prediction and returns its raw output.
type Runner interface {
	Run(ctx context.Context, model string, input map[string]any) (any, error)
}

// Result is what callers receive. Failed reports that the model call itself
// errored (as opposed to succeeding with unusable output).
type Result struct {
	ImageURL string `json:"imageUrl"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
	Failed   bool   `json:"-"`
}

// Generator produces an image URL for a prompt.
type Generator struct {
	runner Runner
	model  string
	log    *slog.Logger
}

// New creates a Generator over runner. An empty model selects DefaultModel.
func New(runner Runner, model string, log *slog.Logger) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{runner: runner, model: model, log: log}
}

// Generate runs the model for prompt. Only an empty prompt is an error; any
// other failure degrades to the fallback image.
func (g *Generator) Generate(ctx context.Context, prompt string) (Result, error) {
	if prompt == "" {
		return Result{}, ErrPromptRequired
	}

	g.log.InfoContext(ctx, "running image generation", "model", g.model, "prompt", prompt)
	out, err := g.runner.Run(ctx, g.model, map[string]any{"prompt": prompt})
	if err != nil {
		g.log.ErrorContext(ctx, "image generation failed", "err", err)
		return Result{ImageURL: FallbackImageURL, Fallback: true, Error: fallbackMessage, Failed: true}, nil
	}

	url := firstURL(out)
	if url == "" {
		g.log.WarnContext(ctx, "no valid image url, using fallback", "output", out)
		return Result{ImageURL: FallbackImageURL, Fallback: true, Error: fallbackMessage}, nil
	}
	g.log.InfoContext(ctx, "generated image", "url", url)
	return Result{ImageURL: url}, nil
}

// firstURL accepts a bare string or the first element of a list output.
func firstURL(out any) string {
	switch v := out.(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// ReplicateRunner adapts replicate-go to Runner.
type ReplicateRunner struct {
	client *replicate.Client
}

// NewReplicateRunner authenticates with an API token. baseURL overrides the
// API endpoint when non-empty.
func NewReplicateRunner(token, baseURL string) (*ReplicateRunner, error) {
	if token == "" {
		return nil, fmt.Errorf("replicate API token is not set")
	}
	opts := []replicate.ClientOption{replicate.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, replicate.WithBaseURL(baseURL))
	}
	c, err := replicate.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create replicate client: %w", err)
	}
	return &ReplicateRunner{client: c}, nil
}

func (r *ReplicateRunner) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	out, err := r.client.Run(ctx, model, replicate.PredictionInput(input), nil)
	if err != nil {
		return nil, err
	}
	return any(out), nil
}
