package imagegen

import (
	"context"
	"errors"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out   any
	err   error
	model string
	input map[string]any
}

func (f *fakeRunner) Run(_ context.Context, model string, input map[string]any) (any, error) {
	f.model = model
	f.input = input
	return f.out, f.err
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		out      any
		err      error
		want     string
		fallback bool
		failed   bool
	}{
		{"list output", []any{"https://cdn/img.webp", "https://cdn/2.webp"}, nil, "https://cdn/img.webp", false, false},
		{"string output", "https://cdn/one.png", nil, "https://cdn/one.png", false, false},
		{"empty list", []any{}, nil, FallbackImageURL, true, false},
		{"unexpected type", map[string]any{"url": "x"}, nil, FallbackImageURL, true, false},
		{"call error", nil, errors.New("rate limited"), FallbackImageURL, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{out: tt.out, err: tt.err}
			g := New(r, "", slogt.New(t))

			res, err := g.Generate(context.Background(), "a red envelope")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ImageURL)
			assert.Equal(t, tt.fallback, res.Fallback)
			assert.Equal(t, tt.failed, res.Failed)
			if tt.fallback {
				assert.Equal(t, "Could not generate a valid image", res.Error)
			}
			assert.Equal(t, DefaultModel, r.model)
			assert.Equal(t, "a red envelope", r.input["prompt"])
		})
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	r := &fakeRunner{}
	_, err := New(r, "", slogt.New(t)).Generate(context.Background(), "")
	require.ErrorIs(t, err, ErrPromptRequired)
	assert.Empty(t, r.model, "model must not be called")
}

func TestNewReplicateRunner_RequiresToken(t *testing.T) {
	_, err := NewReplicateRunner("", "")
	require.Error(t, err)
}
