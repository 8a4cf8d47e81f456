package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Model generates a streamed response. onDelta is called once per chunk;
// returning an error from it aborts the stream. The full response text is
// returned after the stream completes.
type Model interface {
	GenerateStream(ctx context.Context, system, prompt string, onDelta func(context.Context, string) error) (string, error)
}

// GenkitModel generates responses through a Genkit model plugin.
type GenkitModel struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
}

// NewGenkitModel creates a model bound to a provider-qualified model name,
// e.g. "googleai/gemini-2.5-flash".
func NewGenkitModel(g *genkit.Genkit, modelName string, temperature float64) *GenkitModel {
	return &GenkitModel{g: g, modelName: modelName, temperature: temperature}
}

func (m *GenkitModel) GenerateStream(ctx context.Context, system, prompt string, onDelta func(context.Context, string) error) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(m.temperature)),
		}),
	}
	if onDelta != nil {
		opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			return onDelta(cbCtx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	return resp.Text(), nil
}
