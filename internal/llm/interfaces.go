// Package llm integrates the optional local Ollama backend: embeddings for
// hybrid memory search, and JSON-only completions for fact extraction.
package llm

import "context"

// TextGenerator is single-prompt text completion.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator produces vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	GetModel() string
}
