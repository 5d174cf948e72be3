package knowledge

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder turns text into dense vectors. Implementations wrap an external
// embedding service; the rest of the package only sees this interface.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

// GeminiEmbedder generates embeddings through the Gemini API.
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

// EmbedderConfig configures the Gemini embedding model.
type EmbedderConfig struct {
	Model    string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	TaskType string `envconfig:"EMBEDDING_TASK_TYPE" default:"SEMANTIC_SIMILARITY"`
}

// NewGeminiEmbedder wraps an existing genai client for embedding calls.
func NewGeminiEmbedder(client *genai.Client, cfg EmbedderConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GeminiEmbedder{client: client, model: model, taskType: cfg.TaskType}, nil
}

// EmbedStrings embeds a batch of texts in one request.
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed returned %d vectors for %d texts", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		v := make([]float64, len(emb.Values))
		for j, x := range emb.Values {
			v[j] = float64(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}
