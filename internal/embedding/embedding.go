package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
)

const embedBatchSize = 64

// NewEmbedder creates an embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Loaded embedding config")

	var client embeddings.EmbedderClient
	var err error
	switch llmConfig.Provider {
	case "ollama":
		client, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "azure":
		client, err = openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(llmConfig.Key),
			openai.WithAPIVersion(llmConfig.APIVersion),
			openai.WithEmbeddingModel(llmConfig.Model),
		)
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(embedBatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %v", err)
	}
	return embedder, nil
}

// ChromemFunc adapts an embedder to the function chromem-go calls for
// query text.
func ChromemFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}

// GenerateEmbedding embeds every chunk of a source file
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, filename string, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", filename, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{
			Content:        chunk.Content,
			Embedding:      vectors[i],
			SourceFilename: filename,
			PageNumber:     chunk.PageNumber,
			ChunkID:        chunk.ChunkID,
			Chapter:        chunk.Chapter,
			Section:        chunk.Section,
		})
	}
	return chunkEmbeddings, nil
}

// GenerateContext asks the model for a short description placing chunk
// within document. Ingestion prepends it to the chunk before embedding.
func GenerateContext(ctx context.Context, completer llmservice.Completer, document, chunk string) (string, error) {
	log.Debug().Int("chunk_len", len(chunk)).Msg("Generating context for chunk")
	prompt := fmt.Sprintf(models.ContextPromptTemplate, document, chunk)
	return completer.Complete(ctx, prompt)
}
