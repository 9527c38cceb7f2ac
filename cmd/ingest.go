package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"labourlaw-rag/internal/embedding"
	"labourlaw-rag/internal/helper"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/parser"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse documents and add them to a jurisdiction's index",
	RunE:  runIngest,
}

var (
	ingestJurisdiction  string
	ingestFiles         []string
	ingestDryRun        bool
	ingestContextualize bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestJurisdiction, "jurisdiction", "j", "", "Jurisdiction whose index receives the documents")
	ingestCmd.Flags().StringSliceVarP(&ingestFiles, "file", "f", nil, "Document file to ingest (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Dry run, print chunks and do not save to the index")
	ingestCmd.Flags().BoolVar(&ingestContextualize, "contextualize", false, "Prefix each chunk with a model-written summary of its place in the document")
	_ = ingestCmd.MarkFlagRequired("jurisdiction")
	_ = ingestCmd.MarkFlagRequired("file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	j, err := jurisdiction.Parse(ingestJurisdiction)
	if err != nil {
		return err
	}

	p := parser.New(&cfg.RAG)
	if ingestDryRun {
		for _, file := range ingestFiles {
			chunks, err := p.ParseFile(file)
			if err != nil {
				return err
			}
			log.Info().Str("file", file).Int("chunks", len(chunks)).Msg("Parsed content")
			helper.PrettyPrint(chunks)
		}
		return nil
	}

	if err := helper.CreateFolder(cfg.RAG.IndexDir); err != nil {
		return err
	}
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	var completer llmservice.Completer
	if ingestContextualize {
		if completer, err = llmservice.NewClient(&cfg.LLM); err != nil {
			return err
		}
	}

	for _, file := range ingestFiles {
		chunks, err := p.ParseFile(file)
		if err != nil {
			return err
		}
		log.Info().Str("file", file).Int("chunks", len(chunks)).Msg("Parsed content")

		if completer != nil {
			if chunks, err = contextualize(ctx, completer, chunks, cfg.RAG.FanoutConcurrency); err != nil {
				return err
			}
		}

		embedded, err := embedding.GenerateEmbedding(ctx, embedder, filepath.Base(file), chunks)
		if err != nil {
			return err
		}
		if err := store.AddPassages(ctx, j, embedded); err != nil {
			return fmt.Errorf("failed to index %s: %w", file, err)
		}
	}
	return nil
}

// contextualize prefixes every chunk with a short description of where it
// sits in the whole document. Original chunk order is preserved.
func contextualize(ctx context.Context, completer llmservice.Completer, chunks []models.Chunk, limit int) ([]models.Chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	document := strings.Join(texts, models.ContextSeparator)

	out := make([]models.Chunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, limit))
	for i, c := range chunks {
		g.Go(func() error {
			summary, err := embedding.GenerateContext(gctx, completer, document, c.Content)
			if err != nil {
				return fmt.Errorf("failed to contextualize chunk %d on page %d: %w", c.ChunkID, c.PageNumber, err)
			}
			if summary = strings.TrimSpace(summary); summary != "" {
				c.Content = summary + models.ContextSeparator + c.Content
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
