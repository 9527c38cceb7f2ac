package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"labourlaw-rag/internal/blob"
	"labourlaw-rag/internal/chromemdb"
	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/db"
	"labourlaw-rag/internal/embedding"
	"labourlaw-rag/internal/expander"
	"labourlaw-rag/internal/extractor"
	"labourlaw-rag/internal/helper"
	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/rag"
	"labourlaw-rag/internal/router"
	"labourlaw-rag/internal/session"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configFilePath string
	cfg            *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "lawbot",
	Short:         "Question answering over Indian labour law",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configFilePath)
		if err != nil {
			return err
		}
		helper.InitLogger(cfg.Logging.Level, cfg.Logging.Pretty)
		log.Debug().Str("config", configFilePath).Msg("Loaded config")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", defaultConfigPath, "Path to the config file")
	rootCmd.AddCommand(askCmd, ingestCmd, serveCmd, exportCmd, importCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newStore opens the per-jurisdiction indexes with the configured embedder.
func newStore(cfg *config.Config) (*chromemdb.Store, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	return chromemdb.NewStore(&cfg.RAG, embedding.ChromemFunc(embedder)), nil
}

func newPipeline(cfg *config.Config) (*rag.Pipeline, error) {
	client, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	orchestrator := rag.NewOrchestrator(
		store,
		expander.New(client, cfg.RAG.MaxExpansionTerms),
		extractor.New(client),
		&cfg.RAG,
	)
	return rag.NewPipeline(router.New(client), orchestrator, rag.NewComposer(client)), nil
}

// newSessionStore returns the configured session backend and a function
// releasing its resources.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "postgres":
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB); err != nil {
			bunDB.Close()
			return nil, nil, fmt.Errorf("failed to initialize session tables: %w", err)
		}
		return db.NewSessionStore(bunDB), func() { bunDB.Close() }, nil
	default:
		storage, err := blob.NewStorage(ctx, &cfg.Blob)
		if err != nil {
			return nil, nil, err
		}
		return session.NewBlobStore(storage), func() {}, nil
	}
}
