package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/rag"
	"labourlaw-rag/internal/render"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question against a jurisdiction's documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var (
	askJurisdiction string
	askPerspective  string
	askHTML         bool
)

func init() {
	askCmd.Flags().StringVarP(&askJurisdiction, "jurisdiction", "j", "", "Jurisdiction whose index answers the question")
	askCmd.Flags().StringVar(&askPerspective, "perspective", "", "Perspective the answer is written for")
	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print the answer as HTML")
	_ = askCmd.MarkFlagRequired("jurisdiction")
}

func runAsk(cmd *cobra.Command, args []string) error {
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	ans, err := pipeline.Answer(cmd.Context(), models.Query{
		Text:         query,
		Jurisdiction: askJurisdiction,
		Perspective:  askPerspective,
	})
	if err != nil {
		return err
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	if len(ans.Sources) > 0 {
		log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		for _, p := range ans.Sources {
			fmt.Println(rag.Tag(p))
		}
		fmt.Println()
	}

	log.Info().Str("outcome", string(ans.Outcome)).Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	text := ans.Text
	if askHTML {
		if text, err = render.MarkdownToHTML(ans.Text); err != nil {
			return err
		}
	}
	fmt.Printf("%s\n\n", text)
	return nil
}
