// Package extractor finds the jurisdictions a query refers to.
package extractor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/structured"
)

var statesParser = structured.Parser[[]string]{
	Name:    "states",
	Default: nil,
	Extract: func(r gjson.Result) ([]string, error) {
		return structured.Strings(r, "states")
	},
}

// Extraction lists recognised jurisdictions in the order the model named
// them, without duplicates, and any names that are not in the table.
type Extraction struct {
	Jurisdictions []jurisdiction.Jurisdiction
	Unrecognized  []string
}

type Extractor struct {
	llm llmservice.Completer
}

func New(llm llmservice.Completer) *Extractor {
	return &Extractor{llm: llm}
}

// Extract asks the model for the jurisdictions in query. Unparseable output
// is an empty extraction; a failed model call is an error.
func (e *Extractor) Extract(ctx context.Context, query string) (Extraction, error) {
	raw, err := e.llm.Complete(ctx, fmt.Sprintf(models.JurisdictionPromptTemplate, query))
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to extract jurisdictions: %w", err)
	}
	ex := Resolve(statesParser.Parse(raw))
	log.Debug().Interface("jurisdictions", ex.Jurisdictions).Strs("unrecognized", ex.Unrecognized).Msg("Extracted jurisdictions")
	return ex, nil
}

// Resolve maps names onto the jurisdiction table, keeping first occurrences.
func Resolve(names []string) Extraction {
	var ex Extraction
	seen := make(map[jurisdiction.Jurisdiction]bool)
	for _, name := range names {
		j, err := jurisdiction.Parse(name)
		if err != nil {
			ex.Unrecognized = append(ex.Unrecognized, name)
			continue
		}
		if seen[j] {
			continue
		}
		seen[j] = true
		ex.Jurisdictions = append(ex.Jurisdictions, j)
	}
	return ex
}
