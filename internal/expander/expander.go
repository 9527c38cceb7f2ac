// Package expander widens a search query with related legal phrases.
package expander

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/structured"
)

// MaxTerms is the hard cap on expansion terms, whatever the model returns.
const MaxTerms = 10

var termsParser = structured.Parser[[]string]{
	Name:    "terms",
	Default: nil,
	Extract: func(r gjson.Result) ([]string, error) {
		return structured.Strings(r, "terms")
	},
}

type Expander struct {
	llm      llmservice.Completer
	maxTerms int
}

// New creates an expander asking for maxTerms phrases, capped at MaxTerms.
func New(llm llmservice.Completer, maxTerms int) *Expander {
	if maxTerms <= 0 || maxTerms > MaxTerms {
		maxTerms = MaxTerms
	}
	return &Expander{llm: llm, maxTerms: maxTerms}
}

// Expand returns the query followed by the model's related terms. Any
// failure to obtain terms yields the query unchanged; a cancelled context is
// reported to the caller.
func (e *Expander) Expand(ctx context.Context, query, history string) (string, error) {
	if history == "" {
		history = models.NoPriorConversation
	}
	raw, err := e.llm.Complete(ctx, fmt.Sprintf(models.ExpansionPromptTemplate, e.maxTerms, query, history))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		log.Warn().Err(err).Msg("Query expansion failed, using original query")
		return query, nil
	}

	terms := termsParser.Parse(raw)
	if len(terms) > e.maxTerms {
		terms = terms[:e.maxTerms]
	}
	expanded := Join(query, terms)
	log.Debug().Int("terms", len(terms)).Str("expanded", expanded).Msg("Expanded query")
	return expanded, nil
}

// Join appends terms to query separated by single spaces.
func Join(query string, terms []string) string {
	if len(terms) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.TrimSpace(query + " " + strings.Join(terms, " "))
}
