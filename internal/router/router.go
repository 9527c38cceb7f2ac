// Package router decides whether a query needs legal retrieval.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/structured"
)

var intentParser = structured.Parser[models.Intent]{
	Name:    "intent",
	Default: models.IntentGeneral,
	Extract: func(r gjson.Result) (models.Intent, error) {
		v := r.Get("intent")
		if !v.Exists() {
			return "", errors.New("missing field intent")
		}
		intent, ok := models.ParseIntent(v.String())
		if !ok {
			return "", fmt.Errorf("unexpected intent %q", v.String())
		}
		return intent, nil
	},
}

type Router struct {
	llm llmservice.Completer
}

func New(llm llmservice.Completer) *Router {
	return &Router{llm: llm}
}

// Classify labels the query GENERAL or TECHNICAL. Unparseable model output
// is GENERAL; only a failed model call is an error.
func (r *Router) Classify(ctx context.Context, query, jurisdiction string) (models.Intent, error) {
	prompt := fmt.Sprintf(models.RouterPromptTemplate, fmt.Sprintf("%s for %s", query, jurisdiction))
	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to classify intent: %w", err)
	}
	intent := intentParser.Parse(raw)
	log.Debug().Str("intent", string(intent)).Msg("Routed query")
	return intent, nil
}

// Decline produces the greeting or polite refusal for a GENERAL query.
func (r *Router) Decline(ctx context.Context, query string) (string, error) {
	reply, err := r.llm.Complete(ctx, fmt.Sprintf(models.DeclinePromptTemplate, query))
	if err != nil {
		return "", fmt.Errorf("failed to compose reply: %w", err)
	}
	return reply, nil
}
