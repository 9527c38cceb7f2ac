package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
)

var ErrEmptyQuery = errors.New("query text is required")

type IntentRouter interface {
	Classify(ctx context.Context, query, jurisdiction string) (models.Intent, error)
	Decline(ctx context.Context, query string) (string, error)
}

// Pipeline answers one query at a time. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	router       IntentRouter
	orchestrator *Orchestrator
	composer     *Composer
}

func NewPipeline(router IntentRouter, orchestrator *Orchestrator, composer *Composer) *Pipeline {
	return &Pipeline{router: router, orchestrator: orchestrator, composer: composer}
}

// Answer runs START -> ROUTING -> {DECLINING | RETRIEVING -> COMPOSING} -> DONE.
// The jurisdiction is validated before the router is consulted.
func (p *Pipeline) Answer(ctx context.Context, q models.Query) (*models.Answer, error) {
	primary, err := jurisdiction.Parse(q.Jurisdiction)
	if err != nil {
		return nil, err
	}
	question := SafeText(q.Text)
	if question == "" {
		return nil, ErrEmptyQuery
	}
	history := models.FormatHistory(q.History)

	start := time.Now()
	ans := &models.Answer{}
	var cc *ComposedContext

	state := models.StateStart
	for state != models.StateDone {
		ans.Path = append(ans.Path, state)

		switch state {
		case models.StateStart:
			state = models.StateRouting

		case models.StateRouting:
			intent, err := p.router.Classify(ctx, question, primary.String())
			if err != nil {
				return nil, err
			}
			ans.Intent = intent
			if intent == models.IntentTechnical {
				state = models.StateRetrieving
			} else {
				state = models.StateDeclining
			}

		case models.StateDeclining:
			text, err := p.router.Decline(ctx, question)
			if err != nil {
				return nil, err
			}
			ans.Text = text
			ans.Outcome = models.OutcomeDeclined
			state = models.StateDone

		case models.StateRetrieving:
			var expanded string
			cc, expanded, err = p.orchestrator.BuildContext(ctx, primary, question, history)
			ans.ExpandedQuery = expanded
			switch {
			case errors.Is(err, ErrNoDocuments):
				ans.Text = fmt.Sprintf(models.NoDocumentsTemplate, primary)
				ans.Outcome = models.OutcomeNoDocuments
				state = models.StateDone
			case err != nil:
				return nil, err
			default:
				state = models.StateComposing
			}

		case models.StateComposing:
			text, err := p.composer.Compose(ctx, q.Perspective, history, cc.String(), question)
			if err != nil {
				return nil, err
			}
			ans.Text = text
			ans.Outcome = models.OutcomeAnswered
			ans.Sources = cc.Passages()
			state = models.StateDone

		default:
			return nil, fmt.Errorf("unexpected pipeline state %s", state)
		}
	}
	ans.Path = append(ans.Path, models.StateDone)

	log.Info().
		Str("jurisdiction", primary.String()).
		Str("intent", string(ans.Intent)).
		Str("outcome", string(ans.Outcome)).
		Dur("elapsed", time.Since(start)).
		Msg("Answered query")
	return ans, nil
}
