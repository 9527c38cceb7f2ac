package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/extractor"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
)

// ErrNoDocuments means the primary index returned nothing for the query.
var ErrNoDocuments = errors.New("no documents retrieved")

// Retriever returns up to k passages for query from a jurisdiction's index.
type Retriever interface {
	Retrieve(ctx context.Context, j jurisdiction.Jurisdiction, query string, k int) ([]models.Passage, error)
}

type QueryExpander interface {
	Expand(ctx context.Context, query, history string) (string, error)
}

type JurisdictionExtractor interface {
	Extract(ctx context.Context, query string) (extractor.Extraction, error)
}

// Orchestrator assembles the retrieval context for a technical query.
type Orchestrator struct {
	retriever Retriever
	expander  QueryExpander
	extractor JurisdictionExtractor
	cfg       config.RAGConfig
}

func NewOrchestrator(retriever Retriever, expander QueryExpander, extractor JurisdictionExtractor, cfg *config.RAGConfig) *Orchestrator {
	return &Orchestrator{retriever: retriever, expander: expander, extractor: extractor, cfg: *cfg}
}

// BuildContext expands the query, retrieves from the primary index and fans
// out to every other jurisdiction the query mentions. It returns the context
// and the expanded query; ErrNoDocuments is returned with the expanded query
// when the primary index has nothing.
func (o *Orchestrator) BuildContext(ctx context.Context, primary jurisdiction.Jurisdiction, query, history string) (*ComposedContext, string, error) {
	start := time.Now()

	expanded, err := o.expander.Expand(ctx, query, history)
	if err != nil {
		return nil, "", err
	}

	secondary, err := o.secondaryJurisdictions(ctx, primary, query)
	if err != nil {
		if !errors.Is(err, jurisdiction.ErrUnknown) && o.primaryEmpty(ctx, primary, expanded) {
			log.Info().Err(err).Str("jurisdiction", primary.String()).Msg("No documents retrieved")
			return nil, expanded, ErrNoDocuments
		}
		return nil, expanded, err
	}

	k := o.cfg.KPrimary
	if len(secondary) > 0 {
		k = o.cfg.KPrimaryComparison
	}
	passages, err := o.retriever.Retrieve(ctx, primary, expanded, k)
	if err != nil {
		return nil, expanded, err
	}
	if len(passages) == 0 {
		log.Info().Str("jurisdiction", primary.String()).Msg("No documents retrieved")
		return nil, expanded, ErrNoDocuments
	}

	cc := &ComposedContext{Primary: Block{Jurisdiction: primary, Passages: passages}}
	if len(secondary) > 0 {
		blocks, err := o.fanOut(ctx, secondary, expanded)
		if err != nil {
			return nil, expanded, err
		}
		cc.Secondary = blocks
	}

	log.Info().
		Str("jurisdiction", primary.String()).
		Int("primary_passages", len(passages)).
		Int("secondary_blocks", len(cc.Secondary)).
		Dur("elapsed", time.Since(start)).
		Msg("Built retrieval context")
	return cc, expanded, nil
}

// primaryEmpty reports whether the primary index has nothing for query. A
// retrieval error counts as not empty.
func (o *Orchestrator) primaryEmpty(ctx context.Context, primary jurisdiction.Jurisdiction, query string) bool {
	passages, err := o.retriever.Retrieve(ctx, primary, query, o.cfg.KPrimary)
	return err == nil && len(passages) == 0
}

// secondaryJurisdictions returns the jurisdictions named in query other than
// primary, in the order the extractor reported them.
func (o *Orchestrator) secondaryJurisdictions(ctx context.Context, primary jurisdiction.Jurisdiction, query string) ([]jurisdiction.Jurisdiction, error) {
	ex, err := o.extractor.Extract(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ex.Unrecognized) > 0 {
		if o.cfg.StrictJurisdictions {
			return nil, fmt.Errorf("%w: %s", jurisdiction.ErrUnknown, strings.Join(ex.Unrecognized, ", "))
		}
		log.Warn().Strs("names", ex.Unrecognized).Msg("Skipping jurisdictions without an index")
	}

	var out []jurisdiction.Jurisdiction
	for _, j := range ex.Jurisdictions {
		if j != primary {
			out = append(out, j)
		}
	}
	return out, nil
}

// fanOut retrieves from each jurisdiction concurrently. Results are stored by
// position so block order matches the input order.
func (o *Orchestrator) fanOut(ctx context.Context, js []jurisdiction.Jurisdiction, query string) ([]Block, error) {
	results := make([][]models.Passage, len(js))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.FanoutConcurrency > 0 {
		g.SetLimit(o.cfg.FanoutConcurrency)
	}
	for i, j := range js {
		g.Go(func() error {
			passages, err := o.retriever.Retrieve(gctx, j, query, o.cfg.KSecondary)
			if err != nil {
				return err
			}
			results[i] = passages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(js))
	for i, j := range js {
		if len(results[i]) == 0 {
			log.Debug().Str("jurisdiction", j.String()).Msg("No secondary passages, block omitted")
			continue
		}
		blocks = append(blocks, Block{Jurisdiction: j, Passages: results[i]})
	}
	return blocks, nil
}
