package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/expander"
	"labourlaw-rag/internal/extractor"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/router"
)

const (
	answerMarker    = "Senior Legal Analyst"
	routerMarker    = "routing assistant"
	declineMarker   = "politely decline"
	expansionMarker = "query expansion assistant"
	statesMarker    = "extraction assistant"
)

type retrieveCall struct {
	J     jurisdiction.Jurisdiction
	Query string
	K     int
}

type fakeRetriever struct {
	data  map[jurisdiction.Jurisdiction][]models.Passage
	errs  map[jurisdiction.Jurisdiction]error
	delay map[jurisdiction.Jurisdiction]time.Duration

	mu    sync.Mutex
	calls []retrieveCall
}

func (f *fakeRetriever) Retrieve(ctx context.Context, j jurisdiction.Jurisdiction, query string, k int) ([]models.Passage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, retrieveCall{J: j, Query: query, K: k})
	f.mu.Unlock()

	if d := f.delay[j]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[j]; err != nil {
		return nil, err
	}
	passages := f.data[j]
	return passages[:min(k, len(passages))], nil
}

func (f *fakeRetriever) Calls() []retrieveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]retrieveCall(nil), f.calls...)
}

func makePassages(j jurisdiction.Jurisdiction, n int) []models.Passage {
	out := make([]models.Passage, n)
	for i := range out {
		out[i] = models.Passage{
			Source:       fmt.Sprintf("%s_Rules.pdf", strings.ReplaceAll(j.String(), " ", "_")),
			Page:         fmt.Sprint(i + 1),
			Text:         fmt.Sprintf("%s passage %d", j, i+1),
			Jurisdiction: j.String(),
		}
	}
	return out
}

func fullRetriever() *fakeRetriever {
	data := make(map[jurisdiction.Jurisdiction][]models.Passage)
	for _, j := range jurisdiction.All() {
		data[j] = makePassages(j, 20)
	}
	return &fakeRetriever{data: data}
}

func testRAGConfig() *config.RAGConfig {
	return &config.RAGConfig{
		KPrimary:           12,
		KPrimaryComparison: 6,
		KSecondary:         3,
		MaxExpansionTerms:  10,
		FanoutConcurrency:  4,
	}
}

func scriptedLLM(intent, states string) *llmservice.ScriptedCompleter {
	return &llmservice.ScriptedCompleter{Rules: []llmservice.Rule{
		{Match: answerMarker, Reply: "### 1. The Rule (From Context)\nOvertime is paid at twice the rate (Maharashtra_Rules.pdf, Page 1)."},
		{Match: routerMarker, Reply: intent},
		{Match: declineMarker, Reply: "Hello! I can only help with Indian labour law questions."},
		{Match: expansionMarker, Reply: `{"terms": ["overtime wages", "extra hours"]}`},
		{Match: statesMarker, Reply: states},
	}}
}

func newTestPipeline(llm llmservice.Completer, r Retriever, cfg *config.RAGConfig) *Pipeline {
	orch := NewOrchestrator(r, expander.New(llm, cfg.MaxExpansionTerms), extractor.New(llm), cfg)
	return NewPipeline(router.New(llm), orch, NewComposer(llm))
}

func answerPrompt(t *testing.T, llm *llmservice.ScriptedCompleter) string {
	t.Helper()
	for _, p := range llm.Prompts() {
		if strings.Contains(p, answerMarker) {
			return p
		}
	}
	t.Fatal("composer was not called")
	return ""
}

func TestSingleJurisdiction(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Central"]}`)
	r := fullRetriever()

	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{
		Text:         "What is minimum wage under central code?",
		Jurisdiction: "Central",
		Perspective:  "Code on Wages",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAnswered, ans.Outcome)
	assert.Equal(t, models.IntentTechnical, ans.Intent)
	assert.Equal(t, []models.State{models.StateStart, models.StateRouting, models.StateRetrieving, models.StateComposing, models.StateDone}, ans.Path)
	assert.Contains(t, ans.Text, "The Rule")

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, jurisdiction.Central, calls[0].J)
	assert.Equal(t, 12, calls[0].K)
	assert.Equal(t, "What is minimum wage under central code? overtime wages extra hours", calls[0].Query)
	assert.Equal(t, calls[0].Query, ans.ExpandedQuery)
	assert.Len(t, ans.Sources, 12)

	prompt := answerPrompt(t, llm)
	assert.Equal(t, 1, strings.Count(prompt, "[JURISDICTION:"))
	assert.Equal(t, 12, strings.Count(prompt, "[SOURCE: Central_Rules.pdf"))
	question := prompt[strings.Index(prompt, "QUESTION:"):]
	assert.Contains(t, question, "What is minimum wage under central code?")
	assert.NotContains(t, question, "extra hours", "the composer sees the original question")
	assert.Contains(t, prompt, "legal perspective:\nCode on Wages")
	assert.Contains(t, prompt, models.NoPriorConversation)
	assert.Equal(t, 1, llm.Count(answerMarker))
}

func TestComparisonFansOut(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Maharashtra", "Gujarat"]}`)
	r := fullRetriever()

	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{
		Text:         "Compare overtime rules in Maharashtra and Gujarat",
		Jurisdiction: "Maharashtra",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAnswered, ans.Outcome)

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, retrieveCall{J: jurisdiction.Maharashtra, Query: ans.ExpandedQuery, K: 6}, calls[0])
	assert.Equal(t, retrieveCall{J: jurisdiction.Gujarat, Query: ans.ExpandedQuery, K: 3}, calls[1])

	prompt := answerPrompt(t, llm)
	assert.Equal(t, 1, strings.Count(prompt, "[JURISDICTION: Maharashtra]"), "primary must not repeat as a secondary block")
	assert.Less(t, strings.Index(prompt, "[JURISDICTION: Maharashtra]"), strings.Index(prompt, "[JURISDICTION: Gujarat]"))
	assert.Contains(t, prompt, "Comparison Rule")
	assert.Contains(t, prompt, "more than one [JURISDICTION] block, answer from every block")
	assert.Len(t, ans.Sources, 9)
}

func TestSecondaryOrderFollowsExtraction(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Karnataka", "Gujarat", "Central", "Jharkhand", "Gujarat"]}`)
	r := fullRetriever()
	r.delay = map[jurisdiction.Jurisdiction]time.Duration{
		jurisdiction.Karnataka: 40 * time.Millisecond,
		jurisdiction.Gujarat:   20 * time.Millisecond,
	}

	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{
		Text:         "Leave rules across states",
		Jurisdiction: "Central",
	})
	require.NoError(t, err)

	prompt := answerPrompt(t, llm)
	order := []string{"[JURISDICTION: Central]", "[JURISDICTION: Karnataka]", "[JURISDICTION: Gujarat]", "[JURISDICTION: Jharkhand]"}
	last := -1
	for _, h := range order {
		idx := strings.Index(prompt, h)
		require.Greater(t, idx, last, "%s out of order", h)
		last = idx
	}
	assert.Equal(t, 1, strings.Count(prompt, "[JURISDICTION: Gujarat]"))
	assert.Equal(t, 1, strings.Count(prompt, "[JURISDICTION: Central]"))
	assert.Len(t, ans.Sources, 6+3*3)
}

func TestGeneralQueryIsDeclined(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "general", reply: `{"intent": "GENERAL"}`},
		{name: "unknown intent", reply: `{"intent": "UNKNOWN"}`},
		{name: "malformed", reply: `intent: TECHNICAL`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := scriptedLLM(tt.reply, `{"states": []}`)
			r := fullRetriever()

			ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{Text: "hi there", Jurisdiction: "Gujarat"})
			require.NoError(t, err)

			assert.Equal(t, models.OutcomeDeclined, ans.Outcome)
			assert.Equal(t, models.IntentGeneral, ans.Intent)
			assert.Equal(t, []models.State{models.StateStart, models.StateRouting, models.StateDeclining, models.StateDone}, ans.Path)
			assert.Contains(t, ans.Text, "labour law")
			assert.Empty(t, r.Calls())
			assert.Zero(t, llm.Count(expansionMarker))
			assert.Zero(t, llm.Count(answerMarker))
		})
	}
}

func TestNoDocuments(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Gujarat"]}`)
	r := &fakeRetriever{data: map[jurisdiction.Jurisdiction][]models.Passage{jurisdiction.Gujarat: makePassages(jurisdiction.Gujarat, 3)}}

	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{Text: "gratuity ceiling", Jurisdiction: "Jharkhand"})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNoDocuments, ans.Outcome)
	assert.Equal(t, "No relevant documents were found in the Jharkhand index for this query.", ans.Text)
	assert.Equal(t, []models.State{models.StateStart, models.StateRouting, models.StateRetrieving, models.StateDone}, ans.Path)
	assert.Zero(t, llm.Count(answerMarker))
	require.Len(t, r.Calls(), 1, "secondary retrieval is skipped when the primary is empty")
}

func TestNoDocumentsWhenExtractorFails(t *testing.T) {
	boom := errors.New("model unavailable")
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
	llm.Rules = append([]llmservice.Rule{{Match: statesMarker, Err: boom}}, llm.Rules...)
	r := &fakeRetriever{data: map[jurisdiction.Jurisdiction][]models.Passage{jurisdiction.Gujarat: makePassages(jurisdiction.Gujarat, 3)}}

	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{Text: "gratuity ceiling", Jurisdiction: "Jharkhand"})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNoDocuments, ans.Outcome)
	assert.Equal(t, "No relevant documents were found in the Jharkhand index for this query.", ans.Text)
	assert.Zero(t, llm.Count(answerMarker))
	require.Len(t, r.Calls(), 1)
	assert.Equal(t, 12, r.Calls()[0].K)
}

func TestUnknownPrimaryFailsFast(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
	_, err := newTestPipeline(llm, fullRetriever(), testRAGConfig()).Answer(context.Background(), models.Query{Text: "q", Jurisdiction: "Delhi"})
	assert.ErrorIs(t, err, jurisdiction.ErrUnknown)
	assert.Empty(t, llm.Prompts())
}

func TestEmptyQuery(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
	_, err := newTestPipeline(llm, fullRetriever(), testRAGConfig()).Answer(context.Background(), models.Query{Text: " \n", Jurisdiction: "Central"})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestUnrecognizedExtractedJurisdiction(t *testing.T) {
	q := models.Query{Text: "Compare Delhi and Gujarat", Jurisdiction: "Central"}

	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Delhi", "Gujarat"]}`)
	r := fullRetriever()
	ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAnswered, ans.Outcome)
	assert.Len(t, r.Calls(), 2)

	strict := testRAGConfig()
	strict.StrictJurisdictions = true
	llm = scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Delhi", "Gujarat"]}`)
	r = fullRetriever()
	_, err = newTestPipeline(llm, r, strict).Answer(context.Background(), q)
	assert.ErrorIs(t, err, jurisdiction.ErrUnknown)
	assert.Empty(t, r.Calls())
}

func TestRetrievalErrorPropagates(t *testing.T) {
	loadErr := errors.New("index missing")
	for _, j := range []jurisdiction.Jurisdiction{jurisdiction.Maharashtra, jurisdiction.Gujarat} {
		t.Run(j.String(), func(t *testing.T) {
			llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": ["Gujarat"]}`)
			r := fullRetriever()
			r.errs = map[jurisdiction.Jurisdiction]error{j: loadErr}

			_, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{Text: "overtime", Jurisdiction: "Maharashtra"})
			assert.ErrorIs(t, err, loadErr)
			assert.Zero(t, llm.Count(answerMarker))
		})
	}
}

func TestModelFailures(t *testing.T) {
	boom := errors.New("model unavailable")
	tests := []struct {
		name    string
		marker  string
		wantErr bool
	}{
		{name: "router", marker: routerMarker, wantErr: true},
		{name: "extractor", marker: statesMarker, wantErr: true},
		{name: "composer", marker: answerMarker, wantErr: true},
		{name: "expander degrades", marker: expansionMarker, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
			llm.Rules = append([]llmservice.Rule{{Match: tt.marker, Err: boom}}, llm.Rules...)
			r := fullRetriever()

			ans, err := newTestPipeline(llm, r, testRAGConfig()).Answer(context.Background(), models.Query{Text: "overtime", Jurisdiction: "Karnataka"})
			if tt.wantErr {
				assert.ErrorIs(t, err, boom)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "overtime", ans.ExpandedQuery)
			assert.Equal(t, "overtime", r.Calls()[0].Query)
		})
	}
}

func TestHistoryReachesComposer(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
	_, err := newTestPipeline(llm, fullRetriever(), testRAGConfig()).Answer(context.Background(), models.Query{
		Text:         "And for contract labour?",
		Jurisdiction: "Uttarakhand",
		History: []models.Message{
			{Role: models.RoleUser, Text: "What are the overtime rules?"},
			{Role: models.RoleBot, Text: "Overtime is paid at twice the rate."},
		},
	})
	require.NoError(t, err)

	prompt := answerPrompt(t, llm)
	assert.Contains(t, prompt, "User: What are the overtime rules?\nAssistant: Overtime is paid at twice the rate.")
	assert.NotContains(t, prompt, models.NoPriorConversation)
	history := prompt[strings.Index(prompt, "CHAT HISTORY"):strings.Index(prompt, "INSTRUCTIONS (STRICT)")]
	assert.Contains(t, history, "moves to a different state, DO NOT USE the previous state")
}

func TestCancelledContext(t *testing.T) {
	llm := scriptedLLM(`{"intent": "TECHNICAL"}`, `{"states": []}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ans, err := newTestPipeline(llm, fullRetriever(), testRAGConfig()).Answer(ctx, models.Query{Text: "overtime", Jurisdiction: "Central"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ans)
}
